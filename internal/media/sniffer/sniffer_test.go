package sniffer_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/media/sniffer"
)

func TestDetectHead(t *testing.T) {
	testCases := []struct {
		name     string
		head     []byte
		expected sniffer.MediaType
	}{
		{name: "jpeg", head: []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}, expected: sniffer.TypeJPEG},
		{name: "png", head: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0}, expected: sniffer.TypePNG},
		{name: "gif", head: []byte("GIF89a...."), expected: sniffer.TypeGIF},
		{name: "webp", head: []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), expected: sniffer.TypeWEBP},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := sniffer.DetectHead(tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.Type)
			assert.Equal(t, "image/"+string(tc.expected), res.MIME)
		})
	}

	for _, head := range [][]byte{nil, []byte("<svg xmlns="), []byte("RIFF\x24\x00\x00\x00WAVE")} {
		_, err := sniffer.DetectHead(head)
		assert.ErrorIs(t, err, sniffer.ErrUnknownType)
	}
}

func TestDetectReturnsConsumedHead(t *testing.T) {
	body := append([]byte("GIF87a"), bytes.Repeat([]byte{7}, 1000)...)
	r := bytes.NewReader(body)

	res, head, err := sniffer.Detect(r)
	require.NoError(t, err)
	assert.Equal(t, sniffer.TypeGIF, res.Type)
	assert.Len(t, head, sniffer.HeadSize)
	assert.Equal(t, len(body)-sniffer.HeadSize, r.Len())

	_, head, err = sniffer.Detect(bytes.NewReader([]byte("GIF87a")))
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF87a"), head)
}

func TestDeclaredMIME(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "Image/PNG; charset=binary")
	assert.Equal(t, "image/png", sniffer.DeclaredMIME(h))
	assert.Equal(t, "", sniffer.DeclaredMIME(http.Header{}))
}
