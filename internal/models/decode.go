package models

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"natours/api/internal/resource"
)

// DecodeAccount maps a stored account record onto the typed struct.
func DecodeAccount(rec resource.Record) (Account, error) {
	var acc Account
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &acc,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return Account{}, fmt.Errorf("account decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	return acc, nil
}
