package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog"

	"natours/api/internal/apperr"
	"natours/api/internal/media/sniffer"
	"natours/api/internal/models"
	"natours/api/internal/repository"
	"natours/api/internal/resource"
)

// MaxPhotoBytes bounds a single photo upload.
const MaxPhotoBytes = 5 << 20

type PhotoStore interface {
	PutPhoto(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	RemovePhoto(ctx context.Context, key string) error
	PhotoURL(key string) string
}

type PhotoInput struct {
	AccountID string
	File      io.Reader
	// DeclaredMIME is the client's Content-Type for the part, if any.
	DeclaredMIME string
}

type PhotoResult struct {
	Account models.Account
	URL     string
}

type PhotoService struct {
	accounts *repository.AccountRepository
	store    PhotoStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewPhotoService(accounts *repository.AccountRepository, store PhotoStore, log zerolog.Logger, opts ...Option) *PhotoService {
	o := buildOptions(opts)
	return &PhotoService{accounts: accounts, store: store, log: log, now: o.now}
}

func (s *PhotoService) Upload(ctx context.Context, input PhotoInput) (PhotoResult, error) {
	if input.File == nil {
		return PhotoResult{}, apperr.Validation("photo", "is required")
	}
	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		return PhotoResult{}, err
	}

	result, head, err := sniffer.Detect(input.File)
	if err != nil {
		return PhotoResult{}, apperr.Validation("photo", "is not an image, please upload only images")
	}
	if input.DeclaredMIME != "" && input.DeclaredMIME != "application/octet-stream" && input.DeclaredMIME != result.MIME {
		return PhotoResult{}, apperr.Validation("photo", "declared as %s but contains %s", input.DeclaredMIME, result.MIME)
	}
	rest, err := io.ReadAll(io.LimitReader(input.File, MaxPhotoBytes-int64(len(head))+1))
	if err != nil {
		return PhotoResult{}, fmt.Errorf("read photo: %w", err)
	}
	data := append(head, rest...)
	if len(data) > MaxPhotoBytes {
		return PhotoResult{}, apperr.Validation("photo", "must be at most %d bytes", MaxPhotoBytes)
	}

	key := path.Join("users", fmt.Sprintf("user-%s-%d.%s", account.ID, s.now().UnixMilli(), result.Type))
	if err := s.store.PutPhoto(ctx, key, bytes.NewReader(data), int64(len(data)), result.MIME); err != nil {
		return PhotoResult{}, apperr.Unavailable("store photo", err)
	}

	previous := account.Photo
	account, err = s.accounts.Update(ctx, account.ID, resource.Record{models.AccountPhoto: key})
	if err != nil {
		return PhotoResult{}, err
	}
	if previous != "" && previous != models.DefaultPhoto && previous != key {
		if err := s.store.RemovePhoto(ctx, previous); err != nil {
			s.log.Warn().Err(err).Str("account_id", account.ID).Str("key", previous).Msg("remove previous photo failed")
		}
	}
	return PhotoResult{Account: account, URL: s.store.PhotoURL(key)}, nil
}
