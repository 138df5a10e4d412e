package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"natours/api/internal/access"
	"natours/api/internal/apperr"
	"natours/api/internal/metrics"
	"natours/api/internal/models"
	"natours/api/internal/query"
	"natours/api/internal/repository"
	"natours/api/internal/resource"
	"natours/api/internal/security"
)

// ResetTokenTTL is how long a password reset token stays usable.
const ResetTokenTTL = 10 * time.Minute

var ErrResetDelivery = apperr.WithMessage(apperr.ErrUnavailable, "there was an error sending the reset email, try again later")

// ResetDelivery is what a Notifier needs to reach the account holder.
type ResetDelivery struct {
	Recipient string    `json:"recipient"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Notifier interface {
	NotifyReset(ctx context.Context, d ResetDelivery) error
}

type ResetToken struct {
	Plain     string
	ExpiresAt time.Time
}

// TokenService owns the password reset token lifecycle. Only the digest of
// a token is ever stored.
type TokenService struct {
	accounts *repository.AccountRepository
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
	metrics  *metrics.Metrics
}

func NewTokenService(accounts *repository.AccountRepository, notifier Notifier, log zerolog.Logger, opts ...Option) *TokenService {
	o := buildOptions(opts)
	return &TokenService{
		accounts: accounts,
		notifier: notifier,
		log:      log,
		now:      o.now,
		metrics:  o.metrics,
	}
}

func (s *TokenService) IssueResetToken(ctx context.Context, account models.Account) (ResetToken, error) {
	plain, digest, err := security.GenerateResetToken()
	if err != nil {
		return ResetToken{}, err
	}
	expires := s.now().UTC().Add(ResetTokenTTL)
	if _, err := s.accounts.Update(ctx, account.ID, resource.Record{
		models.AccountPasswordResetToken:   digest,
		models.AccountPasswordResetExpires: expires,
	}); err != nil {
		return ResetToken{}, fmt.Errorf("store reset token: %w", err)
	}
	return ResetToken{Plain: plain, ExpiresAt: expires}, nil
}

// DeliverResetToken issues a token and hands it to the notifier. A failed
// delivery leaves no usable token behind.
func (s *TokenService) DeliverResetToken(ctx context.Context, account models.Account) error {
	token, err := s.IssueResetToken(ctx, account)
	if err != nil {
		return err
	}
	err = s.notifier.NotifyReset(ctx, ResetDelivery{
		Recipient: account.Email,
		Name:      account.Name,
		Token:     token.Plain,
		ExpiresAt: token.ExpiresAt,
	})
	s.countDelivery(err)
	if err == nil {
		return nil
	}
	if _, clearErr := s.accounts.Update(ctx, account.ID, clearReset()); clearErr != nil {
		s.log.Error().Err(clearErr).Str("account_id", account.ID).Msg("clear reset token after failed delivery")
	}
	return fmt.Errorf("%w: %w", ErrResetDelivery, err)
}

// ConsumeResetToken sets a new password if plain matches an unexpired
// token. Matching and clearing happen in one conditional update, so a
// token works once.
func (s *TokenService) ConsumeResetToken(ctx context.Context, plain, newPassword, confirm string) (models.Account, error) {
	hash, err := hashNewPassword(newPassword, confirm)
	if err != nil {
		return models.Account{}, err
	}
	digest := security.DigestResetToken(plain)
	now := s.now().UTC()

	changes := clearReset()
	changes[models.AccountPassword] = string(hash)
	changes[models.AccountPasswordChangedAt] = now.Add(-time.Second)

	account, err := s.accounts.UpdateWhere(ctx, query.Filter{
		{Field: models.AccountPasswordResetToken, Op: query.Eq, Value: digest},
		{Field: models.AccountPasswordResetExpires, Op: query.Gt, Value: now},
	}, changes)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return models.Account{}, err
	}

	// Tell an expired token from an unknown one, clearing it on the way.
	_, err = s.accounts.UpdateWhere(ctx, query.Filter{
		{Field: models.AccountPasswordResetToken, Op: query.Eq, Value: digest},
	}, clearReset())
	switch {
	case err == nil:
		return models.Account{}, apperr.ErrTokenExpired
	case errors.Is(err, apperr.ErrNotFound):
		return models.Account{}, apperr.ErrTokenInvalid
	default:
		return models.Account{}, err
	}
}

// PurgeExpired clears reset fields of every account whose token expired,
// deactivated accounts included.
func (s *TokenService) PurgeExpired(ctx context.Context) (int, error) {
	ctx = access.WithHiddenRecords(access.ContextWithCaller(ctx, access.Caller{ID: "reset-purge", Role: models.RoleAdmin}))
	expired, err := s.accounts.FindWhere(ctx, query.Filter{
		{Field: models.AccountPasswordResetExpires, Op: query.Lte, Value: s.now().UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("find expired reset tokens: %w", err)
	}
	purged := 0
	for _, acc := range expired {
		if _, err := s.accounts.Update(ctx, acc.ID, clearReset()); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return purged, fmt.Errorf("clear reset token %s: %w", acc.ID, err)
		}
		purged++
	}
	return purged, nil
}

func (s *TokenService) countDelivery(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "queued"
	if err != nil {
		outcome = "failed"
	}
	s.metrics.ResetDeliveries.WithLabelValues(outcome).Inc()
}

func clearReset() resource.Record {
	return resource.Record{
		models.AccountPasswordResetToken:   nil,
		models.AccountPasswordResetExpires: nil,
	}
}
