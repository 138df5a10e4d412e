package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"natours/api/internal/apperr"
	"natours/api/internal/models"
	"natours/api/internal/repository"
	"natours/api/internal/resource"
	"natours/api/internal/security"
)

var (
	ErrMissingCredentials = apperr.WithMessage(apperr.ErrUnauthorized, "please provide email and password")
	ErrInvalidCredentials = apperr.WithMessage(apperr.ErrUnauthorized, "incorrect email or password")
	ErrNotLoggedIn        = apperr.WithMessage(apperr.ErrUnauthorized, "you are not logged in, please log in to get access")
	ErrAccountGone        = apperr.WithMessage(apperr.ErrUnauthorized, "the account belonging to this token no longer exists")
	ErrPasswordChanged    = apperr.WithMessage(apperr.ErrUnauthorized, "password was changed recently, please log in again")
	ErrWrongPassword      = apperr.WithMessage(apperr.ErrUnauthorized, "your current password is wrong")
	ErrEmailTaken         = apperr.WithMessage(apperr.ErrConflict, "an account with this email already exists")
)

type AuthService struct {
	accounts *repository.AccountRepository
	tokens   *TokenService
	issuer   *security.TokenIssuer
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	accounts *repository.AccountRepository,
	tokens *TokenService,
	issuer *security.TokenIssuer,
	log zerolog.Logger,
	opts ...Option,
) *AuthService {
	o := buildOptions(opts)
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		issuer:   issuer,
		log:      log,
		now:      o.now,
	}
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   models.Account
}

type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (AuthResult, error) {
	fields, err := models.AccountDescriptor.Validate(resource.Record{
		models.AccountName:  input.Name,
		models.AccountEmail: input.Email,
	}, nil, resource.Create)
	if err != nil {
		return AuthResult{}, err
	}
	hash, err := hashNewPassword(input.Password, input.PasswordConfirm)
	if err != nil {
		return AuthResult{}, err
	}

	account, err := s.accounts.Create(ctx, models.NewAccountRecord(fields, hash))
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, err
	}
	s.log.Info().Str("account_id", account.ID).Msg("account signed up")
	return s.session(account)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return AuthResult{}, ErrMissingCredentials
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !security.VerifyPassword(password, []byte(account.PasswordHash)) {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.session(account)
}

// Authenticate resolves a session token to its account. The account must
// still be visible and the token must postdate the last password change.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, ErrNotLoggedIn
	}
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return models.Account{}, apperr.WithMessage(apperr.ErrUnauthorized, "invalid token, please log in again")
	}
	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, ErrAccountGone
		}
		return models.Account{}, err
	}
	if !security.SessionValid(claims.IssuedAt.Time, account.PasswordChangedAt) {
		return models.Account{}, ErrPasswordChanged
	}
	return account, nil
}

type UpdatePasswordInput struct {
	AccountID       string
	Current         string
	Password        string
	PasswordConfirm string
}

func (s *AuthService) UpdatePassword(ctx context.Context, input UpdatePasswordInput) (AuthResult, error) {
	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		return AuthResult{}, err
	}
	if !security.VerifyPassword(input.Current, []byte(account.PasswordHash)) {
		return AuthResult{}, ErrWrongPassword
	}
	hash, err := hashNewPassword(input.Password, input.PasswordConfirm)
	if err != nil {
		return AuthResult{}, err
	}
	account, err = s.accounts.Update(ctx, account.ID, resource.Record{
		models.AccountPassword:          string(hash),
		models.AccountPasswordChangedAt: s.now().UTC().Add(-time.Second),
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("update password: %w", err)
	}
	return s.session(account)
}

// ForgotPassword starts a reset for email. Unknown addresses succeed
// silently so the endpoint cannot be used to probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.log.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}
	return s.tokens.DeliverResetToken(ctx, account)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (AuthResult, error) {
	account, err := s.tokens.ConsumeResetToken(ctx, token, password, confirm)
	if err != nil {
		return AuthResult{}, err
	}
	s.log.Info().Str("account_id", account.ID).Msg("password reset")
	return s.session(account)
}

func (s *AuthService) session(account models.Account) (AuthResult, error) {
	token, expires, err := s.issuer.Issue(account.ID, string(account.Role))
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, ExpiresAt: expires, Account: account}, nil
}
