package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"natours/api/internal/apperr"
)

func TestWithMessage(t *testing.T) {
	err := fmt.Errorf("login: %w", apperr.WithMessage(apperr.ErrUnauthorized, "incorrect email or password"))

	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, "incorrect email or password", apperr.PublicMessage(err))
	assert.Equal(t, "", apperr.PublicMessage(apperr.ErrNotFound))
}

func TestValidation(t *testing.T) {
	err := fmt.Errorf("create: %w", apperr.Validation("price", "must be at least %d", 0))

	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, "price: must be at least 0", apperr.PublicMessage(err))
	assert.False(t, apperr.IsValidation(apperr.ErrConflict))
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Unavailable("find tours", cause)

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}
