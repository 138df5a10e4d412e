package service

import (
	"natours/api/internal/apperr"
	"natours/api/internal/security"
)

const (
	minPasswordLength = 8
	// maxPasswordLength is the most bcrypt will hash.
	maxPasswordLength = 72
)

// hashNewPassword checks a new password and its confirmation and returns
// the hash to store.
func hashNewPassword(password, confirm string) ([]byte, error) {
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password", "must have at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return nil, apperr.Validation("password", "must have at most %d bytes", maxPasswordLength)
	}
	if password != confirm {
		return nil, apperr.Validation("passwordConfirm", "passwords are not the same")
	}
	return security.HashPassword(password)
}
