package security

import "time"

// SessionValid reports whether a session issued at issuedAt survives a
// password change at changedAt. Both are compared at whole-second
// precision, the resolution of the token's iat claim.
func SessionValid(issuedAt time.Time, changedAt *time.Time) bool {
	if changedAt == nil || changedAt.IsZero() {
		return true
	}
	return issuedAt.Unix() > changedAt.Unix()
}
