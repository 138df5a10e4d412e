package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"natours/api/internal/access"
	"natours/api/internal/apperr"
	"natours/api/internal/models"
	"natours/api/internal/service"
)

const (
	CurrentAccountKey = "current_account"
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "jwt"
)

// Authenticate resolves the bearer token (or session cookie) to an account
// and attaches the caller to the request context.
func Authenticate(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := auth.Authenticate(c.Request.Context(), sessionToken(c))
		if err != nil {
			status := http.StatusUnauthorized
			msg := apperr.PublicMessage(err)
			if msg == "" {
				status, msg = http.StatusServiceUnavailable, "service temporarily unavailable"
			}
			c.AbortWithStatusJSON(status, gin.H{"status": "fail", "message": msg})
			return
		}

		attachAccount(c, account)
		c.Next()
	}
}

// OptionalAuthenticate attaches the caller when the request carries a valid
// session and otherwise lets it through anonymously.
func OptionalAuthenticate(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionToken(c); token != "" {
			if account, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				attachAccount(c, account)
			}
		}
		c.Next()
	}
}

func attachAccount(c *gin.Context, account models.Account) {
	ctx := access.ContextWithCaller(c.Request.Context(), access.Caller{ID: account.ID, Role: account.Role})
	c.Request = c.Request.WithContext(ctx)
	c.Set(CurrentAccountKey, account)
}

func sessionToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// CurrentAccount returns the account set by Authenticate.
func CurrentAccount(c *gin.Context) (models.Account, bool) {
	v, ok := c.Get(CurrentAccountKey)
	if !ok {
		return models.Account{}, false
	}
	account, ok := v.(models.Account)
	return account, ok
}
