package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"natours/api/internal/access"
	"natours/api/internal/models"
)

// IncludeHiddenHeader asks for soft-deleted and hidden records. Only
// elevated callers are affected by it.
const IncludeHiddenHeader = "X-Include-Hidden"

func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "fail", "message": "you are not logged in"})
			return
		}
		if _, ok := roleSet[account.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "fail", "message": "you do not have permission to perform this action"})
			return
		}
		c.Next()
	}
}

// HiddenRecords honours IncludeHiddenHeader for the rest of the chain.
func HiddenRecords() gin.HandlerFunc {
	return func(c *gin.Context) {
		if on, _ := strconv.ParseBool(c.GetHeader(IncludeHiddenHeader)); on {
			c.Request = c.Request.WithContext(access.WithHiddenRecords(c.Request.Context()))
		}
		c.Next()
	}
}
