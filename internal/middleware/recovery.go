package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into the generic 500 envelope. It logs
// through the request-scoped logger when Logger ran first.
func Recovery(fallback zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log := zerolog.Ctx(c.Request.Context())
			if log.GetLevel() == zerolog.Disabled {
				log = &fallback
			}
			log.Error().Interface("panic", r).Str("route", c.FullPath()).Msg("panic recovered")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "something went very wrong",
			})
		}()
		c.Next()
	}
}
