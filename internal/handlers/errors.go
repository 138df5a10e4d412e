package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"natours/api/internal/apperr"
)

// tokenMessage is shared by invalid and expired reset tokens so responses
// do not reveal which one it was.
const tokenMessage = "token is invalid or has expired"

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrTokenInvalid), errors.Is(err, apperr.ErrTokenExpired):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func messageFor(status int, err error) string {
	if errors.Is(err, apperr.ErrTokenInvalid) || errors.Is(err, apperr.ErrTokenExpired) {
		return tokenMessage
	}
	if msg := apperr.PublicMessage(err); msg != "" {
		return msg
	}
	switch status {
	case http.StatusUnauthorized:
		return "you are not logged in"
	case http.StatusForbidden:
		return "you do not have permission to perform this action"
	case http.StatusNotFound:
		return "no document found with that id"
	case http.StatusConflict:
		return "duplicate field value, please use another value"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable, try again later"
	case http.StatusRequestEntityTooLarge:
		return "request body too large"
	}
	return "something went very wrong"
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	kind := "fail"
	if status >= http.StatusInternalServerError {
		kind = "error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": kind, "message": messageFor(status, err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": "fail", "message": msg})
}
