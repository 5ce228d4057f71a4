package server

import (
	"errors"
	"net/http"

	"github.com/desertthunder/animx/internal/shared"
	"github.com/gin-gonic/gin"
)

// StatusFor maps an error onto the HTTP status reported to callers.
//
// Caller faults are 4xx; provider, configuration and timeout failures are 500.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrUserExists),
		errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrUserNotFound):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusFor(err), errorBody(err.Error()))
}
