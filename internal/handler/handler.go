// Package handler provides the HTTP handlers of the rewards API.
package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"smash-rewards/internal/service"
)

// Context keys set by the authentication middleware.
const (
	AccountIDKey = "account_id"
	EmailKey     = "email"
)

// DefaultTimeout bounds state-changing requests when none is configured.
const DefaultTimeout = 15 * time.Second

type errorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	RetryAfter int64  `json:"retry_after_seconds,omitempty"`
}

// accountID returns the authenticated account id, or responds 401.
func accountID(c *gin.Context) (string, bool) {
	id := c.GetString(AccountIDKey)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return "", false
	}
	return id, true
}

func email(c *gin.Context) *string {
	if e := c.GetString(EmailKey); e != "" {
		return &e
	}
	return nil
}

// detached returns a context that survives the client going away. Once an
// action starts crediting, its commission chain runs to completion.
func detached(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), timeout)
}

// respondError maps service error kinds to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var gate *service.GateError
	switch {
	case errors.As(err, &gate):
		c.JSON(http.StatusConflict, errorResponse{
			Error:      gate.Error(),
			Reason:     string(gate.Reason),
			RetryAfter: int64(math.Ceil(gate.Remaining.Seconds())),
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrReferralNotFound), errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotEligible):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUpstream):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Upstream failure")
		c.JSON(http.StatusBadGateway, errorResponse{Error: "service temporarily unavailable, try again"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
