// Package handlers provides HTTP handler implementations for the wallet API.
//
// Every failure is written as an ErrorResponse with a stable code (see
// errors.go). Failures a client may simply retry, storefront outages and
// timeouts, set "retryable":
//
//	HTTP/1.1 504 Gateway Timeout
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "verification_timeout",
//	  "message": "storefront timeout",
//	  "retryable": true
//	}
//
// Successful calls return the endpoint's own body, e.g.
//
//	{ "wallet": "gems", "user_id": "user123", "balance": 120 }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-iap-wallet/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"insufficient_funds"`
	// Human-readable message
	Message string `json:"message" example:"insufficient funds"`
	// Whether the same request may succeed if sent again unchanged
	Retryable bool `json:"retryable,omitempty" example:"false"`
}

// retryableStatus reports statuses caused by something other than the request
// itself: upstream storefront failures and unavailability.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// fail aborts with an ErrorResponse. Our own 5xx are logged at error level;
// storefront failures (502/504) at warn, since the fault is upstream.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Retryable: retryableStatus(status),
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error()
		if resp.Retryable {
			ev = lg.Warn()
		}
		ev.Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for callers outside the package, such as the router's
// NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
