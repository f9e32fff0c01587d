// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// IdempotencyValidator guards the Idempotency-Key header of wallet writes.
// It rejects malformed keys before any handler runs, stores the trimmed key
// for handlers (GetIdempotencyKey) and, when a completed spend already exists
// for the key, marks the request as a replay. Replays skip the rate limiter:
// they are answered from the stored record and never move funds.
//
// The stored record itself is read and served by the spend handler; this
// middleware only answers "does one exist".
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HeaderIdempotencyKey carries the client's key for a spend.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
	// anonymousUser matches the handlers' fallback for requests without a
	// user, so lookups hit the same records the handlers write.
	anonymousUser = "demo-user"
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := asString(c.Value(ctxKeyIdemKey))
	return s, s != ""
}

// IsReplay reports whether a completed spend already exists for the key.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether an unexpired record exists for
// (userID, wallet, key). wallet is the raw :name route parameter; the lookup
// is responsible for resolving it to the wallet's canonical name.
type IdempotencyLookup func(ctx context.Context, userID, wallet, key string, now time.Time) (bool, error)

// IdempotencyValidator checks Idempotency-Key on unsafe methods. Requests
// without the header, and safe methods, pass through untouched. A key that is
// too long or outside the pattern is answered with 400. Lookup failures are
// logged and treated as "no record": the handler re-checks inside its own
// flow, so the worst case is a replay that is rate limited.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		wallet := c.Param("name")
		if lookup != nil && wallet != "" {
			ctx := c.Request.Context()
			exists, err := lookup(ctx, idempotencyUser(c), wallet, key, time.Now().UTC())
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("wallet", wallet).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func idempotencyUser(c *gin.Context) string {
	if u := requestUser(c); u != "" {
		return u
	}
	return anonymousUser
}
