// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger is the access logger installed by the router. It never
// logs bodies, which is where receipts travel, and scrubs what is left in
// the query string and headers: store receipts and purchase tokens, e-mail
// addresses and UUID-shaped ids. Credential headers are masked outright.
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Api-Key"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced with "[REDACTED]" in addition to
	// Authorization, Cookie and Set-Cookie. Matching ignores case.
	MaskHeaders []string
}

var (
	// Replacement order matters: ids first, so their hex runs are not
	// swallowed by the token pattern.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Apple receipts are long base64, Google purchase tokens long dotted
	// url-safe strings. A 64 char hex receipt hash is not a secret but
	// also matches; that is acceptable for logs.
	tokenRE = regexp.MustCompile(`[A-Za-z0-9+/_\-.]{40,}={0,2}`)

	// Query parameters whose whole value is dropped.
	secretParams = map[string]struct{}{
		"receipt":       {},
		"purchasetoken": {},
		"token":         {},
		"access_token":  {},
	}
)

func redactValue(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return tokenRE.ReplaceAllString(s, "[REDACTED:token]")
}

// redactQuery drops secret parameters and pattern-scrubs the rest without
// re-encoding, so the logged query stays close to what was sent.
func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, _, hasValue := strings.Cut(p, "=")
		if _, secret := secretParams[strings.ToLower(k)]; secret && hasValue {
			parts[i] = k + "=[REDACTED]"
			continue
		}
		parts[i] = redactValue(p)
	}
	return strings.Join(parts, "&")
}

// RedactingLogger logs one scrubbed line per request at info, warn (4xx) or
// error (5xx) level, and puts a request_id scoped logger into the request
// context for services.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := redactQuery(c.Request.URL.RawQuery)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := mask[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redactValue(strings.Join(vv, ", "))
		}

		if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
			lc := log.With().Str("request_id", rid)
			if wallet := c.Param("name"); wallet != "" {
				lc = lc.Str("wallet", wallet)
			}
			rl := lc.Logger()
			c.Set("logger", &rl)
			c.Request = c.Request.WithContext(rl.WithContext(c.Request.Context()))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
