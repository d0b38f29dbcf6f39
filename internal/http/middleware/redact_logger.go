// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured request logger. Bodies
// are never logged; query strings and header values are scrubbed of obvious
// PII (emails, phone numbers, UUIDs) and credential-bearing headers are fully
// masked before anything reaches zerolog. Scrubbing lowers the risk of PII in
// logs but cannot remove it entirely; clients should still keep identifiers
// out of query strings where possible.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PII patterns applied to query strings and unmasked header values. UUIDs
// must be replaced before phone numbers or the loose phone pattern eats the
// digit runs inside a UUID.
var (
	uuidPattern  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Headers always replaced wholesale with "[REDACTED]". Signature material and
// idempotency keys are masked alongside the usual credentials.
var builtinMaskedHeaders = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"webhook-signature",
	"idempotency-key",
}

func redactPII(s string) string {
	if s == "" {
		return s
	}
	out := uuidPattern.ReplaceAllString(s, "[REDACTED:id]")
	out = emailPattern.ReplaceAllString(out, "[REDACTED:email]")
	return phonePattern.ReplaceAllString(out, "[REDACTED:phone]")
}

// RedactOptions extends the built-in masked-header set. Names are matched
// case-insensitively.
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger returns middleware that emits one structured log line per
// request: method, route pattern, scrubbed query, scrubbed headers, status,
// response size and latency. Severity follows the status code (info, warn for
// 4xx, error for 5xx).
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(builtinMaskedHeaders)+len(opts.MaskHeaders))
	for _, h := range builtinMaskedHeaders {
		masked[h] = struct{}{}
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		// Prefer the route pattern so log lines aggregate per route, not per
		// path parameter value.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redactPII(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for name, values := range c.Request.Header {
			if _, ok := masked[strings.ToLower(name)]; ok {
				safeHeaders[name] = "[REDACTED]"
				continue
			}
			safeHeaders[name] = redactPII(strings.Join(values, ", "))
		}

		// Attach the request-scoped logger for handlers and services, same as
		// the plain access logger does.
		scoped := log.With().
			Str("request_id", c.Writer.Header().Get("X-Request-ID")).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set("logger", &scoped)

		c.Next()

		status := c.Writer.Status()

		// The response header carries the ID RequestID() assigned; fall back
		// to a client-supplied one if the injector did not run.
		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
