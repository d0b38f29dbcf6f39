package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func Test_redactPII(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"plain text stays", "plain text stays"},
		{"mail me at jo.doe+x@example.com", "mail me at [REDACTED:email]"},
		{"call (212) 555-1212 today", "call [REDACTED:phone] today"},
		// A UUID must come out as one id token, not a mangled phone match.
		{"image 123e4567-e89b-12d3-a456-426614174000", "image [REDACTED:id]"},
	}
	for _, tc := range cases {
		if got := redactPII(tc.in); got != tc.want {
			t.Errorf("redactPII(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{" X-Api-Key "}}))
	r.GET("/images/:id", func(c *gin.Context) {
		// The redacting logger attaches the request-scoped logger too.
		LoggerFrom(c).Info().Msg("handler_scoped")
		c.String(http.StatusOK, "ok")
	})

	q := "email=a.b+tag@example.com&phone=+1-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/images/abc?"+q, nil)
	req.Header.Set("Authorization", "Bearer session-token")
	req.Header.Set("Cookie", "__session=topsecret")
	req.Header.Set("Webhook-Signature", "v1,c2VjcmV0")
	req.Header.Set("Idempotency-Key", "swap-key-1")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	req.Header.Set("X-Request-ID", "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/images/:id"`,
		// The ID set on the response wins over the client-supplied header.
		`"request_id":"rid-resp"`,
		`[REDACTED:email]`,
		`[REDACTED:phone]`,
		`[REDACTED:id]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"Webhook-Signature":"[REDACTED]"`,
		`"Idempotency-Key":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`,
		`"message":"handler_scoped"`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log line missing %s:\n%s", want, logs)
		}
	}
}

func TestRedactingLogger_SeverityTracksStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	// No RequestID injector here, so the logger falls back to the header the
	// client sent.
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, rid := range map[string]string{"/missing": "rid-warn", "/broken": "rid-err"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Request-ID", rid)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("404 should log at warn with the fallback request id:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("500 should log at error with the fallback request id:\n%s", logs)
	}
}
