package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func secureServe(t *testing.T, opt SecurityOptions, mutate func(*http.Request), pre gin.HandlerFunc) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ok = %d", w.Code)
	}
	return w.Header()
}

func TestSecurityHeaders_BaselineOnly(t *testing.T) {
	h := secureServe(t, SecurityOptions{}, nil, nil)

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, name := range []string{
		"Permissions-Policy", "X-Permitted-Cross-Domain-Policies",
		"Cache-Control", "Pragma", "Expires",
		"Strict-Transport-Security",
	} {
		if h.Get(name) != "" {
			t.Fatalf("optional header %s emitted without opt-in: %q", name, h.Get(name))
		}
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	// no prior expose header: set it
	h := secureServe(t, SecurityOptions{}, nil, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-123")
		c.Next()
	})
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose header = %q", got)
	}

	// existing expose header: append
	h = secureServe(t, SecurityOptions{}, nil, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-abc")
		c.Header("Access-Control-Expose-Headers", "ETag")
		c.Next()
	})
	if got := h.Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
		t.Fatalf("expose header = %q", got)
	}

	// already present: leave alone
	h = secureServe(t, SecurityOptions{}, nil, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-xyz")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, ETag")
		c.Next()
	})
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
		t.Fatalf("expose header = %q", got)
	}
}

func TestSecurityHeaders_PolicyCacheAndHSTSOverTLS(t *testing.T) {
	h := secureServe(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	}, nil)

	// camera stays self-allowed for the try-on capture UI
	if pp := h.Get("Permissions-Policy"); !strings.Contains(pp, "camera=(self)") || !strings.Contains(pp, "geolocation=()") {
		t.Fatalf("unexpected Permissions-Policy: %q", pp)
	}
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing cross-domain policy: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_HSTSRequiresHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	// plain HTTP request: no HSTS even when enabled
	h := secureServe(t, opt, nil, nil)
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS emitted on plain HTTP")
	}

	// proxy-terminated TLS is good enough
	h = secureServe(t, opt, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	}, nil)
	if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=3600") {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_DefaultMaxAge(t *testing.T) {
	h := secureServe(t, SecurityOptions{EnableHSTS: true}, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	}, nil)
	// 180 days in seconds
	if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000") {
		t.Fatalf("default HSTS = %q", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatalf("plain HTTP reported as https")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	if !isHTTPS(req) {
		t.Fatalf("TLS request not reported as https")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(req) {
		t.Fatalf("forwarded-proto request not reported as https")
	}
}
