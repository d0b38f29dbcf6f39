// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements session authentication. The hosted identity provider
// issues HS256-signed session JWTs; the middleware accepts them from the
// Authorization bearer header or the session cookie, verifies the signature
// and expiry, and stores the subject id plus profile claims in the Gin
// context for handlers:
//   - "userID":    provider subject id (primary key of the users table)
//   - "userEmail": address claim, when present
//   - "userName":  display-name claim, when present
//
// Verification failures abort with the standard JSON error envelope; routes
// that allow anonymous access simply stay outside the authenticated group.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// sessionCookie is the fallback token location for browser clients.
const sessionCookie = "__session"

// sessionClaims is the subset of the provider's session token we consume.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Auth returns a Gin middleware that requires a valid session token signed
// with secret. The subject claim becomes the authenticated user id.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			if cookie, err := c.Cookie(sessionCookie); err == nil {
				tokenStr = cookie
			}
		}
		if tokenStr == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			abortUnauthorized(c, "invalid session token")
			return
		}

		c.Set("userID", claims.Subject)
		if claims.Email != "" {
			c.Set("userEmail", claims.Email)
		}
		if claims.Name != "" {
			c.Set("userName", claims.Name)
		}
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
