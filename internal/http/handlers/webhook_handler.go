// Identity-provider webhook handler.
//
// This file exposes POST /webhooks/identity-provider, which keeps the local
// users table in sync with the hosted identity provider. Payloads are
// authenticated with the provider's HMAC scheme: the signature covers
// "{id}.{timestamp}.{body}" and arrives in the webhook-signature header as
// space-separated "v1,<base64>" entries. Timestamps outside the tolerance
// window are rejected to stop replays.
package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vestyhq/go-vesty-backend/internal/http/middleware"
)

const webhookTolerance = 5 * time.Minute

var (
	errMissingHeaders = errors.New("missing webhook headers")
	errStaleTimestamp = errors.New("webhook timestamp outside tolerance")
	errBadSignature   = errors.New("webhook signature mismatch")
)

// WebhookHandler processes identity-provider account events.
type WebhookHandler struct {
	secret  []byte
	userSvc UserService

	// now is swappable for tests.
	now func() time.Time
}

// NewWebhookHandler constructs a WebhookHandler. secret accepts the raw
// shared secret or the provider's "whsec_<base64>" form.
func NewWebhookHandler(secret string, userSvc UserService) *WebhookHandler {
	return &WebhookHandler{
		secret:  decodeWebhookSecret(secret),
		userSvc: userSvc,
		now:     time.Now,
	}
}

func decodeWebhookSecret(secret string) []byte {
	if raw, ok := strings.CutPrefix(secret, "whsec_"); ok {
		if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
			return b
		}
	}
	return []byte(secret)
}

// webhookEvent is the subset of the provider envelope we act on.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"data"`
}

// HandleEvent godoc
// @ID          identityWebhook
// @Summary     Identity-provider webhook
// @Description Verifies the provider signature and mirrors account create/update/delete events into the local users table. Unknown event types are acknowledged without action.
// @Tags        System
// @Accept      json
// @Produce     json
//
// @Param       webhook-id         header  string  true  "Provider message id"
// @Param       webhook-timestamp  header  string  true  "Unix seconds the message was signed"
// @Param       webhook-signature  header  string  true  "Space-separated v1,<base64> signatures"
//
// @Success     200  {object} map[string]bool
// @Failure     400  {object} handlers.ErrorResponse "Bad signature or malformed payload"
// @Router      /webhooks/identity-provider [post]
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	if err := verifyWebhookSignature(
		h.secret,
		c.GetHeader("webhook-id"),
		c.GetHeader("webhook-timestamp"),
		c.GetHeader("webhook-signature"),
		body,
		h.now(),
	); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, err.Error())
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed event payload")
		return
	}
	if ev.Data.ID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "event has no subject id")
		return
	}

	lg := middleware.LoggerFrom(c)
	ctx := c.Request.Context()

	switch ev.Type {
	case "user.created", "user.updated":
		name := strings.TrimSpace(ev.Data.FirstName + " " + ev.Data.LastName)
		if _, err := h.userSvc.Ensure(ctx, ev.Data.ID, ev.Data.Email, name); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
	case "user.deleted":
		if err := h.userSvc.Delete(ctx, ev.Data.ID); err != nil {
			// Deleting an unknown user is fine; the mirror may lag the provider.
			lg.Warn().Str("subject", ev.Data.ID).Err(err).Msg("webhook delete for unknown user")
		}
	default:
		lg.Debug().Str("type", ev.Type).Msg("ignoring webhook event")
	}

	ok(c, http.StatusOK, gin.H{"received": true})
}

// verifyWebhookSignature checks the timestamp window and compares the HMAC
// of "{id}.{timestamp}.{body}" against every offered v1 signature.
func verifyWebhookSignature(secret []byte, id, timestamp, sigHeader string, body []byte, now time.Time) error {
	if id == "" || timestamp == "" || sigHeader == "" {
		return errMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errStaleTimestamp
	}
	signedAt := time.Unix(ts, 0)
	if signedAt.Before(now.Add(-webhookTolerance)) || signedAt.After(now.Add(webhookTolerance)) {
		return errStaleTimestamp
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	want := mac.Sum(nil)

	for _, entry := range strings.Fields(sigHeader) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, want) {
			return nil
		}
	}
	return errBadSignature
}
