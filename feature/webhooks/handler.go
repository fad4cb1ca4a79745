package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leadsync/core/logger"
)

const macHeader = "X-Payload-MAC"
const macPrefix = "hmac-sha256="

// notification is the ping body the remote service posts on changes.
type notification struct {
	Webhook struct {
		ID string `json:"id"`
	} `json:"webhook"`
	Base struct {
		ID string `json:"id"`
	} `json:"base"`
	Timestamp string `json:"timestamp"`
}

// Handler handles HTTP requests for webhook pings.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the webhook routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/webhooks")
	group.Post("/notify", h.HandleNotify)
}

// HandleNotify verifies an incoming change ping and starts draining the
// payload stream. Verification runs against the raw body: the signature
// header carries an HMAC-SHA256 of the exact bytes received, keyed with the
// secret issued at registration.
func (h *Handler) HandleNotify(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	body := c.Body()

	var ping notification
	if err := json.Unmarshal(body, &ping); err != nil || ping.Webhook.ID == "" || ping.Base.ID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	// A missing or malformed signature is a failed precondition, same as
	// a mismatched one.
	mac := c.Get(macHeader)
	if !strings.HasPrefix(mac, macPrefix) {
		return c.SendStatus(fiber.StatusPreconditionFailed)
	}

	hook, err := h.service.FindByRemoteHook(c.Context(), ping.Webhook.ID, ping.Base.ID)
	if err != nil {
		l.Error("webhook lookup failed", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if hook == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	if !verifySignature(hook.MACSecret, body, strings.TrimPrefix(mac, macPrefix)) {
		l.Warn("webhook signature mismatch",
			zap.String("remote_hook_id", ping.Webhook.ID))
		return c.SendStatus(fiber.StatusPreconditionFailed)
	}

	l.Info("webhook ping accepted",
		zap.String("table", hook.Table),
		zap.Int("cursor", hook.Cursor))

	// The remote service only waits for the acknowledgement; draining the
	// stream happens in the background.
	go func() {
		if err := h.service.ProcessPing(context.Background(), hook); err != nil {
			h.service.logger.Error("payload processing failed",
				zap.String("table", hook.Table), zap.Error(err))
		}
	}()
	return c.SendStatus(fiber.StatusNoContent)
}

// verifySignature checks the hex HMAC-SHA256 of the raw body against the
// base64-encoded registration secret.
func verifySignature(secretB64 string, body []byte, signature string) bool {
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(mac.Sum(nil), given)
}
