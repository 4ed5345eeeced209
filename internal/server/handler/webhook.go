package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, keyed with the shared webhook secret. This is the only accepted
// signature scheme; there is no algorithm negotiation.
const signatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 64 << 10

// FillHinter wakes the engine loop so a fresh order poll runs promptly.
type FillHinter interface {
	NotifyFillHint()
}

// WebhookHandler receives order event callbacks and nudges the engine to
// poll for fills instead of waiting out the loop interval.
type WebhookHandler struct {
	secret string
	hinter FillHinter
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler with the shared secret used to
// verify incoming signatures.
func NewWebhookHandler(secret string, hinter FillHinter, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret: secret,
		hinter: hinter,
		logger: logger.With(slog.String("component", "webhook_handler")),
	}
}

type webhookPayload struct {
	Event  string `json:"event"`
	Symbol string `json:"symbol"`
}

// HandleWebhook verifies the request signature and, for order events,
// signals the engine to run a fill check.
// POST /api/bybit/webhook
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		writeError(w, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("webhook signature rejected", slog.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.Event == "" {
		writeError(w, http.StatusBadRequest, "missing event")
		return
	}

	h.logger.Info("webhook received",
		slog.String("event", payload.Event),
		slog.String("symbol", payload.Symbol),
	)
	if h.hinter != nil {
		h.hinter.NotifyFillHint()
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
