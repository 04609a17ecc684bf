package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/gateway"
)

// WebhookPath is where the payment gateway posts events.
const WebhookPath = "/webhooks/paystack"

const defaultMaxWebhookBody = 1 << 20

// EventHandler applies a verified gateway event to the ledger.
type EventHandler interface {
	HandleGatewayEvent(ctx context.Context, event *gateway.Event) (engine.EventResult, error)
}

// WebhookHandler verifies and dispatches payment gateway webhooks.
type WebhookHandler struct {
	events  EventHandler
	secret  string
	maxBody int64
	logger  *slog.Logger
}

// NewWebhookHandler creates a handler that checks signatures with secret.
func NewWebhookHandler(events EventHandler, secret string, maxBody int64, logger *slog.Logger) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxWebhookBody
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		events:  events,
		secret:  secret,
		maxBody: maxBody,
		logger:  logger,
	}
}

type webhookResponse struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, webhookResponse{Error: "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, webhookResponse{Error: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "failed to read body"})
		return
	}

	// Signature is checked on the raw bytes before anything is decoded.
	if !gateway.VerifySignature(h.secret, body, r.Header.Get(gateway.SignatureHeader)) {
		h.logger.Warn("Webhook signature rejected", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Error: "invalid signature"})
		return
	}

	event, err := gateway.ParseEvent(body)
	if err != nil {
		h.logger.Warn("Webhook payload rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: err.Error()})
		return
	}

	result, err := h.events.HandleGatewayEvent(r.Context(), event)
	if err != nil {
		// Non-2xx makes the gateway redeliver.
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Error: "event not applied"})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Result: string(result)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
