package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/textly/backend/internal/api/response"
	"github.com/textly/backend/internal/billing"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body
const signatureHeader = "X-Payhip-Signature"

// maxWebhookBody bounds webhook payloads; Payhip events are small
const maxWebhookBody = 256 * 1024

// EventIngester verifies and applies a raw webhook event
type EventIngester interface {
	Ingest(ctx context.Context, body []byte, signature string) (billing.Outcome, error)
}

// WebhookHandler receives Payhip billing callbacks
type WebhookHandler struct {
	ingester EventIngester
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(ingester EventIngester) *WebhookHandler {
	return &WebhookHandler{ingester: ingester}
}

// Payhip handles an inbound Payhip event. Responses are plain text: the
// provider retries on any non-2xx, so unresolvable events (unknown user)
// are acknowledged with 200 "ok".
// POST /webhooks/payhip
func (h *WebhookHandler) Payhip(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.PlainText(w, http.StatusBadRequest, "bad request")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(signatureHeader)

	if _, err := h.ingester.Ingest(r.Context(), body, signature); err != nil {
		switch {
		case errors.Is(err, billing.ErrWebhookMisconfigured):
			response.PlainText(w, http.StatusBadRequest, "missing secret")
		case errors.Is(err, billing.ErrBadSignature):
			response.PlainText(w, http.StatusBadRequest, "bad signature")
		case errors.Is(err, billing.ErrBadPayload):
			response.PlainText(w, http.StatusBadRequest, "bad payload")
		default:
			log.Printf("[webhook] ingest failed: %v", err)
			response.PlainText(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// Applied and user-not-found both acknowledge with 200; the ingester
	// logs which one it was
	response.PlainText(w, http.StatusOK, "ok")
}
