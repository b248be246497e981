package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/textly/backend/internal/api/response"
	"github.com/textly/backend/internal/auth"
	"github.com/textly/backend/internal/billing"
)

// generatedText is the placeholder returned while the text generator is a
// stub; the paywall logic around it is the real product.
const generatedText = "Hier kommt dein generierter Text ✨ (Demo)"

// Entitlements decides whether a user has pro access
type Entitlements interface {
	IsPro(ctx context.Context, userID string) (bool, error)
}

// QuotaConsumer consumes one unit of free-tier quota
type QuotaConsumer interface {
	Consume(ctx context.Context, userID string, now time.Time) (billing.Result, error)
}

// QuotaReader reads quota state without consuming
type QuotaReader interface {
	Snapshot(ctx context.Context, userID string, now time.Time) (billing.Result, error)
}

// GenerateHandler handles the generation endpoint behind the paywall gate
type GenerateHandler struct {
	entitlements Entitlements
	quota        QuotaConsumer
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(entitlements Entitlements, quota QuotaConsumer) *GenerateHandler {
	return &GenerateHandler{
		entitlements: entitlements,
		quota:        quota,
	}
}

// Generate runs one generation for the authenticated user. Pro users are
// unlimited; free users consume from the daily quota and hit the paywall
// when it is exhausted.
// POST /api/generate
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		response.AuthRequired(w)
		return
	}

	pro, err := h.entitlements.IsPro(r.Context(), user.ID)
	if err != nil {
		log.Printf("[generate] entitlement check failed: %v", err)
		response.InternalError(w, "")
		return
	}
	if pro {
		response.OK(w, generatedText)
		return
	}

	result, err := h.quota.Consume(r.Context(), user.ID, time.Now().UTC())
	if err != nil {
		log.Printf("[generate] quota check failed: %v", err)
		response.InternalError(w, "")
		return
	}
	if !result.Allowed {
		response.Paywall(w)
		return
	}

	response.OK(w, generatedText)
}
