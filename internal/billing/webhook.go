package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/textly/backend/internal/models"
)

// UserSource resolves users by normalized email. No match returns (nil, nil).
type UserSource interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// SubscriptionSink appends rows to the subscription history
type SubscriptionSink interface {
	Append(ctx context.Context, sub *models.Subscription) error
}

// Invalidator drops cached entitlement state after a state transition
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Outcome is the result of ingesting a verified webhook event
type Outcome int

const (
	// OutcomeApplied means a subscription row was appended
	OutcomeApplied Outcome = iota
	// OutcomeUserNotFound means the event referenced no known user and was
	// acknowledged as a no-op so the provider stops retrying
	OutcomeUserNotFound
)

// activeEventTypes map to an "active" subscription row; anything else
// appends a "canceled" row
var activeEventTypes = map[string]bool{
	"subscription.created": true,
	"subscription.renewed": true,
	"order.completed":      true,
}

// payhipEvent is the wire shape of a Payhip webhook body
type payhipEvent struct {
	Type     string `json:"type"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Product struct {
		Handle string `json:"handle"`
	} `json:"product"`
	Subscription struct {
		ID               string `json:"id"`
		CurrentPeriodEnd string `json:"current_period_end"`
	} `json:"subscription"`
}

// Ingester verifies and applies Payhip webhook events as subscription
// state transitions
type Ingester struct {
	secret      []byte
	users       UserSource
	subs        SubscriptionSink
	invalidator Invalidator // may be nil
}

// NewIngester creates a webhook ingester. An empty secret is allowed at
// construction but every Ingest call will fail closed until one is set.
func NewIngester(secret []byte, users UserSource, subs SubscriptionSink, invalidator Invalidator) *Ingester {
	return &Ingester{
		secret:      secret,
		users:       users,
		subs:        subs,
		invalidator: invalidator,
	}
}

// Ingest verifies the signature over the raw body and applies the event.
// The body is never parsed before the signature checks out.
func (i *Ingester) Ingest(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if len(i.secret) == 0 {
		return 0, ErrWebhookMisconfigured
	}
	if !i.verify(body, signature) {
		return 0, ErrBadSignature
	}

	var event payhipEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	email := strings.ToLower(strings.TrimSpace(event.Customer.Email))
	user, err := i.users.FindByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve webhook user: %w", err)
	}
	if user == nil {
		log.Printf("[webhook] event=%s no user for email, acknowledged as no-op", event.Type)
		return OutcomeUserNotFound, nil
	}

	isLifetime := event.Product.Handle == models.PlanLifetime
	status := models.StatusCanceled
	if activeEventTypes[event.Type] {
		status = models.StatusActive
	}

	sub := &models.Subscription{
		UserID:           user.ID,
		Plan:             event.Product.Handle,
		Status:           status,
		CurrentPeriodEnd: event.Subscription.CurrentPeriodEnd,
		AutoRenew:        !isLifetime,
		Provider:         models.ProviderPayhip,
		ProviderSubID:    event.Subscription.ID,
		IsLifetime:       isLifetime,
	}
	if err := i.subs.Append(ctx, sub); err != nil {
		return 0, fmt.Errorf("failed to append subscription: %w", err)
	}

	if i.invalidator != nil {
		i.invalidator.Invalidate(ctx, user.ID)
	}

	log.Printf("[webhook] event=%s user=%s status=%s lifetime=%t applied", event.Type, user.ID, status, isLifetime)
	return OutcomeApplied, nil
}

// verify compares the hex HMAC-SHA256 of body against signature in
// constant time
func (i *Ingester) verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Sign computes the hex HMAC-SHA256 signature for a body. Exported for
// tests and local tooling that replays provider events.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
