package billing_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textly/backend/internal/billing"
	"github.com/textly/backend/internal/models"
)

// memUsers is an in-memory UserSource keyed by normalized email
type memUsers struct {
	byEmail map[string]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byEmail: make(map[string]*models.User)}
	for _, u := range users {
		m.byEmail[u.Email] = u
	}
	return m
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.byEmail[email], nil
}

// recordingInvalidator counts Invalidate calls per user
type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.calls = append(r.calls, userID)
}

func subscriptionEvent(eventType, email, handle, subID, periodEnd string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"customer":{"email":%q},"product":{"handle":%q},"subscription":{"id":%q,"current_period_end":%q}}`,
		eventType, email, handle, subID, periodEnd,
	))
}

func TestIngester_MissingSecretFailsClosed(t *testing.T) {
	ing := billing.NewIngester(nil, newMemUsers(), newMemSubs(), nil)

	body := subscriptionEvent("subscription.created", "a@b.com", "pro-monthly", "s1", "2030-01-01T00:00:00Z")
	_, err := ing.Ingest(context.Background(), body, billing.Sign([]byte("whatever"), body))
	assert.ErrorIs(t, err, billing.ErrWebhookMisconfigured)
}

func TestIngester_BadSignatureAppendsNothing(t *testing.T) {
	secret := []byte("topsecret")
	users := newMemUsers(&models.User{ID: "u1", Email: "alice@example.com"})
	subs := newMemSubs()
	ing := billing.NewIngester(secret, users, subs, nil)

	body := subscriptionEvent("subscription.created", "alice@example.com", "pro-monthly", "s1", "2030-01-01T00:00:00Z")

	for _, sig := range []string{"", "deadbeef", billing.Sign([]byte("wrong secret"), body)} {
		_, err := ing.Ingest(context.Background(), body, sig)
		assert.ErrorIs(t, err, billing.ErrBadSignature, "signature %q", sig)
	}
	assert.Empty(t, subs.rows["u1"])
}

func TestIngester_MalformedBodyAfterValidSignature(t *testing.T) {
	secret := []byte("topsecret")
	ing := billing.NewIngester(secret, newMemUsers(), newMemSubs(), nil)

	body := []byte(`{"type": "subscription.created",`)
	_, err := ing.Ingest(context.Background(), body, billing.Sign(secret, body))
	assert.ErrorIs(t, err, billing.ErrBadPayload)
}

func TestIngester_SubscriptionCreatedGrantsAccess(t *testing.T) {
	secret := []byte("topsecret")
	users := newMemUsers(&models.User{ID: "u1", Email: "alice@example.com"})
	subs := newMemSubs()
	inv := &recordingInvalidator{}
	ing := billing.NewIngester(secret, users, subs, inv)
	eval := billing.NewEvaluator(subs, nil, 0)
	ctx := context.Background()

	pro, err := eval.IsProAt(ctx, "u1", time.Now().UTC())
	require.NoError(t, err)
	require.False(t, pro)

	body := subscriptionEvent("subscription.created", "alice@example.com", "pro-monthly", "sub_42", "2030-01-01T00:00:00Z")
	outcome, err := ing.Ingest(ctx, body, billing.Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeApplied, outcome)

	require.Len(t, subs.rows["u1"], 1)
	row := subs.rows["u1"][0]
	assert.Equal(t, models.StatusActive, row.Status)
	assert.Equal(t, "pro-monthly", row.Plan)
	assert.Equal(t, "2030-01-01T00:00:00Z", row.CurrentPeriodEnd)
	assert.Equal(t, "sub_42", row.ProviderSubID)
	assert.Equal(t, models.ProviderPayhip, row.Provider)
	assert.True(t, row.AutoRenew)
	assert.False(t, row.IsLifetime)
	assert.Equal(t, []string{"u1"}, inv.calls)

	pro, err = eval.IsProAt(ctx, "u1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, pro)
}

func TestIngester_LifetimeOrderCompleted(t *testing.T) {
	secret := []byte("topsecret")
	users := newMemUsers(&models.User{ID: "u1", Email: "alice@example.com"})
	subs := newMemSubs()
	ing := billing.NewIngester(secret, users, subs, nil)
	ctx := context.Background()

	// Lifetime purchases carry no period end
	body := subscriptionEvent("order.completed", "alice@example.com", "lifetime", "", "")
	outcome, err := ing.Ingest(ctx, body, billing.Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeApplied, outcome)

	require.Len(t, subs.rows["u1"], 1)
	row := subs.rows["u1"][0]
	assert.True(t, row.IsLifetime)
	assert.False(t, row.AutoRenew)
	assert.Equal(t, models.StatusActive, row.Status)
	assert.Equal(t, "", row.CurrentPeriodEnd)

	eval := billing.NewEvaluator(subs, nil, 0)
	pro, err := eval.IsProAt(ctx, "u1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, pro)
}

func TestIngester_CancellationRevokesAccess(t *testing.T) {
	secret := []byte("topsecret")
	users := newMemUsers(&models.User{ID: "u1", Email: "alice@example.com"})
	subs := newMemSubs()
	ing := billing.NewIngester(secret, users, subs, nil)
	eval := billing.NewEvaluator(subs, nil, 0)
	ctx := context.Background()

	body := subscriptionEvent("subscription.created", "alice@example.com", "pro-monthly", "s1", "2030-01-01T00:00:00Z")
	_, err := ing.Ingest(ctx, body, billing.Sign(secret, body))
	require.NoError(t, err)

	body = subscriptionEvent("subscription.cancelled", "alice@example.com", "pro-monthly", "s1", "2030-01-01T00:00:00Z")
	outcome, err := ing.Ingest(ctx, body, billing.Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeApplied, outcome)

	require.Len(t, subs.rows["u1"], 2)
	assert.Equal(t, models.StatusCanceled, subs.rows["u1"][1].Status)

	pro, err := eval.IsProAt(ctx, "u1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, pro)
}

func TestIngester_UnknownEmailAcknowledgedAsNoop(t *testing.T) {
	secret := []byte("topsecret")
	subs := newMemSubs()
	ing := billing.NewIngester(secret, newMemUsers(), subs, nil)

	body := subscriptionEvent("subscription.created", "nobody@example.com", "pro-monthly", "s1", "2030-01-01T00:00:00Z")
	outcome, err := ing.Ingest(context.Background(), body, billing.Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeUserNotFound, outcome)
	assert.Empty(t, subs.rows)
}

func TestIngester_EmailNormalized(t *testing.T) {
	secret := []byte("topsecret")
	users := newMemUsers(&models.User{ID: "u1", Email: "alice@example.com"})
	subs := newMemSubs()
	ing := billing.NewIngester(secret, users, subs, nil)

	body := subscriptionEvent("subscription.renewed", "  Alice@Example.COM ", "pro-monthly", "s1", "2030-01-01T00:00:00Z")
	outcome, err := ing.Ingest(context.Background(), body, billing.Sign(secret, body))
	require.NoError(t, err)
	assert.Equal(t, billing.OutcomeApplied, outcome)
	assert.Len(t, subs.rows["u1"], 1)
}
