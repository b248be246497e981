package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textly/backend/internal/billing"
	"github.com/textly/backend/internal/models"
)

// memSubs is an in-memory SubscriptionSource/SubscriptionSink
type memSubs struct {
	rows   map[string][]*models.Subscription
	nextID int64
}

func newMemSubs() *memSubs {
	return &memSubs{rows: make(map[string][]*models.Subscription)}
}

func (m *memSubs) Append(_ context.Context, sub *models.Subscription) error {
	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now().UTC()
	m.rows[sub.UserID] = append(m.rows[sub.UserID], sub)
	return nil
}

func (m *memSubs) Latest(_ context.Context, userID string) (*models.Subscription, error) {
	rows := m.rows[userID]
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1], nil
}

// memCache is an in-memory StatusCache; a miss returns an error like the
// redis client does
type memCache struct {
	data    map[string]string
	deletes int
}

var errCacheMiss = errors.New("cache miss")

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.data[key]
	if !ok {
		return "", errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.data[key] = value.(string)
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

func appendSub(t *testing.T, subs *memSubs, userID, status, periodEnd string, lifetime bool) {
	t.Helper()
	err := subs.Append(context.Background(), &models.Subscription{
		UserID:           userID,
		Plan:             "pro-monthly",
		Status:           status,
		CurrentPeriodEnd: periodEnd,
		IsLifetime:       lifetime,
	})
	require.NoError(t, err)
}

func TestEvaluator_NoSubscriptionHistory(t *testing.T) {
	eval := billing.NewEvaluator(newMemSubs(), nil, 0)

	pro, err := eval.IsProAt(context.Background(), "user1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, pro)
}

func TestEvaluator_ActiveWithFuturePeriodEnd(t *testing.T) {
	subs := newMemSubs()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	appendSub(t, subs, "user1", models.StatusActive, now.Add(30*24*time.Hour).Format(time.RFC3339), false)

	eval := billing.NewEvaluator(subs, nil, 0)
	pro, err := eval.IsProAt(context.Background(), "user1", now)
	require.NoError(t, err)
	assert.True(t, pro)
}

func TestEvaluator_ActiveWithPastPeriodEnd(t *testing.T) {
	subs := newMemSubs()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	appendSub(t, subs, "user1", models.StatusActive, now.Add(-time.Hour).Format(time.RFC3339), false)

	eval := billing.NewEvaluator(subs, nil, 0)
	pro, err := eval.IsProAt(context.Background(), "user1", now)
	require.NoError(t, err)
	assert.False(t, pro)
}

func TestEvaluator_LifetimeOverridesEverything(t *testing.T) {
	cases := []struct {
		name      string
		status    string
		periodEnd string
	}{
		{"canceled status", models.StatusCanceled, ""},
		{"expired period end", models.StatusActive, "2020-01-01T00:00:00Z"},
		{"malformed period end", "whatever", "not-a-timestamp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subs := newMemSubs()
			appendSub(t, subs, "user1", tc.status, tc.periodEnd, true)

			eval := billing.NewEvaluator(subs, nil, 0)
			pro, err := eval.IsProAt(context.Background(), "user1", time.Now().UTC())
			require.NoError(t, err)
			assert.True(t, pro)
		})
	}
}

func TestEvaluator_MalformedPeriodEndFailsClosed(t *testing.T) {
	for _, periodEnd := range []string{"", "not-a-timestamp", "2026-13-45T99:99:99Z"} {
		subs := newMemSubs()
		appendSub(t, subs, "user1", models.StatusActive, periodEnd, false)

		eval := billing.NewEvaluator(subs, nil, 0)
		pro, err := eval.IsProAt(context.Background(), "user1", time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, pro, "period end %q must not grant access", periodEnd)
	}
}

func TestEvaluator_NewestRowWins(t *testing.T) {
	subs := newMemSubs()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour).Format(time.RFC3339)

	// Active first, then a cancellation without a period end
	appendSub(t, subs, "user1", models.StatusActive, future, false)
	appendSub(t, subs, "user1", models.StatusCanceled, "", false)

	eval := billing.NewEvaluator(subs, nil, 0)
	pro, err := eval.IsProAt(context.Background(), "user1", now)
	require.NoError(t, err)
	assert.False(t, pro)

	// A canceled row never passes even with a future period end
	appendSub(t, subs, "user2", models.StatusCanceled, future, false)
	pro, err = eval.IsProAt(context.Background(), "user2", now)
	require.NoError(t, err)
	assert.False(t, pro)
}

func TestEvaluator_CacheHitAndInvalidate(t *testing.T) {
	subs := newMemSubs()
	cache := newMemCache()
	ctx := context.Background()

	eval := billing.NewEvaluator(subs, cache, time.Minute)

	// First call misses the cache and stores the free-tier answer
	pro, err := eval.IsPro(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, pro)

	// A subscription appended behind the cache's back is not seen yet
	appendSub(t, subs, "user1", models.StatusActive, time.Now().UTC().Add(time.Hour).Format(time.RFC3339), false)
	pro, err = eval.IsPro(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, pro)

	// Invalidation makes the new row visible
	eval.Invalidate(ctx, "user1")
	pro, err = eval.IsPro(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, pro)
}

func TestEvaluator_DateOnlyPeriodEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	subs := newMemSubs()
	eval := billing.NewEvaluator(subs, nil, 0)

	// Providers may send a bare date; it reads as midnight UTC
	appendSub(t, subs, "user1", models.StatusActive, "2026-04-01", false)
	pro, err := eval.IsProAt(context.Background(), "user1", now)
	require.NoError(t, err)
	assert.True(t, pro)

	appendSub(t, subs, "user2", models.StatusActive, "2026-02-01", false)
	pro, err = eval.IsProAt(context.Background(), "user2", now)
	require.NoError(t, err)
	assert.False(t, pro)
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"2026-03-01T12:00:00Z", true},
		{"2026-03-01T12:00:00+02:00", true},
		{"2026-03-01T12:00:00", true},
		{"2026-03-01 12:00:00", true},
		{"2026-03-01", true},
		{"", false},
		{"not-a-timestamp", false},
		{"03/01/2026", false},
	}

	for _, tc := range cases {
		_, err := billing.ParseTimestamp(tc.value)
		if tc.ok {
			assert.NoError(t, err, "value %q", tc.value)
		} else {
			assert.Error(t, err, "value %q", tc.value)
		}
	}
}
