// Package billing implements the entitlement, quota, and webhook logic that
// decides who may generate and who hits the paywall.
package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/textly/backend/internal/models"
)

// SubscriptionSource yields the newest subscription row for a user.
// A user with no history returns (nil, nil).
type SubscriptionSource interface {
	Latest(ctx context.Context, userID string) (*models.Subscription, error)
}

// StatusCache is an optional short-lived cache for pro lookups
type StatusCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Evaluator determines whether a user currently has pro access
type Evaluator struct {
	subs     SubscriptionSource
	cache    StatusCache // may be nil
	cacheTTL time.Duration
}

// NewEvaluator creates an entitlement evaluator. cache may be nil to
// disable caching.
func NewEvaluator(subs SubscriptionSource, cache StatusCache, cacheTTL time.Duration) *Evaluator {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Evaluator{
		subs:     subs,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// IsPro reports whether the user is entitled right now
func (e *Evaluator) IsPro(ctx context.Context, userID string) (bool, error) {
	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, cacheKey(userID)); err == nil {
			return cached == "1", nil
		}
		// Cache miss or cache error: fall through to the database
	}

	pro, err := e.IsProAt(ctx, userID, time.Now().UTC())
	if err != nil {
		return false, err
	}

	if e.cache != nil {
		val := "0"
		if pro {
			val = "1"
		}
		if err := e.cache.Set(ctx, cacheKey(userID), val, e.cacheTTL); err != nil {
			log.Printf("[billing] entitlement cache write failed: %v", err)
		}
	}

	return pro, nil
}

// IsProAt evaluates entitlement against the supplied instant. The newest
// subscription row wins; a lifetime row grants access unconditionally;
// otherwise the row must be active with a period end strictly in the future.
// A missing or malformed period end never grants access.
func (e *Evaluator) IsProAt(ctx context.Context, userID string, now time.Time) (bool, error) {
	sub, err := e.subs.Latest(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		return false, nil
	}

	if sub.IsLifetime {
		return true, nil
	}
	if sub.Status != models.StatusActive {
		return false, nil
	}

	periodEnd, err := ParseTimestamp(sub.CurrentPeriodEnd)
	if err != nil {
		// Fail closed: a period end we cannot read is no entitlement
		return false, nil
	}

	return periodEnd.After(now), nil
}

// Invalidate drops the cached pro status for a user. Called after a
// webhook appends a new subscription row.
func (e *Evaluator) Invalidate(ctx context.Context, userID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, cacheKey(userID)); err != nil {
		log.Printf("[billing] entitlement cache invalidation failed: %v", err)
	}
}

func cacheKey(userID string) string {
	return "entitlement:" + userID
}

// timestampLayouts are the accepted wire formats for period-end and
// quota-reset values. Offset-free values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a provider-supplied timestamp string. An empty or
// unparsable value is an error; callers decide the fail-closed consequence.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}
