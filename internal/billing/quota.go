package billing

import (
	"context"
	"time"

	"github.com/textly/backend/internal/models"
)

// DefaultFreeLimit is the number of generations a free-tier user gets per
// rolling 24-hour window
const DefaultFreeLimit = 3

// quotaWindow is seeded from the first consumption in a window, not
// calendar-aligned
const quotaWindow = 24 * time.Hour

// QuotaStore persists the per-user usage row. Mutate must serialize
// concurrent calls for the same user; fn receives nil when no row exists
// and persists the returned row, or nothing when fn returns nil.
type QuotaStore interface {
	Get(ctx context.Context, userID string) (*models.UsageQuota, error)
	Mutate(ctx context.Context, userID string, fn func(row *models.UsageQuota) (*models.UsageQuota, error)) error
}

// Result reports the outcome of a quota check
type Result struct {
	Allowed bool      `json:"allowed"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// Tracker enforces the free-tier daily quota. Pro users never reach it.
type Tracker struct {
	store QuotaStore
	limit int
}

// NewTracker creates a quota tracker. limit <= 0 selects DefaultFreeLimit.
func NewTracker(store QuotaStore, limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	return &Tracker{store: store, limit: limit}
}

// Limit returns the configured per-window limit
func (t *Tracker) Limit() int {
	return t.limit
}

// Consume records one generation attempt for a free-tier user and reports
// whether it is allowed. The denied path never mutates the stored row.
func (t *Tracker) Consume(ctx context.Context, userID string, now time.Time) (Result, error) {
	now = now.UTC()
	var res Result

	err := t.store.Mutate(ctx, userID, func(row *models.UsageQuota) (*models.UsageQuota, error) {
		// First consumption ever: seed a fresh window
		if row == nil {
			res = Result{Allowed: true, Used: 1, Limit: t.limit, ResetAt: now.Add(quotaWindow)}
			return &models.UsageQuota{
				UserID:        userID,
				FreeGenerated: 1,
				FreeResetAt:   formatTimestamp(res.ResetAt),
			}, nil
		}

		count := row.FreeGenerated
		resetAt, parseErr := ParseTimestamp(row.FreeResetAt)

		// A reset time that cannot be read is treated as already expired;
		// re-seeding the window avoids both unlimited use and a stuck row.
		if parseErr != nil || now.After(resetAt) {
			res = Result{Allowed: true, Used: 1, Limit: t.limit, ResetAt: now.Add(quotaWindow)}
			return &models.UsageQuota{
				UserID:        userID,
				FreeGenerated: 1,
				FreeResetAt:   formatTimestamp(res.ResetAt),
			}, nil
		}

		if count >= t.limit {
			res = Result{Allowed: false, Used: count, Limit: t.limit, ResetAt: resetAt}
			return nil, nil
		}

		res = Result{Allowed: true, Used: count + 1, Limit: t.limit, ResetAt: resetAt}
		return &models.UsageQuota{
			UserID:        userID,
			FreeGenerated: count + 1,
			FreeResetAt:   row.FreeResetAt,
		}, nil
	})
	if err != nil {
		return Result{}, err
	}

	return res, nil
}

// Snapshot reports the current quota state without consuming anything
func (t *Tracker) Snapshot(ctx context.Context, userID string, now time.Time) (Result, error) {
	now = now.UTC()

	row, err := t.store.Get(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if row == nil {
		return Result{Allowed: true, Used: 0, Limit: t.limit, ResetAt: now.Add(quotaWindow)}, nil
	}

	resetAt, parseErr := ParseTimestamp(row.FreeResetAt)
	if parseErr != nil || now.After(resetAt) {
		return Result{Allowed: true, Used: 0, Limit: t.limit, ResetAt: now.Add(quotaWindow)}, nil
	}

	return Result{
		Allowed: row.FreeGenerated < t.limit,
		Used:    row.FreeGenerated,
		Limit:   t.limit,
		ResetAt: resetAt,
	}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
