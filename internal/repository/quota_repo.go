package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/textly/backend/internal/database"
	"github.com/textly/backend/internal/models"
)

// QuotaRepository handles the per-user free-tier usage row
type QuotaRepository struct {
	db *database.DB
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *database.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Get returns the quota row for a user, or (nil, nil) if the user has
// never consumed free-tier quota.
func (r *QuotaRepository) Get(ctx context.Context, userID string) (*models.UsageQuota, error) {
	var q models.UsageQuota
	err := r.db.QueryRow(ctx,
		`SELECT user_id, free_generated, free_reset_at FROM usage_quota WHERE user_id = $1`,
		userID).Scan(&q.UserID, &q.FreeGenerated, &q.FreeResetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get usage quota: %w", err)
	}
	return &q, nil
}

// Mutate runs fn against the user's quota row inside a transaction with a
// row-level lock, so concurrent check-and-increment sequences for the same
// user serialize instead of racing. fn receives nil when no row exists;
// returning a non-nil row persists it, returning nil leaves the row untouched.
func (r *QuotaRepository) Mutate(
	ctx context.Context, userID string,
	fn func(row *models.UsageQuota) (*models.UsageQuota, error),
) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var row *models.UsageQuota
		var q models.UsageQuota
		err := tx.QueryRow(ctx,
			`SELECT user_id, free_generated, free_reset_at
				FROM usage_quota
				WHERE user_id = $1
				FOR UPDATE`,
			userID).Scan(&q.UserID, &q.FreeGenerated, &q.FreeResetAt)
		switch {
		case err == nil:
			row = &q
		case errors.Is(err, pgx.ErrNoRows):
			row = nil
		default:
			return fmt.Errorf("failed to lock usage quota: %w", err)
		}

		save, err := fn(row)
		if err != nil || save == nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO usage_quota (user_id, free_generated, free_reset_at, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (user_id) DO UPDATE SET
					free_generated = EXCLUDED.free_generated,
					free_reset_at = EXCLUDED.free_reset_at,
					updated_at = EXCLUDED.updated_at`,
			userID, save.FreeGenerated, save.FreeResetAt, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert usage quota: %w", err)
		}
		return nil
	})
}
