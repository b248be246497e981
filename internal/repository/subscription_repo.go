package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/textly/backend/internal/database"
	"github.com/textly/backend/internal/models"
)

// SubscriptionRepository handles the append-only subscription history.
// Rows are only ever inserted; the newest row per user wins.
type SubscriptionRepository struct {
	db *database.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *database.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Append inserts a new subscription row for a user
func (r *SubscriptionRepository) Append(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions
			(user_id, plan, status, current_period_end, auto_renew, provider, provider_subscription_id, is_lifetime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.UserID, sub.Plan, sub.Status, sub.CurrentPeriodEnd,
		sub.AutoRenew, sub.Provider, sub.ProviderSubID, sub.IsLifetime,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append subscription: %w", err)
	}

	return nil
}

// Latest returns the most recently inserted subscription row for a user,
// or (nil, nil) if the user has no subscription history.
func (r *SubscriptionRepository) Latest(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, current_period_end, auto_renew,
			provider, provider_subscription_id, is_lifetime, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT 1
	`
	var sub models.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &sub.CurrentPeriodEnd,
		&sub.AutoRenew, &sub.Provider, &sub.ProviderSubID, &sub.IsLifetime,
		&sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest subscription: %w", err)
	}

	return &sub, nil
}

// History returns all subscription rows for a user, newest first
func (r *SubscriptionRepository) History(ctx context.Context, userID string) ([]models.Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, current_period_end, auto_renew,
			provider, provider_subscription_id, is_lifetime, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription history: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &sub.CurrentPeriodEnd,
			&sub.AutoRenew, &sub.Provider, &sub.ProviderSubID, &sub.IsLifetime,
			&sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}

	return subs, nil
}
