// Package models defines the persistent data types shared across the service.
package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID            string    `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Subscription is one entry in a user's append-only entitlement history.
// Current entitlement is always derived from the newest row (highest ID);
// rows are never updated in place.
type Subscription struct {
	ID               int64     `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	Plan             string    `json:"plan" db:"plan"`
	Status           string    `json:"status" db:"status"`
	CurrentPeriodEnd string    `json:"current_period_end" db:"current_period_end"`
	AutoRenew        bool      `json:"auto_renew" db:"auto_renew"`
	Provider         string    `json:"provider" db:"provider"`
	ProviderSubID    string    `json:"provider_subscription_id" db:"provider_subscription_id"`
	IsLifetime       bool      `json:"is_lifetime" db:"is_lifetime"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// UsageQuota tracks free-tier consumption for one user. At most one row per
// user exists; absence means zero consumption. FreeResetAt is stored as text
// and parsed at evaluation time so a malformed value fails closed.
type UsageQuota struct {
	UserID        string `json:"user_id" db:"user_id"`
	FreeGenerated int    `json:"free_generated" db:"free_generated"`
	FreeResetAt   string `json:"free_reset_at" db:"free_reset_at"`
}

// Subscription status values
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// PlanLifetime is the product handle that grants permanent entitlement
const PlanLifetime = "lifetime"

// ProviderPayhip identifies subscription rows written by the Payhip webhook
const ProviderPayhip = "payhip"
