package billing

import "errors"

var (
	// ErrWebhookMisconfigured is returned when no webhook secret is configured
	ErrWebhookMisconfigured = errors.New("webhook secret not configured")

	// ErrBadSignature is returned when webhook signature validation fails
	ErrBadSignature = errors.New("invalid webhook signature")

	// ErrBadPayload is returned when a verified webhook body cannot be parsed
	ErrBadPayload = errors.New("invalid webhook payload")
)
