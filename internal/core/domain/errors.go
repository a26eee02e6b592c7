package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNoSubscription        = errors.New("no active subscription")
	ErrSubscriptionCompleted = errors.New("subscription completed")
	ErrCampaignNotRunning    = errors.New("campaign is not running")
	// ErrLedgerRetryable marks a ledger write that did not commit. The
	// caller may retry with the same play id.
	ErrLedgerRetryable = errors.New("ledger update not committed")
)
