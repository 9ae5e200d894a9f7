package models

import "errors"

var (
	// ErrDuplicateDonation signals the storage uniqueness guard fired: the
	// identical donation already exists. Callers downgrade it to an
	// idempotent no-op.
	ErrDuplicateDonation = errors.New("donation already recorded")

	ErrInvalidKID         = errors.New("identifier failed checksum validation")
	ErrClaimDayOutOfRange = errors.New("claim day must be 0 (month end) or 1-28")
	ErrSharesNotHundred   = errors.New("distribution shares must sum to 100")
	ErrInvalidTransition  = errors.New("illegal status transition")
	ErrNotFound           = errors.New("not found")
)
