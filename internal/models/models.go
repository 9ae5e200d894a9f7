package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/haakonmt/girobatch/internal/domain"
)

type Donor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Distribution ties a KID to a donor and a split of organisations.
// Shares are integer percentages and must sum to 100.
type Distribution struct {
	ID        uuid.UUID `json:"id"`
	DonorID   uuid.UUID `json:"donor_id"`
	KID       string    `json:"kid"`
	Shares    []Share   `json:"shares"`
	CreatedAt time.Time `json:"created_at"`
}

type Share struct {
	OrgID   uuid.UUID `json:"org_id"`
	Percent int       `json:"percent"`
}

// Donation is a confirmed monetary gift. Immutable once created; the
// storage layer enforces uniqueness on (kid, method, amount, external_ref)
// so repeated file processing records each gift at most once.
type Donation struct {
	ID          uuid.UUID `json:"id"`
	KID         string    `json:"kid"`
	Method      string    `json:"method"`
	AmountOre   int64     `json:"amount_ore"`
	ExternalRef string    `json:"external_ref"`
	OwnerID     uuid.UUID `json:"owner_id"`
	DonatedAt   time.Time `json:"donated_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Agreement is a recurring collection mandate. Terminated is absorbing;
// agreements are never hard-deleted.
type Agreement struct {
	ID          uuid.UUID  `json:"id"`
	KID         string     `json:"kid"`
	DonorID     uuid.UUID  `json:"donor_id"`
	DonorName   string     `json:"donor_name"`
	AmountOre   int64      `json:"amount_ore"`
	ClaimDay    int        `json:"claim_day"` // 0 = last day of month, else 1-28
	Notice      bool       `json:"notice"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	PausedUntil *time.Time `json:"paused_until,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Charge is one scheduled debit instance of an Agreement.
type Charge struct {
	ID          uuid.UUID `json:"id"`
	AgreementID uuid.UUID `json:"agreement_id"`
	AmountOre   int64     `json:"amount_ore"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Shipment is one generated outbound claim batch, immutable once handed
// to transport.
type Shipment struct {
	ID         uuid.UUID `json:"id"`
	Seq        int64     `json:"seq"`
	NumClaims  int       `json:"num_claims"`
	SumOre     int64     `json:"sum_ore"`
	MinDueDate time.Time `json:"min_due_date"`
	MaxDueDate time.Time `json:"max_due_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// MatchRule resolves KID-less payments by merchant-defined equality on
// sales location or message text.
type MatchRule struct {
	ID         uuid.UUID `json:"id"`
	Location   string    `json:"location"`
	Message    string    `json:"message"`
	ResolveKID string    `json:"resolve_kid"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogEntry records the outcome of one batch run.
type LogEntry struct {
	ID        int64     `json:"id"`
	Job       string    `json:"job"`
	Result    string    `json:"result"`
	Message   string    `json:"message"`
	Valid     int       `json:"valid"`
	Ignored   int       `json:"ignored"`
	Invalid   int       `json:"invalid"`
	CreatedAt time.Time `json:"created_at"`
}

var agreementTransitions = map[string]map[string]bool{
	domain.AgreementStatusDraft: {
		domain.AgreementStatusActive: true,
	},
	domain.AgreementStatusActive: {
		domain.AgreementStatusPaused:     true,
		domain.AgreementStatusTerminated: true,
	},
	domain.AgreementStatusPaused: {
		domain.AgreementStatusActive:     true,
		domain.AgreementStatusTerminated: true,
	},
	domain.AgreementStatusTerminated: {},
}

// CanTransition reports whether the agreement may move to the target status.
func (a *Agreement) CanTransition(to string) bool {
	return agreementTransitions[a.Status][to]
}

var chargeTransitions = map[string]map[string]bool{
	domain.ChargeStatusPending: {
		domain.ChargeStatusDue:       true,
		domain.ChargeStatusCancelled: true,
	},
	domain.ChargeStatusDue: {
		domain.ChargeStatusCharged:   true,
		domain.ChargeStatusFailed:    true,
		domain.ChargeStatusCancelled: true,
	},
	domain.ChargeStatusCharged: {
		domain.ChargeStatusRefunded: true,
	},
	domain.ChargeStatusFailed:    {},
	domain.ChargeStatusCancelled: {},
	domain.ChargeStatusRefunded:  {},
}

// CanTransition reports whether the charge may move to the target status.
func (c *Charge) CanTransition(to string) bool {
	return chargeTransitions[c.Status][to]
}

// ValidateClaimDay checks a configured claim day: 0 (month end) or 1-28.
func ValidateClaimDay(day int) error {
	if day < domain.ClaimDayMonthEnd || day > domain.MaxClaimDay {
		return ErrClaimDayOutOfRange
	}
	return nil
}

// ValidateShares checks that distribution shares sum to exactly 100.
func ValidateShares(shares []Share) error {
	total := 0
	for _, s := range shares {
		if s.Percent < 0 {
			return ErrSharesNotHundred
		}
		total += s.Percent
	}
	if total != 100 {
		return ErrSharesNotHundred
	}
	return nil
}
