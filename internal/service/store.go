package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haakonmt/girobatch/internal/models"
)

// The interfaces below name the slice of the repository each service
// actually touches; *repository.Queries satisfies all of them.

// DonationStore persists reconciled donations.
type DonationStore interface {
	InsertDonation(ctx context.Context, d *models.Donation) error
}

// RuleStore supplies the merchant-defined matching rules used by the
// fallback KID resolver.
type RuleStore interface {
	ListMatchRules(ctx context.Context) ([]models.MatchRule, error)
}

// AgreementStore covers the agreement and charge lifecycle.
type AgreementStore interface {
	CreateAgreement(ctx context.Context, a *models.Agreement) error
	GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	UpdateAgreementStatus(ctx context.Context, id uuid.UUID, status string, pausedUntil, cancelledAt *time.Time) error
	UpdateAgreementAmount(ctx context.Context, id uuid.UUID, amountOre int64) error
	UpdateAgreementClaimDay(ctx context.Context, id uuid.UUID, claimDay int) error
	ListClaimableAgreements(ctx context.Context, claimDay int, includeMonthEnd bool) ([]models.Agreement, error)

	CreateCharge(ctx context.Context, c *models.Charge) error
	GetCharge(ctx context.Context, id uuid.UUID) (*models.Charge, error)
	UpdateChargeStatus(ctx context.Context, id uuid.UUID, status string) error
	ListOpenCharges(ctx context.Context, agreementID uuid.UUID) ([]models.Charge, error)
	ChargeExists(ctx context.Context, agreementID uuid.UUID, dueDate time.Time) (bool, error)
}

// AutoGiroStore covers the Swedish direct-debit exchange: resolving
// payer numbers to agreements, matching settled and rejected charges,
// and collecting the charges that go into a withdrawal file.
type AutoGiroStore interface {
	GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	GetAgreementByKID(ctx context.Context, kid string) (*models.Agreement, error)
	ListChargesDueOn(ctx context.Context, dueDate time.Time, status string) ([]models.Charge, error)
	FindChargeForCollection(ctx context.Context, kid string, dueDate time.Time) (*models.Charge, error)
	AppendLogEntry(ctx context.Context, e *models.LogEntry) error
}

// ClaimStore covers shipment generation and the run log.
type ClaimStore interface {
	ListClaimableAgreements(ctx context.Context, claimDay int, includeMonthEnd bool) ([]models.Agreement, error)
	CreateShipment(ctx context.Context, s *models.Shipment) error
	AppendLogEntry(ctx context.Context, e *models.LogEntry) error
}

// Notifier is the donor messaging contract. Failures are fire-and-forget
// from the caller's perspective.
type Notifier interface {
	SendDueNotice(ctx context.Context, agreement models.Agreement) error
	SendReceipt(ctx context.Context, donationID uuid.UUID) error
}
