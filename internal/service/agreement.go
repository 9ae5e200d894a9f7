package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/kid"
	"github.com/haakonmt/girobatch/internal/models"
)

// chargeLeadDays is how far ahead of its due date a charge is created.
const chargeLeadDays = 3

// AgreementService drives the recurring-agreement and charge lifecycle.
type AgreementService struct {
	store AgreementStore
}

func NewAgreementService(store AgreementStore) *AgreementService {
	return &AgreementService{store: store}
}

// Create registers a new draft agreement for a donor opt-in.
func (s *AgreementService) Create(ctx context.Context, donorID uuid.UUID, agreementKID string, amountOre int64, claimDay int, notice bool) (*models.Agreement, error) {
	if !kid.Valid(agreementKID) {
		return nil, models.ErrInvalidKID
	}
	if amountOre <= 0 {
		return nil, fmt.Errorf("agreement amount %d must be positive", amountOre)
	}
	if err := models.ValidateClaimDay(claimDay); err != nil {
		return nil, err
	}

	agreement := &models.Agreement{
		ID:        uuid.New(),
		KID:       agreementKID,
		DonorID:   donorID,
		AmountOre: amountOre,
		ClaimDay:  claimDay,
		Notice:    notice,
		Status:    domain.AgreementStatusDraft,
	}
	if err := s.store.CreateAgreement(ctx, agreement); err != nil {
		return nil, err
	}
	return agreement, nil
}

// Confirm activates a draft agreement.
func (s *AgreementService) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.AgreementStatusActive, nil, nil)
}

// Pause suspends collection until the given date and cancels the
// agreement's open charges.
func (s *AgreementService) Pause(ctx context.Context, id uuid.UUID, until time.Time) error {
	if err := s.transition(ctx, id, domain.AgreementStatusPaused, &until, nil); err != nil {
		return err
	}
	return s.cancelOpenCharges(ctx, id)
}

// Resume reactivates a paused agreement, on request or pause expiry.
func (s *AgreementService) Resume(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.AgreementStatusActive, nil, nil)
}

// Cancel terminates the agreement. Terminated is absorbing; the row is
// kept forever.
func (s *AgreementService) Cancel(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	if err := s.transition(ctx, id, domain.AgreementStatusTerminated, nil, &now); err != nil {
		return err
	}
	return s.cancelOpenCharges(ctx, id)
}

// UpdateAmount changes the recurring amount and cancels open charges so
// no stale amount reaches the bank.
func (s *AgreementService) UpdateAmount(ctx context.Context, id uuid.UUID, amountOre int64) error {
	if amountOre <= 0 {
		return fmt.Errorf("agreement amount %d must be positive", amountOre)
	}
	if err := s.store.UpdateAgreementAmount(ctx, id, amountOre); err != nil {
		return err
	}
	return s.cancelOpenCharges(ctx, id)
}

// UpdateClaimDay changes the configured claim day.
func (s *AgreementService) UpdateClaimDay(ctx context.Context, id uuid.UUID, claimDay int) error {
	if err := models.ValidateClaimDay(claimDay); err != nil {
		return err
	}
	if err := s.store.UpdateAgreementClaimDay(ctx, id, claimDay); err != nil {
		return err
	}
	return s.cancelOpenCharges(ctx, id)
}

func (s *AgreementService) transition(ctx context.Context, id uuid.UUID, to string, pausedUntil, cancelledAt *time.Time) error {
	agreement, err := s.store.GetAgreement(ctx, id)
	if err != nil {
		return err
	}
	if !agreement.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, agreement.Status, to)
	}
	return s.store.UpdateAgreementStatus(ctx, id, to, pausedUntil, cancelledAt)
}

// cancelOpenCharges cancels pending and due charges one external call at
// a time. A failure on one charge does not halt attempts on the others;
// the summary error names every charge left standing.
func (s *AgreementService) cancelOpenCharges(ctx context.Context, agreementID uuid.UUID) error {
	charges, err := s.store.ListOpenCharges(ctx, agreementID)
	if err != nil {
		return err
	}

	var failed []uuid.UUID
	for _, charge := range charges {
		if err := s.store.UpdateChargeStatus(ctx, charge.ID, domain.ChargeStatusCancelled); err != nil {
			zap.L().Warn("charge cancellation failed",
				zap.String("charge_id", charge.ID.String()),
				zap.Error(err))
			failed = append(failed, charge.ID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to cancel %d of %d charges: %v", len(failed), len(charges), failed)
	}
	return nil
}

// ScheduleCharges creates pending charges for active agreements whose
// next claim date is exactly the lead time away. Month-end sentinel
// agreements are scheduled when the target date closes the month.
func (s *AgreementService) ScheduleCharges(ctx context.Context, today time.Time) (int, error) {
	dueDate := truncateToDay(today).AddDate(0, 0, chargeLeadDays)
	monthEnd := isLastDayOfMonth(dueDate)

	agreements, err := s.store.ListClaimableAgreements(ctx, dueDate.Day(), monthEnd)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, agreement := range agreements {
		exists, err := s.store.ChargeExists(ctx, agreement.ID, dueDate)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		charge := &models.Charge{
			ID:          uuid.New(),
			AgreementID: agreement.ID,
			AmountOre:   agreement.AmountOre,
			DueDate:     dueDate,
			Status:      domain.ChargeStatusPending,
		}
		if err := s.store.CreateCharge(ctx, charge); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// MarkChargeStatus moves a charge along its lifecycle after validating
// the transition.
func (s *AgreementService) MarkChargeStatus(ctx context.Context, chargeID uuid.UUID, to string) error {
	charge, err := s.store.GetCharge(ctx, chargeID)
	if err != nil {
		return err
	}
	if !charge.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, charge.Status, to)
	}
	return s.store.UpdateChargeStatus(ctx, chargeID, to)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}
