package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/autogiro"
	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/models"
	"github.com/haakonmt/girobatch/internal/observability"
	"github.com/haakonmt/girobatch/internal/transport"
)

// AutoGiroService drives the Swedish direct-debit exchange: inbound
// files carry settled payments, rejected charges and mandate advices;
// outbound files carry withdrawal claims for scheduled charges.
type AutoGiroService struct {
	store      AutoGiroStore
	donations  *DonationService
	agreements *AgreementService
	outbound   transport.Outbound

	ownerID    uuid.UUID
	customerNo string
	bankgiroNo string
	location   *time.Location
}

func NewAutoGiroService(store AutoGiroStore, donations *DonationService, agreements *AgreementService, outbound transport.Outbound, ownerID uuid.UUID, customerNo, bankgiroNo string, location *time.Location) *AutoGiroService {
	if location == nil {
		location = time.UTC
	}
	return &AutoGiroService{
		store:      store,
		donations:  donations,
		agreements: agreements,
		outbound:   outbound,
		ownerID:    ownerID,
		customerNo: customerNo,
		bankgiroNo: bankgiroNo,
		location:   location,
	}
}

// ProcessInbound decodes one bank file and applies every record type:
// incoming payments become donations and settle their due charges,
// rejected charges fail theirs, and mandate advices move agreements
// through their lifecycle. Exactly one run-log entry is written.
func (s *AutoGiroService) ProcessInbound(ctx context.Context, data []byte) (ReconcileResult, error) {
	file, err := autogiro.Parse(data)
	if err != nil {
		s.logRun(ctx, domain.JobInboundAutoGiro, domain.RunResultAborted, fmt.Sprintf("parsing file: %v", err), ReconcileResult{})
		return ReconcileResult{}, fmt.Errorf("parsing autogiro file: %w", err)
	}

	for _, advice := range file.Mandates {
		s.applyMandateAdvice(ctx, advice)
	}

	inputs := make([]DonationInput, 0, len(file.Payments))
	incoming := make([]autogiro.Payment, 0, len(file.Payments))
	for _, p := range file.Payments {
		if p.Outgoing {
			continue
		}
		incoming = append(incoming, p)
		inputs = append(inputs, DonationInput{
			KID:         s.resolveKID(ctx, p.PayerNo),
			Method:      domain.MethodAutoGiro,
			AmountOre:   p.AmountOre,
			ExternalRef: paymentRef(p),
			DonatedAt:   p.Date,
		})
	}
	result := s.donations.AddDonations(ctx, inputs, s.ownerID)

	settled := 0
	for _, p := range incoming {
		if s.markCharge(ctx, p.PayerNo, p.Date, domain.ChargeStatusCharged) {
			settled++
		}
	}
	failed := 0
	for _, r := range file.Rejected {
		if s.markCharge(ctx, r.PayerNo, r.Date, domain.ChargeStatusFailed) {
			failed++
		} else {
			zap.L().Warn("rejected charge has no matching due charge",
				zap.String("payer_no", r.PayerNo),
				zap.String("reject_code", r.RejectCode))
		}
	}

	message := fmt.Sprintf("%d payments, %d charges settled, %d rejected, %d mandate advices",
		len(incoming), settled, failed, len(file.Mandates))
	s.logRun(ctx, domain.JobInboundAutoGiro, domain.RunResultOK, message, result)
	return result, nil
}

// ShipWithdrawals encodes every pending charge due on the upcoming
// collection date into a withdrawal file and marks the charges due once
// the file is handed to transport.
func (s *AutoGiroService) ShipWithdrawals(ctx context.Context, now time.Time) error {
	local := now.In(s.location)
	dueDate := truncateToDay(local).AddDate(0, 0, chargeLeadDays)

	charges, err := s.store.ListChargesDueOn(ctx, dueDate, domain.ChargeStatusPending)
	if err != nil {
		s.logRun(ctx, domain.JobAutoGiroClaims, domain.RunResultAborted, fmt.Sprintf("listing charges: %v", err), ReconcileResult{})
		return fmt.Errorf("listing pending charges: %w", err)
	}
	if len(charges) == 0 {
		s.logRun(ctx, domain.JobAutoGiroClaims, domain.RunResultNoop, fmt.Sprintf("no charges due on %s", dueDate.Format("2006-01-02")), ReconcileResult{})
		return nil
	}

	lines := make([]string, 0, len(charges))
	shipped := make([]models.Charge, 0, len(charges))
	for _, charge := range charges {
		agreement, err := s.store.GetAgreement(ctx, charge.AgreementID)
		if err != nil {
			zap.L().Warn("charge without agreement skipped",
				zap.String("charge_id", charge.ID.String()),
				zap.Error(err))
			continue
		}
		line, err := autogiro.EncodeWithdrawal(dueDate, agreement.KID, charge.AmountOre, chargeRef(charge.ID))
		if err != nil {
			zap.L().Warn("charge could not be encoded",
				zap.String("charge_id", charge.ID.String()),
				zap.Error(err))
			continue
		}
		lines = append(lines, line)
		shipped = append(shipped, charge)
	}
	if len(lines) == 0 {
		s.logRun(ctx, domain.JobAutoGiroClaims, domain.RunResultNoop, "no encodable charges", ReconcileResult{})
		return nil
	}

	file, err := autogiro.EncodeFile(autogiro.Opening{
		Date:       local,
		CustomerNo: s.customerNo,
		BankgiroNo: s.bankgiroNo,
	}, lines)
	if err != nil {
		s.logRun(ctx, domain.JobAutoGiroClaims, domain.RunResultAborted, fmt.Sprintf("encoding file: %v", err), ReconcileResult{})
		return fmt.Errorf("encoding withdrawal file: %w", err)
	}

	filename := fmt.Sprintf("withdrawals-%s.txt", local.Format(receiptTagLayout))
	if err := s.outbound.SendFile(ctx, file, filename); err != nil {
		s.logRun(ctx, domain.JobAutoGiroClaims, domain.RunResultAborted, fmt.Sprintf("sending %s: %v", filename, err), ReconcileResult{})
		return fmt.Errorf("sending withdrawal file %s: %w", filename, err)
	}

	for _, charge := range shipped {
		if err := s.agreements.MarkChargeStatus(ctx, charge.ID, domain.ChargeStatusDue); err != nil {
			zap.L().Warn("shipped charge not marked due",
				zap.String("charge_id", charge.ID.String()),
				zap.Error(err))
		}
	}

	s.logRun(ctx, domain.JobAutoGiroClaims, domain.RunResultOK,
		fmt.Sprintf("%d withdrawals due %s sent as %s", len(shipped), dueDate.Format("2006-01-02"), filename),
		ReconcileResult{Valid: len(shipped)})
	return nil
}

// applyMandateAdvice moves the payer's agreement per the bank's advice:
// new and confirmed mandates activate a draft, cancellations terminate.
func (s *AutoGiroService) applyMandateAdvice(ctx context.Context, advice autogiro.MandateAdvice) {
	agreement, err := s.store.GetAgreementByKID(ctx, advice.PayerNo)
	if err != nil {
		zap.L().Warn("mandate advice for unknown payer",
			zap.String("payer_no", advice.PayerNo),
			zap.String("info_code", advice.InfoCode))
		return
	}

	switch advice.InfoCode {
	case autogiro.AdviceAdd, autogiro.AdviceConfirm:
		if agreement.Status != domain.AgreementStatusDraft {
			return
		}
		if err := s.agreements.Confirm(ctx, agreement.ID); err != nil {
			zap.L().Warn("mandate confirmation failed",
				zap.String("agreement_id", agreement.ID.String()),
				zap.Error(err))
		}
	case autogiro.AdviceCancelled:
		if agreement.Status == domain.AgreementStatusTerminated {
			return
		}
		if err := s.agreements.Cancel(ctx, agreement.ID); err != nil {
			zap.L().Warn("mandate cancellation failed",
				zap.String("agreement_id", agreement.ID.String()),
				zap.Error(err))
		}
	}
}

// resolveKID maps a wire payer number back to the stored identifier.
// The bank strips leading zeros, so the agreement lookup restores them.
func (s *AutoGiroService) resolveKID(ctx context.Context, payerNo string) string {
	agreement, err := s.store.GetAgreementByKID(ctx, payerNo)
	if err != nil {
		return payerNo
	}
	return agreement.KID
}

func (s *AutoGiroService) markCharge(ctx context.Context, payerNo string, date time.Time, status string) bool {
	charge, err := s.store.FindChargeForCollection(ctx, payerNo, date)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.L().Warn("charge lookup failed",
				zap.String("payer_no", payerNo),
				zap.Error(err))
		}
		return false
	}
	if err := s.agreements.MarkChargeStatus(ctx, charge.ID, status); err != nil {
		zap.L().Warn("charge status update failed",
			zap.String("charge_id", charge.ID.String()),
			zap.String("status", status),
			zap.Error(err))
		return false
	}
	return true
}

func (s *AutoGiroService) logRun(ctx context.Context, job, result, message string, counts ReconcileResult) {
	observability.IncrementClaimRun(job, result)
	entry := &models.LogEntry{
		Job:     job,
		Result:  result,
		Message: message,
		Valid:   counts.Valid,
		Ignored: counts.Ignored,
		Invalid: counts.Invalid,
	}
	if err := s.store.AppendLogEntry(ctx, entry); err != nil {
		zap.L().Error("run log append failed",
			zap.String("job", job),
			zap.String("result", result),
			zap.Error(err))
	}
}

func paymentRef(p autogiro.Payment) string {
	if ref := strings.TrimSpace(p.Reference); ref != "" {
		return ref
	}
	return fmt.Sprintf("%s-%s", p.Date.Format("20060102"), p.PayerNo)
}

// chargeRef shortens a charge id to the 16 characters the payment
// record's reference field holds.
func chargeRef(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}
