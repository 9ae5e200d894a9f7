package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/avtalegiro"
	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/models"
	"github.com/haakonmt/girobatch/internal/observability"
	"github.com/haakonmt/girobatch/internal/transport"
)

// claimLeadDays is the notice window between generating a claim file and
// the earliest due date it may carry.
const claimLeadDays = 6

// receiptTagLayout tags a shipment day for receipt lookups.
const receiptTagLayout = "20060102"

// ClaimService generates and ships daily claim files and replays them
// when the bank's receipt never arrives.
type ClaimService struct {
	store    ClaimStore
	outbound transport.Outbound
	notifier Notifier

	senderID  string
	accountNo string
	location  *time.Location
}

func NewClaimService(store ClaimStore, outbound transport.Outbound, notifier Notifier, senderID, accountNo string, location *time.Location) *ClaimService {
	if location == nil {
		location = time.UTC
	}
	return &ClaimService{
		store:     store,
		outbound:  outbound,
		notifier:  notifier,
		senderID:  senderID,
		accountNo: accountNo,
		location:  location,
	}
}

// RunDaily builds and ships the claim file for the date six days out.
// Exactly one run-log entry is written per invocation, also on aborts.
func (s *ClaimService) RunDaily(ctx context.Context, now time.Time) error {
	return s.run(ctx, domain.JobDailyClaims, now, true)
}

// RunRetry re-ships today's claim file if the bank never acknowledged
// the morning shipment. Donors already notified are not notified again.
func (s *ClaimService) RunRetry(ctx context.Context, now time.Time) error {
	tag := now.In(s.location).Format(receiptTagLayout)
	acknowledged, err := s.outbound.CheckReceiptAcknowledged(ctx, tag)
	if err != nil {
		s.logRun(ctx, domain.JobRetryClaims, domain.RunResultAborted, fmt.Sprintf("receipt check failed: %v", err), 0)
		return fmt.Errorf("checking receipt for %s: %w", tag, err)
	}
	if acknowledged {
		s.logRun(ctx, domain.JobRetryClaims, domain.RunResultNoop, "receipt present, nothing to resend", 0)
		return nil
	}
	return s.run(ctx, domain.JobRetryClaims, now, false)
}

func (s *ClaimService) run(ctx context.Context, job string, now time.Time, notify bool) error {
	claimDate := truncateToDay(now.In(s.location)).AddDate(0, 0, claimLeadDays)
	monthEnd := isLastDayOfMonth(claimDate)

	agreements, err := s.store.ListClaimableAgreements(ctx, claimDate.Day(), monthEnd)
	if err != nil {
		s.logRun(ctx, job, domain.RunResultAborted, fmt.Sprintf("listing agreements: %v", err), 0)
		return fmt.Errorf("listing claimable agreements: %w", err)
	}
	if len(agreements) == 0 {
		s.logRun(ctx, job, domain.RunResultNoop, fmt.Sprintf("no agreements due on %s", claimDate.Format("2006-01-02")), 0)
		return nil
	}

	claims := make([]avtalegiro.Claim, 0, len(agreements))
	var sum int64
	for _, agreement := range agreements {
		claims = append(claims, avtalegiro.Claim{
			KID:       agreement.KID,
			AmountOre: agreement.AmountOre,
			DueDate:   claimDate,
			Notice:    agreement.Notice,
			DonorName: agreement.DonorName,
		})
		sum += agreement.AmountOre
	}

	// Donors are notified before the file is built so a transport outage
	// never swallows the day's notices.
	if notify && s.notifier != nil {
		for _, agreement := range agreements {
			if !agreement.Notice {
				continue
			}
			if err := s.notifier.SendDueNotice(ctx, agreement); err != nil {
				zap.L().Warn("due notice failed",
					zap.String("agreement_id", agreement.ID.String()),
					zap.Error(err))
			}
		}
	}

	shipment := &models.Shipment{
		ID:         uuid.New(),
		NumClaims:  len(claims),
		SumOre:     sum,
		MinDueDate: claimDate,
		MaxDueDate: claimDate,
	}
	if err := s.store.CreateShipment(ctx, shipment); err != nil {
		s.logRun(ctx, job, domain.RunResultAborted, fmt.Sprintf("creating shipment: %v", err), 0)
		return fmt.Errorf("creating shipment: %w", err)
	}

	file, err := avtalegiro.Encode(avtalegiro.Batch{
		Seq:       shipment.Seq,
		SenderID:  s.senderID,
		AccountNo: s.accountNo,
		Claims:    claims,
	})
	if err != nil {
		s.logRun(ctx, job, domain.RunResultAborted, fmt.Sprintf("encoding claim file: %v", err), 0)
		return fmt.Errorf("encoding claim file: %w", err)
	}

	filename := fmt.Sprintf("claims-%s-%07d.txt", now.In(s.location).Format(receiptTagLayout), shipment.Seq)
	if err := s.outbound.SendFile(ctx, file, filename); err != nil {
		s.logRun(ctx, job, domain.RunResultAborted, fmt.Sprintf("sending %s: %v", filename, err), 0)
		return fmt.Errorf("sending claim file %s: %w", filename, err)
	}

	observability.SetShipmentClaims(len(claims))
	s.logRun(ctx, job, domain.RunResultOK,
		fmt.Sprintf("shipment %d sent with %d claims due %s", shipment.Seq, len(claims), claimDate.Format("2006-01-02")),
		len(claims))
	zap.L().Info("claim run complete",
		zap.String("job", job),
		zap.Int64("shipment_seq", shipment.Seq),
		zap.Int("claims", len(claims)),
		zap.Int64("sum_ore", sum))
	return nil
}

func (s *ClaimService) logRun(ctx context.Context, job, result, message string, claims int) {
	observability.IncrementClaimRun(job, result)
	entry := &models.LogEntry{
		Job:     job,
		Result:  result,
		Message: message,
		Valid:   claims,
	}
	if err := s.store.AppendLogEntry(ctx, entry); err != nil {
		zap.L().Error("run log append failed",
			zap.String("job", job),
			zap.String("result", result),
			zap.Error(err))
	}
}
