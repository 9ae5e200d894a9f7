package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/haakonmt/girobatch/internal/kid"
	"github.com/haakonmt/girobatch/internal/models"
	"github.com/haakonmt/girobatch/internal/observability"
	"github.com/haakonmt/girobatch/internal/ocr"
)

// DonationService turns decoded bank transactions into idempotent
// donation records.
type DonationService struct {
	store    DonationStore
	notifier Notifier
}

func NewDonationService(store DonationStore, notifier Notifier) *DonationService {
	return &DonationService{store: store, notifier: notifier}
}

// DonationInput is one candidate donation extracted from a payment channel.
type DonationInput struct {
	KID         string
	Method      string
	AmountOre   int64
	ExternalRef string
	DonatedAt   time.Time
}

// FromOCR converts decoded reconciliation transactions into donation
// inputs. The transaction number and date together form the external
// reference so reprocessing the same file maps to the same records.
func FromOCR(txs []ocr.Transaction) []DonationInput {
	inputs := make([]DonationInput, 0, len(txs))
	for _, tx := range txs {
		ref := tx.ExternalRef
		if ref == "" {
			ref = fmt.Sprintf("%s-%s", tx.Date.Format("20060102"), tx.Number)
		}
		inputs = append(inputs, DonationInput{
			KID:         tx.KID,
			Method:      tx.PaymentMethod(),
			AmountOre:   tx.AmountOre,
			ExternalRef: ref,
			DonatedAt:   tx.Date,
		})
	}
	return inputs
}

// InvalidTransaction describes one input that could not be recorded.
type InvalidTransaction struct {
	KID         string `json:"kid"`
	ExternalRef string `json:"external_ref"`
	Reason      string `json:"reason"`
}

// ReconcileResult aggregates the outcome of one AddDonations call.
type ReconcileResult struct {
	Valid               int                  `json:"valid"`
	Ignored             int                  `json:"ignored"`
	Invalid             int                  `json:"invalid"`
	InvalidTransactions []InvalidTransaction `json:"invalid_transactions,omitempty"`
}

type outcome int

const (
	outcomeValid outcome = iota
	outcomeIgnored
	outcomeInvalid
)

// AddDonations persists every input independently and concurrently,
// returning after all attempts have settled. An insert rejected by the
// storage uniqueness guard counts as ignored; any other failure counts
// as invalid with its reason. A failed receipt notification never
// reverts the donation.
func (s *DonationService) AddDonations(ctx context.Context, inputs []DonationInput, ownerID uuid.UUID) ReconcileResult {
	outcomes := make([]outcome, len(inputs))
	reasons := make([]string, len(inputs))

	var g errgroup.Group
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			outcomes[i], reasons[i] = s.addOne(ctx, input, ownerID)
			return nil
		})
	}
	_ = g.Wait()

	result := ReconcileResult{}
	for i, oc := range outcomes {
		switch oc {
		case outcomeValid:
			result.Valid++
			observability.IncrementDonation("valid")
		case outcomeIgnored:
			result.Ignored++
			observability.IncrementDonation("ignored")
		case outcomeInvalid:
			result.Invalid++
			observability.IncrementDonation("invalid")
			result.InvalidTransactions = append(result.InvalidTransactions, InvalidTransaction{
				KID:         inputs[i].KID,
				ExternalRef: inputs[i].ExternalRef,
				Reason:      reasons[i],
			})
		}
	}
	return result
}

func (s *DonationService) addOne(ctx context.Context, input DonationInput, ownerID uuid.UUID) (outcome, string) {
	if !kid.Valid(input.KID) {
		return outcomeInvalid, models.ErrInvalidKID.Error()
	}
	if input.AmountOre <= 0 {
		return outcomeInvalid, fmt.Sprintf("non-positive amount %d", input.AmountOre)
	}

	donation := &models.Donation{
		ID:          uuid.New(),
		KID:         input.KID,
		Method:      input.Method,
		AmountOre:   input.AmountOre,
		ExternalRef: input.ExternalRef,
		OwnerID:     ownerID,
		DonatedAt:   input.DonatedAt,
	}
	err := s.store.InsertDonation(ctx, donation)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrDuplicateDonation):
		return outcomeIgnored, ""
	default:
		return outcomeInvalid, err.Error()
	}

	if s.notifier != nil {
		if nerr := s.notifier.SendReceipt(ctx, donation.ID); nerr != nil {
			zap.L().Warn("receipt notification failed",
				zap.String("donation_id", donation.ID.String()),
				zap.Error(nerr))
		}
	}
	return outcomeValid, ""
}
