package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/models"
)

// fakeStore is an in-memory stand-in for *repository.Queries covering
// every store interface the services consume.
type fakeStore struct {
	mu sync.Mutex

	donations     map[string]models.Donation
	agreements    map[uuid.UUID]*models.Agreement
	charges       map[uuid.UUID]*models.Charge
	shipments     []models.Shipment
	shipmentIDs   map[uuid.UUID]bool
	logEntries    []models.LogEntry
	rules         []models.MatchRule
	nextShipment  int64
	insertErr     error
	listErr       error
	shipmentErr   error
	cancelFailFor map[uuid.UUID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		donations:   make(map[string]models.Donation),
		agreements:  make(map[uuid.UUID]*models.Agreement),
		charges:     make(map[uuid.UUID]*models.Charge),
		shipmentIDs: make(map[uuid.UUID]bool),
	}
}

func donationKey(d *models.Donation) string {
	return fmt.Sprintf("%s|%s|%d|%s", d.KID, d.Method, d.AmountOre, d.ExternalRef)
}

func (f *fakeStore) InsertDonation(_ context.Context, d *models.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	key := donationKey(d)
	if _, exists := f.donations[key]; exists {
		return models.ErrDuplicateDonation
	}
	f.donations[key] = *d
	return nil
}

func (f *fakeStore) ListMatchRules(_ context.Context) ([]models.MatchRule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rules, nil
}

func (f *fakeStore) CreateAgreement(_ context.Context, a *models.Agreement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *a
	f.agreements[a.ID] = &copied
	return nil
}

func (f *fakeStore) GetAgreement(_ context.Context, id uuid.UUID) (*models.Agreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agreements[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) UpdateAgreementStatus(_ context.Context, id uuid.UUID, status string, pausedUntil, cancelledAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agreements[id]
	if !ok {
		return models.ErrNotFound
	}
	a.Status = status
	a.PausedUntil = pausedUntil
	a.CancelledAt = cancelledAt
	return nil
}

func (f *fakeStore) UpdateAgreementAmount(_ context.Context, id uuid.UUID, amountOre int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agreements[id]
	if !ok {
		return models.ErrNotFound
	}
	a.AmountOre = amountOre
	return nil
}

func (f *fakeStore) UpdateAgreementClaimDay(_ context.Context, id uuid.UUID, claimDay int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agreements[id]
	if !ok {
		return models.ErrNotFound
	}
	a.ClaimDay = claimDay
	return nil
}

func (f *fakeStore) ListClaimableAgreements(_ context.Context, claimDay int, includeMonthEnd bool) ([]models.Agreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Agreement
	for _, a := range f.agreements {
		if a.Status != domain.AgreementStatusActive {
			continue
		}
		if a.ClaimDay == claimDay || (includeMonthEnd && a.ClaimDay == 0) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateCharge(_ context.Context, c *models.Charge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *c
	f.charges[c.ID] = &copied
	return nil
}

func (f *fakeStore) GetCharge(_ context.Context, id uuid.UUID) (*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charges[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) UpdateChargeStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.cancelFailFor[id]; ok && status == domain.ChargeStatusCancelled {
		return err
	}
	c, ok := f.charges[id]
	if !ok {
		return models.ErrNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeStore) ListOpenCharges(_ context.Context, agreementID uuid.UUID) ([]models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Charge
	for _, c := range f.charges {
		if c.AgreementID != agreementID {
			continue
		}
		if c.Status == domain.ChargeStatusPending || c.Status == domain.ChargeStatusDue {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) ChargeExists(_ context.Context, agreementID uuid.UUID, dueDate time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.charges {
		if c.AgreementID == agreementID && c.DueDate.Equal(dueDate) && c.Status != domain.ChargeStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetAgreementByKID(_ context.Context, agreementKID string) (*models.Agreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agreements {
		if strings.TrimLeft(a.KID, "0") == strings.TrimLeft(agreementKID, "0") {
			copied := *a
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) ListChargesDueOn(_ context.Context, dueDate time.Time, status string) ([]models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Charge
	for _, c := range f.charges {
		if c.Status == status && c.DueDate.Equal(dueDate) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindChargeForCollection(_ context.Context, agreementKID string, dueDate time.Time) (*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.charges {
		if c.Status != domain.ChargeStatusDue || !c.DueDate.Equal(dueDate) {
			continue
		}
		a, ok := f.agreements[c.AgreementID]
		if ok && strings.TrimLeft(a.KID, "0") == strings.TrimLeft(agreementKID, "0") {
			copied := *c
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) CreateShipment(_ context.Context, s *models.Shipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shipmentErr != nil {
		return f.shipmentErr
	}
	// The shipments table has a plain UUID primary key, so an unset or
	// repeated id must fail the insert the same way Postgres would.
	if f.shipmentIDs[s.ID] {
		return fmt.Errorf("duplicate key value violates shipments_pkey: %s", s.ID)
	}
	f.shipmentIDs[s.ID] = true
	f.nextShipment++
	s.Seq = f.nextShipment
	f.shipments = append(f.shipments, *s)
	return nil
}

func (f *fakeStore) AppendLogEntry(_ context.Context, e *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logEntries = append(f.logEntries, *e)
	return nil
}

// fakeNotifier records every notification and optionally fails them.
type fakeNotifier struct {
	mu         sync.Mutex
	dueNotices []uuid.UUID
	receipts   []uuid.UUID
	fail       bool
}

func (f *fakeNotifier) SendDueNotice(_ context.Context, agreement models.Agreement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("notifier unavailable")
	}
	f.dueNotices = append(f.dueNotices, agreement.ID)
	return nil
}

func (f *fakeNotifier) SendReceipt(_ context.Context, donationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("notifier unavailable")
	}
	f.receipts = append(f.receipts, donationID)
	return nil
}
