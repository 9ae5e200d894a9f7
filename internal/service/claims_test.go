package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haakonmt/girobatch/internal/avtalegiro"
	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/transport"
)

const (
	testSenderID  = "00131936"
	testAccountNo = "15062995960"
)

func newClaimService(store *fakeStore, remote *transport.MockTransport, notifier Notifier) *ClaimService {
	return NewClaimService(store, remote, notifier, testSenderID, testAccountNo, time.UTC)
}

func TestRunDailyShipsClaimFile(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	notifier := &fakeNotifier{}
	svc := newClaimService(store, remote, notifier)

	noticed := seedAgreement(t, store, domain.AgreementStatusActive, 10)
	store.agreements[noticed.ID].Notice = true
	quiet := seedAgreement(t, store, domain.AgreementStatusActive, 10)
	seedAgreement(t, store, domain.AgreementStatusActive, 15)
	seedAgreement(t, store, domain.AgreementStatusPaused, 10)

	now := time.Date(2021, 10, 4, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunDaily(context.Background(), now))

	sent := remote.SentFiles()
	require.Len(t, sent, 1)
	assert.Equal(t, "claims-20211004-0000001.txt", sent[0])

	data, ok := remote.SentFile(sent[0])
	require.True(t, ok)
	parsed, err := avtalegiro.Parse(data)
	require.NoError(t, err)
	require.NoError(t, parsed.Verify())
	require.Len(t, parsed.Claims, 2)
	due := time.Date(2021, 10, 10, 0, 0, 0, 0, time.UTC)
	for _, c := range parsed.Claims {
		assert.Equal(t, due, c.DueDate)
	}

	require.Len(t, store.shipments, 1)
	assert.Equal(t, int64(1), store.shipments[0].Seq)
	assert.Equal(t, 2, store.shipments[0].NumClaims)
	assert.Equal(t, noticed.AmountOre+quiet.AmountOre, store.shipments[0].SumOre)

	require.Len(t, store.logEntries, 1)
	assert.Equal(t, domain.JobDailyClaims, store.logEntries[0].Job)
	assert.Equal(t, domain.RunResultOK, store.logEntries[0].Result)
	assert.Equal(t, 2, store.logEntries[0].Valid)
}

func TestRunDailyAssignsShipmentIDs(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, 10)
	seedAgreement(t, store, domain.AgreementStatusActive, 11)

	require.NoError(t, svc.RunDaily(context.Background(), time.Date(2021, 10, 4, 8, 0, 0, 0, time.UTC)))
	require.NoError(t, svc.RunDaily(context.Background(), time.Date(2021, 10, 5, 8, 0, 0, 0, time.UTC)))

	// The shipments table has no id default, so every run must mint its
	// own primary key or the second insert collides.
	require.Len(t, store.shipments, 2)
	assert.NotEqual(t, uuid.Nil, store.shipments[0].ID)
	assert.NotEqual(t, uuid.Nil, store.shipments[1].ID)
	assert.NotEqual(t, store.shipments[0].ID, store.shipments[1].ID)
}

func TestRunDailyNotifiesDespiteSendFailure(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	remote.FailSends = true
	notifier := &fakeNotifier{}
	svc := newClaimService(store, remote, notifier)

	noticed := seedAgreement(t, store, domain.AgreementStatusActive, 10)
	store.agreements[noticed.ID].Notice = true

	now := time.Date(2021, 10, 4, 8, 0, 0, 0, time.UTC)
	require.Error(t, svc.RunDaily(context.Background(), now))

	// Due notices are independent of the shipment reaching the bank.
	require.Len(t, notifier.dueNotices, 1)
	assert.Equal(t, noticed.ID, notifier.dueNotices[0])
	require.Len(t, store.logEntries, 1)
	assert.Equal(t, domain.RunResultAborted, store.logEntries[0].Result)
}

func TestRunDailyNotifiesOnlyNoticeAgreements(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	notifier := &fakeNotifier{}
	svc := newClaimService(store, remote, notifier)

	noticed := seedAgreement(t, store, domain.AgreementStatusActive, 10)
	store.agreements[noticed.ID].Notice = true
	seedAgreement(t, store, domain.AgreementStatusActive, 10)

	now := time.Date(2021, 10, 4, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunDaily(context.Background(), now))

	require.Len(t, notifier.dueNotices, 1)
	assert.Equal(t, noticed.ID, notifier.dueNotices[0])
}

func TestRunDailyNoopWhenNothingDue(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, 15)

	now := time.Date(2021, 10, 4, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunDaily(context.Background(), now))

	assert.Empty(t, remote.SentFiles())
	require.Len(t, store.logEntries, 1)
	assert.Equal(t, domain.JobDailyClaims, store.logEntries[0].Job)
	assert.Equal(t, domain.RunResultNoop, store.logEntries[0].Result)
}

func TestRunDailyMonthEndMergesSentinel(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, domain.ClaimDayMonthEnd)
	seedAgreement(t, store, domain.AgreementStatusActive, 28)
	seedAgreement(t, store, domain.AgreementStatusActive, 10)

	now := time.Date(2022, 2, 22, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunDaily(context.Background(), now))

	sent := remote.SentFiles()
	require.Len(t, sent, 1)
	data, _ := remote.SentFile(sent[0])
	parsed, err := avtalegiro.Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed.Claims, 2)
	due := time.Date(2022, 2, 28, 0, 0, 0, 0, time.UTC)
	for _, c := range parsed.Claims {
		assert.Equal(t, due, c.DueDate)
	}
}

func TestRunDailyThirtyDayMonth(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, domain.ClaimDayMonthEnd)
	seedAgreement(t, store, domain.AgreementStatusActive, 28)

	// 2021-09-24 + 6 = 2021-09-30, the last day of a 30-day month.
	now := time.Date(2021, 9, 24, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunDaily(context.Background(), now))

	data, _ := remote.SentFile(remote.SentFiles()[0])
	parsed, err := avtalegiro.Parse(data)
	require.NoError(t, err)
	// Only the sentinel: day-28 agreements were already claimed on the 28th.
	require.Len(t, parsed.Claims, 1)
	assert.Equal(t, time.Date(2021, 9, 30, 0, 0, 0, 0, time.UTC), parsed.Claims[0].DueDate)
}

func TestRunDailyLeapFebruary(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, domain.ClaimDayMonthEnd)
	seedAgreement(t, store, domain.AgreementStatusActive, 28)

	// 2024-02-23 + 6 = 2024-02-29: leap-year month end, day 28 not merged.
	now := time.Date(2024, 2, 23, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunDaily(context.Background(), now))

	data, _ := remote.SentFile(remote.SentFiles()[0])
	parsed, err := avtalegiro.Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed.Claims, 1)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), parsed.Claims[0].DueDate)
}

func TestRunDailyAbortsOnSendFailure(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	remote.FailSends = true
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, 10)

	now := time.Date(2021, 10, 4, 8, 0, 0, 0, time.UTC)
	err := svc.RunDaily(context.Background(), now)
	require.Error(t, err)

	require.Len(t, store.logEntries, 1)
	assert.Equal(t, domain.RunResultAborted, store.logEntries[0].Result)
}

func TestRunRetryNoopWhenReceiptPresent(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	svc := newClaimService(store, remote, &fakeNotifier{})

	seedAgreement(t, store, domain.AgreementStatusActive, 10)
	remote.AcknowledgeReceipt("20211004")

	now := time.Date(2021, 10, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunRetry(context.Background(), now))

	assert.Empty(t, remote.SentFiles())
	require.Len(t, store.logEntries, 1)
	assert.Equal(t, domain.JobRetryClaims, store.logEntries[0].Job)
	assert.Equal(t, domain.RunResultNoop, store.logEntries[0].Result)
}

func TestRunRetryResendsWithoutNotifying(t *testing.T) {
	store := newFakeStore()
	remote := transport.NewMockTransport()
	notifier := &fakeNotifier{}
	svc := newClaimService(store, remote, notifier)

	noticed := seedAgreement(t, store, domain.AgreementStatusActive, 10)
	store.agreements[noticed.ID].Notice = true

	now := time.Date(2021, 10, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunRetry(context.Background(), now))

	require.Len(t, remote.SentFiles(), 1)
	assert.Empty(t, notifier.dueNotices)
	require.Len(t, store.logEntries, 1)
	assert.Equal(t, domain.RunResultOK, store.logEntries[0].Result)
}
