package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/observability"
	"github.com/haakonmt/girobatch/internal/runlock"
	"github.com/haakonmt/girobatch/internal/service"
)

// ClaimWorker drives the scheduled banking runs: charge scheduling and
// the claim-file shipment every morning, the receipt-gated resend every
// afternoon. Runs are keyed to the org's local calendar day and guarded
// by a distributed lock so concurrent instances never double-ship.
type ClaimWorker struct {
	claims     *service.ClaimService
	agreements *service.AgreementService
	autogiro   *service.AutoGiroService
	lock       *runlock.Lock

	location  *time.Location
	dailyHour int
	retryHour int

	lastDaily string
	lastRetry string

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClaimWorker(claims *service.ClaimService, agreements *service.AgreementService, lock *runlock.Lock, location *time.Location) *ClaimWorker {
	if location == nil {
		location = time.UTC
	}
	return &ClaimWorker{
		claims:     claims,
		agreements: agreements,
		lock:       lock,
		location:   location,
		dailyHour:  10,
		retryHour:  16,
		stopCh:     make(chan struct{}),
	}
}

// WithAutoGiro adds a Swedish withdrawal shipment to the daily run.
func (w *ClaimWorker) WithAutoGiro(svc *service.AutoGiroService) *ClaimWorker {
	w.autogiro = svc
	return w
}

// WithHours overrides the local hours the daily and retry runs fire at.
func (w *ClaimWorker) WithHours(daily, retry int) *ClaimWorker {
	if daily >= 0 && daily < 24 {
		w.dailyHour = daily
	}
	if retry >= 0 && retry < 24 {
		w.retryHour = retry
	}
	return w
}

// Start blocks and fires the runs at their local wall-clock hours.
func (w *ClaimWorker) Start(ctx context.Context) {
	zap.L().Info("claim worker starting",
		zap.Int("daily_hour", w.dailyHour),
		zap.Int("retry_hour", w.retryHour),
		zap.String("location", w.location.String()))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("claim worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("claim worker stop signal received")
			return
		case now := <-ticker.C:
			w.tick(ctx, now)
		}
	}
}

// Stop stops the running worker loop.
func (w *ClaimWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ClaimWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ClaimWorker) tick(ctx context.Context, now time.Time) {
	local := now.In(w.location)
	day := local.Format("20060102")

	if local.Hour() >= w.dailyHour && w.lastDaily != day {
		w.lastDaily = day
		w.runLocked(ctx, domain.JobDailyClaims, day, func(ctx context.Context) error {
			return w.dailyRun(ctx, local)
		})
	}
	if local.Hour() >= w.retryHour && w.lastRetry != day {
		w.lastRetry = day
		w.runLocked(ctx, domain.JobRetryClaims, day, func(ctx context.Context) error {
			return w.claims.RunRetry(ctx, local)
		})
	}
}

func (w *ClaimWorker) runLocked(ctx context.Context, job, day string, fn func(context.Context) error) {
	if err := w.lock.Acquire(ctx, job, day); err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			zap.L().Info("run already in progress elsewhere", zap.String("job", job))
			return
		}
		observability.IncrementWorkerRun(job, "failed")
		zap.L().Error("run lock acquisition failed", zap.String("job", job), zap.Error(err))
		return
	}
	defer func() {
		if err := w.lock.Release(ctx, job, day); err != nil {
			zap.L().Warn("run lock release failed", zap.String("job", job), zap.Error(err))
		}
	}()

	if err := fn(ctx); err != nil {
		observability.IncrementWorkerRun(job, "failed")
		zap.L().Error("scheduled run failed", zap.String("job", job), zap.Error(err))
		return
	}
	observability.IncrementWorkerRun(job, "success")
}

// dailyRun schedules the upcoming charges, ships the Norwegian claim
// file and, when configured, the Swedish withdrawal file.
func (w *ClaimWorker) dailyRun(ctx context.Context, now time.Time) error {
	if _, err := w.agreements.ScheduleCharges(ctx, now); err != nil {
		return err
	}
	if err := w.claims.RunDaily(ctx, now); err != nil {
		return err
	}
	if w.autogiro != nil {
		return w.autogiro.ShipWithdrawals(ctx, now)
	}
	return nil
}

// RunDailyOnce triggers the morning run immediately, outside the
// schedule. Used by the manual trigger endpoint.
func (w *ClaimWorker) RunDailyOnce(ctx context.Context) error {
	return w.dailyRun(ctx, time.Now().In(w.location))
}

// RunRetryOnce triggers the afternoon resend check immediately.
func (w *ClaimWorker) RunRetryOnce(ctx context.Context) error {
	return w.claims.RunRetry(ctx, time.Now().In(w.location))
}
