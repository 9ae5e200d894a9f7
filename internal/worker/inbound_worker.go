package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/models"
	"github.com/haakonmt/girobatch/internal/observability"
	"github.com/haakonmt/girobatch/internal/ocr"
	"github.com/haakonmt/girobatch/internal/service"
	"github.com/haakonmt/girobatch/internal/transport"
)

// RunLogStore records the outcome of each reconciliation run.
type RunLogStore interface {
	AppendLogEntry(ctx context.Context, e *models.LogEntry) error
}

// InboundWorker polls the bank's inbound directory for reconciliation
// files and feeds decoded payments into donation processing. Repeated
// processing of the same file is harmless; the storage uniqueness guard
// turns replays into ignored records.
type InboundWorker struct {
	inbound   transport.Inbound
	donations *service.DonationService
	autogiro  *service.AutoGiroService
	runLog    RunLogStore
	ownerID   uuid.UUID

	pollInterval time.Duration
	processed    map[string]bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInboundWorker(inbound transport.Inbound, donations *service.DonationService, runLog RunLogStore, ownerID uuid.UUID) *InboundWorker {
	return &InboundWorker{
		inbound:      inbound,
		donations:    donations,
		runLog:       runLog,
		ownerID:      ownerID,
		pollInterval: 15 * time.Minute,
		processed:    make(map[string]bool),
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval updates the polling interval.
func (w *InboundWorker) WithPollInterval(interval time.Duration) *InboundWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// WithAutoGiro routes Swedish-dialect files to the given service
// instead of the OCR decoder. A nil service leaves routing unchanged.
func (w *InboundWorker) WithAutoGiro(svc *service.AutoGiroService) *InboundWorker {
	w.autogiro = svc
	return w
}

// Start blocks and polls at the configured interval.
func (w *InboundWorker) Start(ctx context.Context) {
	zap.L().Info("inbound worker starting", zap.Duration("poll_interval", w.pollInterval))
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("inbound worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("inbound worker stop signal received")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *InboundWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *InboundWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *InboundWorker) poll(ctx context.Context) {
	names, err := w.inbound.ListFiles(ctx)
	if err != nil {
		observability.IncrementWorkerRun("inbound_ocr", "failed")
		zap.L().Error("listing inbound files failed", zap.Error(err))
		return
	}

	for _, name := range names {
		if w.processed[name] {
			continue
		}
		if err := w.processFile(ctx, name); err != nil {
			observability.IncrementWorkerRun("inbound_ocr", "failed")
			zap.L().Error("inbound file processing failed",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		w.processed[name] = true
		observability.IncrementWorkerRun("inbound_ocr", "success")
	}
}

// processFile runs one file end to end. Every run leaves exactly one
// run-log entry; Swedish-dialect files log under their own job name
// inside the service.
func (w *InboundWorker) processFile(ctx context.Context, name string) error {
	data, err := w.inbound.FetchFile(ctx, name)
	if err != nil {
		w.logRun(ctx, domain.RunResultAborted, fmt.Sprintf("fetching %s: %v", name, err), service.ReconcileResult{})
		return err
	}
	if w.autogiro != nil && isAutoGiroFile(data) {
		_, err := w.autogiro.ProcessInbound(ctx, data)
		return err
	}

	txs, err := ocr.Parse(data)
	if err != nil {
		w.logRun(ctx, domain.RunResultAborted, fmt.Sprintf("parsing %s: %v", name, err), service.ReconcileResult{})
		return err
	}

	result := w.donations.AddDonations(ctx, service.FromOCR(txs), w.ownerID)
	w.logRun(ctx, domain.RunResultOK,
		fmt.Sprintf("%s: %d valid, %d ignored, %d invalid", name, result.Valid, result.Ignored, result.Invalid),
		result)
	zap.L().Info("inbound file reconciled",
		zap.String("file", name),
		zap.Int("valid", result.Valid),
		zap.Int("ignored", result.Ignored),
		zap.Int("invalid", result.Invalid))
	return nil
}

// ProcessOnce fetches and reconciles the newest inbound file
// immediately. Used by the manual trigger endpoint.
func (w *InboundWorker) ProcessOnce(ctx context.Context) (service.ReconcileResult, error) {
	data, err := w.inbound.FetchLatestFile(ctx)
	if err != nil {
		w.logRun(ctx, domain.RunResultAborted, fmt.Sprintf("fetching latest file: %v", err), service.ReconcileResult{})
		return service.ReconcileResult{}, err
	}
	if w.autogiro != nil && isAutoGiroFile(data) {
		return w.autogiro.ProcessInbound(ctx, data)
	}
	txs, err := ocr.Parse(data)
	if err != nil {
		w.logRun(ctx, domain.RunResultAborted, fmt.Sprintf("parsing latest file: %v", err), service.ReconcileResult{})
		return service.ReconcileResult{}, err
	}
	result := w.donations.AddDonations(ctx, service.FromOCR(txs), w.ownerID)
	w.logRun(ctx, domain.RunResultOK,
		fmt.Sprintf("%d valid, %d ignored, %d invalid", result.Valid, result.Ignored, result.Invalid),
		result)
	return result, nil
}

func (w *InboundWorker) logRun(ctx context.Context, result, message string, counts service.ReconcileResult) {
	entry := &models.LogEntry{
		Job:     domain.JobInboundOCR,
		Result:  result,
		Message: message,
		Valid:   counts.Valid,
		Ignored: counts.Ignored,
		Invalid: counts.Invalid,
	}
	if err := w.runLog.AppendLogEntry(ctx, entry); err != nil {
		zap.L().Error("run log append failed",
			zap.String("job", domain.JobInboundOCR),
			zap.String("result", result),
			zap.Error(err))
	}
}

// isAutoGiroFile distinguishes the Swedish dialect, whose records open
// with a 2-digit transaction code, from OCR records opening with "NY".
func isAutoGiroFile(data []byte) bool {
	return len(data) >= 2 && isDigit(data[0]) && isDigit(data[1])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
