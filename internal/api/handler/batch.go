package handler

import (
	"context"
	"net/http"

	"github.com/haakonmt/girobatch/internal/service"
)

// BatchRunner triggers the scheduled claim runs on demand.
type BatchRunner interface {
	RunDailyOnce(ctx context.Context) error
	RunRetryOnce(ctx context.Context) error
}

// InboundProcessor reconciles the newest inbound bank file on demand.
type InboundProcessor interface {
	ProcessOnce(ctx context.Context) (service.ReconcileResult, error)
}

// BatchHandler exposes manual triggers for the scheduled banking runs.
// The runs themselves are idempotent, so an operator can fire them
// safely while investigating an incident.
type BatchHandler struct {
	batch   BatchRunner
	inbound InboundProcessor
}

func NewBatchHandler(batch BatchRunner, inbound InboundProcessor) *BatchHandler {
	return &BatchHandler{batch: batch, inbound: inbound}
}

func (h *BatchHandler) TriggerDaily(w http.ResponseWriter, r *http.Request) {
	if err := h.batch.RunDailyOnce(r.Context()); err != nil {
		RespondError(w, r, http.StatusBadGateway, "batch/daily-failed", err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BatchHandler) TriggerRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.batch.RunRetryOnce(r.Context()); err != nil {
		RespondError(w, r, http.StatusBadGateway, "batch/retry-failed", err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BatchHandler) TriggerInbound(w http.ResponseWriter, r *http.Request) {
	result, err := h.inbound.ProcessOnce(r.Context())
	if err != nil {
		RespondError(w, r, http.StatusBadGateway, "batch/inbound-failed", err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
