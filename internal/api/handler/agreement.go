package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haakonmt/girobatch/internal/models"
	"github.com/haakonmt/girobatch/internal/service"
)

// AgreementHandler exposes the recurring-agreement lifecycle.
type AgreementHandler struct {
	svc *service.AgreementService
}

func NewAgreementHandler(svc *service.AgreementService) *AgreementHandler {
	return &AgreementHandler{svc: svc}
}

type createAgreementRequest struct {
	DonorID   uuid.UUID `json:"donor_id"`
	KID       string    `json:"kid"`
	AmountOre int64     `json:"amount_ore"`
	ClaimDay  int       `json:"claim_day"`
	Notice    bool      `json:"notice"`
}

func (h *AgreementHandler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/invalid-body", "invalid request body")
		return
	}
	if req.DonorID == uuid.Nil {
		RespondError(w, r, http.StatusBadRequest, "validation/missing-field", "donor_id is required")
		return
	}

	agreement, err := h.svc.Create(r.Context(), req.DonorID, req.KID, req.AmountOre, req.ClaimDay, req.Notice)
	if err != nil {
		respondAgreementError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, agreement)
}

func (h *AgreementHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Confirm)
}

type pauseRequest struct {
	Until time.Time `json:"until"`
}

func (h *AgreementHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/invalid-body", "invalid request body")
		return
	}
	if !req.Until.After(time.Now()) {
		RespondError(w, r, http.StatusBadRequest, "validation/pause-until", "until must be in the future")
		return
	}
	h.mutate(w, r, func(ctx context.Context, id uuid.UUID) error {
		return h.svc.Pause(ctx, id, req.Until)
	})
}

func (h *AgreementHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Resume)
}

func (h *AgreementHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Cancel)
}

type updateAmountRequest struct {
	AmountOre int64 `json:"amount_ore"`
}

func (h *AgreementHandler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := agreementID(w, r)
	if !ok {
		return
	}
	var req updateAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/invalid-body", "invalid request body")
		return
	}
	if err := h.svc.UpdateAmount(r.Context(), id, req.AmountOre); err != nil {
		respondAgreementError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type updateClaimDayRequest struct {
	ClaimDay int `json:"claim_day"`
}

func (h *AgreementHandler) UpdateClaimDay(w http.ResponseWriter, r *http.Request) {
	id, ok := agreementID(w, r)
	if !ok {
		return
	}
	var req updateClaimDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/invalid-body", "invalid request body")
		return
	}
	if err := h.svc.UpdateClaimDay(r.Context(), id, req.ClaimDay); err != nil {
		respondAgreementError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AgreementHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) error) {
	id, ok := agreementID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		respondAgreementError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func agreementID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/agreement-id", "invalid agreement id")
		return uuid.Nil, false
	}
	return id, true
}

func respondAgreementError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, "not-found", "agreement not found")
	case errors.Is(err, models.ErrInvalidTransition):
		RespondError(w, r, http.StatusConflict, "agreement/invalid-transition", err.Error())
	case errors.Is(err, models.ErrInvalidKID):
		RespondError(w, r, http.StatusBadRequest, "validation/kid", "identifier failed checksum validation")
	case errors.Is(err, models.ErrClaimDayOutOfRange):
		RespondError(w, r, http.StatusBadRequest, "validation/claim-day", "claim day must be 0 (month end) or 1 through 28")
	default:
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}
