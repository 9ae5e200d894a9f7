package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haakonmt/girobatch/internal/kid"
	"github.com/haakonmt/girobatch/internal/models"
	"github.com/haakonmt/girobatch/internal/repository"
)

// kidLength is the identifier length issued to new distributions.
const kidLength = 15

// DistributionHandler manages donor KID registrations.
type DistributionHandler struct {
	store *repository.Store
}

func NewDistributionHandler(store *repository.Store) *DistributionHandler {
	return &DistributionHandler{store: store}
}

type createDistributionRequest struct {
	DonorName  string         `json:"donor_name"`
	DonorEmail string         `json:"donor_email"`
	Shares     []models.Share `json:"shares"`
}

type distributionResponse struct {
	ID      uuid.UUID      `json:"id"`
	DonorID uuid.UUID      `json:"donor_id"`
	KID     string         `json:"kid"`
	Shares  []models.Share `json:"shares"`
}

// CreateDistribution registers a donor with an organisation split and
// issues a fresh checksummed identifier for it.
func (h *DistributionHandler) CreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req createDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/invalid-body", "invalid request body")
		return
	}
	if req.DonorName == "" {
		RespondError(w, r, http.StatusBadRequest, "validation/missing-field", "donor_name is required")
		return
	}
	if err := models.ValidateShares(req.Shares); err != nil {
		RespondError(w, r, http.StatusBadRequest, "validation/shares", "shares must be non-negative and sum to 100")
		return
	}

	ctx := r.Context()
	newKID, err := kid.Generate(ctx, kidLength, h.store.Queries().KIDExists)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "kid/generation-failed", "could not issue an identifier")
		return
	}

	donor := &models.Donor{ID: uuid.New(), Name: req.DonorName, Email: req.DonorEmail}
	dist := &models.Distribution{ID: uuid.New(), DonorID: donor.ID, KID: newKID, Shares: req.Shares}
	err = h.store.RunInTx(ctx, func(q *repository.Queries) error {
		if err := q.CreateDonor(ctx, donor); err != nil {
			return err
		}
		return q.CreateDistribution(ctx, dist)
	})
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "db/write-failed", "could not save distribution")
		return
	}

	RespondJSON(w, http.StatusCreated, distributionResponse{
		ID:      dist.ID,
		DonorID: donor.ID,
		KID:     newKID,
		Shares:  req.Shares,
	})
}

type reassignResponse struct {
	OldKID string `json:"old_kid"`
	NewKID string `json:"new_kid"`
}

// ReassignKID issues a replacement identifier and atomically rebinds the
// distribution and any agreements that reference the old one.
func (h *DistributionHandler) ReassignKID(w http.ResponseWriter, r *http.Request) {
	oldKID := chi.URLParam(r, "kid")
	if !kid.Valid(oldKID) {
		RespondError(w, r, http.StatusBadRequest, "validation/kid", "identifier failed checksum validation")
		return
	}

	ctx := r.Context()
	exists, err := h.store.Queries().KIDExists(ctx, oldKID)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "db/read-failed", "could not look up identifier")
		return
	}
	if !exists {
		RespondError(w, r, http.StatusNotFound, "not-found", "unknown identifier")
		return
	}

	newKID, err := kid.Generate(ctx, len(oldKID), h.store.Queries().KIDExists)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "kid/generation-failed", "could not issue an identifier")
		return
	}

	err = h.store.RunInTx(ctx, func(q *repository.Queries) error {
		return q.ReassignKID(ctx, oldKID, newKID)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "not-found", "unknown identifier")
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "db/write-failed", "could not reassign identifier")
		return
	}

	RespondJSON(w, http.StatusOK, reassignResponse{OldKID: oldKID, NewKID: newKID})
}
