// FilePath: api/resources/api.resource.transfers.go
package resources

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/osemservice"
)

// TransferHandlers encapsulates the device transfer HTTP handlers
type TransferHandlers struct {
	osemservice *osemservice.OsemService
}

type createTransferRequest struct {
	ExpiresAt   *time.Time `json:"expiresAt"`
	NotifyEmail string     `json:"notifyEmail"`
}

type claimRequest struct {
	Token       string `json:"token"`
	NotifyEmail string `json:"notifyEmail"`
}

// @Summary Open a transfer
// @Description Create a transfer claim for a box, owner only. Only one active claim per box.
// @Tags transfers
// @Accept json
// @Produce json
// @Param id path string true "Box ID"
// @Param transfer body createTransferRequest false "Expiry override and notification address"
// @Success 201 {object} models.Claim
// @Failure 403 {object} errors.APIError
// @Failure 409 {object} errors.APIError
// @Router /boxes/{id}/transfer [post]
// @Security BearerAuth
func (h *TransferHandlers) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	var req createTransferRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
			return
		}
	}

	claim, err := h.osemservice.CreateTransfer(r.Context(), vars["id"], req.ExpiresAt, req.NotifyEmail)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, claim)
}

// @Summary Get the active transfer
// @Description Get the pending transfer claim of a box, owner only
// @Tags transfers
// @Produce json
// @Param id path string true "Box ID"
// @Success 200 {object} models.Claim
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/transfer [get]
// @Security BearerAuth
func (h *TransferHandlers) GetTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	claim, err := h.osemservice.GetTransfer(r.Context(), vars["id"])
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, claim)
}

// @Summary Revoke a transfer
// @Description Cancel a pending transfer claim, owner only
// @Tags transfers
// @Accept json
// @Produce json
// @Param id path string true "Box ID"
// @Param claim body claimRequest true "Claim token"
// @Success 204 "No Content"
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/transfer [delete]
// @Security BearerAuth
func (h *TransferHandlers) RevokeTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if err := h.osemservice.RevokeTransfer(r.Context(), vars["id"], req.Token); err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Claim a box
// @Description Complete a transfer: the caller presents the claim token and becomes the new owner
// @Tags transfers
// @Accept json
// @Produce json
// @Param claim body claimRequest true "Claim token"
// @Success 200 {object} models.Box
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/claim [post]
// @Security BearerAuth
func (h *TransferHandlers) ClaimBox(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.Token == "" {
		respondWithError(w, errors.NewValidationError("token is required", nil).WithField("token").WithRequestID(requestID))
		return
	}

	box, err := h.osemservice.ClaimBox(r.Context(), req.Token, req.NotifyEmail)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, box)
}
