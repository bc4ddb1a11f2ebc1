// FilePath: api/resources/api.resource.boxes.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/api/params"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
	"github.com/opensensemap/osem/internal/osemservice"
)

// BoxHandlers encapsulates the box-related HTTP handlers
type BoxHandlers struct {
	osemservice *osemservice.OsemService
}

type createBoxRequest struct {
	models.Box
	Sensors []*models.Sensor `json:"sensors"`
}

// @Summary Register a new box
// @Description Register a new box with its sensors
// @Tags boxes
// @Accept json
// @Produce json
// @Param box body models.Box true "Box details"
// @Success 201 {object} models.BoxWithSensors
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /boxes [post]
// @Security BearerAuth
func (h *BoxHandlers) CreateBox(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req createBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	result, err := h.osemservice.CreateBox(r.Context(), &req.Box, req.Sensors)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

// @Summary Get a box by ID
// @Description Get a box together with its sensors
// @Tags boxes
// @Produce json
// @Param id path string true "Box ID"
// @Success 200 {object} models.BoxWithSensors
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id} [get]
func (h *BoxHandlers) GetBox(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	box, err := h.osemservice.GetBox(r.Context(), id)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, box)
}

// @Summary List boxes
// @Description Get a paginated list of boxes with optional filters
// @Tags boxes
// @Produce json
// @Param exposure query string false "Filter by exposure"
// @Param status query string false "Filter by status"
// @Param phenomenon query string false "Filter by measured phenomenon"
// @Success 200 {array} models.Box
// @Router /boxes [get]
func (h *BoxHandlers) ListBoxes(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	offset, limit := getPaginationParams(r)

	q, err := params.DecodeBoxListQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	filters := models.BoxFilters{
		Exposure:   models.Exposure(q.Exposure),
		Status:     models.BoxStatus(q.Status),
		Phenomenon: q.Phenomenon,
		OwnerID:    q.Owner,
	}
	boxes, err := h.osemservice.ListBoxes(r.Context(), filters, offset, limit)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, boxes)
}

// @Summary Update a box
// @Description Update an existing box's details, owner only
// @Tags boxes
// @Accept json
// @Produce json
// @Param id path string true "Box ID"
// @Param box body models.Box true "Updated box details"
// @Success 200 {object} models.Box
// @Failure 400 {object} errors.APIError
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id} [put]
// @Security BearerAuth
func (h *BoxHandlers) UpdateBox(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	var box models.Box
	if err := json.NewDecoder(r.Body).Decode(&box); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	box.ID = id
	updated, err := h.osemservice.UpdateBox(r.Context(), &box)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// @Summary Delete a box
// @Description Delete a box and all its associated data, owner only
// @Tags boxes
// @Produce json
// @Param id path string true "Box ID"
// @Success 204 "No Content"
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id} [delete]
// @Security BearerAuth
func (h *BoxHandlers) DeleteBox(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	if err := h.osemservice.DeleteBox(r.Context(), id); err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetBoxSensors godoc
// @Summary List sensors of a box
// @Tags boxes
// @Produce json
// @Param id path string true "Box ID"
// @Success 200 {array} models.Sensor
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/sensors [get]
func (h *BoxHandlers) GetBoxSensors(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	sensors, err := h.osemservice.GetBoxSensors(r.Context(), vars["id"])
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, sensors)
}

// UpdateBoxSensor godoc
// @Summary Update a sensor
// @Tags boxes
// @Accept json
// @Produce json
// @Param id path string true "Box ID"
// @Param sensorId path string true "Sensor ID"
// @Param sensor body models.Sensor true "Sensor fields"
// @Success 200 {object} models.Sensor
// @Failure 400 {object} errors.APIError
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/sensors/{sensorId} [put]
// @Security BearerAuth
func (h *BoxHandlers) UpdateBoxSensor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	var sensor models.Sensor
	if err := json.NewDecoder(r.Body).Decode(&sensor); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	sensor.ID = vars["sensorId"]
	updated, err := h.osemservice.UpdateSensor(r.Context(), vars["id"], &sensor)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// DeleteBoxSensor godoc
// @Summary Delete a sensor and its measurements
// @Tags boxes
// @Produce json
// @Param id path string true "Box ID"
// @Param sensorId path string true "Sensor ID"
// @Success 204 "No Content"
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/sensors/{sensorId} [delete]
// @Security BearerAuth
func (h *BoxHandlers) DeleteBoxSensor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	if err := h.osemservice.DeleteSensor(r.Context(), vars["id"], vars["sensorId"]); err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BoxHandlers) ListBoxComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)
	offset, limit := getPaginationParams(r)

	comments, err := h.osemservice.ListComments(r.Context(), id, offset, limit)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, comments)
}

func (h *BoxHandlers) CreateBoxComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	var comment models.BoxComment
	if err := json.NewDecoder(r.Body).Decode(&comment); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	created, err := h.osemservice.CreateComment(r.Context(), id, comment.Text)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *BoxHandlers) DeleteBoxComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	if err := h.osemservice.DeleteComment(r.Context(), vars["id"], vars["commentId"]); err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
