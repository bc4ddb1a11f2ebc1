// FilePath: api/resources/api.resource.locations.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/api/params"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/trips"
)

// @Summary Get box locations
// @Description Location history of a mobile box, ascending by time
// @Tags locations
// @Produce json
// @Param id path string true "Box ID"
// @Param from-date query string false "Range start (RFC3339)"
// @Param to-date query string false "Range end (RFC3339)"
// @Success 200 {array} models.Location
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/locations [get]
func (h *DataHandlers) GetBoxLocations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	q, err := params.DecodeMeasurementsQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "geojson":
	default:
		respondWithError(w, errors.NewValidationError("unsupported format", nil).WithField("format").WithRequestID(requestID))
		return
	}

	if format == "geojson" {
		track, err := h.osemservice.GetBoxTrack(r.Context(), vars["id"], q.FromDate, q.ToDate)
		if err != nil {
			respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
			return
		}
		respondWithJSON(w, http.StatusOK, track)
		return
	}

	locations, err := h.osemservice.GetBoxLocations(r.Context(), vars["id"], q.FromDate, q.ToDate)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, locations)
}

// @Summary Get box trips
// @Description Location history of a mobile box partitioned into trips. Mode "latest" returns the most recent trip cut at 10 minute gaps; "recent" returns the last five trips cut at 1 minute gaps.
// @Tags locations
// @Produce json
// @Param id path string true "Box ID"
// @Param mode query string false "latest or recent"
// @Success 200 {array} trips.Trip
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/trips [get]
func (h *DataHandlers) GetBoxTrips(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	q, err := params.DecodeMeasurementsQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	policy := trips.LatestTrip
	switch r.URL.Query().Get("mode") {
	case "", "latest":
	case "recent":
		policy = trips.RecentTrips
	default:
		respondWithError(w, errors.NewValidationError("mode must be latest or recent", nil).WithField("mode").WithRequestID(requestID))
		return
	}

	result, err := h.osemservice.GetBoxTrips(r.Context(), vars["id"], policy, q.FromDate, q.ToDate)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// @Summary Get box track
// @Description Location history of a box as a GeoJSON LineString feature
// @Tags locations
// @Produce json
// @Param id path string true "Box ID"
// @Success 200 {object} geojson.Feature
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/track [get]
func (h *DataHandlers) GetBoxTrack(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	q, err := params.DecodeMeasurementsQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	track, err := h.osemservice.GetBoxTrack(r.Context(), vars["id"], q.FromDate, q.ToDate)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, track)
}
