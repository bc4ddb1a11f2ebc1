// FilePath: api/resources/api.resource.data.go
package resources

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/api/params"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/export"
	"github.com/opensensemap/osem/internal/models"
	"github.com/opensensemap/osem/internal/osemservice"
)

// streamBatchSize bounds how many rows one storage roundtrip returns
// during an export.
const streamBatchSize = 2500

// DataHandlers encapsulates measurement ingest, query and export handlers
type DataHandlers struct {
	osemservice *osemservice.OsemService
}

type postMeasurementRequest struct {
	Sensor   string           `json:"sensor"`
	Value    float64          `json:"value"`
	Time     *time.Time       `json:"createdAt"`
	Location *models.Location `json:"location"`
}

// @Summary Ingest a measurement
// @Description Store a single measurement, authenticated by the box access token
// @Tags measurements
// @Accept json
// @Produce json
// @Param id path string true "Box ID"
// @Param measurement body postMeasurementRequest true "Measurement"
// @Success 201 "Created"
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /boxes/{id}/measurements [post]
func (h *DataHandlers) PostMeasurement(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	boxID := vars["id"]
	requestID := nuts.NID("req", 12)

	var req postMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	m := &models.Measurement{
		SensorID: req.Sensor,
		Value:    req.Value,
	}
	if req.Time != nil {
		m.Time = req.Time.UTC()
	}

	err := h.osemservice.RecordMeasurement(r.Context(), boxID, accessToken(r), m, req.Location)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Measurement saved in box"})
}

// @Summary Ingest multiple measurements
// @Description Store a batch of measurements, authenticated by the box access token
// @Tags measurements
// @Accept json
// @Produce json
// @Param id path string true "Box ID"
// @Success 201 "Created"
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /boxes/{id}/data [post]
func (h *DataHandlers) PostMeasurementBatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	boxID := vars["id"]
	requestID := nuts.NID("req", 12)

	var reqs []postMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	ms := make([]models.Measurement, 0, len(reqs))
	for _, req := range reqs {
		m := models.Measurement{SensorID: req.Sensor, Value: req.Value}
		if req.Time != nil {
			m.Time = req.Time.UTC()
		}
		ms = append(ms, m)
	}

	if err := h.osemservice.RecordMeasurementBatch(r.Context(), boxID, accessToken(r), ms); err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Measurements saved in box"})
}

// @Summary Get sensor measurements
// @Description Read the time series of one sensor at a chosen aggregation tier
// @Tags measurements
// @Produce json
// @Param id path string true "Box ID"
// @Param sensorId path string true "Sensor ID"
// @Param from-date query string false "Range start (RFC3339)"
// @Param to-date query string false "Range end (RFC3339)"
// @Param aggregation query string false "raw, 10m, 1h, 1d, 1m or 1y"
// @Success 200 {array} models.Measurement
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/sensors/{sensorId}/measurements [get]
func (h *DataHandlers) GetSensorMeasurements(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	q, err := params.DecodeMeasurementsQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	ms, err := h.osemservice.GetSensorMeasurements(r.Context(), vars["id"], vars["sensorId"], models.Aggregation(q.Aggregation), q.FromDate, q.ToDate)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, ms)
}

// @Summary Get the latest measurement of a sensor
// @Tags measurements
// @Produce json
// @Param id path string true "Box ID"
// @Param sensorId path string true "Sensor ID"
// @Success 200 {object} models.Measurement
// @Failure 404 {object} errors.APIError
// @Router /boxes/{id}/sensors/{sensorId} [get]
func (h *DataHandlers) GetLatestMeasurement(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	m, err := h.osemservice.GetLatestMeasurement(r.Context(), vars["sensorId"])
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

// @Summary Delete sensor measurements
// @Description Delete measurements of one sensor, optionally bounded by a time range
// @Tags measurements
// @Produce json
// @Param id path string true "Box ID"
// @Param sensorId path string true "Sensor ID"
// @Success 204 "No Content"
// @Failure 403 {object} errors.APIError
// @Router /boxes/{id}/sensors/{sensorId}/measurements [delete]
// @Security BearerAuth
func (h *DataHandlers) DeleteSensorMeasurements(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	q, err := params.DecodeMeasurementsQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	err = h.osemservice.DeleteSensorMeasurements(r.Context(), vars["id"], vars["sensorId"], q.FromDate, q.ToDate)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Export measurements of multiple boxes
// @Description Stream measurements of many boxes as CSV or JSON. Memory stays bounded; rows are flushed batch by batch.
// @Tags measurements
// @Produce text/csv,application/json
// @Param boxId query string true "Comma-separated box IDs"
// @Param phenomenon query string false "Restrict to sensors measuring this phenomenon"
// @Param from-date query string false "Range start (RFC3339)"
// @Param to-date query string false "Range end (RFC3339)"
// @Param format query string false "csv or json"
// @Param columns query string false "Comma-separated output columns"
// @Param bbox query string false "minX,minY,maxX,maxY filter"
// @Param download query bool false "Send as attachment"
// @Success 200 "Measurement stream"
// @Failure 400 {object} errors.APIError
// @Router /boxes/data [get]
func (h *DataHandlers) GetData(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	q, err := params.DecodeDataQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	// Default to the last 48 hours like the hosted API does.
	to := time.Now().UTC()
	from := to.Add(-48 * time.Hour)
	if q.ToDate != nil {
		to = q.ToDate.UTC()
	}
	if q.FromDate != nil {
		from = q.FromDate.UTC()
	}

	stream, sensors, err := h.osemservice.ExportSensors(r.Context(), q.BoxIDs(), q.Phenomenon, from, to, q.BBox, streamBatchSize)
	if err != nil {
		respondWithError(w, errors.AsAPIError(err).WithRequestID(requestID))
		return
	}

	format := export.Format(q.Format)
	if format == export.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/csv")
	}
	if q.Download {
		w.Header().Set("Content-Disposition", export.ContentDisposition(q.Phenomenon, format, time.Now()))
	}

	opts := export.Options{
		Format:    format,
		Delimiter: export.ParseDelimiter(q.Delimiter),
		Columns:   q.ColumnList(),
		Sensors:   sensors,
	}
	if err := export.Stream(r.Context(), w, stream, opts); err != nil {
		// Headers are long gone, the client sees a truncated body.
		nuts.L.Errorf("[API] export stream aborted: %v", err)
	}
}

// accessToken extracts the box access token used by the ingest endpoints.
func accessToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = token[len("bearer "):]
	}
	return token
}
