package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opensensemap/osem/api/middleware"
	"github.com/opensensemap/osem/api/resources"
	"github.com/opensensemap/osem/internal/osemservice"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.JWTMiddleware
	resources *resources.Resources
}

func NewRouter(svc *osemservice.OsemService, jwtConfig middleware.JWTConfig) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewJWTMiddleware(jwtConfig),
		resources: resources.NewResources(svc),
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes. The handlers are installed by the server after
	// construction, hence the indirection.
	api.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if r.resources.HealthCheck == nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		r.resources.HealthCheck(w, req)
	}).Methods(http.MethodGet)
	api.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if r.resources.Metrics == nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		r.resources.Metrics(w, req)
	}).Methods(http.MethodGet)

	// Public box and measurement reads
	api.HandleFunc("/boxes", r.resources.Boxes.ListBoxes).Methods(http.MethodGet)
	api.HandleFunc("/boxes/data", r.resources.Data.GetData).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}", r.resources.Boxes.GetBox).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/comments", r.resources.Boxes.ListBoxComments).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/sensors", r.resources.Boxes.GetBoxSensors).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/sensors/{sensorId}", r.resources.Data.GetLatestMeasurement).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/sensors/{sensorId}/measurements", r.resources.Data.GetSensorMeasurements).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/locations", r.resources.Data.GetBoxLocations).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/trips", r.resources.Data.GetBoxTrips).Methods(http.MethodGet)
	api.HandleFunc("/boxes/{id}/track", r.resources.Data.GetBoxTrack).Methods(http.MethodGet)

	// Ingest, authenticated by box access token instead of a user session
	api.HandleFunc("/boxes/{id}/measurements", r.resources.Data.PostMeasurement).Methods(http.MethodPost)
	api.HandleFunc("/boxes/{id}/data", r.resources.Data.PostMeasurementBatch).Methods(http.MethodPost)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	protected.HandleFunc("/boxes", r.resources.Boxes.CreateBox).Methods(http.MethodPost)
	protected.HandleFunc("/boxes/claim", r.resources.Transfers.ClaimBox).Methods(http.MethodPost)
	protected.HandleFunc("/boxes/{id}", r.resources.Boxes.UpdateBox).Methods(http.MethodPut)
	protected.HandleFunc("/boxes/{id}", r.resources.Boxes.DeleteBox).Methods(http.MethodDelete)
	protected.HandleFunc("/boxes/{id}/sensors/{sensorId}", r.resources.Boxes.UpdateBoxSensor).Methods(http.MethodPut)
	protected.HandleFunc("/boxes/{id}/sensors/{sensorId}", r.resources.Boxes.DeleteBoxSensor).Methods(http.MethodDelete)
	protected.HandleFunc("/boxes/{id}/comments", r.resources.Boxes.CreateBoxComment).Methods(http.MethodPost)
	protected.HandleFunc("/boxes/{id}/comments/{commentId}", r.resources.Boxes.DeleteBoxComment).Methods(http.MethodDelete)
	protected.HandleFunc("/boxes/{id}/sensors/{sensorId}/measurements", r.resources.Data.DeleteSensorMeasurements).Methods(http.MethodDelete)
	protected.HandleFunc("/boxes/{id}/transfer", r.resources.Transfers.CreateTransfer).Methods(http.MethodPost)
	protected.HandleFunc("/boxes/{id}/transfer", r.resources.Transfers.GetTransfer).Methods(http.MethodGet)
	protected.HandleFunc("/boxes/{id}/transfer", r.resources.Transfers.RevokeTransfer).Methods(http.MethodDelete)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// SetHealthCheck installs the health endpoint handler
func (r *Router) SetHealthCheck(h func(w http.ResponseWriter, req *http.Request)) {
	r.resources.SetHealthCheck(h)
}

// SetMetrics installs the metrics endpoint handler
func (r *Router) SetMetrics(h func(w http.ResponseWriter, req *http.Request)) {
	r.resources.SetMetrics(h)
}
