// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/api"
	"github.com/opensensemap/osem/api/middleware"
	"github.com/opensensemap/osem/internal/cache"
	"github.com/opensensemap/osem/internal/config"
	"github.com/opensensemap/osem/internal/database"
	"github.com/opensensemap/osem/internal/mailer"
	"github.com/opensensemap/osem/internal/monitoring"
	"github.com/opensensemap/osem/internal/osemservice"
	"github.com/opensensemap/osem/internal/repository/postgres"
	"github.com/opensensemap/osem/internal/repository/timescale"
)

// Server represents our HTTP server
type Server struct {
	config      *config.Config
	srv         *http.Server
	osemservice *osemservice.OsemService
	monitoring  *monitoring.Service
	appDB       database.DB
	tsDB        database.DB
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config: cfg,
		srv:    srv,
	}
}

// Start begins listening for requests
func (s *Server) Start() error {
	s.osemservice = s.initializeOsemService()
	s.monitoring = monitoring.NewService(monitoring.Config{
		LogLevel: s.config.Monitoring.LogLevel,
	})

	s.setupCleanupHandlers()

	router := api.NewRouter(s.osemservice, middleware.JWTConfig{
		Secret: s.config.Auth.JWTSecret,
		Issuer: s.config.Auth.Issuer,
		Expiry: s.config.Auth.TokenExpiry,
	})
	router.SetHealthCheck(s.handleHealth())
	router.SetMetrics(s.handleMetrics())

	s.srv.Handler = handlers.CombinedLoggingHandler(os.Stdout, handlers.CORS(
		handlers.AllowedOrigins(s.config.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(router))

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	if s.tsDB != nil {
		s.tsDB.Close()
	}
	if s.appDB != nil {
		s.appDB.Close()
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// handleHealth returns a simple health check handler
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		if err := s.appDB.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else if err := s.tsDB.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(`{"status":"` + status + `","version":"` + nuts.GetVersion() + `"}`))
	}
}

// handleMetrics exposes the event counters collected by the monitoring
// service
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		counters := s.monitoring.Counters()
		fmt.Fprint(w, "{")
		first := true
		for name, count := range counters {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `"%s":%d`, name, count)
		}
		fmt.Fprint(w, "}")
	}
}

func (s *Server) setupCleanupHandlers() {
	s.osemservice.Cleanup.OnCleanup("box.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] Box %s and all associated data deleted", id)
		s.monitoring.RecordEvent("box_deletion", map[string]string{
			"box_id": id,
		})
	})

	s.osemservice.Cleanup.OnCleanup("sensor.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] Sensor %s and all associated data deleted", id)
		s.monitoring.RecordEvent("sensor_deletion", map[string]string{
			"sensor_id": id,
		})
	})

	s.osemservice.Cleanup.OnCleanup("comments.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] All comments for box %s deleted", id)
		s.monitoring.RecordEvent("comments_deletion", map[string]string{
			"box_id": id,
		})
	})
}

// initializeOsemService creates and configures the service layer
func (s *Server) initializeOsemService() *osemservice.OsemService {
	s.tsDB = initTimeseriesDB(s.config.Database.TimeseriesDB)
	s.appDB = initAppDB(s.config.Database.AppDB)

	boxes := postgres.NewBoxRepository(s.appDB)
	sensors := postgres.NewSensorRepository(s.appDB)
	claims := postgres.NewClaimRepository(s.appDB)
	comments := postgres.NewBoxCommentRepository(s.appDB)

	measurements, err := timescale.NewMeasurementRepository(s.tsDB)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize measurement repository: %v", err)
	}

	mail := mailer.New(s.config.SMTP)
	if !mail.Enabled() {
		nuts.L.Infof("[Server] SMTP not configured, transfer notifications disabled")
	}

	latest := initLatestCache(s.config.Redis)

	return osemservice.New(boxes, sensors, measurements, claims, comments, mail, latest, s.config.Transfer.DefaultExpiry)
}

func initTimeseriesDB(cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewTimeseriesDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to timeseries DB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrappedDB.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping timeseries DB: %v", err)
	}
	return wrappedDB
}

func initAppDB(cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewAppDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to app DB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrappedDB.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping app DB: %v", err)
	}
	return wrappedDB
}

// initLatestCache connects to redis for the latest-measurement cache. The
// cache is optional: a missing redis host disables it.
func initLatestCache(cfg config.RedisConfig) *cache.LatestMeasurements {
	if cfg.Host == "" {
		nuts.L.Infof("[Server] Redis not configured, latest-measurement cache disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		nuts.L.Warnf("[Server] Redis unreachable, latest-measurement cache disabled: %v", err)
		return nil
	}
	return cache.NewLatestMeasurements(rdb, cfg.CacheTTL)
}
