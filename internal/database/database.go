// FilePath: internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/config"
)

// DB is an interface that both the app database (PostGIS) and the
// timeseries database (TimescaleDB) must implement
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
}

// AppDB represents the PostGIS-enabled application database connection
// (boxes, sensors, claims, comments)
type AppDB struct {
	db *sqlx.DB
}

// TimeseriesDB represents the TimescaleDB connection holding measurement
// rows, locations and the pre-aggregated views
type TimeseriesDB struct {
	db *sqlx.DB
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository represents common repository operations
type Repository interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// NewAppDB creates a new application database connection
func NewAppDB(cfg config.PostgresConfig) (DB, error) {
	db, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to app database: %w", err)
	}

	nuts.L.Infof("[AppDB] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &AppDB{db: db}, nil
}

// NewTimeseriesDB creates a new timeseries database connection and
// verifies the TimescaleDB extension is present
func NewTimeseriesDB(cfg config.PostgresConfig) (DB, error) {
	db, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to timeseries database: %w", err)
	}

	var hasTimescaleDB bool
	err = db.Get(&hasTimescaleDB, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')")
	if err != nil || !hasTimescaleDB {
		return nil, fmt.Errorf("TimescaleDB extension not available")
	}

	nuts.L.Infof("[TimeseriesDB] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &TimeseriesDB{db: db}, nil
}

func connect(cfg config.PostgresConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
	return sqlx.Connect("postgres", dsn)
}

// Implementation of DB interface for AppDB
func (p *AppDB) Close() error {
	return p.db.Close()
}

func (p *AppDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *AppDB) GetDB() *sqlx.DB {
	return p.db
}

// Implementation of DB interface for TimeseriesDB
func (t *TimeseriesDB) Close() error {
	return t.db.Close()
}

func (t *TimeseriesDB) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

func (t *TimeseriesDB) GetDB() *sqlx.DB {
	return t.db
}

// Wrap adapts an existing sqlx handle to the DB interface. Used by tests
// to plug in sqlmock-backed connections.
func Wrap(db *sqlx.DB) DB {
	return &AppDB{db: db}
}
