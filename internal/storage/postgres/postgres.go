// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// on top of the shared queue-based GORM recorder.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/internal/database"
	gormstorage "github.com/OCAP2/sentry/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the PostgreSQL backend.
type Dependencies struct {
	// DB is used as-is when set; otherwise Init connects with Config.
	DB     *gorm.DB
	Config config.DBConfig
	Logger *slog.Logger
}

// Backend implements storage.Backend on PostgreSQL.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new PostgreSQL storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     deps.DB,
			Logger: deps.Logger,
		}),
		deps: deps,
	}
}

// Init connects if no DB was injected, validates the connection, then
// migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
		b.Backend.SetDB(db)
	}

	return b.Backend.Init()
}
