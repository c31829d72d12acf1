package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath is the shared in-memory SQLite database.
const MemoryPath = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA page_size = 32768;",
}

// Manager owns the recorder database: Postgres when reachable, otherwise a
// shared in-memory SQLite that is dumped to SqliteFilePath.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager returns a manager logging under the "database" component.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log.With().Str("component", "database").Logger(),
	}
}

// Connect opens Postgres and falls back to in-memory SQLite when the server
// cannot be reached. It only fails when neither is usable.
func (m *Manager) Connect(cfg config.DBConfig) error {
	m.IsValid = false

	pgErr := m.connectPostgres(cfg)
	if pgErr == nil {
		m.ShouldSaveLocal = false
		m.IsValid = true
		m.Logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to Postgres")
		return nil
	}

	m.Logger.Warn().Err(pgErr).Str("host", cfg.Host).Msg("Postgres unavailable, falling back to in-memory SQLite")
	db, err := OpenSqlite("")
	if err != nil {
		return fmt.Errorf("open fallback SQLite: %w", err)
	}
	if err := m.use(db); err != nil {
		return err
	}
	m.ShouldSaveLocal = true
	m.IsValid = true
	return nil
}

func (m *Manager) connectPostgres(cfg config.DBConfig) error {
	db, err := OpenPostgres(cfg)
	if err != nil {
		return err
	}
	if err := m.use(db); err != nil {
		return err
	}
	if err := m.SqlDB.Ping(); err != nil {
		return err
	}
	m.SqlDB.SetMaxOpenConns(10)
	return nil
}

func (m *Manager) use(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql interface: %w", err)
	}
	m.DB, m.SqlDB = db, sqlDB
	return nil
}

// Setup migrates the schema on the managed connection.
func (m *Manager) Setup() error {
	if err := Setup(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Info().Str("dialect", m.DB.Dialector.Name()).Msg("Schema migrated")
	return nil
}

// DumpMemoryToDisk vacuums the in-memory database to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Str("path", m.SqliteFilePath).Dur("duration", time.Since(start)).Msg("Dumped memory DB")
	return nil
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenPostgres connects using the simple query protocol.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), gormConfig(10000, false))
}

// OpenSqlite opens path, or the shared in-memory database when path is
// empty, and applies the recorder pragmas.
func OpenSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = MemoryPath
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig(2000, true))
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Setup migrates tables and creates the installation row if it doesn't exist.
func Setup(db *gorm.DB) error {
	if !db.Migrator().HasTable(&model.SentryInfo{}) {
		if err := db.AutoMigrate(&model.SentryInfo{}); err != nil {
			return fmt.Errorf("failed to create sentry_infos table: %w", err)
		}
		if err := db.Create(&model.SentryInfo{
			Installation: "sentry",
			Description:  "Turret telemetry recorder",
		}).Error; err != nil {
			return fmt.Errorf("failed to create sentry_infos entry: %w", err)
		}
	}

	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DumpMemoryDBToDisk vacuums the in-memory database to a disk file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	if err := os.MkdirAll(filepath.Dir(sqliteFilePath), 0755); err != nil {
		return fmt.Errorf("error creating dump directory: %w", err)
	}

	// remove existing file if it exists
	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	if err := db.Exec("VACUUM INTO ?", sqliteFilePath).Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	return nil
}

// GetBackupDBPaths returns paths to all .db files in the given directory.
func GetBackupDBPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dbPaths []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".db") {
			dbPaths = append(dbPaths, filepath.Join(dir, file.Name()))
		}
	}
	return dbPaths, nil
}
