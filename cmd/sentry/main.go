// Command sentry runs the turret controller against a seeded engagement
// scenario and records the session to the configured storage backend.
//
// Usage:
//
//	sentry [run|setupdb] [configDir]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/sentry/internal/api"
	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/internal/database"
	"github.com/OCAP2/sentry/internal/dispatcher"
	"github.com/OCAP2/sentry/internal/logging"
	"github.com/OCAP2/sentry/internal/monitor"
	intOtel "github.com/OCAP2/sentry/internal/otel"
	"github.com/OCAP2/sentry/internal/storage"
	"github.com/OCAP2/sentry/pkg/core"
	"github.com/rs/zerolog"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ExtensionName string = "sentry"
	TurretName    string = "sentry-1"
)

// global variables
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger backs the database and influx managers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFile *os.File
)

func main() {
	command, configDir := parseArgs(os.Args[1:])

	if err := setupLogging(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer shutdownLogging()

	Logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate, "command", command)

	var err error
	switch command {
	case "setupdb":
		err = setupDB()
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = run(ctx)
		stop()
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}
	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		shutdownLogging()
		os.Exit(1)
	}
}

func parseArgs(args []string) (command, configDir string) {
	command, configDir = "run", "."
	if len(args) > 0 {
		command = strings.ToLower(args[0])
	}
	if len(args) > 1 {
		configDir = args[1]
	}
	return command, configDir
}

// setupLogging loads config, opens the session log file and wires slog,
// zerolog, Graylog and OTel.
func setupLogging(configDir string) error {
	// load config
	configErr := config.Load(configDir)

	logCfg := config.GetLoggingConfig()
	if err := os.MkdirAll(logCfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}

	logPath := logging.LogFilePath(logCfg.Dir, ExtensionName, SessionStartTime)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	file, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	LogFile = file

	OTelProvider, err = newOTelProvider(logCfg.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize OTel, continuing without it: %v\n", err)
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}

	var sinks []io.Writer
	if logCfg.Graylog.Enabled {
		gelfWriter, err := logging.NewGraylogWriter(logCfg.Graylog.Address)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Graylog disabled: %v\n", err)
		} else {
			sinks = append(sinks, gelfWriter)
		}
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(LogFile, logCfg.Level, OTelProvider.LoggerProvider(), sinks...)
	Logger = SlogManager.Logger()
	ZLogger = logging.NewZerolog(LogFile, logCfg.Level)

	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}
	return nil
}

func newOTelProvider(logsDir string) (*intOtel.Provider, error) {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return intOtel.New(intOtel.Config{})
	}

	stamp := SessionStartTime.Format("20060102_150405")
	logsFile, err := os.Create(filepath.Join(logsDir, fmt.Sprintf("%s.otel.%s.jsonl", ExtensionName, stamp)))
	if err != nil {
		return nil, err
	}
	metricsFile, err := os.Create(filepath.Join(logsDir, fmt.Sprintf("%s.metrics.%s.jsonl", ExtensionName, stamp)))
	if err != nil {
		return nil, err
	}

	return intOtel.New(intOtel.Config{
		Enabled:      true,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logsFile,
		MetricWriter: metricsFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "OTel shutdown failed: %v\n", err)
		}
		OTelProvider = nil
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}

// setupDB connects to Postgres (falling back to SQLite) and migrates the schema.
func setupDB() error {
	dbCfg := config.GetDBConfig()
	manager := database.NewManager(ZLogger)
	if err := manager.Connect(dbCfg); err != nil {
		return err
	}
	if err := manager.Setup(); err != nil {
		return err
	}
	if !manager.ShouldSaveLocal && dbCfg.Timescale {
		if err := database.ValidateHypertables(manager.DB, ZLogger, database.TelemetryHypertables); err != nil {
			return fmt.Errorf("failed to validate hypertables: %w", err)
		}
	}
	if manager.ShouldSaveLocal {
		outputDir := config.GetStorageConfig().Memory.OutputDir
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
		if existing, err := database.GetBackupDBPaths(outputDir); err == nil && len(existing) > 0 {
			Logger.Info("Found local SQLite sessions", "count", len(existing), "dir", outputDir)
		}
		manager.SqliteFilePath = filepath.Join(outputDir,
			fmt.Sprintf("%s_schema_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))
		if err := manager.DumpMemoryToDisk(); err != nil {
			return err
		}
		Logger.Info("Postgres unavailable, schema written to SQLite", "path", manager.SqliteFilePath)
	}
	Logger.Info("DB setup complete.")
	return nil
}

func run(ctx context.Context) error {
	simCfg := config.GetSimulationConfig()
	storageCfg := config.GetStorageConfig()

	turretCfg := scenarioTurretConfig()
	if config.IsSet("turret") {
		var err error
		if turretCfg, err = config.GetTurretConfig(); err != nil {
			return err
		}
	}

	outputDir := storageCfg.Memory.OutputDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	backend, err := createStorageBackend(storageCfg, storageEnv{
		Logger:       Logger,
		ZLogger:      ZLogger,
		OutputDir:    outputDir,
		SessionStart: SessionStartTime,
	})
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	session := &core.Session{
		Name:      simCfg.Session,
		Turret:    TurretName,
		StartTime: SessionStartTime,
		TickRate:  simCfg.TickRate,
	}
	if err := backend.StartSession(session); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	events, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return err
	}

	var r *runner
	SlogManager.WithContext(func() []slog.Attr {
		attrs := []slog.Attr{slog.String(logging.KeySession, session.Name)}
		if r != nil {
			attrs = append(attrs, r.contextAttrs()...)
		}
		return attrs
	})
	Logger = SlogManager.Logger()

	r, err = newRunner(runnerDeps{
		Logger:     Logger,
		Turret:     turretCfg,
		Scenario:   NewScenario(simCfg.Seed, simCfg.Targets),
		Dispatcher: events,
		Backend:    backend,
		TickRate:   simCfg.TickRate,
	})
	if err != nil {
		events.Close()
		return err
	}

	monCfg := config.GetMonitorConfig()
	var statusMonitor *monitor.Service
	if monCfg.Enabled {
		statusMonitor = monitor.NewService(monitor.Dependencies{
			Logger:     Logger,
			StatusPath: filepath.Join(config.GetLoggingConfig().Dir, "status.json"),
			Interval:   monCfg.Interval,
			Status: func() monitor.Status {
				s := r.status()
				s.Session = session.Name
				s.Storage = storageCfg.Type
				return s
			},
		})
		if err := statusMonitor.Start(); err != nil {
			Logger.Warn("Status monitor not started", "error", err)
		}
	}

	ticks := int(simCfg.Duration.Seconds() * simCfg.TickRate)
	Logger.Info("Running scenario", "ticks", ticks, "tickRate", simCfg.TickRate, "seed", simCfg.Seed, "storage", storageCfg.Type)
	runErr := r.Run(ctx, ticks)

	if err := r.Close(); err != nil {
		Logger.Warn("Failed to release controller", "error", err)
	}
	if statusMonitor != nil {
		statusMonitor.Stop()
	}
	r.summary()

	if err := backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if exp, ok := backend.(storage.Exportable); ok {
		Logger.Info("Session exported", "path", exp.GetExportedFilePath())
		uploadSession(exp.GetExportedFilePath(), api.UploadMetadata{
			SessionName: session.Name,
			Turret:      session.Turret,
			Duration:    r.scenario.Time(),
		})
	}
	if err := SlogManager.Flush(context.Background()); err != nil {
		Logger.Warn("Failed to flush OTel logs", "error", err)
	}
	return runErr
}

// uploadSession sends an exported session to the range server when enabled.
// Failures are logged; the local export remains.
func uploadSession(path string, meta api.UploadMetadata) {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Upload || path == "" {
		return
	}
	meta.Tag = apiCfg.Tag

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		Logger.Warn("Range server unreachable, skipping upload", "url", apiCfg.ServerURL, "error", err)
		return
	}
	if err := client.Upload(path, meta); err != nil {
		Logger.Error("Failed to upload session", "path", path, "error", err)
		return
	}
	Logger.Info("Session uploaded", "path", path, "url", apiCfg.ServerURL)
}
