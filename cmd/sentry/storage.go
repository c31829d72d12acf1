package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/sentry/internal/config"
	"github.com/OCAP2/sentry/internal/influx"
	"github.com/OCAP2/sentry/internal/storage"
	"github.com/OCAP2/sentry/internal/storage/memory"
	pgstorage "github.com/OCAP2/sentry/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/sentry/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/sentry/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// storageEnv carries what backends need beyond the storage section.
type storageEnv struct {
	Logger       *slog.Logger
	ZLogger      zerolog.Logger
	OutputDir    string
	SessionStart time.Time
}

func createStorageBackend(storageCfg config.StorageConfig, env storageEnv) (storage.Backend, error) {
	stamp := env.SessionStart.Format("20060102_150405")

	switch storageCfg.Type {
	case "postgres":
		env.Logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Config: config.GetDBConfig(),
			Logger: env.Logger,
		}), nil

	case "sqlite":
		dumpPath := filepath.Join(env.OutputDir, fmt.Sprintf("%s_%s.db", ExtensionName, stamp))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, env.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		env.Logger.Info("SQLite storage backend selected", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		wsCfg := config.GetWebSocketConfig()
		wsURL := httpToWS(wsCfg.URL)
		env.Logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: wsCfg.Secret,
		}, env.Logger), nil

	case "influx":
		backupPath := filepath.Join(env.OutputDir, fmt.Sprintf("%s_%s.lp.gz", ExtensionName, stamp))
		env.Logger.Info("InfluxDB storage backend selected", "backupPath", backupPath)
		return influx.NewBackend(influx.NewManager(config.GetInfluxConfig(), env.ZLogger, backupPath)), nil

	case "memory", "":
		env.Logger.Info("Memory storage backend selected")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
