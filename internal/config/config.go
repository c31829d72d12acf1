package config

import (
	"fmt"
	"time"

	"github.com/OCAP2/sentry/internal/turret"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "sentry.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the telemetry recording backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	// Timescale converts telemetry tables into hypertables during setupdb.
	Timescale bool `json:"timescale" mapstructure:"timescale"`
}

// APIConfig holds the range server that receives exported sessions.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	Upload    bool   `json:"upload" mapstructure:"upload"`
	Tag       string `json:"tag" mapstructure:"tag"`
}

// MonitorConfig controls the status file writer.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// WebSocketConfig holds the streaming exporter endpoint.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// InfluxConfig holds InfluxDB v2 connection settings.
type InfluxConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF UDP endpoint.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// LoggingConfig holds log level, directory and remote sinks.
type LoggingConfig struct {
	Level   string        `json:"logLevel" mapstructure:"logLevel"`
	Dir     string        `json:"logsDir" mapstructure:"logsDir"`
	Graylog GraylogConfig `json:"graylog" mapstructure:"graylog"`
}

// SimulationConfig drives the headless scenario runner.
type SimulationConfig struct {
	TickRate float64       `json:"tickRate" mapstructure:"tickRate"`
	Duration time.Duration `json:"duration" mapstructure:"duration"`
	Seed     int64         `json:"seed" mapstructure:"seed"`
	Targets  int           `json:"targets" mapstructure:"targets"`
	Session  string        `json:"session" mapstructure:"session"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./sentrylogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "sentry")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "sentry")
	viper.SetDefault("db.timescale", false)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)
	viper.SetDefault("api.tag", "")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "sentry-metrics")
	viper.SetDefault("influx.bucket", "turret")

	viper.SetDefault("simulation.tickRate", 30.0)
	viper.SetDefault("simulation.duration", "60s")
	viper.SetDefault("simulation.seed", 7)
	viper.SetDefault("simulation.targets", 5)
	viper.SetDefault("simulation.session", "demo")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// IsSet reports whether key was given in the config file or has a default.
func IsSet(key string) bool {
	return viper.IsSet(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetDBConfig returns the PostgreSQL connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:      viper.GetString("db.host"),
		Port:      viper.GetString("db.port"),
		Username:  viper.GetString("db.username"),
		Password:  viper.GetString("db.password"),
		Database:  viper.GetString("db.database"),
		Timescale: viper.GetBool("db.timescale"),
	}
}

// GetAPIConfig returns the range server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
		Tag:       viper.GetString("api.tag"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}

// GetWebSocketConfig returns the streaming exporter settings.
func GetWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		URL:    viper.GetString("websocket.url"),
		Secret: viper.GetString("websocket.secret"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetLoggingConfig returns log level, directory and Graylog settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: viper.GetString("logLevel"),
		Dir:   viper.GetString("logsDir"),
		Graylog: GraylogConfig{
			Enabled: viper.GetBool("graylog.enabled"),
			Address: viper.GetString("graylog.address"),
		},
	}
}

// GetSimulationConfig returns the scenario runner settings.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickRate: viper.GetFloat64("simulation.tickRate"),
		Duration: viper.GetDuration("simulation.duration"),
		Seed:     viper.GetInt64("simulation.seed"),
		Targets:  viper.GetInt("simulation.targets"),
		Session:  viper.GetString("simulation.session"),
	}
}

// GetTurretConfig overlays the "turret" section onto turret.DefaultConfig.
// The result is not validated; turret.New does that.
func GetTurretConfig() (turret.Config, error) {
	cfg := turret.DefaultConfig()
	if !viper.IsSet("turret") {
		return cfg, nil
	}
	if err := viper.UnmarshalKey("turret", &cfg); err != nil {
		return cfg, fmt.Errorf("decoding turret config: %w", err)
	}
	return cfg, nil
}
