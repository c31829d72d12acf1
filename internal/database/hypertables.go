package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// TelemetryHypertables maps each time-series table to its compression
// segment-by columns.
var TelemetryHypertables = map[string][]string{
	"telemetry_frames": {"session_id"},
	"fire_events":      {"session_id", "source"},
}

// ValidateHypertables converts tables into TimescaleDB hypertables with
// compression, skipping any already configured. Postgres only.
func ValidateHypertables(db *gorm.DB, log zerolog.Logger, tables map[string][]string) error {
	if db.Dialector.Name() != "postgres" {
		return fmt.Errorf("hypertables need postgres, have %s", db.Dialector.Name())
	}

	names := make([]string, 0, len(tables))
	for table := range tables {
		names = append(names, table)
	}
	sort.Strings(names)

	for _, table := range names {
		var count int64
		err := db.Raw(`SELECT count(*) FROM timescaledb_information.hypertables WHERE hypertable_name = ?`, table).
			Scan(&count).Error
		if err != nil {
			return fmt.Errorf("query hypertables: %w", err)
		}
		if count > 0 {
			log.Info().Str("table", table).Msg("Hypertable already configured")
			continue
		}

		err = db.Exec(fmt.Sprintf(
			`SELECT create_hypertable('%s', 'time', migrate_data => true, chunk_time_interval => interval '1 day', if_not_exists => true);`,
			table,
		)).Error
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("Failed to create hypertable")
			return err
		}
		log.Info().Str("table", table).Msg("Created hypertable")

		err = db.Exec(fmt.Sprintf(
			`ALTER TABLE %s SET (timescaledb.compress, timescaledb.compress_segmentby = '%s');`,
			table, strings.Join(tables[table], ","),
		)).Error
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("Failed to enable compression")
			return err
		}

		err = db.Exec(fmt.Sprintf(`SELECT add_compression_policy('%s', compress_after => interval '14 day');`, table)).Error
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("Failed to set compress_after")
			return err
		}
		log.Info().Str("table", table).Msg("Enabled hypertable compression")
	}
	return nil
}
