package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures migration generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// EventsTable is the name of the events table
	EventsTable string

	// SnapshotsTable is the name of the snapshots table
	SnapshotsTable string

	// TrackingTable is the name of the consumer tracking table
	TrackingTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_pupstore.sql", timestamp),
		EventsTable:    "events",
		SnapshotsTable: "snapshots",
		TrackingTable:  "tracking",
	}
}

// PostgresStatements returns the PostgreSQL schema as individual
// statements.
func PostgresStatements(config *Config) []string {
	return []string{
		// Events table: append-only, one row per stored event.
		// The primary key is the sole concurrency control; the serial
		// notification id defines the total order of the store.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    originator_id UUID NOT NULL,
    originator_version BIGINT NOT NULL,
    topic TEXT NOT NULL,
    state BYTEA NOT NULL,
    notification_id BIGSERIAL,
    PRIMARY KEY (originator_id, originator_version)
)`, config.EventsTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_notification
    ON %s (notification_id ASC)`, config.EventsTable, config.EventsTable),

		// Snapshots are events-shaped but carry no notification id:
		// they never appear in the notification feed.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    originator_id UUID NOT NULL,
    originator_version BIGINT NOT NULL,
    topic TEXT NOT NULL,
    state BYTEA NOT NULL,
    PRIMARY KEY (originator_id, originator_version)
)`, config.SnapshotsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    notification_id BIGINT NOT NULL,
    PRIMARY KEY (application_name, notification_id)
)`, config.TrackingTable),
	}
}

// SQLiteStatements returns the SQLite schema as individual statements.
// The events table relies on SQLite's implicit rowid for notification
// ids.
func SQLiteStatements(config *Config) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    originator_id TEXT NOT NULL,
    originator_version INTEGER NOT NULL,
    topic TEXT NOT NULL,
    state BLOB NOT NULL,
    PRIMARY KEY (originator_id, originator_version)
)`, config.EventsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    originator_id TEXT NOT NULL,
    originator_version INTEGER NOT NULL,
    topic TEXT NOT NULL,
    state BLOB NOT NULL,
    PRIMARY KEY (originator_id, originator_version)
)`, config.SnapshotsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    notification_id INTEGER NOT NULL,
    PRIMARY KEY (application_name, notification_id)
)`, config.TrackingTable),
	}
}

// MySQLStatements returns the MySQL schema as individual statements.
func MySQLStatements(config *Config) []string {
	return []string{
		// InnoDB requires the auto-increment column to lead an index,
		// which the unique key on notification_id satisfies.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    originator_id CHAR(36) NOT NULL,
    originator_version BIGINT NOT NULL,
    topic VARCHAR(255) NOT NULL,
    state BLOB NOT NULL,
    notification_id BIGINT NOT NULL AUTO_INCREMENT,
    PRIMARY KEY (originator_id, originator_version),
    UNIQUE KEY idx_%s_notification (notification_id)
) ENGINE=InnoDB`, config.EventsTable, config.EventsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    originator_id CHAR(36) NOT NULL,
    originator_version BIGINT NOT NULL,
    topic VARCHAR(255) NOT NULL,
    state BLOB NOT NULL,
    PRIMARY KEY (originator_id, originator_version)
) ENGINE=InnoDB`, config.SnapshotsTable),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    application_name VARCHAR(255) NOT NULL,
    notification_id BIGINT NOT NULL,
    PRIMARY KEY (application_name, notification_id)
) ENGINE=InnoDB`, config.TrackingTable),
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return writeMigration(config, PostgresStatements(config))
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return writeMigration(config, SQLiteStatements(config))
}

// GenerateMySQL generates a MySQL migration file.
func GenerateMySQL(config *Config) error {
	return writeMigration(config, MySQLStatements(config))
}

func writeMigration(config *Config, statements []string) error {
	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	header := fmt.Sprintf("-- Event store infrastructure migration\n-- Generated: %s\n\n",
		time.Now().Format(time.RFC3339))
	sql := header + strings.Join(statements, ";\n\n") + ";\n"

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	return nil
}
