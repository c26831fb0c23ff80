package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OutputFolder != "migrations" {
		t.Errorf("Expected output folder migrations, got %q", config.OutputFolder)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_pupstore.sql") {
		t.Errorf("Expected timestamped filename, got %q", config.OutputFilename)
	}
	if config.EventsTable != "events" || config.SnapshotsTable != "snapshots" || config.TrackingTable != "tracking" {
		t.Errorf("Unexpected default table names: %+v", config)
	}
}

func TestPostgresStatements(t *testing.T) {
	config := DefaultConfig()
	statements := PostgresStatements(&config)

	if len(statements) != 4 {
		t.Fatalf("Expected 4 statements, got %d", len(statements))
	}
	all := strings.Join(statements, ";")
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS events",
		"CREATE TABLE IF NOT EXISTS snapshots",
		"CREATE TABLE IF NOT EXISTS tracking",
		"notification_id BIGSERIAL",
		"PRIMARY KEY (originator_id, originator_version)",
		"PRIMARY KEY (application_name, notification_id)",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("Expected statements to contain %q", want)
		}
	}

	// Snapshots never enter the notification feed.
	if strings.Contains(statements[2], "notification_id") {
		t.Error("Expected snapshots table without notification id")
	}
}

func TestSQLiteStatements(t *testing.T) {
	config := DefaultConfig()
	statements := SQLiteStatements(&config)

	if len(statements) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(statements))
	}

	// SQLite notification ids come from the implicit rowid.
	if strings.Contains(statements[0], "notification_id INTEGER") {
		t.Error("Expected events table without explicit notification id column")
	}
}

func TestMySQLStatements(t *testing.T) {
	config := DefaultConfig()
	statements := MySQLStatements(&config)

	if len(statements) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(statements))
	}
	if !strings.Contains(statements[0], "AUTO_INCREMENT") {
		t.Error("Expected auto-increment notification id")
	}
	if !strings.Contains(statements[0], "ENGINE=InnoDB") {
		t.Error("Expected InnoDB engine")
	}
}

func TestCustomTableNames(t *testing.T) {
	config := DefaultConfig()
	config.EventsTable = "app_events"
	config.SnapshotsTable = "app_snapshots"
	config.TrackingTable = "app_tracking"

	all := strings.Join(PostgresStatements(&config), ";")
	for _, want := range []string{"app_events", "app_snapshots", "app_tracking"} {
		if !strings.Contains(all, want) {
			t.Errorf("Expected statements to contain %q", want)
		}
	}
}

func TestGenerateWritesFile(t *testing.T) {
	config := DefaultConfig()
	config.OutputFolder = t.TempDir()
	config.OutputFilename = "init.sql"

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(config.OutputFolder, "init.sql"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	sql := string(data)
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS events") {
		t.Error("Expected generated file to contain events table")
	}
	if !strings.HasSuffix(sql, ";\n") {
		t.Error("Expected final statement terminated")
	}
}

func TestGenerateCreatesOutputFolder(t *testing.T) {
	config := DefaultConfig()
	config.OutputFolder = filepath.Join(t.TempDir(), "nested", "migrations")
	config.OutputFilename = "init.sql"

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(config.OutputFolder, "init.sql")); err != nil {
		t.Errorf("Expected migration file, got %v", err)
	}
}
