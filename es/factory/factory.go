// Package factory constructs recorders and applications from
// configuration. Configuration can come from code, from environment
// variables or from a YAML file; the factory owns the database handle
// it opens and every component built from one factory shares it.
package factory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"

	// Database drivers for the supported adapters.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/adapters/memory"
	"github.com/getpup/pupstore/es/adapters/mysql"
	"github.com/getpup/pupstore/es/adapters/postgres"
	"github.com/getpup/pupstore/es/adapters/sqlite"
	"github.com/getpup/pupstore/es/application"
	"github.com/getpup/pupstore/es/migrations"
	"github.com/getpup/pupstore/es/recorder"
)

// Supported adapter names.
const (
	AdapterMemory   = "memory"
	AdapterSQLite   = "sqlite"
	AdapterPostgres = "postgres"
	AdapterMySQL    = "mysql"
)

// Config is the configuration surface of the factory.
type Config struct {
	// Adapter selects the storage backend: memory, sqlite, postgres
	// or mysql
	Adapter string `yaml:"adapter"`

	// DSN is the connection string for SQL adapters
	DSN string `yaml:"dsn"`

	// CreateTables executes the schema migration on construction
	CreateTables bool `yaml:"create_tables"`

	// SnapshotsEnabled configures applications with a snapshot store
	SnapshotsEnabled bool `yaml:"snapshots_enabled"`

	// SectionSize is the notification log page size
	SectionSize int64 `yaml:"section_size"`

	// EventsTable is the name of the events table
	EventsTable string `yaml:"events_table"`

	// SnapshotsTable is the name of the snapshots table
	SnapshotsTable string `yaml:"snapshots_table"`

	// TrackingTable is the name of the consumer tracking table
	TrackingTable string `yaml:"tracking_table"`
}

// DefaultConfig returns the default configuration: an in-memory store
// with snapshotting enabled and the default section size.
func DefaultConfig() Config {
	return Config{
		Adapter:          AdapterMemory,
		SnapshotsEnabled: true,
		SectionSize:      application.DefaultSectionSize,
		EventsTable:      "events",
		SnapshotsTable:   "snapshots",
		TrackingTable:    "tracking",
	}
}

// LoadFile reads a YAML configuration file over the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// FromEnv reads configuration from PUPSTORE_* environment variables
// over the defaults: PUPSTORE_ADAPTER, PUPSTORE_DSN,
// PUPSTORE_CREATE_TABLES, PUPSTORE_SNAPSHOTS_ENABLED and
// PUPSTORE_SECTION_SIZE.
func FromEnv() Config {
	config := DefaultConfig()
	if v := os.Getenv("PUPSTORE_ADAPTER"); v != "" {
		config.Adapter = v
	}
	if v := os.Getenv("PUPSTORE_DSN"); v != "" {
		config.DSN = v
	}
	if v := os.Getenv("PUPSTORE_CREATE_TABLES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CreateTables = b
		}
	}
	if v := os.Getenv("PUPSTORE_SNAPSHOTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SnapshotsEnabled = b
		}
	}
	if v := os.Getenv("PUPSTORE_SECTION_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.SectionSize = n
		}
	}
	return config
}

// Option is a functional option for configuring a Factory.
type Option func(*Factory)

// WithLogger sets a logger for the factory and the components it
// builds.
func WithLogger(logger es.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// Factory builds recorders and applications for one storage backend.
type Factory struct {
	config Config
	db     *sql.DB
	logger es.Logger

	// memory adapter instances, shared so that every component built
	// from this factory sees the same store
	memoryEvents    *memory.Recorder
	memorySnapshots *memory.Recorder
}

// New creates a factory for the given configuration. For SQL adapters
// it opens the database handle and, when CreateTables is set, executes
// the schema migration. Close releases the handle.
func New(ctx context.Context, config Config, opts ...Option) (*Factory, error) {
	f := &Factory{config: config}
	for _, opt := range opts {
		opt(f)
	}

	switch config.Adapter {
	case AdapterMemory:
		f.memoryEvents = memory.NewRecorder()
		f.memorySnapshots = memory.NewRecorder()
		return f, nil
	case AdapterSQLite, AdapterPostgres, AdapterMySQL:
	default:
		return nil, fmt.Errorf("unsupported adapter %q", config.Adapter)
	}

	db, err := sql.Open(driverName(config.Adapter), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	f.db = db

	if config.CreateTables {
		if err := f.createTables(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return f, nil
}

func driverName(adapter string) string {
	if adapter == AdapterSQLite {
		return "sqlite" // modernc.org/sqlite registers under this name
	}
	return adapter
}

func (f *Factory) createTables(ctx context.Context) error {
	mc := migrations.Config{
		EventsTable:    f.config.EventsTable,
		SnapshotsTable: f.config.SnapshotsTable,
		TrackingTable:  f.config.TrackingTable,
	}

	var statements []string
	switch f.config.Adapter {
	case AdapterSQLite:
		statements = migrations.SQLiteStatements(&mc)
	case AdapterPostgres:
		statements = migrations.PostgresStatements(&mc)
	case AdapterMySQL:
		statements = migrations.MySQLStatements(&mc)
	}

	for _, statement := range statements {
		if _, err := f.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if f.logger != nil {
		f.logger.Info(ctx, "schema created", "adapter", f.config.Adapter)
	}
	return nil
}

// DB returns the database handle, nil for the memory adapter.
func (f *Factory) DB() *sql.DB {
	return f.db
}

// Close releases the database handle.
func (f *Factory) Close() error {
	if f.db == nil {
		return nil
	}
	return f.db.Close()
}

// ProcessRecorder returns a recorder with the full tracking contract.
func (f *Factory) ProcessRecorder() recorder.ProcessRecorder {
	switch f.config.Adapter {
	case AdapterSQLite:
		return sqlite.NewRecorder(f.db, sqlite.NewRecorderConfig(
			sqlite.WithEventsTable(f.config.EventsTable),
			sqlite.WithTrackingTable(f.config.TrackingTable),
			sqlite.WithLogger(f.logger),
		))
	case AdapterPostgres:
		return postgres.NewRecorder(f.db, postgres.NewRecorderConfig(
			postgres.WithEventsTable(f.config.EventsTable),
			postgres.WithTrackingTable(f.config.TrackingTable),
		))
	case AdapterMySQL:
		return mysql.NewRecorder(f.db, mysql.NewRecorderConfig(
			mysql.WithEventsTable(f.config.EventsTable),
			mysql.WithTrackingTable(f.config.TrackingTable),
			mysql.WithLogger(f.logger),
		))
	default:
		return f.memoryEvents
	}
}

// ApplicationRecorder returns a recorder for events and notifications.
func (f *Factory) ApplicationRecorder() recorder.ApplicationRecorder {
	return f.ProcessRecorder()
}

// SnapshotRecorder returns a recorder writing to the snapshots table,
// or nil when snapshotting is disabled.
func (f *Factory) SnapshotRecorder() recorder.AggregateRecorder {
	if !f.config.SnapshotsEnabled {
		return nil
	}

	switch f.config.Adapter {
	case AdapterSQLite:
		return sqlite.NewRecorder(f.db, sqlite.NewRecorderConfig(
			sqlite.WithEventsTable(f.config.SnapshotsTable),
			sqlite.WithLogger(f.logger),
		))
	case AdapterPostgres:
		return postgres.NewRecorder(f.db, postgres.NewRecorderConfig(
			postgres.WithEventsTable(f.config.SnapshotsTable),
		))
	case AdapterMySQL:
		return mysql.NewRecorder(f.db, mysql.NewRecorderConfig(
			mysql.WithEventsTable(f.config.SnapshotsTable),
			mysql.WithLogger(f.logger),
		))
	default:
		return f.memorySnapshots
	}
}

// NewApplication builds an application over this factory's store.
func (f *Factory) NewApplication(name string, mapper *es.Mapper) *application.Application {
	opts := []application.Option{
		application.WithSectionSize(f.config.SectionSize),
	}
	if f.logger != nil {
		opts = append(opts, application.WithLogger(f.logger))
	}
	if snapshots := f.SnapshotRecorder(); snapshots != nil {
		opts = append(opts, application.WithSnapshots(snapshots))
	}
	return application.New(name, f.ApplicationRecorder(), mapper, opts...)
}
