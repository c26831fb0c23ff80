// Package postgres provides a PostgreSQL-backed recorder.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/recorder"
)

// RecorderConfig contains configuration for the Postgres recorder.
// Configuration is immutable after construction.
type RecorderConfig struct {
	// EventsTable is the name of the events table
	EventsTable string

	// TrackingTable is the name of the consumer tracking table
	TrackingTable string
}

// DefaultRecorderConfig returns the default configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		EventsTable:   "events",
		TrackingTable: "tracking",
	}
}

// RecorderOption is a functional option for configuring a Recorder.
type RecorderOption func(*RecorderConfig)

// WithEventsTable sets a custom events table name. Pass the snapshots
// table here to build a snapshot recorder.
func WithEventsTable(tableName string) RecorderOption {
	return func(c *RecorderConfig) {
		c.EventsTable = tableName
	}
}

// WithTrackingTable sets a custom tracking table name.
func WithTrackingTable(tableName string) RecorderOption {
	return func(c *RecorderConfig) {
		c.TrackingTable = tableName
	}
}

// NewRecorderConfig creates a recorder configuration with functional
// options applied over the defaults.
func NewRecorderConfig(opts ...RecorderOption) RecorderConfig {
	config := DefaultRecorderConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Recorder is a PostgreSQL-backed implementation of the full
// recorder.ProcessRecorder contract. It holds the database handle it
// was constructed with; database/sql provides the connection pool, and
// every append checks a connection out for exactly one transaction.
type Recorder struct {
	db     *sql.DB
	config RecorderConfig
}

// NewRecorder creates a Postgres recorder over the given database
// handle. The handle's lifecycle belongs to the caller.
func NewRecorder(db *sql.DB, config RecorderConfig) *Recorder {
	return &Recorder{
		db:     db,
		config: config,
	}
}

// InsertEvents implements recorder.AggregateRecorder. The whole batch
// commits or nothing does: a unique violation on any row rolls the
// transaction back and surfaces as ErrOptimisticConcurrency.
func (r *Recorder) InsertEvents(ctx context.Context, events []es.StoredEvent) error {
	if len(events) == 0 {
		return recorder.ErrNoEvents
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return r.insertEvents(ctx, tx, events)
	})
}

// InsertEventsWithTracking implements recorder.ProcessRecorder,
// recording events and the tracking row in the same transaction.
func (r *Recorder) InsertEventsWithTracking(ctx context.Context, events []es.StoredEvent, tracking es.Tracking) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.insertEvents(ctx, tx, events); err != nil {
			return err
		}
		return r.insertTracking(ctx, tx, tracking)
	})
}

func (r *Recorder) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return recorder.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if IsUniqueViolation(err) {
			return recorder.ErrOptimisticConcurrency
		}
		return recorder.Unavailable(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (r *Recorder) insertEvents(ctx context.Context, tx es.DBTX, events []es.StoredEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (originator_id, originator_version, topic, state)
		VALUES ($1, $2, $3, $4)
	`, r.config.EventsTable)

	for i := range events {
		e := &events[i]
		_, err := tx.ExecContext(ctx, query, e.OriginatorID, e.OriginatorVersion, e.Topic, e.State)
		if err != nil {
			if IsUniqueViolation(err) {
				return recorder.ErrOptimisticConcurrency
			}
			return recorder.Unavailable(fmt.Errorf("failed to insert event %d: %w", i, err))
		}
	}
	return nil
}

func (r *Recorder) insertTracking(ctx context.Context, tx es.DBTX, tracking es.Tracking) error {
	// A tracking row at or below the stored high-water mark means the
	// upstream notification was already processed.
	var maxID sql.NullInt64
	query := fmt.Sprintf(`
		SELECT MAX(notification_id)
		FROM %s
		WHERE application_name = $1
	`, r.config.TrackingTable)

	err := tx.QueryRowContext(ctx, query, tracking.ApplicationName).Scan(&maxID)
	if err != nil {
		return recorder.Unavailable(fmt.Errorf("failed to check tracking: %w", err))
	}
	if maxID.Valid && maxID.Int64 >= tracking.NotificationID {
		return recorder.ErrOptimisticConcurrency
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (application_name, notification_id)
		VALUES ($1, $2)
	`, r.config.TrackingTable)

	if _, err := tx.ExecContext(ctx, insert, tracking.ApplicationName, tracking.NotificationID); err != nil {
		if IsUniqueViolation(err) {
			return recorder.ErrOptimisticConcurrency
		}
		return recorder.Unavailable(fmt.Errorf("failed to insert tracking: %w", err))
	}
	return nil
}

// SelectEvents implements recorder.AggregateRecorder. Reads run
// without an explicit transaction and never block writers.
func (r *Recorder) SelectEvents(ctx context.Context, originatorID uuid.UUID, gt, lte *int64, desc bool, limit *int64) ([]es.StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT originator_id, originator_version, topic, state
		FROM %s
		WHERE originator_id = $1
	`, r.config.EventsTable)

	args := []interface{}{originatorID}
	if gt != nil {
		args = append(args, *gt)
		query += fmt.Sprintf(" AND originator_version > $%d", len(args))
	}
	if lte != nil {
		args = append(args, *lte)
		query += fmt.Sprintf(" AND originator_version <= $%d", len(args))
	}
	if desc {
		query += " ORDER BY originator_version DESC"
	} else {
		query += " ORDER BY originator_version ASC"
	}
	if limit != nil {
		args = append(args, *limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("failed to query events: %w", err))
	}
	defer rows.Close()

	var events []es.StoredEvent
	for rows.Next() {
		var e es.StoredEvent
		if err := rows.Scan(&e.OriginatorID, &e.OriginatorVersion, &e.Topic, &e.State); err != nil {
			return nil, recorder.Unavailable(fmt.Errorf("failed to scan event: %w", err))
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("rows error: %w", err))
	}
	return events, nil
}

// SelectNotifications implements recorder.ApplicationRecorder. Gaps in
// the sequence (from rolled-back appends) simply shorten the result;
// the ids returned are authoritative.
func (r *Recorder) SelectNotifications(ctx context.Context, start, limit int64) ([]es.Notification, error) {
	query := fmt.Sprintf(`
		SELECT notification_id, originator_id, originator_version, topic, state
		FROM %s
		WHERE notification_id >= $1
		ORDER BY notification_id ASC
		LIMIT $2
	`, r.config.EventsTable)

	rows, err := r.db.QueryContext(ctx, query, start, limit)
	if err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("failed to query notifications: %w", err))
	}
	defer rows.Close()

	var notifications []es.Notification
	for rows.Next() {
		var n es.Notification
		if err := rows.Scan(&n.ID, &n.OriginatorID, &n.OriginatorVersion, &n.Topic, &n.State); err != nil {
			return nil, recorder.Unavailable(fmt.Errorf("failed to scan notification: %w", err))
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("rows error: %w", err))
	}
	return notifications, nil
}

// MaxNotificationID implements recorder.ApplicationRecorder.
func (r *Recorder) MaxNotificationID(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(notification_id), 0) FROM %s`, r.config.EventsTable)

	var id int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, recorder.Unavailable(fmt.Errorf("failed to query max notification id: %w", err))
	}
	return id, nil
}

// MaxTrackingID implements recorder.ProcessRecorder.
func (r *Recorder) MaxTrackingID(ctx context.Context, applicationName string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(notification_id), 0)
		FROM %s
		WHERE application_name = $1
	`, r.config.TrackingTable)

	var id int64
	if err := r.db.QueryRowContext(ctx, query, applicationName).Scan(&id); err != nil {
		return 0, recorder.Unavailable(fmt.Errorf("failed to query max tracking id: %w", err))
	}
	return id, nil
}

// IsUniqueViolation checks if an error is a PostgreSQL unique
// constraint violation. Exported for testing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}

	// Fallback: check error message for common patterns
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

var _ recorder.ProcessRecorder = (*Recorder)(nil)
