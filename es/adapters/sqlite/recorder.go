// Package sqlite provides a SQLite-backed recorder.
//
// Notification ids are the implicit rowids of the events table, which
// SQLite assigns in strictly increasing order on insert.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/recorder"
)

// RecorderConfig contains configuration for the SQLite recorder.
// Configuration is immutable after construction.
type RecorderConfig struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

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
		Logger:        nil, // No logging by default
	}
}

// RecorderOption is a functional option for configuring a Recorder.
type RecorderOption func(*RecorderConfig)

// WithLogger sets a logger for the recorder.
func WithLogger(logger es.Logger) RecorderOption {
	return func(c *RecorderConfig) {
		c.Logger = logger
	}
}

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
//
// Example:
//
//	config := sqlite.NewRecorderConfig(
//	    sqlite.WithLogger(myLogger),
//	    sqlite.WithEventsTable("snapshots"),
//	)
func NewRecorderConfig(opts ...RecorderOption) RecorderConfig {
	config := DefaultRecorderConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Recorder is a SQLite-backed implementation of the full
// recorder.ProcessRecorder contract.
type Recorder struct {
	db     *sql.DB
	config RecorderConfig
}

// NewRecorder creates a SQLite recorder over the given database
// handle. The handle's lifecycle belongs to the caller.
func NewRecorder(db *sql.DB, config RecorderConfig) *Recorder {
	return &Recorder{
		db:     db,
		config: config,
	}
}

// InsertEvents implements recorder.AggregateRecorder.
func (r *Recorder) InsertEvents(ctx context.Context, events []es.StoredEvent) error {
	if len(events) == 0 {
		return recorder.ErrNoEvents
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return r.insertEvents(ctx, tx, events)
	})
}

// InsertEventsWithTracking implements recorder.ProcessRecorder.
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
		return recorder.Unavailable(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (r *Recorder) insertEvents(ctx context.Context, tx es.DBTX, events []es.StoredEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (originator_id, originator_version, topic, state)
		VALUES (?, ?, ?, ?)
	`, r.config.EventsTable)

	for i := range events {
		e := &events[i]
		_, err := tx.ExecContext(ctx, query, e.OriginatorID.String(), e.OriginatorVersion, e.Topic, e.State)
		if err != nil {
			if IsUniqueViolation(err) {
				if r.config.Logger != nil {
					r.config.Logger.Error(ctx, "optimistic concurrency conflict",
						"originator_id", e.OriginatorID,
						"originator_version", e.OriginatorVersion)
				}
				return recorder.ErrOptimisticConcurrency
			}
			return recorder.Unavailable(fmt.Errorf("failed to insert event %d: %w", i, err))
		}
	}

	if r.config.Logger != nil {
		r.config.Logger.Info(ctx, "events recorded", "event_count", len(events))
	}
	return nil
}

func (r *Recorder) insertTracking(ctx context.Context, tx es.DBTX, tracking es.Tracking) error {
	var maxID sql.NullInt64
	query := fmt.Sprintf(`
		SELECT MAX(notification_id)
		FROM %s
		WHERE application_name = ?
	`, r.config.TrackingTable)

	err := tx.QueryRowContext(ctx, query, tracking.ApplicationName).Scan(&maxID)
	if err != nil {
		return recorder.Unavailable(fmt.Errorf("failed to check tracking: %w", err))
	}
	if maxID.Valid && maxID.Int64 >= tracking.NotificationID {
		if r.config.Logger != nil {
			r.config.Logger.Error(ctx, "upstream notification already tracked",
				"application_name", tracking.ApplicationName,
				"notification_id", tracking.NotificationID,
				"max_tracking_id", maxID.Int64)
		}
		return recorder.ErrOptimisticConcurrency
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (application_name, notification_id)
		VALUES (?, ?)
	`, r.config.TrackingTable)

	if _, err := tx.ExecContext(ctx, insert, tracking.ApplicationName, tracking.NotificationID); err != nil {
		if IsUniqueViolation(err) {
			return recorder.ErrOptimisticConcurrency
		}
		return recorder.Unavailable(fmt.Errorf("failed to insert tracking: %w", err))
	}
	return nil
}

// SelectEvents implements recorder.AggregateRecorder.
func (r *Recorder) SelectEvents(ctx context.Context, originatorID uuid.UUID, gt, lte *int64, desc bool, limit *int64) ([]es.StoredEvent, error) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(ctx, "reading events",
			"originator_id", originatorID,
			"gt", gt, "lte", lte, "desc", desc, "limit", limit)
	}

	query := fmt.Sprintf(`
		SELECT originator_id, originator_version, topic, state
		FROM %s
		WHERE originator_id = ?
	`, r.config.EventsTable)

	args := []interface{}{originatorID.String()}
	if gt != nil {
		query += " AND originator_version > ?"
		args = append(args, *gt)
	}
	if lte != nil {
		query += " AND originator_version <= ?"
		args = append(args, *lte)
	}
	if desc {
		query += " ORDER BY originator_version DESC"
	} else {
		query += " ORDER BY originator_version ASC"
	}
	if limit != nil {
		query += " LIMIT ?"
		args = append(args, *limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("failed to query events: %w", err))
	}
	defer rows.Close()

	var events []es.StoredEvent
	for rows.Next() {
		e, err := scanStoredEvent(rows, false)
		if err != nil {
			return nil, err
		}
		events = append(events, e.StoredEvent)
	}
	if err := rows.Err(); err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("rows error: %w", err))
	}
	return events, nil
}

// SelectNotifications implements recorder.ApplicationRecorder.
func (r *Recorder) SelectNotifications(ctx context.Context, start, limit int64) ([]es.Notification, error) {
	query := fmt.Sprintf(`
		SELECT rowid, originator_id, originator_version, topic, state
		FROM %s
		WHERE rowid >= ?
		ORDER BY rowid ASC
		LIMIT ?
	`, r.config.EventsTable)

	rows, err := r.db.QueryContext(ctx, query, start, limit)
	if err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("failed to query notifications: %w", err))
	}
	defer rows.Close()

	var notifications []es.Notification
	for rows.Next() {
		n, err := scanStoredEvent(rows, true)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, recorder.Unavailable(fmt.Errorf("rows error: %w", err))
	}
	return notifications, nil
}

// scanStoredEvent scans one row, with or without a leading
// notification id column.
func scanStoredEvent(rows *sql.Rows, withID bool) (es.Notification, error) {
	var n es.Notification
	var originatorID string

	var err error
	if withID {
		err = rows.Scan(&n.ID, &originatorID, &n.OriginatorVersion, &n.Topic, &n.State)
	} else {
		err = rows.Scan(&originatorID, &n.OriginatorVersion, &n.Topic, &n.State)
	}
	if err != nil {
		return es.Notification{}, recorder.Unavailable(fmt.Errorf("failed to scan event: %w", err))
	}

	n.OriginatorID, err = uuid.Parse(originatorID)
	if err != nil {
		return es.Notification{}, fmt.Errorf("failed to parse originator id: %w", err)
	}
	return n, nil
}

// MaxNotificationID implements recorder.ApplicationRecorder.
func (r *Recorder) MaxNotificationID(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(rowid), 0) FROM %s`, r.config.EventsTable)

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
		WHERE application_name = ?
	`, r.config.TrackingTable)

	var id int64
	if err := r.db.QueryRowContext(ctx, query, applicationName).Scan(&id); err != nil {
		return 0, recorder.Unavailable(fmt.Errorf("failed to query max tracking id: %w", err))
	}
	return id, nil
}

// IsUniqueViolation checks if an error is a SQLite unique constraint
// violation. Exported for testing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	// SQLite error messages for unique constraint violations
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed")
}

var _ recorder.ProcessRecorder = (*Recorder)(nil)
