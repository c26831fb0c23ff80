// Package recorder defines the capability interfaces implemented by
// storage adapters, layered so that each application takes only the
// capabilities it needs: a base append/read capability, a notification
// feed capability, and a consumer tracking capability. A single
// adapter type satisfies all three.
package recorder

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
)

var (
	// ErrOptimisticConcurrency indicates a version conflict during an
	// append, or a tracking record at or below the stored high-water
	// mark. It is always safe to retry after reloading fresh state.
	ErrOptimisticConcurrency = errors.New("optimistic concurrency conflict")

	// ErrNoEvents indicates an attempt to record zero events.
	ErrNoEvents = errors.New("no events to record")

	// ErrUnavailable indicates a storage or transport failure.
	// The recorder does not retry; retry policy belongs to the caller.
	ErrUnavailable = errors.New("recorder unavailable")
)

// Unavailable wraps a storage failure so that callers can classify it
// with errors.Is(err, ErrUnavailable) while keeping the cause.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}

// AggregateRecorder is the durable append/read primitive for one kind
// of stored event (events or snapshots).
type AggregateRecorder interface {
	// InsertEvents records the given events in a single atomic
	// transaction. If any (originator id, originator version) pair is
	// already recorded, nothing is committed and the error is
	// ErrOptimisticConcurrency. Any other storage failure matches
	// ErrUnavailable.
	InsertEvents(ctx context.Context, events []es.StoredEvent) error

	// SelectEvents returns stored events for one aggregate, ordered by
	// originator version. gt and lte bound the version range
	// (exclusive and inclusive respectively), desc reverses the order,
	// and limit caps the number of results. Nil means unbounded.
	SelectEvents(ctx context.Context, originatorID uuid.UUID, gt, lte *int64, desc bool, limit *int64) ([]es.StoredEvent, error)
}

// ApplicationRecorder adds the globally ordered notification feed.
type ApplicationRecorder interface {
	AggregateRecorder

	// SelectNotifications returns up to limit notifications with
	// id >= start, ordered by id ascending. The sequence may skip ids
	// where an append was rolled back; fewer than limit items near a
	// gap does not mean the end of the feed.
	SelectNotifications(ctx context.Context, start, limit int64) ([]es.Notification, error)

	// MaxNotificationID returns the highest committed notification id,
	// or 0 when the store is empty. It reports progress and liveness;
	// pagination does not depend on it.
	MaxNotificationID(ctx context.Context) (int64, error)
}

// ProcessRecorder adds consumer tracking, for applications that turn
// upstream notifications into new local events.
type ProcessRecorder interface {
	ApplicationRecorder

	// InsertEventsWithTracking records the given events and the
	// tracking record in one atomic transaction. A tracking record at
	// or below the stored high-water mark for the same application
	// name is an ErrOptimisticConcurrency, which prevents processing
	// the same upstream notification twice. Unlike InsertEvents, an
	// empty events slice is allowed: a consumed notification need not
	// produce new events to be marked processed.
	InsertEventsWithTracking(ctx context.Context, events []es.StoredEvent, tracking es.Tracking) error

	// MaxTrackingID returns the highest tracked upstream notification
	// id for the named application, or 0 if never tracked.
	MaxTrackingID(ctx context.Context, applicationName string) (int64, error)
}
