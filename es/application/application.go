// Package application assembles the persistence engine into an
// application-level object: a repository for loading aggregates, a
// save path for recording new events, an on-demand snapshot path and a
// local notification log for downstream consumers.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/eventstore"
	"github.com/getpup/pupstore/es/recorder"
)

// ErrSnapshottingDisabled indicates a snapshot was requested on an
// application constructed without a snapshot recorder.
var ErrSnapshottingDisabled = errors.New("snapshotting is not enabled")

// Application wires a recorder, event store, repository and
// notification log together behind one handle with an explicit
// lifecycle owned by the caller. All components are safe for
// concurrent use.
type Application struct {
	// Repository loads aggregates recorded by this application
	Repository *Repository

	// Events is the event store used by Save
	Events *eventstore.EventStore

	// Snapshots is the snapshot store, nil when snapshotting is disabled
	Snapshots *eventstore.EventStore

	// Log pages this application's notifications for consumers
	Log *LocalNotificationLog

	name     string
	recorder recorder.ApplicationRecorder
	logger   es.Logger
	notify   func(events []es.DomainEvent)
}

// Option is a functional option for configuring an Application.
type Option func(*options)

type options struct {
	snapshots   recorder.AggregateRecorder
	sectionSize int64
	logger      es.Logger
	notify      func(events []es.DomainEvent)
}

// WithSnapshots enables snapshotting, storing snapshots through the
// given recorder. Snapshots are written on demand by TakeSnapshot, not
// automatically.
func WithSnapshots(rec recorder.AggregateRecorder) Option {
	return func(o *options) {
		o.snapshots = rec
	}
}

// WithSectionSize sets the notification log page size.
func WithSectionSize(sectionSize int64) Option {
	return func(o *options) {
		o.sectionSize = sectionSize
	}
}

// WithLogger sets a logger for the application and its components.
func WithLogger(logger es.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNotify registers a hook called after each successful Save with
// the events that were recorded. It runs on the saving goroutine;
// in-process subscribers that need isolation should hand off.
func WithNotify(notify func(events []es.DomainEvent)) Option {
	return func(o *options) {
		o.notify = notify
	}
}

// New creates an application over the given recorder and mapper.
func New(name string, rec recorder.ApplicationRecorder, mapper *es.Mapper, opts ...Option) *Application {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var storeOpts []eventstore.Option
	if o.logger != nil {
		storeOpts = append(storeOpts, eventstore.WithLogger(o.logger))
	}

	events := eventstore.New(mapper, rec, storeOpts...)
	var snapshots *eventstore.EventStore
	if o.snapshots != nil {
		snapshots = eventstore.New(mapper, o.snapshots, storeOpts...)
	}

	return &Application{
		Repository: NewRepository(events, snapshots),
		Events:     events,
		Snapshots:  snapshots,
		Log:        NewLocalNotificationLog(rec, o.sectionSize),
		name:       name,
		recorder:   rec,
		logger:     o.logger,
		notify:     o.notify,
	}
}

// Name returns the application name. Downstream applications use it as
// the tracking key for this application's notification feed.
func (a *Application) Name() string {
	return a.name
}

// Save collects the pending events of the given aggregates and records
// them in one atomic transaction. On recorder.ErrOptimisticConcurrency
// the caller should reload the affected aggregates and retry; nothing
// was recorded.
func (a *Application) Save(ctx context.Context, aggregates ...es.Aggregate) error {
	var events []es.DomainEvent
	for _, aggregate := range aggregates {
		events = append(events, aggregate.CollectPending()...)
	}
	if len(events) == 0 {
		return nil
	}

	if err := a.Events.Put(ctx, events); err != nil {
		return err
	}

	if a.logger != nil {
		a.logger.Info(ctx, "events saved",
			"application", a.name,
			"aggregate_count", len(aggregates),
			"event_count", len(events))
	}
	if a.notify != nil {
		a.notify(events)
	}
	return nil
}

// TakeSnapshot captures the state of the aggregate at the given
// version (nil means current) and records it in the snapshot store.
// The aggregate must implement es.Snapshotter.
//
// A concurrency conflict here is benign: it means an equivalent
// snapshot was recorded concurrently, and the existing one serves.
// This tolerance applies to snapshots only, never to event appends.
func (a *Application) TakeSnapshot(ctx context.Context, aggregateID uuid.UUID, version *int64) error {
	if a.Snapshots == nil {
		return ErrSnapshottingDisabled
	}

	aggregate, err := a.Repository.Get(ctx, aggregateID, version)
	if err != nil {
		return err
	}
	snapshotter, ok := aggregate.(es.Snapshotter)
	if !ok {
		return fmt.Errorf("aggregate %T cannot be snapshotted", aggregate)
	}

	err = a.Snapshots.Put(ctx, []es.DomainEvent{snapshotter.Snapshot()})
	if errors.Is(err, recorder.ErrOptimisticConcurrency) {
		if a.logger != nil {
			a.logger.Debug(ctx, "snapshot already recorded",
				"aggregate_id", aggregateID,
				"version", aggregate.Version())
		}
		return nil
	}
	return err
}
