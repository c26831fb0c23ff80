// Package eventstore provides the typed facade between domain events
// and the recorder's stored-event primitive.
package eventstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/recorder"
)

// EventStore encodes domain events into stored events on the way in
// and decodes them on the way out, delegating durability to a
// recorder. It is agnostic about what the events mean: the same type
// serves ordinary events and snapshots, against different recorders.
type EventStore struct {
	mapper   *es.Mapper
	recorder recorder.AggregateRecorder
	logger   es.Logger
}

// Option is a functional option for configuring an EventStore.
type Option func(*EventStore)

// WithLogger sets a logger for the event store.
func WithLogger(logger es.Logger) Option {
	return func(s *EventStore) {
		s.logger = logger
	}
}

// New creates an event store over the given mapper and recorder.
func New(mapper *es.Mapper, rec recorder.AggregateRecorder, opts ...Option) *EventStore {
	s := &EventStore{
		mapper:   mapper,
		recorder: rec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put encodes the given events and records them in a single atomic
// transaction. The recorder's result passes through verbatim: in
// particular recorder.ErrOptimisticConcurrency when a concurrent
// writer recorded an event at the same version first.
func (s *EventStore) Put(ctx context.Context, events []es.DomainEvent) error {
	stored := make([]es.StoredEvent, len(events))
	for i, event := range events {
		se, err := s.mapper.ToStored(event)
		if err != nil {
			return err
		}
		stored[i] = se
	}

	if s.logger != nil {
		s.logger.Debug(ctx, "putting events", "event_count", len(stored))
	}
	return s.recorder.InsertEvents(ctx, stored)
}

// Get reads stored events for one aggregate and decodes them. The
// version range and ordering parameters are forwarded to the recorder
// unchanged; see recorder.AggregateRecorder.SelectEvents.
func (s *EventStore) Get(ctx context.Context, originatorID uuid.UUID, gt, lte *int64, desc bool, limit *int64) ([]es.DomainEvent, error) {
	stored, err := s.recorder.SelectEvents(ctx, originatorID, gt, lte, desc, limit)
	if err != nil {
		return nil, err
	}

	events := make([]es.DomainEvent, len(stored))
	for i := range stored {
		event, err := s.mapper.FromStored(stored[i])
		if err != nil {
			return nil, err
		}
		events[i] = event
	}

	if s.logger != nil {
		s.logger.Debug(ctx, "events read",
			"originator_id", originatorID,
			"event_count", len(events))
	}
	return events, nil
}
