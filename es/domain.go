package es

import "github.com/google/uuid"

// Aggregate is an event-sourced entity. Its state is the left-fold of
// its domain events in ascending version order. Aggregates buffer the
// events they produce until an application collects and records them.
type Aggregate interface {
	// ID returns the aggregate identifier
	ID() uuid.UUID

	// Version returns the version of the last applied event,
	// or 0 before any event has been applied
	Version() int64

	// CollectPending returns and clears the events produced since the
	// aggregate was loaded or last saved
	CollectPending() []DomainEvent
}

// DomainEvent is an immutable fact about an aggregate. Events carry
// their own position in the aggregate's history and know how to evolve
// aggregate state.
type DomainEvent interface {
	// OriginatorID identifies the aggregate the event belongs to
	OriginatorID() uuid.UUID

	// OriginatorVersion is the aggregate version after this event
	OriginatorVersion() int64

	// Mutate returns the aggregate state after this event. The given
	// aggregate is nil only for the first event of a stream, and for
	// snapshots, which rebuild state without a predecessor.
	Mutate(aggregate Aggregate) (Aggregate, error)
}

// Snapshotter is implemented by aggregates that can capture their full
// state as a snapshot event. The returned event must carry the
// aggregate's current ID and version, and its Mutate must reconstruct
// the aggregate from a nil predecessor.
//
// Snapshots are a replay shortcut, never a source of truth: loading an
// aggregate from a snapshot plus the remaining events is equivalent to
// replaying its full history.
type Snapshotter interface {
	Aggregate

	// Snapshot returns a snapshot event capturing the current state
	Snapshot() DomainEvent
}
