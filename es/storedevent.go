package es

import "github.com/google/uuid"

// StoredEvent is the persisted form of a domain event or snapshot.
// Stored events are immutable once recorded: the store never updates
// or deletes them. The pair (OriginatorID, OriginatorVersion) is unique
// across the whole store and is the only concurrency control mechanism.
type StoredEvent struct {
	// OriginatorID identifies the aggregate the event belongs to
	OriginatorID uuid.UUID

	// OriginatorVersion is the aggregate version after this event,
	// starting at 1 and increasing by 1 per recorded event
	OriginatorVersion int64

	// Topic identifies the kind of event, used to select a transcoding
	// when reading the event back
	Topic string

	// State is the serialized event payload
	// Stored as bytes so any serialization format can be used
	State []byte
}

// Notification is a stored event together with its position in the
// total order of the store. The ID is assigned exactly once, at commit
// time, and is scoped to one recorder rather than to one aggregate.
// The sequence may contain gaps where an append was rolled back.
type Notification struct {
	// ID is the store-assigned, strictly increasing sequence number
	ID int64

	StoredEvent
}

// Tracking is the durable high-water mark of an upstream notification
// feed that a downstream application has processed. It is recorded in
// the same transaction as the events it caused, which is what gives
// chained processing its exactly-once effect.
type Tracking struct {
	// ApplicationName names the downstream consumer
	ApplicationName string

	// NotificationID is the upstream notification that was consumed
	NotificationID int64
}
