package es

import "fmt"

// Mapper converts between domain events and stored events. Payload
// serialization is delegated to a Transcoder; the mapper itself only
// carries identity, version and topic across the boundary.
type Mapper struct {
	transcoder *Transcoder
}

// NewMapper creates a mapper over the given transcoder.
func NewMapper(transcoder *Transcoder) *Mapper {
	return &Mapper{transcoder: transcoder}
}

// ToStored converts a domain event into its persisted form.
func (m *Mapper) ToStored(event DomainEvent) (StoredEvent, error) {
	topic, state, err := m.transcoder.Encode(event)
	if err != nil {
		return StoredEvent{}, err
	}
	return StoredEvent{
		OriginatorID:      event.OriginatorID(),
		OriginatorVersion: event.OriginatorVersion(),
		Topic:             topic,
		State:             state,
	}, nil
}

// FromStored converts a stored event back into a domain event.
func (m *Mapper) FromStored(stored StoredEvent) (DomainEvent, error) {
	event, err := m.transcoder.Decode(stored.Topic, stored.State)
	if err != nil {
		return nil, err
	}
	if event.OriginatorID() != stored.OriginatorID {
		return nil, fmt.Errorf("decoded event originator %s does not match stored originator %s",
			event.OriginatorID(), stored.OriginatorID)
	}
	return event, nil
}
