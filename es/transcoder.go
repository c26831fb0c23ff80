package es

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrTopicNotRegistered indicates a stored event whose topic has no
// registered transcoding. This is fatal for the affected read: the
// store never skips silently past an event it cannot decode.
var ErrTopicNotRegistered = errors.New("no transcoding registered for topic")

// Transcoding encodes and decodes one kind of domain event.
// A transcoding must be registered for every event and snapshot topic
// before events of that kind are written or read.
type Transcoding interface {
	// Topic returns the stored topic this transcoding handles
	Topic() string

	// Encode serializes the event payload
	Encode(event DomainEvent) ([]byte, error)

	// Decode deserializes an event payload read from the store
	Decode(state []byte) (DomainEvent, error)
}

// Transcoder is a registry of transcodings, keyed both by topic (for
// decoding) and by event type (for encoding). It is not safe for
// concurrent registration; register all transcodings during setup.
type Transcoder struct {
	byTopic map[string]Transcoding
	byType  map[reflect.Type]Transcoding
}

// NewTranscoder creates an empty transcoder.
func NewTranscoder() *Transcoder {
	return &Transcoder{
		byTopic: make(map[string]Transcoding),
		byType:  make(map[reflect.Type]Transcoding),
	}
}

// Register registers a transcoding for the concrete type of the given
// prototype event. Registering the same topic twice replaces the
// earlier transcoding.
func (t *Transcoder) Register(prototype DomainEvent, transcoding Transcoding) {
	t.byTopic[transcoding.Topic()] = transcoding
	t.byType[reflect.TypeOf(prototype)] = transcoding
}

// Encode serializes a domain event, returning the topic under which it
// was registered along with the payload bytes.
func (t *Transcoder) Encode(event DomainEvent) (string, []byte, error) {
	transcoding, ok := t.byType[reflect.TypeOf(event)]
	if !ok {
		return "", nil, fmt.Errorf("%w: event type %T", ErrTopicNotRegistered, event)
	}
	state, err := transcoding.Encode(event)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode event %T: %w", event, err)
	}
	return transcoding.Topic(), state, nil
}

// Decode deserializes an event payload read from the store.
func (t *Transcoder) Decode(topic string, state []byte) (DomainEvent, error) {
	transcoding, ok := t.byTopic[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTopicNotRegistered, topic)
	}
	event, err := transcoding.Decode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to decode event with topic %q: %w", topic, err)
	}
	return event, nil
}

// JSONTranscoding returns a Transcoding backed by encoding/json for
// the event type E. E must be a value type (not a pointer) that
// implements DomainEvent with value receivers.
//
// Example:
//
//	transcoder.Register(AccountOpened{}, es.JSONTranscoding[AccountOpened]("AccountOpened"))
func JSONTranscoding[E DomainEvent](topic string) Transcoding {
	return jsonTranscoding[E]{topic: topic}
}

type jsonTranscoding[E DomainEvent] struct {
	topic string
}

func (j jsonTranscoding[E]) Topic() string {
	return j.topic
}

func (j jsonTranscoding[E]) Encode(event DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

func (j jsonTranscoding[E]) Decode(state []byte) (DomainEvent, error) {
	var event E
	if err := json.Unmarshal(state, &event); err != nil {
		return nil, err
	}
	return event, nil
}

// RegisterJSON registers a JSON transcoding for the event type E under
// the given topic.
func RegisterJSON[E DomainEvent](t *Transcoder, topic string) {
	var prototype E
	t.Register(prototype, JSONTranscoding[E](topic))
}
