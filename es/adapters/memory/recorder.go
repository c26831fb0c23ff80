// Package memory provides an in-memory recorder for tests, examples
// and prototypes. It implements the full ProcessRecorder contract with
// the same semantics as the SQL adapters, but nothing is durable.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/recorder"
)

// Recorder is an in-memory ProcessRecorder. It is safe for concurrent
// use: each append holds one lock for the whole batch, which is what
// makes the batch all-or-nothing.
type Recorder struct {
	mu            sync.Mutex
	streams       map[uuid.UUID][]es.StoredEvent
	recorded      map[uuid.UUID]map[int64]struct{}
	notifications []es.Notification
	tracking      map[string]int64
	nextID        int64
}

// NewRecorder creates an empty in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		streams:  make(map[uuid.UUID][]es.StoredEvent),
		recorded: make(map[uuid.UUID]map[int64]struct{}),
		tracking: make(map[string]int64),
		nextID:   1,
	}
}

// InsertEvents implements recorder.AggregateRecorder.
func (r *Recorder) InsertEvents(_ context.Context, events []es.StoredEvent) error {
	if len(events) == 0 {
		return recorder.ErrNoEvents
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkConflicts(events); err != nil {
		return err
	}
	r.commit(events)
	return nil
}

// InsertEventsWithTracking implements recorder.ProcessRecorder.
func (r *Recorder) InsertEventsWithTracking(_ context.Context, events []es.StoredEvent, tracking es.Tracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkConflicts(events); err != nil {
		return err
	}
	if r.tracking[tracking.ApplicationName] >= tracking.NotificationID {
		return recorder.ErrOptimisticConcurrency
	}
	r.commit(events)
	r.tracking[tracking.ApplicationName] = tracking.NotificationID
	return nil
}

// checkConflicts verifies that no event in the batch collides with a
// recorded event or with another event in the same batch. Must be
// called with the lock held, before anything is committed.
func (r *Recorder) checkConflicts(events []es.StoredEvent) error {
	seen := make(map[uuid.UUID]map[int64]struct{})
	for i := range events {
		e := &events[i]
		if _, ok := r.recorded[e.OriginatorID][e.OriginatorVersion]; ok {
			return recorder.ErrOptimisticConcurrency
		}
		if _, ok := seen[e.OriginatorID][e.OriginatorVersion]; ok {
			return recorder.ErrOptimisticConcurrency
		}
		if seen[e.OriginatorID] == nil {
			seen[e.OriginatorID] = make(map[int64]struct{})
		}
		seen[e.OriginatorID][e.OriginatorVersion] = struct{}{}
	}
	return nil
}

// commit records the batch and assigns notification ids.
// Must be called with the lock held, after checkConflicts.
func (r *Recorder) commit(events []es.StoredEvent) {
	for _, e := range events {
		r.streams[e.OriginatorID] = append(r.streams[e.OriginatorID], e)
		if r.recorded[e.OriginatorID] == nil {
			r.recorded[e.OriginatorID] = make(map[int64]struct{})
		}
		r.recorded[e.OriginatorID][e.OriginatorVersion] = struct{}{}
		r.notifications = append(r.notifications, es.Notification{
			ID:          r.nextID,
			StoredEvent: e,
		})
		r.nextID++
	}
}

// SelectEvents implements recorder.AggregateRecorder.
func (r *Recorder) SelectEvents(_ context.Context, originatorID uuid.UUID, gt, lte *int64, desc bool, limit *int64) ([]es.StoredEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []es.StoredEvent
	for _, e := range r.streams[originatorID] {
		if gt != nil && e.OriginatorVersion <= *gt {
			continue
		}
		if lte != nil && e.OriginatorVersion > *lte {
			continue
		}
		events = append(events, e)
	}

	sort.Slice(events, func(i, j int) bool {
		if desc {
			return events[i].OriginatorVersion > events[j].OriginatorVersion
		}
		return events[i].OriginatorVersion < events[j].OriginatorVersion
	})

	if limit != nil && int64(len(events)) > *limit {
		events = events[:*limit]
	}
	return events, nil
}

// SelectNotifications implements recorder.ApplicationRecorder.
func (r *Recorder) SelectNotifications(_ context.Context, start, limit int64) ([]es.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var notifications []es.Notification
	for _, n := range r.notifications {
		if n.ID < start {
			continue
		}
		if int64(len(notifications)) >= limit {
			break
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MaxNotificationID implements recorder.ApplicationRecorder.
func (r *Recorder) MaxNotificationID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.notifications) == 0 {
		return 0, nil
	}
	return r.notifications[len(r.notifications)-1].ID, nil
}

// MaxTrackingID implements recorder.ProcessRecorder.
func (r *Recorder) MaxTrackingID(_ context.Context, applicationName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tracking[applicationName], nil
}

var _ recorder.ProcessRecorder = (*Recorder)(nil)
