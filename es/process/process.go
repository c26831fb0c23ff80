// Package process chains applications together with exactly-once
// effect: a processor pulls sections from an upstream notification
// log, hands each notification to a policy, and records the events the
// policy produces together with the consumed notification id in one
// atomic transaction.
package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/application"
	"github.com/getpup/pupstore/es/recorder"
)

// ErrProcessorStopped indicates the processor was stopped by a policy
// or storage error.
var ErrProcessorStopped = errors.New("processor stopped")

// Policy turns one upstream notification into zero or more local
// domain events. Policies must be deterministic enough to be safely
// skipped on re-delivery: once a notification id is tracked, it is
// never handed to the policy again.
type Policy interface {
	// Name returns the unique name of this policy.
	// It is the tracking key in the downstream store.
	Name() string

	// Handle processes a single upstream notification.
	// Return an error to stop processing.
	Handle(ctx context.Context, notification es.Notification) ([]es.DomainEvent, error)
}

// NotificationLog is the upstream feed a processor follows.
// *application.LocalNotificationLog implements it; a remote client
// with the same pull contract would serve equally.
type NotificationLog interface {
	Get(ctx context.Context, sectionID string) (application.Section, error)
}

// ProcessorConfig configures a processor.
type ProcessorConfig struct {
	// Logger is an optional logger for observability
	Logger es.Logger

	// SectionSize is the number of notifications pulled per batch
	SectionSize int64

	// PollInterval is how long to wait when caught up with the
	// upstream log before polling again
	PollInterval time.Duration
}

// DefaultProcessorConfig returns the default configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SectionSize:  application.DefaultSectionSize,
		PollInterval: 100 * time.Millisecond,
	}
}

// Processor runs a policy against an upstream notification log,
// recording results through a tracking-capable recorder. Multiple
// processor instances may run the same policy concurrently against
// one store: tracking conflicts decide the winner per notification and
// the losers simply reload.
type Processor struct {
	config   ProcessorConfig
	upstream NotificationLog
	recorder recorder.ProcessRecorder
	mapper   *es.Mapper
}

// NewProcessor creates a processor that follows the given upstream log
// and records through the given downstream recorder.
func NewProcessor(upstream NotificationLog, rec recorder.ProcessRecorder, mapper *es.Mapper, config ProcessorConfig) *Processor {
	if config.SectionSize <= 0 {
		config.SectionSize = application.DefaultSectionSize
	}
	return &Processor{
		config:   config,
		upstream: upstream,
		recorder: rec,
		mapper:   mapper,
	}
}

// Run processes notifications until the context is canceled. When
// caught up it polls at the configured interval. Returns
// ErrProcessorStopped if the policy or the store fails; tracking
// conflicts are not failures, they mean another instance got there
// first.
func (p *Processor) Run(ctx context.Context, policy Policy) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := p.ProcessSection(ctx, policy)
		if err != nil {
			if errors.Is(err, recorder.ErrOptimisticConcurrency) {
				// Another instance advanced the tracking position;
				// reload it on the next iteration.
				continue
			}
			return fmt.Errorf("%w: %v", ErrProcessorStopped, err)
		}

		if processed == 0 {
			if err := p.wait(ctx); err != nil {
				return err
			}
		}
	}
}

// ProcessSection pulls one section past the current tracking position
// and processes it, returning how many notifications were processed.
// Exposed for callers that want to drive processing themselves, e.g.
// in tests or batch jobs.
func (p *Processor) ProcessSection(ctx context.Context, policy Policy) (int, error) {
	maxTracking, err := p.recorder.MaxTrackingID(ctx, policy.Name())
	if err != nil {
		return 0, err
	}

	start := maxTracking + 1
	section, err := p.upstream.Get(ctx, fmt.Sprintf("%d,%d", start, start+p.config.SectionSize-1))
	if err != nil {
		return 0, fmt.Errorf("failed to get section: %w", err)
	}

	processed := 0
	for _, notification := range section.Items {
		// Re-delivery of an already-tracked notification is skipped,
		// never re-processed.
		if notification.ID <= maxTracking {
			continue
		}

		events, err := policy.Handle(ctx, notification)
		if err != nil {
			return processed, fmt.Errorf("policy %q failed at notification %d: %w",
				policy.Name(), notification.ID, err)
		}

		stored := make([]es.StoredEvent, len(events))
		for i, event := range events {
			se, err := p.mapper.ToStored(event)
			if err != nil {
				return processed, err
			}
			stored[i] = se
		}

		tracking := es.Tracking{
			ApplicationName: policy.Name(),
			NotificationID:  notification.ID,
		}
		if err := p.recorder.InsertEventsWithTracking(ctx, stored, tracking); err != nil {
			return processed, err
		}

		if p.config.Logger != nil {
			p.config.Logger.Debug(ctx, "notification processed",
				"policy", policy.Name(),
				"notification_id", notification.ID,
				"event_count", len(stored))
		}
		maxTracking = notification.ID
		processed++
	}
	return processed, nil
}

func (p *Processor) wait(ctx context.Context) error {
	if p.config.PollInterval <= 0 {
		return nil
	}
	timer := time.NewTimer(p.config.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
