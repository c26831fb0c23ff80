// Package es provides the core types of the pupstore persistence
// engine for event-sourced aggregates.
//
// # Overview
//
// The engine stores immutable, versioned domain events for uniquely
// identified aggregates, reconstructs aggregate state by replaying
// those events (optionally from a snapshot), and exposes a globally
// ordered, paginated feed of everything it has stored:
//
//   - StoredEvent, Notification, Tracking: the persisted record shapes
//   - DomainEvent, Aggregate: the domain-model boundary
//   - Transcoder, Mapper: the serialization boundary
//   - DBTX, Logger: infrastructure seams
//
// Recorders (see the recorder package and the adapters) are the
// durable append/read primitive. The EventStore (eventstore package)
// translates domain events to stored events. The application package
// layers Repository, the notification log and the Application object
// on top, and the process package chains applications together with
// exactly-once effect.
//
// # Optimistic concurrency
//
// The pair (originator id, originator version) is unique across the
// store, enforced by a database constraint. Writers always append
// events whose version immediately follows the version they last
// observed; a uniqueness violation means a concurrent writer won the
// race, and is surfaced as recorder.ErrOptimisticConcurrency. The
// caller recovers by reloading the aggregate and retrying. No other
// coordination is required, in process or out.
//
// # Global ordering
//
// Every committed event is also assigned a notification id: a
// store-wide, strictly increasing sequence number that defines what
// happened before what across all aggregates. Notification ids may
// have gaps where an append was rolled back; readers of the feed
// tolerate gaps and never miss a committed event.
//
// # Quick start
//
// 1. Generate database migrations:
//
//	go run github.com/getpup/pupstore/cmd/migrate-gen -adapter sqlite -output migrations
//
// 2. Register transcodings and build an application:
//
//	transcoder := es.NewTranscoder()
//	es.RegisterJSON[AccountOpened](transcoder, "AccountOpened")
//
//	rec := sqlite.NewRecorder(db, sqlite.DefaultRecorderConfig())
//	app := application.New("accounts", rec, es.NewMapper(transcoder))
//
// 3. Save aggregates and read them back:
//
//	if err := app.Save(ctx, account); err != nil { ... }
//	agg, err := app.Repository.Get(ctx, accountID, nil)
//
// 4. Follow the notification log:
//
//	section, err := app.Log.Get(ctx, "1,10")
//
// See the examples directory for complete working examples.
package es
