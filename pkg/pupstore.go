// Package pupstore provides a persistence engine for event-sourced
// aggregates.
//
// This package serves as the main entry point for the pupstore
// library. For the actual functionality, see the es package and its
// subpackages:
//
//	es              - Core types: stored events, notifications, tracking
//	es/recorder     - Recorder capability interfaces
//	es/eventstore   - Typed event store facade
//	es/application  - Repository, notification log, application object
//	es/process      - Exactly-once chained processing
//	es/factory      - Configuration and construction
//	es/adapters/... - memory, sqlite, postgres and mysql backends
//	es/migrations   - Schema generation
//
// Quick start:
//
//  1. Generate migrations:
//     go run github.com/getpup/pupstore/cmd/migrate-gen -adapter sqlite -output migrations
//
//  2. Build an application and save aggregates:
//     f, _ := factory.New(ctx, factory.FromEnv())
//     app := f.NewApplication("accounts", mapper)
//     err := app.Save(ctx, account)
//
//  3. Follow the notification log:
//     section, err := app.Log.Get(ctx, "1,10")
//
// See the examples directory for complete working examples.
package pupstore

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
