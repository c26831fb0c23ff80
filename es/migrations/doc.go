// Package migrations provides SQL schema generation for the recorder
// tables: events, snapshots and consumer tracking.
//
// To generate migration files, use the migrate-gen command:
//
//	go run github.com/getpup/pupstore/cmd/migrate-gen -adapter postgres -output migrations
//
// Or add a go generate directive to your code:
//
//	//go:generate go run github.com/getpup/pupstore/cmd/migrate-gen -output ../../migrations
//
// The per-dialect Statements functions return the same schema as
// individual statements, which the factory package executes directly
// when schema auto-creation is enabled.
package migrations
