// Package integration_test contains integration tests for the Postgres adapter.
// These tests require a running PostgreSQL instance.
//
// Run with: go test -tags=integration ./es/adapters/postgres/integration_test/...
//
//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/adapters/postgres"
	"github.com/getpup/pupstore/es/migrations"
	"github.com/getpup/pupstore/es/recorder"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Default to localhost, but allow override via env var for CI
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "pupstore_test"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	setupTestTables(t, db)
	return db
}

func setupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	// Drop existing tables to ensure clean state
	_, err := db.Exec(`
		DROP TABLE IF EXISTS tracking;
		DROP TABLE IF EXISTS snapshots;
		DROP TABLE IF EXISTS events;
	`)
	if err != nil {
		t.Fatalf("Failed to drop tables: %v", err)
	}

	config := migrations.DefaultConfig()
	for _, statement := range migrations.PostgresStatements(&config) {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("Failed to create tables: %v", err)
		}
	}
}

func newRecorder(db *sql.DB) *postgres.Recorder {
	return postgres.NewRecorder(db, postgres.DefaultRecorderConfig())
}

func storedEvent(originatorID uuid.UUID, version int64) es.StoredEvent {
	return es.StoredEvent{
		OriginatorID:      originatorID,
		OriginatorVersion: version,
		Topic:             "TestEvent",
		State:             []byte(fmt.Sprintf(`{"version":%d}`, version)),
	}
}

func TestInsertAndSelectEvents(t *testing.T) {
	rec := newRecorder(getTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	events := []es.StoredEvent{
		storedEvent(id, 1),
		storedEvent(id, 2),
		storedEvent(id, 3),
	}
	if err := rec.InsertEvents(ctx, events); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	got, err := rec.SelectEvents(ctx, id, nil, nil, false, nil)
	if err != nil {
		t.Fatalf("SelectEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(got))
	}
	for i, e := range got {
		if e.OriginatorID != id || e.OriginatorVersion != int64(i+1) {
			t.Errorf("Unexpected event at index %d: %+v", i, e)
		}
	}
}

func TestEmptyBatch(t *testing.T) {
	rec := newRecorder(getTestDB(t))

	err := rec.InsertEvents(context.Background(), nil)
	if !errors.Is(err, recorder.ErrNoEvents) {
		t.Errorf("Expected ErrNoEvents, got %v", err)
	}
}

func TestConcurrencyConflict(t *testing.T) {
	rec := newRecorder(getTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	if err := rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	err := rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)})
	if !errors.Is(err, recorder.ErrOptimisticConcurrency) {
		t.Errorf("Expected ErrOptimisticConcurrency, got %v", err)
	}
}

func TestConcurrentWritersOneWinner(t *testing.T) {
	rec := newRecorder(getTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, recorder.ErrOptimisticConcurrency):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Expected exactly one writer to succeed, got %d", succeeded)
	}
}

func TestBatchAtomicity(t *testing.T) {
	rec := newRecorder(getTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	if err := rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	err := rec.InsertEvents(ctx, []es.StoredEvent{
		storedEvent(id, 2),
		storedEvent(id, 1),
	})
	if !errors.Is(err, recorder.ErrOptimisticConcurrency) {
		t.Fatalf("Expected ErrOptimisticConcurrency, got %v", err)
	}

	got, err := rec.SelectEvents(ctx, id, nil, nil, false, nil)
	if err != nil {
		t.Fatalf("SelectEvents failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected only the original event, got %d events", len(got))
	}
}

func TestNotificationsSurviveGaps(t *testing.T) {
	rec := newRecorder(getTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	if err := rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	// A rolled-back append may burn sequence values, leaving a gap.
	if err := rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)}); err == nil {
		t.Fatal("Expected conflict")
	}

	if err := rec.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 2)}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	notifications, err := rec.SelectNotifications(ctx, 1, 10)
	if err != nil {
		t.Fatalf("SelectNotifications failed: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(notifications))
	}
	if notifications[1].ID <= notifications[0].ID {
		t.Errorf("Expected strictly increasing ids, got %d then %d",
			notifications[0].ID, notifications[1].ID)
	}

	maxID, err := rec.MaxNotificationID(ctx)
	if err != nil {
		t.Fatalf("MaxNotificationID failed: %v", err)
	}
	if maxID != notifications[1].ID {
		t.Errorf("Expected max id %d, got %d", notifications[1].ID, maxID)
	}
}

func TestTracking(t *testing.T) {
	rec := newRecorder(getTestDB(t))
	ctx := context.Background()

	tracking := es.Tracking{ApplicationName: "downstream", NotificationID: 5}
	err := rec.InsertEventsWithTracking(ctx, []es.StoredEvent{storedEvent(uuid.New(), 1)}, tracking)
	if err != nil {
		t.Fatalf("InsertEventsWithTracking failed: %v", err)
	}

	// Same or earlier notification id conflicts; the batch rolls back.
	id := uuid.New()
	err = rec.InsertEventsWithTracking(ctx, []es.StoredEvent{storedEvent(id, 1)}, tracking)
	if !errors.Is(err, recorder.ErrOptimisticConcurrency) {
		t.Fatalf("Expected ErrOptimisticConcurrency, got %v", err)
	}
	got, err := rec.SelectEvents(ctx, id, nil, nil, false, nil)
	if err != nil {
		t.Fatalf("SelectEvents failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no events after rejected batch, got %d", len(got))
	}

	// Progress without events is allowed.
	err = rec.InsertEventsWithTracking(ctx, nil, es.Tracking{
		ApplicationName: "downstream",
		NotificationID:  6,
	})
	if err != nil {
		t.Fatalf("InsertEventsWithTracking failed: %v", err)
	}

	maxID, err := rec.MaxTrackingID(ctx, "downstream")
	if err != nil {
		t.Fatalf("MaxTrackingID failed: %v", err)
	}
	if maxID != 6 {
		t.Errorf("Expected tracking id 6, got %d", maxID)
	}
}

func TestSnapshotRecorder(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()

	events := postgres.NewRecorder(db, postgres.DefaultRecorderConfig())
	snapshots := postgres.NewRecorder(db, postgres.NewRecorderConfig(
		postgres.WithEventsTable("snapshots"),
	))

	id := uuid.New()
	if err := events.InsertEvents(ctx, []es.StoredEvent{storedEvent(id, 1)}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	snapshot := storedEvent(id, 1)
	snapshot.Topic = "TestSnapshot"
	if err := snapshots.InsertEvents(ctx, []es.StoredEvent{snapshot}); err != nil {
		t.Fatalf("Insert snapshot failed: %v", err)
	}

	got, err := snapshots.SelectEvents(ctx, id, nil, nil, true, nil)
	if err != nil {
		t.Fatalf("SelectEvents failed: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "TestSnapshot" {
		t.Errorf("Expected one snapshot, got %+v", got)
	}
}
