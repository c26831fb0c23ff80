package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/getpup/pupstore/es/adapters/memory"
	"github.com/getpup/pupstore/es/application"
)

func newIdleProcessor() *Processor {
	config := DefaultProcessorConfig()
	config.PollInterval = 5 * time.Millisecond
	return NewProcessor(
		application.NewLocalNotificationLog(memory.NewRecorder(), 10),
		memory.NewRecorder(), newProcessMapper(), config)
}

func TestRunnerNoPolicies(t *testing.T) {
	runner := NewRunner()

	err := runner.Run(context.Background(), nil)
	if !errors.Is(err, ErrNoPolicies) {
		t.Errorf("Expected ErrNoPolicies, got %v", err)
	}
}

func TestRunnerNilPolicy(t *testing.T) {
	runner := NewRunner()

	err := runner.Run(context.Background(), []PolicyRunner{
		{Policy: nil, Processor: newIdleProcessor()},
	})
	if err == nil || !strings.Contains(err.Error(), "policy at index 0") {
		t.Errorf("Expected nil policy error, got %v", err)
	}
}

func TestRunnerNilProcessor(t *testing.T) {
	runner := NewRunner()

	err := runner.Run(context.Background(), []PolicyRunner{
		{Policy: &receiptPolicy{name: "receipts"}, Processor: nil},
	})
	if err == nil || !strings.Contains(err.Error(), "processor at index 0") {
		t.Errorf("Expected nil processor error, got %v", err)
	}
}

func TestRunnerStopsOnCancellation(t *testing.T) {
	runner := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx, []PolicyRunner{
			{Policy: &receiptPolicy{name: "receipts", ledgerID: uuid.New()}, Processor: newIdleProcessor()},
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Runner did not stop after cancellation")
	}
}

func TestRunnerFailFast(t *testing.T) {
	mapper := newProcessMapper()
	upstream := memory.NewRecorder()
	placeOrders(t, upstream, mapper, 1)

	config := DefaultProcessorConfig()
	config.PollInterval = 5 * time.Millisecond
	failing := NewProcessor(
		application.NewLocalNotificationLog(upstream, 10),
		memory.NewRecorder(), mapper, config)

	runner := NewRunner()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// One healthy idle policy, one failing policy: the failure cancels
	// the healthy one and surfaces.
	err := runner.Run(ctx, []PolicyRunner{
		{Policy: &receiptPolicy{name: "healthy", ledgerID: uuid.New()}, Processor: newIdleProcessor()},
		{Policy: &receiptPolicy{name: "broken", ledgerID: uuid.New(), fail: true}, Processor: failing},
	})
	if !errors.Is(err, ErrProcessorStopped) {
		t.Fatalf("Expected ErrProcessorStopped, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Expected failing policy named in error, got %v", err)
	}
}
