package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoPolicies indicates that no policies were provided to run.
	ErrNoPolicies = errors.New("no policies provided")
)

// PolicyRunner pairs a policy with the processor that drives it.
// Each processor knows its own upstream log and downstream store, so
// one runner can chain applications across different backends.
type PolicyRunner struct {
	Policy    Policy
	Processor *Processor
}

// Runner orchestrates multiple policies concurrently.
type Runner struct{}

// NewRunner creates a new policy runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run runs multiple policies concurrently until the context is
// canceled. Each policy runs in its own goroutine with its processor.
//
// If a policy fails, all other policies are canceled and the error is
// returned. This ensures fail-fast behavior. It is safe to run the
// same policies in several processes: coordination happens through the
// tracking records in the store.
func (r *Runner) Run(ctx context.Context, runners []PolicyRunner) error {
	if len(runners) == 0 {
		return ErrNoPolicies
	}

	for i, pr := range runners {
		if pr.Policy == nil {
			return fmt.Errorf("policy at index %d is nil", i)
		}
		if pr.Processor == nil {
			return fmt.Errorf("processor at index %d is nil", i)
		}
	}

	// Create a context that we can cancel if any policy fails
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, len(runners))

	for _, pr := range runners {
		wg.Add(1)
		go func(pr PolicyRunner) {
			defer wg.Done()

			err := pr.Processor.Run(ctx, pr.Policy)

			// Only report errors that aren't from context cancellation
			if err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("policy %q failed: %w", pr.Policy.Name(), err)
			}
		}(pr)
	}

	// Wait for all policies to complete or for an error
	go func() {
		wg.Wait()
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			cancel()
			return err
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
