// Package saga records compensating actions for steps that already committed
// and runs them in reverse when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Compensation undoes one committed step.
type Compensation func(ctx context.Context) error

// StepError reports a compensation that could not be applied.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("saga: compensate %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

type step struct {
	name string
	undo Compensation
}

// Saga is a scoped list of compensations. A Saga is either committed or
// rolled back exactly once; after that further calls are no-ops.
type Saga struct {
	mu       sync.Mutex
	steps    []step
	finished bool
}

func New() *Saga { return &Saga{} }

// Record registers the compensation for a step that has just committed.
func (s *Saga) Record(name string, undo Compensation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || undo == nil {
		return
	}
	s.steps = append(s.steps, step{name: name, undo: undo})
}

// Len is the number of recorded compensations.
func (s *Saga) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Commit discards the recorded compensations.
func (s *Saga) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.steps = nil
}

// Rollback runs every recorded compensation in reverse order of recording.
// A failing compensation does not stop the remaining ones; all failures are
// returned joined. The context is detached from the caller's cancellation so
// an aborted request still gives its reservations back.
func (s *Saga) Rollback(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return nil
	}
	s.finished = true
	steps := s.steps
	s.steps = nil
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		if err := st.undo(ctx); err != nil {
			errs = append(errs, &StepError{Step: st.name, Err: err})
		}
	}
	return errors.Join(errs...)
}
