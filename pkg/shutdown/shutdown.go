// Package shutdown runs ordered teardown steps for long-lived commands.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/greonxpert/console/pkg/logging"
)

// ErrTimeout is joined into the result when the deadline passes before
// every step ran.
var ErrTimeout = errors.New("shutdown timed out")

// Step is one teardown action.
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Sequence runs its steps once, in registration order, under one
// deadline. Later steps still run when an earlier one fails.
type Sequence struct {
	timeout time.Duration
	logger  logging.Logger

	steps []Step
	once  sync.Once
	err   error
	mu    sync.Mutex
}

// New creates a sequence bounded by timeout.
func New(timeout time.Duration, logger logging.Logger) *Sequence {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Sequence{timeout: timeout, logger: logger}
}

// Add appends a step.
func (s *Sequence) Add(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, Step{Name: name, Fn: fn})
}

// AddCloser appends a step closing c.
func (s *Sequence) AddCloser(name string, c interface{ Close() error }) {
	s.Add(name, func(context.Context) error { return c.Close() })
}

// Run executes the steps. Subsequent calls return the first result.
func (s *Sequence) Run() error {
	s.once.Do(func() {
		s.mu.Lock()
		steps := append([]Step(nil), s.steps...)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		var errs []error
		for i, st := range steps {
			if ctx.Err() != nil {
				s.logger.Warn("shutdown deadline passed", logging.Int("skipped", len(steps)-i))
				errs = append(errs, ErrTimeout)
				break
			}
			start := time.Now()
			err := st.Fn(ctx)
			s.logger.Debug("shutdown step finished",
				logging.String("step", st.Name),
				logging.Duration("took", time.Since(start)),
			)
			if err != nil {
				s.logger.Warn("shutdown step failed", logging.String("step", st.Name), logging.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", st.Name, err))
			}
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}
