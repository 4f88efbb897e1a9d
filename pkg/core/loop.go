package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/greonxpert/console/pkg/logging"
)

// Loop errors.
var (
	ErrLoopStopped    = errors.New("loop is stopped")
	ErrLoopNotStarted = errors.New("loop is not started")
	ErrAlreadyStarted = errors.New("loop already started")
)

// Loop owns one component and delivers its events and infos sequentially
// on a single goroutine. Tasks spawned by the component run on their own
// goroutines; their results re-enter the loop as infos. Results that arrive
// after Stop are dropped.
type Loop struct {
	id      string
	comp    Component
	flashes *Flashes
	logger  logging.Logger

	inbox chan envelope
	ctx   context.Context
	stop  context.CancelFunc
	done  chan struct{}
	tasks sync.WaitGroup

	started  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once
}

type envelope struct {
	event   string
	payload map[string]any
	info    any
	isInfo  bool
	call    func(ctx context.Context) error
	reply   chan error
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLogger sets the loop logger.
func WithLogger(l logging.Logger) LoopOption {
	return func(lp *Loop) { lp.logger = l }
}

// WithLoopFlashes sets the banner set exposed to the component through its context.
func WithLoopFlashes(f *Flashes) LoopOption {
	return func(lp *Loop) { lp.flashes = f }
}

// WithInboxSize sets the inbox buffer.
func WithInboxSize(n int) LoopOption {
	return func(lp *Loop) { lp.inbox = make(chan envelope, n) }
}

// NewLoop creates a loop for comp. Call Start to mount it.
func NewLoop(comp Component, opts ...LoopOption) *Loop {
	l := &Loop{
		id:     uuid.NewString(),
		comp:   comp,
		logger: logging.Default,
		inbox:  make(chan envelope, 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.flashes == nil {
		l.flashes = NewFlashes(DefaultFlashTTL)
	}
	l.logger = l.logger.With(logging.Component(comp.Name()), logging.String("loop_id", l.id))
	return l
}

// ID returns the loop's unique identifier.
func (l *Loop) ID() string { return l.id }

// Flashes returns the loop's banner set.
func (l *Loop) Flashes() *Flashes { return l.flashes }

// Start mounts the component on the loop goroutine and begins processing.
func (l *Loop) Start(parent context.Context, params Params, session Session) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	ctx = WithSpawner(ctx, SpawnerFunc(l.spawn))
	ctx = WithFlashes(ctx, l.flashes)
	ctx = logging.ContextWithLogger(ctx, l.logger)
	l.ctx, l.stop = ctx, cancel

	go l.run()

	return l.Call(parent, func(ctx context.Context) error {
		return l.comp.Mount(ctx, params, session)
	})
}

// Send delivers an event and waits until the component has handled it.
func (l *Loop) Send(ctx context.Context, event string, payload map[string]any) error {
	return l.enqueue(ctx, envelope{event: event, payload: payload, reply: make(chan error, 1)})
}

// Post delivers an event without waiting for it to be handled.
func (l *Loop) Post(event string, payload map[string]any) error {
	if !l.started.Load() {
		return ErrLoopNotStarted
	}
	if l.stopping.Load() {
		return ErrLoopStopped
	}
	select {
	case l.inbox <- envelope{event: event, payload: payload}:
		return nil
	case <-l.ctx.Done():
		return ErrLoopStopped
	}
}

// Call runs fn on the loop goroutine, serialized with events and infos.
// Hosts use it to read component state safely.
func (l *Loop) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.enqueue(ctx, envelope{call: fn, reply: make(chan error, 1)})
}

func (l *Loop) enqueue(ctx context.Context, env envelope) error {
	if !l.started.Load() {
		return ErrLoopNotStarted
	}
	if l.stopping.Load() {
		return ErrLoopStopped
	}
	select {
	case l.inbox <- env:
	case <-l.ctx.Done():
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.reply:
		return err
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case env := <-l.inbox:
			err := l.handle(env)
			if env.reply != nil {
				env.reply <- err
			}
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Loop) handle(env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component panic: %v", r)
			l.logger.Error("component panicked", logging.Any("panic", r))
		}
	}()

	switch {
	case env.call != nil:
		return env.call(l.ctx)
	case env.isInfo:
		return l.comp.HandleInfo(l.ctx, env.info)
	default:
		if err := l.comp.HandleEvent(l.ctx, env.event, env.payload); err != nil {
			l.logger.Warn("event failed", logging.String("event", env.event), logging.Err(err))
			return err
		}
		return nil
	}
}

func (l *Loop) spawn(name string, task Task) {
	if l.stopping.Load() {
		return
	}
	l.tasks.Add(1)
	go func() {
		defer l.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("task panicked", logging.String("task", name), logging.Any("panic", r))
			}
		}()

		result := task(l.ctx)

		if l.ctx.Err() != nil {
			l.logger.Debug("discarding task result after stop", logging.String("task", name))
			return
		}
		select {
		case l.inbox <- envelope{info: result, isInfo: true}:
		case <-l.ctx.Done():
			l.logger.Debug("discarding task result after stop", logging.String("task", name))
		}
	}()
}

// Stop terminates the component on its goroutine, cancels running tasks and
// waits for every goroutine the loop started. It is safe to call twice.
func (l *Loop) Stop(reason TerminateReason) error {
	if !l.started.Load() {
		return ErrLoopNotStarted
	}

	var err error
	l.stopOnce.Do(func() {
		reply := make(chan error, 1)
		select {
		case l.inbox <- envelope{call: func(ctx context.Context) error {
			l.stopping.Store(true)
			return l.comp.Terminate(ctx, reason)
		}, reply: reply}:
			err = <-reply
		case <-l.done:
		}
		l.stopping.Store(true)
		l.stop()
		<-l.done
		l.tasks.Wait()
	})
	return err
}

// Done is closed once the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} { return l.done }
