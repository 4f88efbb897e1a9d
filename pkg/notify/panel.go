package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/greonxpert/console/pkg/logging"
)

// Fetcher loads the current list for a REST resource. api.Client
// implements it.
type Fetcher interface {
	List(ctx context.Context, resource string) ([]map[string]any, error)
}

// Panel mirrors one room's list. Events are folded in through Reduce;
// refresh events trigger a throttled refetch. When a refetch and an event
// race, whichever lands last wins.
type Panel struct {
	room     string
	fetch    Fetcher
	limiter  *rate.Limiter
	onChange func([]Item)
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	items   []Item
	err     error
	seq     uint64 // last refetch started
	applied uint64 // last refetch applied
	version uint64 // bumped on every change to items
	closed  bool

	// notifyMu orders onChange calls; delivered is the newest version
	// handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithRefetchLimit throttles refetches to r per second with the given burst.
func WithRefetchLimit(r rate.Limit, burst int) PanelOption {
	return func(p *Panel) { p.limiter = rate.NewLimiter(r, burst) }
}

// WithOnChange registers fn to receive a copy of the list after every
// change. Calls never overlap and never go back to an older list: a
// snapshot superseded before it could be delivered is skipped.
func WithOnChange(fn func([]Item)) PanelOption {
	return func(p *Panel) { p.onChange = fn }
}

// WithPanelLogger sets the logger.
func WithPanelLogger(l logging.Logger) PanelOption {
	return func(p *Panel) { p.logger = l }
}

// NewPanel creates a panel for room. The room name doubles as the REST
// resource fetched on refresh.
func NewPanel(room string, f Fetcher, opts ...PanelOption) *Panel {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		room:    room,
		fetch:   f,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		logger:  logging.Nop{},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Room returns the panel's room.
func (p *Panel) Room() string { return p.room }

// Items returns a copy of the current list.
func (p *Panel) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.items)
}

// Err returns the error of the last refetch, if it failed.
func (p *Panel) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Apply folds ev into the list. Events for other rooms are ignored.
func (p *Panel) Apply(ev Event) {
	if ev.Room != "" && ev.Room != p.room {
		return
	}
	if ev.Action == ActionRefresh {
		p.Refresh()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	next := Reduce(p.items, ev)
	changed := !sameBacking(next, p.items)
	p.items = next
	if changed {
		p.version++
	}
	version, snapshot := p.version, slices.Clone(next)
	p.mu.Unlock()

	if changed {
		p.logger.Debug("list updated", logging.Room(p.room), logging.String("action", string(ev.Action)))
		p.notify(version, snapshot)
	}
}

// Refresh refetches the list in the background.
func (p *Panel) Refresh() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.seq++
	seq := p.seq
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.limiter.Wait(p.ctx); err != nil {
			return
		}
		raw, err := p.fetch.List(p.ctx, p.room)

		p.mu.Lock()
		if p.closed || seq < p.applied {
			p.mu.Unlock()
			return
		}
		p.applied = seq
		if err != nil {
			p.err = err
			p.mu.Unlock()
			p.logger.Warn("refetch failed", logging.Room(p.room), logging.Err(err))
			return
		}
		p.err = nil
		p.items = make([]Item, len(raw))
		for i, r := range raw {
			p.items[i] = Item(r)
		}
		p.version++
		version, snapshot := p.version, slices.Clone(p.items)
		p.mu.Unlock()

		p.logger.Debug("list refetched", logging.Room(p.room), logging.Int("items", len(snapshot)))
		p.notify(version, snapshot)
	}()
}

// Run applies events until the channel closes or ctx ends.
func (p *Panel) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Apply(ev)
		}
	}
}

// Close stops pending refetches and waits for them. Results that arrive
// afterwards are discarded.
func (p *Panel) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

func (p *Panel) notify(version uint64, items []Item) {
	if p.onChange == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if version <= p.delivered {
		return
	}
	p.delivered = version
	p.onChange(items)
}

// sameBacking reports whether a and b are the same slice, which is how
// Reduce signals that nothing changed.
func sameBacking(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
