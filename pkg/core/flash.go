package core

import (
	"sync"
	"time"
)

// FlashKind classifies a banner.
type FlashKind string

const (
	FlashInfo    FlashKind = "info"
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flash is a transient banner that dismisses itself after its TTL.
type Flash struct {
	Kind      FlashKind
	Message   string
	ExpiresAt time.Time
}

// DefaultFlashTTL is used when NewFlashes receives a non-positive TTL.
const DefaultFlashTTL = 5 * time.Second

// Flashes holds the banners of one component.
type Flashes struct {
	ttl   time.Duration
	now   func() time.Time
	items []Flash
	mu    sync.Mutex
}

// NewFlashes creates a banner set whose entries live for ttl.
func NewFlashes(ttl time.Duration) *Flashes {
	if ttl <= 0 {
		ttl = DefaultFlashTTL
	}
	return &Flashes{ttl: ttl, now: time.Now}
}

// SetClock replaces the time source (tests).
func (f *Flashes) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Put adds a banner. A banner with the same kind and message replaces the
// previous one so repeated failures extend rather than stack.
func (f *Flashes) Put(kind FlashKind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	expires := f.now().Add(f.ttl)
	for i := range f.items {
		if f.items[i].Kind == kind && f.items[i].Message == message {
			f.items[i].ExpiresAt = expires
			return
		}
	}
	f.items = append(f.items, Flash{Kind: kind, Message: message, ExpiresAt: expires})
}

// Active returns the banners that have not expired and drops the rest.
func (f *Flashes) Active() []Flash {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	kept := f.items[:0]
	for _, item := range f.items {
		if now.Before(item.ExpiresAt) {
			kept = append(kept, item)
		}
	}
	f.items = kept

	out := make([]Flash, len(kept))
	copy(out, kept)
	return out
}

// Last returns the most recent active banner of kind.
func (f *Flashes) Last(kind FlashKind) (Flash, bool) {
	active := f.Active()
	for i := len(active) - 1; i >= 0; i-- {
		if active[i].Kind == kind {
			return active[i], true
		}
	}
	return Flash{}, false
}

// Clear removes every banner.
func (f *Flashes) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
}
