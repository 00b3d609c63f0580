// ABOUTME: Submit guard that rejects the same prompt sent twice to one conversation in a short window
// ABOUTME: Bounded TTL set with insertion-ordered eviction and a background sweeper

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds how many recent submissions are remembered
const DefaultMaxEntries = 1024

// sweepInterval is how often expired submissions are dropped
const sweepInterval = time.Minute

type entry struct {
	at      time.Time
	element *list.Element
}

// Guard remembers recent (conversation, prompt) submissions so accidental
// double submits are ignored. A zero or negative window disables it.
type Guard struct {
	mu         sync.Mutex
	seen       map[string]*entry
	order      *list.List // keys, oldest at front
	window     time.Duration
	maxEntries int
	now        func() time.Time

	done   chan struct{}
	closed bool
}

// Option configures a Guard
type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithMaxEntries overrides DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxEntries = n
		}
	}
}

// NewGuard creates a guard with the given duplicate window.
// Call Close to stop the background sweeper.
func NewGuard(window time.Duration, opts ...Option) *Guard {
	g := &Guard{
		seen:       make(map[string]*entry),
		order:      list.New(),
		window:     window,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.sweep()
	return g
}

// Key builds the lookup key for a submission. Surrounding whitespace in the
// prompt is ignored.
func Key(conversationID, prompt string) string {
	return conversationID + "\x00" + strings.TrimSpace(prompt)
}

// Allow reports whether prompt may be submitted to conversationID, and
// records it if so. Checking and recording happen atomically.
func (g *Guard) Allow(conversationID, prompt string) bool {
	if g.window <= 0 {
		return true
	}
	key := Key(conversationID, prompt)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.seen[key]; ok && now.Sub(e.at) < g.window {
		return false
	}
	g.recordLocked(key, now)
	return true
}

// Forget drops a recorded submission so it may be sent again immediately,
// used when the submission never reached the service.
func (g *Guard) Forget(conversationID, prompt string) {
	key := Key(conversationID, prompt)

	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.seen[key]; ok {
		g.order.Remove(e.element)
		delete(g.seen, key)
	}
}

// Len returns the number of remembered submissions, expired or not.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Guard) recordLocked(key string, now time.Time) {
	if e, ok := g.seen[key]; ok {
		e.at = now
		g.order.MoveToBack(e.element)
		return
	}

	if len(g.seen) >= g.maxEntries {
		if front := g.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			g.order.Remove(front)
			delete(g.seen, oldest)
		}
	}

	g.seen[key] = &entry{at: now, element: g.order.PushBack(key)}
}

func (g *Guard) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Expire()
		case <-g.done:
			return
		}
	}
}

// Expire drops every submission older than the window.
func (g *Guard) Expire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, e := range g.seen {
		if now.Sub(e.at) >= g.window {
			g.order.Remove(e.element)
			delete(g.seen, key)
		}
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
