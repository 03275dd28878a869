package web

import (
	"sync"
	"time"

	"github.com/itsmostafa/funpad/internal/reload"
)

// CycleEvent is the JSON form of a reload cycle on the event stream.
type CycleEvent struct {
	Seq         int       `json:"seq"`
	Load        string    `json:"load"`
	Outcome     string    `json:"outcome"`
	Accepted    []string  `json:"accepted"`
	Unchanged   []string  `json:"unchanged"`
	Rejected    []string  `json:"rejected"`
	MainInvoked bool      `json:"main_invoked"`
	MainResult  string    `json:"main_result,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  float64   `json:"duration_ms"`
}

// NewCycleEvent converts c.
func NewCycleEvent(c reload.Cycle) CycleEvent {
	ev := CycleEvent{
		Seq:         c.Seq,
		Load:        c.Load,
		Outcome:     string(c.Outcome()),
		Accepted:    nonNil(c.Accepted),
		Unchanged:   nonNil(c.Unchanged),
		Rejected:    nonNil(c.Rejected),
		MainInvoked: c.MainInvoked,
		MainResult:  c.MainResult,
		StartedAt:   c.StartedAt,
		DurationMS:  float64(c.Duration.Microseconds()) / 1000,
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	return ev
}

// Broadcaster fans reload cycles out to event stream subscribers. It is a
// reload.Reporter. Slow subscribers miss events rather than stall the engine.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan CycleEvent]struct{}
	closed bool
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan CycleEvent]struct{})}
}

// Subscribe returns a channel of events and a function that ends the
// subscription. The channel is closed when the subscription ends.
func (b *Broadcaster) Subscribe() (<-chan CycleEvent, func()) {
	ch := make(chan CycleEvent, 16)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Report implements reload.Reporter.
func (b *Broadcaster) Report(c reload.Cycle) {
	ev := NewCycleEvent(c)

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
