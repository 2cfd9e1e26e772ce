// Package countdown implements the cooldown countdown shown to free users
// between requests. It is display state only: nothing here reads or writes
// subscription or usage records.
package countdown

import (
	"sync"
	"time"
)

// DefaultSeconds is where a countdown starts.
const DefaultSeconds = 30

// Ticker is the subset of *time.Ticker the timer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time {
	return s.t.C
}

func (s stdTicker) Stop() {
	s.t.Stop()
}

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// State is the displayed countdown.
type State struct {
	Armed     bool `json:"armed"`
	Remaining int  `json:"remaining"`
}

// Option configures a Timer.
type Option func(*Timer)

// WithTicker replaces the ticker factory.
func WithTicker(f TickerFactory) Option {
	return func(t *Timer) { t.newTicker = f }
}

// WithStart sets the starting value in seconds.
func WithStart(seconds int) Option {
	return func(t *Timer) {
		if seconds > 0 {
			t.start = seconds
		}
	}
}

// Timer counts down once per second from its start value to zero. Arming a
// running timer restarts it; there is never more than one tick loop.
type Timer struct {
	mu        sync.Mutex
	start     int
	remaining int
	armed     bool
	stop      chan struct{}
	newTicker TickerFactory
	subs      map[chan State]struct{}
}

// NewTimer returns a disarmed timer.
func NewTimer(opts ...Option) *Timer {
	t := &Timer{
		start:     DefaultSeconds,
		newTicker: NewStdTicker,
		subs:      make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.remaining = t.start
	return t
}

// Arm starts the countdown at its start value, cancelling any running one.
func (t *Timer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
	t.armed = true
	t.remaining = t.start
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.newTicker(time.Second)
	go t.run(stop, ticker)
	t.publish()
}

// Stop disarms the timer and resets the displayed value.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return
	}
	t.halt()
	t.armed = false
	t.remaining = t.start
	t.publish()
}

// State returns the current display state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Armed: t.armed, Remaining: t.remaining}
}

// Subscribe returns a channel receiving the latest state after every change
// and a function to unsubscribe. Slow readers only see the newest state.
func (t *Timer) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (t *Timer) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *Timer) run(stop chan struct{}, ticker Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if t.tick(stop) {
				return
			}
		}
	}
}

// tick advances the countdown and reports whether the loop should exit.
func (t *Timer) tick(stop chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != stop {
		// superseded by a later Arm or Stop
		return true
	}
	t.remaining--
	if t.remaining <= 0 {
		t.armed = false
		t.remaining = t.start
		t.stop = nil
		t.publish()
		return true
	}
	t.publish()
	return false
}

// halt ends the running loop, if any. Caller holds mu.
func (t *Timer) halt() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// publish sends the current state to every subscriber. Caller holds mu.
func (t *Timer) publish() {
	s := State{Armed: t.armed, Remaining: t.remaining}
	for ch := range t.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
