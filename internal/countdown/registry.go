package countdown

import "sync"

// Registry keeps one Timer per user id.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*Timer
	opts   []Option
}

// NewRegistry returns an empty registry. opts apply to every timer it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		timers: make(map[string]*Timer),
		opts:   opts,
	}
}

// timer returns the timer for userID, creating it when missing. Caller holds mu.
func (r *Registry) timer(userID string) *Timer {
	t, ok := r.timers[userID]
	if !ok {
		t = NewTimer(r.opts...)
		r.timers[userID] = t
	}
	return t
}

// Arm restarts the countdown for userID.
func (r *Registry) Arm(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer(userID).Arm()
}

// Stop cancels the countdown for userID.
func (r *Registry) Stop(userID string) {
	r.mu.Lock()
	t, ok := r.timers[userID]
	r.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// State returns the countdown for userID. Unknown ids are disarmed.
func (r *Registry) State(userID string) State {
	r.mu.Lock()
	t, ok := r.timers[userID]
	r.mu.Unlock()
	if !ok {
		return NewTimer(r.opts...).State()
	}
	return t.State()
}

// Subscribe follows the countdown for userID.
func (r *Registry) Subscribe(userID string) (<-chan State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer(userID).Subscribe()
}

// Prune drops disarmed timers nobody is watching. Arm and Subscribe act on
// the timer under the same lock, so a timer is never dropped between lookup
// and use.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.timers {
		if !t.State().Armed && t.Subscribers() == 0 {
			delete(r.timers, id)
			n++
		}
	}
	return n
}

// Close stops every timer.
func (r *Registry) Close() {
	r.mu.Lock()
	timers := make([]*Timer, 0, len(r.timers))
	for _, t := range r.timers {
		timers = append(timers, t)
	}
	r.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
