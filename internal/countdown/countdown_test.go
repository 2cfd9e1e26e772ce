package countdown

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time {
	return f.ch
}

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// fakeTickers hands out controllable tickers and remembers them.
type fakeTickers struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *fakeTickers) factory(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *fakeTickers) get(i int) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[i]
}

func (f *fakeTickers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func next(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no state published")
		return State{}
	}
}

func TestTimer_CountsDownToZero(t *testing.T) {
	ft := &fakeTickers{}
	timer := NewTimer(WithTicker(ft.factory))
	states, unsubscribe := timer.Subscribe()
	defer unsubscribe()

	assert.Equal(t, State{Armed: false, Remaining: 30}, timer.State())

	timer.Arm()
	assert.Equal(t, State{Armed: true, Remaining: 30}, next(t, states))

	ticker := ft.get(0)
	for want := 29; want > 0; want-- {
		ticker.ch <- time.Now()
		assert.Equal(t, State{Armed: true, Remaining: want}, next(t, states))
	}

	ticker.ch <- time.Now()
	assert.Equal(t, State{Armed: false, Remaining: 30}, next(t, states))
	assert.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)
}

func TestTimer_RearmRestarts(t *testing.T) {
	ft := &fakeTickers{}
	timer := NewTimer(WithTicker(ft.factory))
	states, unsubscribe := timer.Subscribe()
	defer unsubscribe()

	timer.Arm()
	next(t, states)
	first := ft.get(0)
	for i := 0; i < 5; i++ {
		first.ch <- time.Now()
		next(t, states)
	}
	assert.Equal(t, 25, timer.State().Remaining)

	timer.Arm()
	assert.Equal(t, State{Armed: true, Remaining: 30}, next(t, states))
	require.Equal(t, 2, ft.count())
	assert.Eventually(t, first.isStopped, time.Second, 5*time.Millisecond)

	second := ft.get(1)
	second.ch <- time.Now()
	assert.Equal(t, State{Armed: true, Remaining: 29}, next(t, states))
}

func TestTimer_Stop(t *testing.T) {
	ft := &fakeTickers{}
	timer := NewTimer(WithTicker(ft.factory), WithStart(5))

	timer.Arm()
	timer.Stop()

	assert.Equal(t, State{Armed: false, Remaining: 5}, timer.State())
	assert.Eventually(t, ft.get(0).isStopped, time.Second, 5*time.Millisecond)

	// stopping twice is harmless
	timer.Stop()
	assert.Equal(t, 1, ft.count())
}

func TestTimer_Unsubscribe(t *testing.T) {
	timer := NewTimer(WithTicker((&fakeTickers{}).factory))
	_, unsubscribe := timer.Subscribe()
	assert.Equal(t, 1, timer.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, timer.Subscribers())
}

func TestRegistry(t *testing.T) {
	ft := &fakeTickers{}
	reg := NewRegistry(WithTicker(ft.factory))

	assert.Equal(t, State{Remaining: 30}, reg.State("alice"))

	reg.Arm("alice")
	assert.True(t, reg.State("alice").Armed)
	assert.False(t, reg.State("bob").Armed)

	reg.Stop("alice")
	reg.Stop("nobody")
	assert.False(t, reg.State("alice").Armed)

	assert.Equal(t, 1, reg.Prune())
	assert.Equal(t, 0, reg.Prune())

	reg.Arm("bob")
	reg.Close()
	assert.False(t, reg.State("bob").Armed)
}

func TestRegistry_PruneKeepsTimersInUse(t *testing.T) {
	ft := &fakeTickers{}
	reg := NewRegistry(WithTicker(ft.factory))

	states, unsubscribe := reg.Subscribe("alice")
	assert.Zero(t, reg.Prune(), "a watched timer is kept")

	reg.Arm("alice")
	assert.Equal(t, State{Armed: true, Remaining: 30}, next(t, states))

	reg.Stop("alice")
	assert.Equal(t, State{Remaining: 30}, next(t, states))
	assert.Zero(t, reg.Prune())

	unsubscribe()
	assert.Equal(t, 1, reg.Prune())
}

func TestRegistry_ConcurrentPrune(t *testing.T) {
	ft := &fakeTickers{}
	reg := NewRegistry(WithTicker(ft.factory))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				reg.Prune()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		id := "user-" + strconv.Itoa(i)

		states, unsubscribe := reg.Subscribe(id)
		reg.Arm(id)
		require.True(t, reg.State(id).Armed, "arm for %s was lost", id)
		require.Equal(t, State{Armed: true, Remaining: 30}, next(t, states), "subscriber for %s was orphaned", id)

		unsubscribe()
		reg.Stop(id)
	}

	close(done)
	wg.Wait()
	reg.Close()
}
