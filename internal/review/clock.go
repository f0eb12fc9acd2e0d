package review

import (
	"sync"
	"time"
)

// Ticker is a running repeating callback. Stop must be safe to call more
// than once.
type Ticker interface {
	Stop()
}

// Clock starts repeating callbacks.
type Clock interface {
	Every(d time.Duration, fn func()) Ticker
}

// SystemClock runs each callback on its own goroutine driven by a
// time.Ticker.
type SystemClock struct{}

// Every calls fn every d until the returned ticker is stopped.
func (SystemClock) Every(d time.Duration, fn func()) Ticker {
	t := &systemTicker{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

type systemTicker struct {
	once sync.Once
	done chan struct{}
}

func (t *systemTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}

// ManualClock only ticks when told to. It drives sessions deterministically
// in tests and in callers that own their own event loop.
type ManualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	clock   *ManualClock
	fn      func()
	stopped bool
}

// Every registers fn; it runs on each call to Tick.
func (c *ManualClock) Every(_ time.Duration, fn func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{clock: c, fn: fn}
	c.tickers = append(c.tickers, t)
	return t
}

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// Tick fires every live ticker n times.
func (c *ManualClock) Tick(n int) {
	for i := 0; i < n; i++ {
		c.mu.Lock()
		var live []func()
		for _, t := range c.tickers {
			if !t.stopped {
				live = append(live, t.fn)
			}
		}
		c.mu.Unlock()

		for _, fn := range live {
			fn()
		}
	}
}

// Live returns the number of tickers that have not been stopped.
func (c *ManualClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}
