package task

import (
	"sync"
	"time"
)

// Debouncer calls fn at most once per interval. A trigger that arrives
// inside the interval schedules one trailing call at its end, so the last
// request is never lost.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	last     time.Time
	timer    *time.Timer
	stopped  bool
}

func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.stopped || d.timer != nil {
		d.mu.Unlock()
		return
	}
	wait := d.interval - time.Since(d.last)
	if wait <= 0 {
		d.last = time.Now()
		d.mu.Unlock()
		d.fn()
		return
	}
	d.timer = time.AfterFunc(wait, d.fire)
	d.mu.Unlock()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.last = time.Now()
	d.mu.Unlock()
	d.fn()
}

// Stop drops any pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
}
