// Package debounce coalesces bursts of events into one callback.
package debounce

import (
	"sync"
	"time"
)

// DefaultDuration is used when NewDebouncer gets zero.
const DefaultDuration = 250 * time.Millisecond

// Debouncer runs only the last callback of a burst, after the burst has
// been quiet for the configured duration.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	seq      uint64
}

func NewDebouncer(duration time.Duration) *Debouncer {
	if duration == 0 {
		duration = DefaultDuration
	}
	return &Debouncer{duration: duration}
}

// Trigger (re)schedules callback.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		// A timer that already fired can lose the race with Stop; the
		// sequence check drops its callback.
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		callback()
	})
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
