package onboarding

import (
	"sync"
	"time"
)

// DefaultDraftDebounce is the quiescence window before a draft is written
const DefaultDraftDebounce = 800 * time.Millisecond

// debouncer runs the latest scheduled function for a step once no newer call
// has arrived within the window.
type debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	timers  map[Step]*time.Timer
	gen     map[Step]uint64
	stopped bool
}

func newDebouncer(wait time.Duration) *debouncer {
	if wait <= 0 {
		wait = DefaultDraftDebounce
	}
	return &debouncer{
		wait:   wait,
		timers: make(map[Step]*time.Timer),
		gen:    make(map[Step]uint64),
	}
}

// Schedule (re)arms the timer for step with fn
func (d *debouncer) Schedule(step Step, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[step]; ok {
		t.Stop()
	}
	d.gen[step]++
	gen := d.gen[step]

	d.timers[step] = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if d.gen[step] != gen {
			d.mu.Unlock()
			return
		}
		delete(d.timers, step)
		d.mu.Unlock()

		fn()
	})
}

// Cancel drops a pending call for step and reports whether one was pending
func (d *debouncer) Cancel(step Step) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen[step]++
	t, ok := d.timers[step]
	if !ok {
		return false
	}
	delete(d.timers, step)
	return t.Stop()
}

// Pending reports whether a call for step is waiting to fire
func (d *debouncer) Pending(step Step) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.timers[step]
	return ok
}

// Stop cancels every pending call; later Schedule calls are ignored
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for step, t := range d.timers {
		t.Stop()
		d.gen[step]++
		delete(d.timers, step)
	}
}
