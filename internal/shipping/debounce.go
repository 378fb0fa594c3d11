package shipping

import (
	"sync"
	"time"
)

// Debouncer runs only the last call triggered within a quiet period.
// Each run gets a token it can consult before publishing its result: once a
// newer call is triggered (or the debouncer is stopped) the token goes stale.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Token identifies one triggered call.
type Token struct {
	d   *Debouncer
	gen uint64
}

// Current reports whether no newer call has been triggered since this one.
func (t Token) Current() bool {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	return !t.d.stopped && t.d.gen == t.gen
}

// Trigger (re)schedules fn. A pending, not yet started fn is dropped.
// A fn already running keeps running; its token simply goes stale.
func (d *Debouncer) Trigger(fn func(Token)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.gen++
	tok := Token{d: d, gen: d.gen}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		if !tok.Current() {
			return
		}
		fn(tok)
	})
}

// Stop cancels the pending call and makes every outstanding token stale.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}
