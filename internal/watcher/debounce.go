package watcher

import (
	"sync"
	"time"
)

// debouncer runs a callback once a key has been quiet for wait. Each
// schedule supersedes the previous one for the same key.
type debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	gen     uint64
	pending map[string]debounced
}

type debounced struct {
	timer *time.Timer
	gen   uint64
}

func newDebouncer(wait time.Duration) *debouncer {
	return &debouncer{wait: wait, pending: make(map[string]debounced)}
}

func (d *debouncer) schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending[key] = debounced{
		gen: gen,
		timer: time.AfterFunc(d.wait, func() {
			if d.fire(key, gen) {
				fn()
			}
		}),
	}
}

// fire clears key if gen is its latest schedule. A timer that lost the race
// with Stop sees a newer gen and leaves that entry alone.
func (d *debouncer) fire(key string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen {
		return false
	}
	delete(d.pending, key)
	return true
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		p.timer.Stop()
	}
	clear(d.pending)
}

func (d *debouncer) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
