package watcher

import (
	"sort"
	"time"
)

// debouncer coalesces bursts of writes to the same path. It is not safe for
// concurrent use; the watcher's event goroutine owns it.
type debouncer struct {
	delay   time.Duration
	pending map[string]time.Time // path -> last write
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, pending: make(map[string]time.Time)}
}

func (d *debouncer) add(path string, at time.Time) {
	d.pending[path] = at
}

func (d *debouncer) remove(path string) {
	delete(d.pending, path)
}

// due removes and returns the paths whose quiet period has elapsed, sorted.
func (d *debouncer) due(now time.Time) []string {
	var out []string
	for p, last := range d.pending {
		if !now.Before(last.Add(d.delay)) {
			out = append(out, p)
			delete(d.pending, p)
		}
	}
	sort.Strings(out)
	return out
}

// next returns the earliest deadline among pending paths.
func (d *debouncer) next() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, last := range d.pending {
		deadline := last.Add(d.delay)
		if !found || deadline.Before(earliest) {
			earliest, found = deadline, true
		}
	}
	return earliest, found
}
