// Package feedback holds the transient add-to-cart button state. It never
// touches cart contents.
package feedback

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Button labels.
const (
	LabelIdle  = "Ajouter au panier"
	LabelAdded = "Ajouté ✓"
)

// DefaultDuration is how long a button shows LabelAdded.
const DefaultDuration = 1200 * time.Millisecond

// Flasher tracks one cancellable revert timer per button key. Flashing a key
// that is already flashing replaces its timer.
type Flasher struct {
	clock    clock.Clock
	duration time.Duration

	mu     sync.Mutex
	next   uint64
	active map[string]flash
}

type flash struct {
	timer *clock.Timer
	gen   uint64
}

// New creates a Flasher. A nil clock means the wall clock.
func New(clk clock.Clock, duration time.Duration) *Flasher {
	if clk == nil {
		clk = clock.New()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Flasher{
		clock:    clk,
		duration: duration,
		active:   make(map[string]flash),
	}
}

// Key identifies a button: one product on one visitor's page.
func Key(sessionID, productID string) string {
	return sessionID + "/" + productID
}

// Flash switches key to LabelAdded until the duration elapses.
func (f *Flasher) Flash(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.active[key]; ok {
		prev.timer.Stop()
	}
	f.next++
	gen := f.next
	f.active[key] = flash{
		timer: f.clock.AfterFunc(f.duration, func() { f.expire(key, gen) }),
		gen:   gen,
	}
}

func (f *Flasher) expire(key string, gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// A replaced timer may still fire after Stop lost the race.
	if cur, ok := f.active[key]; ok && cur.gen == gen {
		delete(f.active, key)
	}
}

// Cancel reverts key immediately. It reports whether key was flashing.
func (f *Flasher) Cancel(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.active[key]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(f.active, key)
	return true
}

// Active reports whether key currently shows LabelAdded.
func (f *Flasher) Active(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.active[key]
	return ok
}

// Label returns the label the button for key shows now.
func (f *Flasher) Label(key string) string {
	if f.Active(key) {
		return LabelAdded
	}
	return LabelIdle
}

// Len returns the number of flashing buttons.
func (f *Flasher) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

// Stop cancels every pending timer.
func (f *Flasher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, cur := range f.active {
		cur.timer.Stop()
		delete(f.active, key)
	}
}
