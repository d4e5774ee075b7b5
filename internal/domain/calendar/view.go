package calendar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aioc/hospital-console/internal/platform/metrics"
)

// ErrSuperseded is returned when a load finishes after a newer load of the
// same view was started. Its result has been discarded.
var ErrSuperseded = errors.New("calendar: load superseded by a newer request")

// Month identifies a visible month; MonthIndex is zero-based.
type Month struct {
	Year       int
	MonthIndex int
}

// View is the calendar state of one browser session: the last committed
// month and its Map. Each load takes a token from Begin and may only commit
// while that token is still the latest.
type View struct {
	token atomic.Uint64

	mu        sync.Mutex
	month     Month
	m         Map
	committed bool
	lastUsed  time.Time
}

// Begin starts a load and returns its token.
func (v *View) Begin() uint64 {
	v.touch()
	return v.token.Add(1)
}

// Current reports whether token belongs to the most recently begun load.
func (v *View) Current(token uint64) bool {
	return v.token.Load() == token
}

// Commit installs m as the view's state for month if token is still current.
func (v *View) Commit(token uint64, month Month, m Map) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.token.Load() != token {
		return ErrSuperseded
	}
	v.month = month
	v.m = m
	v.committed = true
	v.lastUsed = time.Now()
	return nil
}

// Fallback returns the last committed Map when it is for month, otherwise
// an empty Map.
func (v *View) Fallback(month Month) Map {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.committed && v.month == month {
		return v.m
	}
	return Map{}
}

func (v *View) touch() {
	v.mu.Lock()
	v.lastUsed = time.Now()
	v.mu.Unlock()
}

func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

// Views holds one View per session ID.
type Views struct {
	mu    sync.Mutex
	views map[string]*View
}

func NewViews() *Views {
	return &Views{views: make(map[string]*View)}
}

// Get returns the view for id, creating it on first use.
func (r *Views) Get(id string) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		v = &View{lastUsed: time.Now()}
		r.views[id] = v
	}
	return v
}

// Drop forgets the view for id, typically on logout.
func (r *Views) Drop(id string) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

// Rename moves the view of oldID, if any, to newID.
func (r *Views) Rename(oldID, newID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[oldID]; ok {
		delete(r.views, oldID)
		r.views[newID] = v
	}
}

func (r *Views) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep removes views unused since before now-idle and returns how many
// were removed.
func (r *Views) Sweep(now time.Time, idle time.Duration) int {
	cutoff := now.Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, v := range r.views {
		if v.idleSince().Before(cutoff) {
			delete(r.views, id)
			n++
		}
	}
	return n
}

// Run sweeps idle views every interval until ctx is done.
func (r *Views) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now, idle)
			metrics.SetCalendarViews(r.Len())
		}
	}
}
