// Package admission bounds concurrent access to a resource with a fixed pool
// of permits. Acquisition never blocks: a caller either gets a permit now or
// is told to go away.
package admission

import (
	"sync/atomic"

	"github.com/okian/sentiment/pkg/metrics"
	"golang.org/x/sync/semaphore"
)

// Gate is a non-blocking counting semaphore. It is safe for concurrent use.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
	granted  atomic.Int64
	rejected atomic.Int64
}

// New creates a Gate with the given number of permits. A capacity <= 0 is
// coerced to 1.
func New(capacity int) *Gate {
	c := int64(capacity)
	if c <= 0 {
		c = 1
	}
	g := &Gate{capacity: c, sem: semaphore.NewWeighted(c)}
	metrics.UpdateAdmissionCapacity(int(c))
	metrics.UpdateAdmissionInFlight(0)
	return g
}

// TryAcquire takes a permit if one is free and reports whether it did.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		g.rejected.Add(1)
		metrics.RecordAdmissionRejected()
		return false
	}
	n := g.inUse.Add(1)
	g.granted.Add(1)
	metrics.RecordAdmissionGranted()
	metrics.UpdateAdmissionInFlight(n)
	return true
}

// Release returns a permit taken by TryAcquire. Releasing a permit that is
// not held panics.
func (g *Gate) Release() {
	n := g.inUse.Add(-1)
	if n < 0 {
		g.inUse.Add(1)
		panic(ErrNotHeld)
	}
	g.sem.Release(1)
	metrics.UpdateAdmissionInFlight(n)
}

// Do runs fn while holding a permit and releases it afterwards, also when fn
// panics. It returns ErrRejected without calling fn when no permit is free.
func (g *Gate) Do(fn func() error) error {
	if !g.TryAcquire() {
		return ErrRejected
	}
	defer g.Release()
	return fn()
}

// Capacity returns the fixed number of permits.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// InUse returns the number of permits currently held.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Stats is a point-in-time view of the gate counters.
type Stats struct {
	Capacity int   `json:"capacity"`
	InUse    int   `json:"in_use"`
	Granted  int64 `json:"granted"`
	Rejected int64 `json:"rejected"`
}

// Stats returns the current counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Capacity: g.Capacity(),
		InUse:    g.InUse(),
		Granted:  g.granted.Load(),
		Rejected: g.rejected.Load(),
	}
}
