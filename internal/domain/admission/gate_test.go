package admission_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/sentiment/internal/domain/admission"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGateCapacity(t *testing.T) {
	Convey("Given a gate with two permits", t, func() {
		g := admission.New(2)

		Convey("Then two acquisitions succeed and the third is refused without blocking", func() {
			So(g.TryAcquire(), ShouldBeTrue)
			So(g.TryAcquire(), ShouldBeTrue)

			start := time.Now()
			So(g.TryAcquire(), ShouldBeFalse)
			So(time.Since(start), ShouldBeLessThan, 50*time.Millisecond)
			So(g.InUse(), ShouldEqual, 2)

			Convey("And a release frees a permit", func() {
				g.Release()
				So(g.InUse(), ShouldEqual, 1)
				So(g.TryAcquire(), ShouldBeTrue)
				g.Release()
				g.Release()
				So(g.InUse(), ShouldEqual, 0)
				So(g.Stats(), ShouldResemble, admission.Stats{Capacity: 2, InUse: 0, Granted: 3, Rejected: 1})
			})
		})
	})
}

func TestGateCoercesCapacity(t *testing.T) {
	Convey("Given non-positive capacities", t, func() {
		for _, c := range []int{0, -5} {
			g := admission.New(c)
			So(g.Capacity(), ShouldEqual, 1)
			So(g.TryAcquire(), ShouldBeTrue)
			So(g.TryAcquire(), ShouldBeFalse)
			g.Release()
		}
	})
}

func TestGateReleaseWithoutPermit(t *testing.T) {
	Convey("Given a gate with no permit held", t, func() {
		g := admission.New(1)

		Convey("Then Release panics and the gate stays usable", func() {
			So(g.Release, ShouldPanicWith, admission.ErrNotHeld)
			So(g.InUse(), ShouldEqual, 0)
			So(g.TryAcquire(), ShouldBeTrue)
			g.Release()
		})
	})
}

func TestGateDo(t *testing.T) {
	Convey("Given a gate with one permit", t, func() {
		g := admission.New(1)
		boom := errors.New("boom")

		Convey("When fn fails the permit is still returned", func() {
			err := g.Do(func() error { return boom })
			So(err, ShouldEqual, boom)
			So(g.InUse(), ShouldEqual, 0)
		})

		Convey("When fn panics the permit is still returned", func() {
			So(func() { _ = g.Do(func() error { panic("store exploded") }) }, ShouldPanic)
			So(g.InUse(), ShouldEqual, 0)
		})

		Convey("When the gate is exhausted fn is not called", func() {
			So(g.TryAcquire(), ShouldBeTrue)
			called := false
			err := g.Do(func() error { called = true; return nil })
			So(errors.Is(err, admission.ErrRejected), ShouldBeTrue)
			So(called, ShouldBeFalse)
			g.Release()
		})
	})
}

func TestGateNeverExceedsCapacity(t *testing.T) {
	Convey("Given many goroutines racing for few permits", t, func() {
		const capacity = 3
		g := admission.New(capacity)

		var (
			wg      sync.WaitGroup
			holders atomic.Int64
			peak    atomic.Int64
			served  atomic.Int64
			refused atomic.Int64
		)
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := g.Do(func() error {
					n := holders.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					holders.Add(-1)
					return nil
				})
				if err != nil {
					refused.Add(1)
					return
				}
				served.Add(1)
			}()
		}
		wg.Wait()

		Convey("Then at most capacity callers ever held a permit at once", func() {
			So(peak.Load(), ShouldBeLessThanOrEqualTo, capacity)
			So(peak.Load(), ShouldBeGreaterThan, 0)
			So(served.Load()+refused.Load(), ShouldEqual, 200)
			So(g.InUse(), ShouldEqual, 0)
		})
	})
}
