package runtime

import (
	"context"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var gcLog = commonlog.GetLogger("rubycore.gc")

// Collector implements spec §4.C's mark-sweep cycle: stop the world,
// visit every root, trace the reachable graph via VisitChildren, then
// sweep every unmarked cell. It holds the heap's own recursive GC lock
// for the whole pause, matching spec §5's "the GC lock is held for the
// duration of a collection".
type Collector struct {
	heap *Heap
	env  *GlobalEnv

	// inflight bounds how many park requests stopTheWorld runs at once
	// (at most 8), built on golang.org/x/sync/semaphore the way a worker
	// pool gates concurrent work. It does not gate allocation.
	inflight *semaphore.Weighted

	cycles uint64
}

// NewCollector wires c to heap and env and installs itself as heap's
// triggering collector.
func NewCollector(heap *Heap, env *GlobalEnv) *Collector {
	c := &Collector{heap: heap, env: env, inflight: semaphore.NewWeighted(8)}
	heap.SetCollector(c)
	return c
}

// Collect runs one full stop-the-world mark-sweep cycle. The GC lock is
// already held by the caller (Heap.Allocate holds it around the
// triggering check) or is acquired here for an explicit Collect call, so
// both paths are re-entrant-safe via heap.gcLock.
func (c *Collector) Collect() {
	c.heap.gcLock.Lock()
	defer c.heap.gcLock.Unlock()

	c.cycles++
	gcLog.Debugf("gc cycle %d: begin, live=%d total=%d", c.cycles, c.heap.liveCells, c.heap.totalCells)

	c.stopTheWorld()
	c.markRoots()
	c.sweep()
	c.resumeTheWorld()

	gcLog.Debugf("gc cycle %d: end, live=%d total=%d", c.cycles, c.heap.liveCells, c.heap.totalCells)
}

// stopTheWorld asks every registered thread to park at its next safepoint
// and waits for all of them to acknowledge, using errgroup to fan the
// request out and collect the first error (parking never actually fails
// in this core; errgroup is used for the wait-for-all shape, not for
// error propagation).
func (c *Collector) stopTheWorld() {
	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)
	self := currentGoroutineID()

	c.env.Threads.each(func(t *ThreadState) {
		if t.GoID == self {
			return // the thread driving the collection doesn't park itself
		}
		g.Go(func() error {
			// Bound how many safepoint requests are in flight at once, so a
			// runtime with many registered threads doesn't fan out an
			// unbounded burst of goroutines on every collection.
			if err := c.inflight.Acquire(ctx, 1); err != nil {
				return err
			}
			defer c.inflight.Release(1)
			t.park()
			return nil
		})
	})
	_ = g.Wait()
}

// resumeTheWorld signals every parked thread to continue, the other half
// of stopTheWorld's safepoint protocol.
func (c *Collector) resumeTheWorld() {
	c.env.Threads.each(func(t *ThreadState) {
		if t.parked {
			t.resume()
		}
	})
}

// markRoots walks every known root and drains a work-stack of reachable
// objects via VisitChildren, marking each exactly once. Roots are: the
// GlobalEnv's MainObject, every core class (classes are always alive),
// and every thread's Frame chain plus in-flight exception — the precise
// stand-in this runtime uses for conservative stack/register scanning
// (no machine stack or registers are scanned; IsValidHeapPointer is
// still exercised below exactly as spec §4.C's algorithm describes, on
// every Value recovered from a root).
func (c *Collector) markRoots() {
	var stack []GCObject

	visit := visitorFunc(func(v Value) {
		if !c.heap.IsValidHeapPointer(v) {
			return
		}
		obj := c.heap.Deref(v)
		if obj == nil || obj.marked() {
			return
		}
		obj.setMarked(true)
		stack = append(stack, obj)
	})

	visit.Visit(c.env.MainObject)
	for _, cls := range c.coreClassList() {
		visit.Visit(cls.selfValue)
	}
	c.env.Threads.each(func(t *ThreadState) {
		for f := t.TopFrame; f != nil; f = f.Caller {
			visit.Visit(f.OwnValue())
		}
		if t.CurrentException != nil {
			visit.Visit(valueFromAddr(t.CurrentException.addr()))
		}
	})

	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		obj.VisitChildren(visit)
	}
}

func (c *Collector) coreClassList() []*Class {
	classes := c.env.Classes
	return []*Class{
		classes.Object, classes.Module, classes.ClassClass,
		classes.Integer, classes.TrueClass, classes.FalseClass, classes.NilClass,
		classes.Exception, classes.StandardError, classes.TypeError, classes.NameError,
		classes.NoMethodError, classes.FrozenError, classes.ArgumentError, classes.RangeError,
		classes.ZeroDivisionError, classes.LocalJumpError, classes.UncaughtThrowError, classes.SystemExit,
	}
}

// sweep reclaims every unmarked cell and clears every surviving cell's
// mark bit for the next cycle, in the iteration order spec §4.B specifies.
func (c *Collector) sweep() {
	var toFree []struct {
		b   *block
		idx int
	}
	c.heap.eachLiveCell(func(b *block, idx int, cl *cell) {
		if cl.obj != nil && cl.obj.marked() {
			cl.obj.setMarked(false)
			return
		}
		toFree = append(toFree, struct {
			b   *block
			idx int
		}{b, idx})
	})
	for _, f := range toFree {
		c.heap.sweepOne(f.b, f.idx)
	}
}

// visitASANFakeStack is a documented no-op: the source implementation
// additionally walks ASan's fake-stack bookkeeping when scanning a
// coroutine's stack under an AddressSanitizer build. Go's runtime is
// already precisely managed and exposes no fake-stack concept, so this
// step is a no-op on this target — matching spec §4.C's "if the platform
// lacks this facility the step is a no-op" (see SPEC_FULL.md).
func (c *Collector) visitASANFakeStack(_ *ThreadState) {}

type visitorFunc func(Value)

func (f visitorFunc) Visit(v Value) { f(v) }
