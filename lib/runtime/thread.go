package runtime

import (
	"github.com/google/uuid"
	"github.com/petermattis/goid"
)

// currentGoroutineID recovers the calling goroutine's id, standing in for
// the calling OS thread id the source implementation keys its per-thread
// state on (see recursiveLock in heap.go and ThreadState below). Go never
// exposes this through the standard library; petermattis/goid reads it
// off the runtime's own goroutine bookkeeping.
func currentGoroutineID() int64 {
	return goid.Get()
}

// ThreadState is this runtime's stand-in for a Ruby Thread: one per
// goroutine that ever calls into the runtime. It is the unit spec §5's
// stop-the-world protocol parks and resumes, and its Frame chain plus
// CurrentException are exactly the roots a conservative GC would recover
// by scanning that thread's stack (this runtime uses these precise
// Frame-chain roots in place of raw stack scanning; see Collector.markRoots).
type ThreadState struct {
	ID       uuid.UUID
	GoID     int64
	TopFrame *Frame // innermost active Frame; walk .Caller for the whole chain

	CurrentException *ExceptionObject

	parked bool
}

// ThreadRegistry tracks every live ThreadState, guarded by the heap's own
// GC lock since registration only ever happens around allocation-adjacent
// operations (spawning a thread, entering/leaving a call).
type ThreadRegistry struct {
	heap    *Heap
	threads map[int64]*ThreadState
}

func newThreadRegistry(heap *Heap) *ThreadRegistry {
	return &ThreadRegistry{heap: heap, threads: make(map[int64]*ThreadState)}
}

// Current returns (creating if necessary) the ThreadState for the calling
// goroutine.
func (r *ThreadRegistry) Current() *ThreadState {
	gid := currentGoroutineID()
	r.heap.gcLock.Lock()
	defer r.heap.gcLock.Unlock()
	if t, ok := r.threads[gid]; ok {
		return t
	}
	t := &ThreadState{ID: uuid.New(), GoID: gid}
	r.threads[gid] = t
	return t
}

// Detach removes the calling goroutine's ThreadState, called once its
// call into the runtime is done for good (e.g. a spawned Ruby Thread
// finishing).
func (r *ThreadRegistry) Detach() {
	gid := currentGoroutineID()
	r.heap.gcLock.Lock()
	defer r.heap.gcLock.Unlock()
	delete(r.threads, gid)
}

// each calls fn for every registered thread. Callers already hold (or
// don't need) the GC lock; Collector.Collect holds it for the whole
// stop-the-world pause, so this never locks itself.
func (r *ThreadRegistry) each(fn func(*ThreadState)) {
	for _, t := range r.threads {
		fn(t)
	}
}

// park marks t as safepointed for the duration of a collection — the
// per-thread half of spec §5's "every thread must reach a safepoint before
// a collection proceeds". This core has no bytecode interpreter loop that
// polls a safepoint flag mid-execution (the parser/compiler/VM are out of
// scope, per spec §1); a ThreadState other than the collecting goroutine's
// own is only ever registered while that goroutine is itself blocked
// inside a call into the runtime, so it is already safe to scan the
// moment it's asked to park. See Collector.stopTheWorld in collector.go
// for the coordinating half, built on golang.org/x/sync/errgroup.
func (t *ThreadState) park()   { t.parked = true }
func (t *ThreadState) resume() { t.parked = false }
