package runtime

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
)

// Addr is a synthetic heap address: a word whose low three bits are always
// zero, recovered from a Value the same way a real pointer would be. It is
// not a Go pointer — Go's own collector never sees it, which is exactly the
// property spec §9 asks for ("do not rely on host-language GC for Ruby
// values"). Reachability of everything stored under an Addr is decided
// solely by Collector.Collect, never by Go's garbage collector.
type Addr uint64

const (
	blockSize     = 1 << 16 // 64 KiB, matching spec §4.B's example block size
	cellsPerBlock = 512
	cellStride    = blockSize / cellsPerBlock // 128, already 8-aligned
)

// cellSizeClasses mirrors the Heap's "fixed set of Allocators covering
// cell-size classes that cover the largest object type" (spec §4.B). Sizes
// are nominal buckets for routing, not literal byte counts — object layout
// in Go doesn't need literal packing the way the source C++ does.
var cellSizeClasses = []uintptr{32, 64, 128, 256}

// cell is one allocator slot. A cell holds at most one live GCObject; free
// cells thread onto the block's free list via nextFree.
type cell struct {
	used     bool
	obj      GCObject
	nextFree int // index of next free cell, or -1
}

// block is a large aligned arena of same-size-class cells, the unit the
// conservative scanner recovers via FromCell.
type block struct {
	base     Addr
	cellSize uintptr
	cells    [cellsPerBlock]cell
	freeHead int // index of first free cell, or -1 if full
	numFree  int
}

func newBlock(base Addr, cellSize uintptr) *block {
	b := &block{base: base, cellSize: cellSize, freeHead: 0, numFree: cellsPerBlock}
	for i := range b.cells {
		if i == cellsPerBlock-1 {
			b.cells[i].nextFree = -1
		} else {
			b.cells[i].nextFree = i + 1
		}
	}
	return b
}

func (b *block) addrOf(idx int) Addr {
	return b.base + Addr(idx)*cellStride
}

// cellIndex returns the cell index addr refers to within this block, and
// whether addr lands exactly on a cell boundary (the "in-use cell boundary"
// check spec §4.C's conservative promotion requires).
func (b *block) cellIndex(addr Addr) (int, bool) {
	off := addr - b.base
	if off%cellStride != 0 {
		return 0, false
	}
	idx := int(off / cellStride)
	if idx < 0 || idx >= cellsPerBlock {
		return 0, false
	}
	return idx, true
}

// Allocator owns every block of one cell-size class.
type Allocator struct {
	cellSize uintptr
	blocks   []*block
	heap     *Heap
}

func newAllocator(cellSize uintptr, h *Heap) *Allocator {
	return &Allocator{cellSize: cellSize, heap: h}
}

// allocate pops a free cell, adding a fresh block first if none is free.
// The returned Addr is already a valid heap Value (tag bits zero).
func (a *Allocator) allocate(obj GCObject) Addr {
	for _, b := range a.blocks {
		if b.numFree > 0 {
			return a.allocateIn(b, obj)
		}
	}
	nextBase := Addr(len(a.heap.allBlocks)+1) * blockSize
	b := newBlock(nextBase, a.cellSize)
	a.blocks = append(a.blocks, b)
	a.heap.registerBlock(b)
	return a.allocateIn(b, obj)
}

func (a *Allocator) allocateIn(b *block, obj GCObject) Addr {
	idx := b.freeHead
	c := &b.cells[idx]
	b.freeHead = c.nextFree
	b.numFree--
	c.used = true
	c.obj = obj
	addr := b.addrOf(idx)
	a.heap.liveCells++
	return addr
}

// freeCell returns a cell to its block's free list and drops the reference
// to its object so Go's own GC can eventually reclaim the underlying memory.
func (a *Allocator) freeCell(b *block, idx int) {
	c := &b.cells[idx]
	c.used = false
	c.obj = nil
	c.nextFree = b.freeHead
	b.freeHead = idx
	b.numFree++
}

// Heap owns every Allocator (one per size class) plus the address-space
// bookkeeping the conservative scanner needs: a base->block index. It keeps
// no lowest/highest block address; an address outside every known block is
// rejected by the index lookup alone.
type Heap struct {
	gcLock *recursiveLock

	allocators []*Allocator
	allBlocks  []*block
	blocksByBase map[Addr]*block

	liveCells  uint64
	totalCells uint64

	allocsSinceGC uint64
	minFreePct    float64 // trigger a collection when free/total drops below this
	checkEvery    uint64
	gcDisabled    bool

	collector *Collector
}

// NewHeap creates an empty heap with one Allocator per cellSizeClasses
// entry. cfg tunes the collection-triggering policy (spec §4.B).
func NewHeap(cfg *Config) *Heap {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	h := &Heap{
		gcLock:       newRecursiveLock(),
		blocksByBase: make(map[Addr]*block),
		minFreePct:   cfg.MinFreePct,
		checkEvery:   cfg.GCCheckEvery,
		gcDisabled:   cfg.GCDisabled,
	}
	for _, sz := range cellSizeClasses {
		h.allocators = append(h.allocators, newAllocator(sz, h))
	}
	return h
}

// DisableGC turns off the triggering policy (spec §9's GC_disable knob);
// Collect can still be invoked explicitly.
func (h *Heap) DisableGC()  { h.gcDisabled = true }
func (h *Heap) EnableGC()   { h.gcDisabled = false }
func (h *Heap) IsGCDisabled() bool { return h.gcDisabled }

func (h *Heap) registerBlock(b *block) {
	h.allBlocks = append(h.allBlocks, b)
	h.blocksByBase[b.base] = b
	h.totalCells += cellsPerBlock
}

// allocatorFor picks the smallest size class whose cell size covers need,
// per spec §4.B's "picks the smallest allocator whose cell size >= size".
func (h *Heap) allocatorFor(need uintptr) *Allocator {
	for _, a := range h.allocators {
		if a.cellSize >= need {
			return a
		}
	}
	return h.allocators[len(h.allocators)-1]
}

// Allocate installs obj into the heap and returns the Value referencing it.
// It is the single path every heap type must go through (mirroring
// Cell::operator new in the source implementation). A collection may be
// triggered first if the free-cell ratio has dropped below MinFreePct.
func (h *Heap) Allocate(obj GCObject, approxSize uintptr) Value {
	h.gcLock.Lock()
	defer h.gcLock.Unlock()

	h.allocsSinceGC++
	if !h.gcDisabled && h.collector != nil && h.checkEvery > 0 && h.allocsSinceGC >= h.checkEvery {
		h.allocsSinceGC = 0
		if h.freeRatio() < h.minFreePct {
			h.collector.Collect()
		}
	}

	a := h.allocatorFor(approxSize)
	addr := a.allocate(obj)
	obj.setAddr(addr)
	return valueFromAddr(addr)
}

func (h *Heap) freeRatio() float64 {
	if h.totalCells == 0 {
		return 1
	}
	free := h.totalCells - h.liveCells
	return float64(free) / float64(h.totalCells)
}

// SetCollector wires the Collector that Allocate's triggering policy and
// explicit Collect calls use. Runtime.New does this once at startup.
func (h *Heap) SetCollector(c *Collector) { h.collector = c }

// Deref resolves a heap Value back to its GCObject, or nil if v isn't a
// live heap reference (e.g. it was already swept, or isn't a heap Value).
func (h *Heap) Deref(v Value) GCObject {
	if !v.IsHeap() {
		return nil
	}
	c := h.cellFor(Addr(v))
	if c == nil || !c.used {
		return nil
	}
	return c.obj
}

// cellFor recovers the cell backing addr, or nil if addr doesn't land on a
// cell boundary within a known block. The returned cell may be free;
// callers check its used flag — this is FromCell from spec
// §4.B/§4.C, used both by Deref and by the collector's pointer-validity
// check.
func (h *Heap) cellFor(addr Addr) *cell {
	base := addr &^ (blockSize - 1)
	b, ok := h.blocksByBase[base]
	if !ok {
		return nil
	}
	idx, onBoundary := b.cellIndex(addr)
	if !onBoundary {
		return nil
	}
	return &b.cells[idx]
}

// IsValidHeapPointer implements the conservative-promotion test from spec
// §4.C step 2: low bits zero, within the heap's address range, and landing
// on an in-use cell boundary. It is used to validate every candidate root
// value the collector is handed (see collector.go), which is how this
// codebase realizes "conservative" scanning without raw stack access (the
// roots are Frame chains, not machine stacks; see Collector.markRoots).
func (h *Heap) IsValidHeapPointer(v Value) bool {
	if !v.IsHeap() {
		return false
	}
	c := h.cellFor(Addr(v))
	return c != nil && c.used
}

// eachLiveCell walks every allocator, every block, every used cell — the
// iteration order spec §4.B specifies for sweep and for ObjectSpace.each.
func (h *Heap) eachLiveCell(fn func(b *block, idx int, c *cell)) {
	for _, a := range h.allocators {
		for _, b := range a.blocks {
			for i := range b.cells {
				if b.cells[i].used {
					fn(b, i, &b.cells[i])
				}
			}
		}
	}
}

// sweepOne frees a single cell, matching Allocator.freeCell's bookkeeping
// and the Heap's live-cell counter.
func (h *Heap) sweepOne(b *block, idx int) {
	a := h.allocatorForCellSize(b.cellSize)
	a.freeCell(b, idx)
	h.liveCells--
}

func (h *Heap) allocatorForCellSize(sz uintptr) *Allocator {
	for _, a := range h.allocators {
		if a.cellSize == sz {
			return a
		}
	}
	panic(fmt.Sprintf("runtime: no allocator for cell size %d", sz))
}

// Stats summarizes heap occupancy, used by Runtime.Stats and tests.
type HeapStats struct {
	TotalCells uint64
	LiveCells  uint64
	Blocks     int
}

func (h *Heap) Stats() HeapStats {
	return HeapStats{TotalCells: h.totalCells, LiveCells: h.liveCells, Blocks: len(h.allBlocks)}
}

// recursiveLock is a re-entrant mutex keyed by goroutine id, layered over a
// deadlock.Mutex (github.com/sasha-s/go-deadlock) so the coarse GC lock
// spec §5 calls for ("Acquiring the GC lock from within a native callback
// is legal (re-entrant)") still gets deadlock diagnostics in development
// builds. Go has no native concept of the calling OS thread the way the
// source implementation's std::recursive_mutex does, so petermattis/goid's
// goroutine id stands in for it.
type recursiveLock struct {
	mu    deadlock.Mutex
	owner int64
	depth int
}

func newRecursiveLock() *recursiveLock {
	return &recursiveLock{owner: -1}
}

func (r *recursiveLock) Lock() {
	gid := currentGoroutineID()
	if r.owner == gid {
		r.depth++
		return
	}
	r.mu.Lock()
	r.owner = gid
	r.depth = 1
}

func (r *recursiveLock) Unlock() {
	gid := currentGoroutineID()
	if r.owner != gid {
		panic("runtime: unlock of GC lock from non-owning goroutine")
	}
	r.depth--
	if r.depth == 0 {
		r.owner = -1
		r.mu.Unlock()
	}
}
