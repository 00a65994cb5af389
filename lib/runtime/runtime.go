package runtime

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var runtimeLog = commonlog.GetLogger("rubycore.runtime")

// Runtime is the top-level entry point embedding hosts construct: it
// wires the Heap, Collector, and GlobalEnv together the way the teacher's
// own Runtime wires its ObjectSpace, Dispatcher, and BlockRunner.
type Runtime struct {
	Heap      *Heap
	Collector *Collector
	Env       *GlobalEnv

	cfg *Config
}

// New creates a runtime from cfg (DefaultConfig() if nil), builds the
// core class graph, and installs the collector as the heap's trigger.
func New(cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	heap := NewHeap(cfg)
	env := NewGlobalEnv(heap)
	collector := NewCollector(heap, env)

	r := &Runtime{Heap: heap, Collector: collector, Env: env, cfg: cfg}
	runtimeLog.Infof("runtime initialized: min_free_pct=%.2f gc_check_every=%d gc_disabled=%v",
		cfg.MinFreePct, cfg.GCCheckEvery, cfg.GCDisabled)
	return r, nil
}

// Stats mirrors the teacher's RuntimeStats, reporting heap occupancy and
// GC cycle count instead of the teacher's class/instance/block counts
// (spec §1 has no persisted classes/instances to count independent of the
// heap itself).
type Stats struct {
	Heap   HeapStats
	Cycles uint64
}

func (r *Runtime) Stats() Stats {
	return Stats{Heap: r.Heap.Stats(), Cycles: r.Collector.cycles}
}

// Config returns the configuration the runtime was built from, so an
// embedding host can inspect e.g. cfg.Debug without keeping its own copy.
func (r *Runtime) Config() *Config {
	return r.cfg
}

// Collect forces an immediate collection regardless of the triggering
// policy, bypassing GCDisabled — spec §9 notes GC_disable only suppresses
// automatic triggering, not an explicit request.
func (r *Runtime) Collect() {
	r.Collector.Collect()
}

// RunTopLevel runs body as the program's top-level frame, converting an
// uncaught Ruby exception or an uncaught throw into the (exitCode,
// exception, backtrace) triple spec §6 and SPEC_FULL.md's CLI host print
// and exit on. A *SystemExit is unwrapped to its requested code.
func (r *Runtime) RunTopLevel(body func(top *Frame)) (exitCode int, uncaught *ExceptionObject, backtrace []string) {
	top := r.Heap.NewFrame(nil, nil, r.Env.MainObject, "", "main", 0)
	thread := r.Env.Threads.Current()
	thread.TopFrame = top

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		switch v := rec.(type) {
		case rubyPanic:
			if se, ok := v.exc.GoErr.(*SystemExit); ok {
				exitCode = se.Code
				return
			}
			uncaught = v.exc
			backtrace = v.exc.Backtrace(top)
			exitCode = 1
		case throwPanic:
			uncaught = r.Env.NewException(&UncaughtThrowError{
				Message: fmt.Sprintf("uncaught throw %s", v.tag),
				Tag:     v.tag,
			})
			backtrace = top.Backtrace()
			exitCode = 1
		default:
			panic(rec)
		}
	}()

	body(top)
	return 0, nil, nil
}
