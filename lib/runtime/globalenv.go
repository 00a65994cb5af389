package runtime

// CoreClasses holds the handful of builtin classes this runtime itself
// needs a reference to — for dispatch's immediate-value routing
// (classForImmediate) and for classifying raised Go errors into their
// Ruby exception class (exception.go's classFor). The concrete builtin
// class library (String, Array, Hash, numeric towers, …) is an external
// collaborator per spec §1 and is not part of this core.
type CoreClasses struct {
	Object    *Class
	Module    *Class
	ClassClass *Class

	Integer   *Class
	TrueClass *Class
	FalseClass *Class
	NilClass  *Class

	Exception          *Class
	StandardError      *Class
	TypeError          *Class
	NameError          *Class
	NoMethodError      *Class
	FrozenError        *Class
	ArgumentError      *Class
	RangeError         *Class
	ZeroDivisionError  *Class
	LocalJumpError     *Class
	UncaughtThrowError *Class
	SystemExit         *Class
}

// GlobalEnv is the single per-runtime global environment spec §3/§4.I
// describes: the main object, the core class table, and the thread
// registry dispatch and the collector both consult for roots.
type GlobalEnv struct {
	Heap    *Heap
	Classes *CoreClasses
	Threads *ThreadRegistry

	MainObject Value

	// instanceEvalStack tracks nested instance_eval/instance_exec self
	// rebindings, innermost last, for diagnostics only — Block.InstanceEval
	// already restores Self itself via defer.
	instanceEvalStack []Value
}

// NewGlobalEnv builds the core class graph and returns a ready GlobalEnv.
// This is the Go-native equivalent of bootstrapping bootstrap.rb in a
// from-source Ruby implementation: every class here would otherwise be
// defined by loading core library source, which is out of scope (spec
// §1), so it is built directly instead.
func NewGlobalEnv(heap *Heap) *GlobalEnv {
	g := &GlobalEnv{Heap: heap, Threads: newThreadRegistry(heap)}

	object := heap.NewClass("Object", nil)
	module := heap.NewClass("Module", nil)
	classClass := heap.NewClass("Class", module)

	integer := heap.NewClass("Integer", object)
	trueClass := heap.NewClass("TrueClass", object)
	falseClass := heap.NewClass("FalseClass", object)
	nilClass := heap.NewClass("NilClass", object)

	exception := heap.NewClass("Exception", object)
	standardError := heap.NewClass("StandardError", exception)
	typeError := heap.NewClass("TypeError", standardError)
	nameError := heap.NewClass("NameError", standardError)
	noMethodError := heap.NewClass("NoMethodError", nameError)
	frozenError := heap.NewClass("FrozenError", standardError)
	argumentError := heap.NewClass("ArgumentError", standardError)
	rangeError := heap.NewClass("RangeError", standardError)
	zeroDivisionError := heap.NewClass("ZeroDivisionError", standardError)
	localJumpError := heap.NewClass("LocalJumpError", standardError)
	uncaughtThrowError := heap.NewClass("UncaughtThrowError", argumentError)
	systemExit := heap.NewClass("SystemExit", exception)

	g.Classes = &CoreClasses{
		Object:     object,
		Module:     module,
		ClassClass: classClass,

		Integer:    integer,
		TrueClass:  trueClass,
		FalseClass: falseClass,
		NilClass:   nilClass,

		Exception:          exception,
		StandardError:      standardError,
		TypeError:          typeError,
		NameError:          nameError,
		NoMethodError:      noMethodError,
		FrozenError:        frozenError,
		ArgumentError:      argumentError,
		RangeError:         rangeError,
		ZeroDivisionError:  zeroDivisionError,
		LocalJumpError:     localJumpError,
		UncaughtThrowError: uncaughtThrowError,
		SystemExit:         systemExit,
	}

	g.MainObject = heap.NewInstance(object)
	return g
}

// PushInstanceEval/PopInstanceEval bracket a Block.InstanceEval call for
// diagnostics (e.g. a future `caller` builtin could report "inside
// instance_eval"); the self-rebinding itself lives in Block.InstanceEval.
func (g *GlobalEnv) PushInstanceEval(self Value) { g.instanceEvalStack = append(g.instanceEvalStack, self) }
func (g *GlobalEnv) PopInstanceEval() {
	if len(g.instanceEvalStack) > 0 {
		g.instanceEvalStack = g.instanceEvalStack[:len(g.instanceEvalStack)-1]
	}
}
