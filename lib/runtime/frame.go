package runtime

import "strconv"

// Frame is a per-call Env (spec §3/§4.J): it records the caller, file/line,
// method name, the defining module (for super lookup), a small local
// variable table, and an optional block handle. Frames are heap objects —
// not a Go call-stack frame — precisely so a captured closure can keep one
// alive after the call that created it returns (spec §4.J: "Frames are heap
// objects so closures can outlive the call").
type Frame struct {
	ObjectHeader

	ownValue Value

	Outer  *Frame // lexical parent, for closure variable resolution
	Caller *Frame // dynamic parent, for backtraces

	MethodName string
	File       string
	Line       int

	Self           Value
	DefiningModule *Class // module a `super` call from here should skip past
	OriginalName   string // the selector `super` resolves, if this frame is a method body

	Locals map[string]Value

	Block *Block // the block passed to this call, if any

	ExceptionInFlight Value // non-nil while unwinding through this frame's ensure
}

// NewFrame allocates a new Frame on the heap (spec calls frames heap
// objects; see the type's doc comment). outer/caller may be nil for a
// top-level frame.
func (h *Heap) NewFrame(outer, caller *Frame, self Value, methodName, file string, line int) *Frame {
	f := &Frame{
		Outer:      outer,
		Caller:     caller,
		Self:       self,
		MethodName: methodName,
		File:       file,
		Line:       line,
		Locals:     make(map[string]Value),
	}
	f.typ = TypeFrame
	v := h.Allocate(f, 64)
	f.ownValue = v
	return f
}

// OwnValue returns the Value referencing this Frame itself, for use as a GC
// root or as a Block's captured-env reference.
func (f *Frame) OwnValue() Value { return f.ownValue }

func (f *Frame) VisitChildren(v Visitor) {
	v.Visit(f.Self)
	for _, val := range f.Locals {
		v.Visit(val)
	}
	if f.Block != nil {
		v.Visit(f.Block.ownValue)
	}
	if f.Outer != nil {
		v.Visit(f.Outer.ownValue)
	}
	if f.Caller != nil {
		v.Visit(f.Caller.ownValue)
	}
	if !f.ExceptionInFlight.IsNil() {
		v.Visit(f.ExceptionInFlight)
	}
	for _, val := range f.ivars {
		v.Visit(val)
	}
}

// GetLocal resolves name by walking the lexical (Outer) chain, the way a
// closure looks up a variable from its defining scope.
func (f *Frame) GetLocal(name string) (Value, bool) {
	for cur := f; cur != nil; cur = cur.Outer {
		if v, ok := cur.Locals[name]; ok {
			return v, true
		}
	}
	return NilValue, false
}

// SetLocal writes name in the frame that already defines it, or in f itself
// if no enclosing frame does — matching Ruby's block-local-variable
// shadowing rules closely enough for this core's purposes.
func (f *Frame) SetLocal(name string, v Value) {
	for cur := f; cur != nil; cur = cur.Outer {
		if _, ok := cur.Locals[name]; ok {
			cur.Locals[name] = v
			return
		}
	}
	f.Locals[name] = v
}

// Backtrace walks the dynamic (Caller) chain and returns one line per
// frame, innermost first.
func (f *Frame) Backtrace() []string {
	var lines []string
	for cur := f; cur != nil; cur = cur.Caller {
		lines = append(lines, frameLine(cur))
	}
	return lines
}

func frameLine(f *Frame) string {
	name := f.MethodName
	if name == "" {
		name = "<main>"
	}
	return f.File + ":" + strconv.Itoa(f.Line) + ":in `" + name + "'"
}
