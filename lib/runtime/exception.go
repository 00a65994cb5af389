package runtime

import "fmt"

// MissingReason is the out-of-band explanation recorded when dispatch fails
// to find a callable method, consulted to shape NoMethodError's message
// (spec GLOSSARY: "Method-missing reason").
type MissingReason int

const (
	ReasonUndefined MissingReason = iota
	ReasonPrivate
	ReasonProtected
)

func (r MissingReason) String() string {
	switch r {
	case ReasonPrivate:
		return "private"
	case ReasonProtected:
		return "protected"
	default:
		return "undefined"
	}
}

// The core error kinds from spec §7. Each is a plain Go error as well as
// the seed for a raisable ExceptionObject — raising an internal Go error
// and raising a Ruby exception are the same operation in this runtime (see
// SPEC_FULL.md's Ambient Stack / Error handling section).
type TypeError struct{ Message string }
type NameError struct{ Message string }
type NoMethodError struct {
	Message string
	Reason  MissingReason
}
type FrozenError struct{ Message string }
type ArgumentError struct{ Message string }
type RangeError struct{ Message string }
type ZeroDivisionError struct{ Message string }
type LocalJumpError struct {
	Message       string
	BreakPointTag Addr
	Value         Value
}
type UncaughtThrowError struct {
	Message string
	Tag     Value
}
type SystemExit struct {
	Code int
}

func (e *TypeError) Error() string          { return e.Message }
func (e *NameError) Error() string          { return e.Message }
func (e *NoMethodError) Error() string      { return e.Message }
func (e *FrozenError) Error() string        { return e.Message }
func (e *ArgumentError) Error() string      { return e.Message }
func (e *RangeError) Error() string         { return e.Message }
func (e *ZeroDivisionError) Error() string  { return e.Message }
func (e *LocalJumpError) Error() string     { return e.Message }
func (e *UncaughtThrowError) Error() string { return e.Message }
func (e *SystemExit) Error() string         { return fmt.Sprintf("exit %d", e.Code) }

// ExceptionObject is the heap-allocated Ruby-visible exception: class,
// message, cause chain, lazily captured backtrace (spec §3/§4.H).
type ExceptionObject struct {
	ObjectHeader

	Message   string
	Cause     *ExceptionObject
	backtrace []string
	GoErr     error // the originating Go error value, for reason/tag inspection
}

func (e *ExceptionObject) VisitChildren(v Visitor) {
	for _, val := range e.ivars {
		v.Visit(val)
	}
}

// Backtrace lazily captures frame lines the first time it's asked for,
// matching spec's "backtrace (lazily captured)".
func (e *ExceptionObject) Backtrace(at *Frame) []string {
	if e.backtrace == nil && at != nil {
		e.backtrace = at.Backtrace()
	}
	return e.backtrace
}

// rubyPanic is the Go panic carrier for a raised Ruby exception. Using
// Go's own panic/recover for unwind means `ensure` and `rescue` map onto
// defer/recover almost verbatim — see Ensure/Rescue below — which is the
// idiomatic Go analogue of spec §4.H's unwind-and-always-run-ensure rule.
type rubyPanic struct {
	exc *ExceptionObject
}

// throwPanic is the carrier for spec §4.H's throw/catch non-local exit,
// kept distinct from rubyPanic because it is matched by tag identity, not
// by exception class.
type throwPanic struct {
	tag   Value
	value Value
}

// classFor maps a Go error to the GlobalEnv class it raises as.
func (g *GlobalEnv) classFor(err error) *Class {
	switch err.(type) {
	case *TypeError:
		return g.Classes.TypeError
	case *NameError:
		return g.Classes.NameError
	case *NoMethodError:
		return g.Classes.NoMethodError
	case *FrozenError:
		return g.Classes.FrozenError
	case *ArgumentError:
		return g.Classes.ArgumentError
	case *RangeError:
		return g.Classes.RangeError
	case *ZeroDivisionError:
		return g.Classes.ZeroDivisionError
	case *LocalJumpError:
		return g.Classes.LocalJumpError
	case *UncaughtThrowError:
		return g.Classes.UncaughtThrowError
	case *SystemExit:
		return g.Classes.SystemExit
	default:
		return g.Classes.StandardError
	}
}

// NewException allocates an ExceptionObject for err, classified via
// GlobalEnv's registered core exception classes.
func (g *GlobalEnv) NewException(err error) *ExceptionObject {
	exc := &ExceptionObject{Message: err.Error(), GoErr: err}
	exc.typ = TypeException
	exc.class = g.classFor(err)
	g.Heap.Allocate(exc, 64)
	return exc
}

// Raise is the spec §4.H entry point: it wraps err in an ExceptionObject
// and panics with it. Every frame between here and the nearest matching
// Rescue (or the top level) unwinds, running its ensure clause exactly
// once on the way, via Go's own defer mechanism.
func (g *GlobalEnv) Raise(err error) {
	panic(rubyPanic{exc: g.NewException(err)})
}

// RaiseCause is like Raise but chains prior as the new exception's cause.
func (g *GlobalEnv) RaiseCause(err error, prior *ExceptionObject) {
	exc := g.NewException(err)
	exc.Cause = prior
	panic(rubyPanic{exc: exc})
}

// Ensure runs body, then always runs ensureClause on the way out — whether
// body returned normally or panicked. If ensureClause itself panics, that
// panic supersedes whatever was in flight, exactly as spec §4.H requires
// ("an exception thrown inside ensure supersedes the one in flight") and
// exactly what a bare `defer ensureClause()` already gives for free.
func Ensure(body func(), ensureClause func()) {
	defer ensureClause()
	body()
}

// Rescue runs body; if it panics with a rubyPanic whose exception class is
// in classes' ancestry (or classes is empty, which matches every raised
// exception whatever its class, not only StandardError — callers pass the
// concrete class list they match on), handler runs with the exception and
// Rescue returns normally. Any other panic
// (including a rubyPanic for a non-matching class) propagates untouched.
func Rescue(body func(), classes []*Class, handler func(exc *ExceptionObject)) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rp, ok := r.(rubyPanic)
		if !ok {
			panic(r)
		}
		if !matchesRescue(rp.exc, classes) {
			panic(r)
		}
		handler(rp.exc)
	}()
	body()
}

func matchesRescue(exc *ExceptionObject, classes []*Class) bool {
	if len(classes) == 0 {
		return true
	}
	for _, c := range classes {
		if exc.class != nil && exc.class.IsA(c) {
			return true
		}
	}
	return false
}

// Throw implements spec §4.H's throw(tag, value): a dedicated panic kind
// matched by tag identity (Value equality), not by class.
func Throw(tag, value Value) {
	panic(throwPanic{tag: tag, value: value})
}

// Catch implements spec §4.H's catch(tag) { ... }. A throwPanic whose tag
// doesn't match propagates untouched, eventually reaching the top level as
// an UncaughtThrowError (see Runtime.RunTopLevel in runtime.go).
func Catch(tag Value, body func() Value) (result Value) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		tp, ok := r.(throwPanic)
		if !ok || tp.tag != tag {
			panic(r)
		}
		result = tp.value
	}()
	return body()
}

// CatchReturn implements the non-local-return half of spec §4.G/§4.H: a
// Proc-kind block's `return` raises a LocalJumpError tagged with the
// enclosing method's break-point id (see Block.Return in block.go); the
// method that owns tag wraps its own body in CatchReturn to convert a
// matching LocalJumpError back into an ordinary return value. A
// non-matching tag (the return targets a still-further-out method)
// propagates untouched.
func CatchReturn(tag Addr, body func() Value) (result Value) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rp, ok := r.(rubyPanic)
		if !ok {
			panic(r)
		}
		lje, ok := rp.exc.GoErr.(*LocalJumpError)
		if !ok || lje.BreakPointTag != tag {
			panic(r)
		}
		result = lje.Value
	}()
	return body()
}
