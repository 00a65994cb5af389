package runtime

import (
	"fmt"
	"regexp"
)

// ObjectType is the closed set of heap-object kinds spec §3 calls for. Only
// the kinds this core actually gives behavior to are listed; the concrete
// builtin classes (String, Array, Hash, numeric kinds, Regexp, IO, …) are
// external collaborators per spec §1 and are deliberately not enumerated
// here — adding tags nothing exercises would just be dead surface.
type ObjectType int

const (
	TypeObject ObjectType = iota
	TypeClass
	TypeModule
	TypeProc
	TypeException
	TypeBignum
	TypeFrame
	TypeCollected // not assigned by the sweep: a swept cell drops its object, whose type tag is left unchanged
)

func (t ObjectType) String() string {
	switch t {
	case TypeObject:
		return "Object"
	case TypeClass:
		return "Class"
	case TypeModule:
		return "Module"
	case TypeProc:
		return "Proc"
	case TypeException:
		return "Exception"
	case TypeBignum:
		return "Integer"
	case TypeFrame:
		return "Frame"
	case TypeCollected:
		return "<collected>"
	default:
		return "<unknown>"
	}
}

// Visitor receives every outgoing Value a heap object holds, during mark.
type Visitor interface {
	Visit(v Value)
}

// GCObject is the capability every heap-allocated type must provide: its
// type tag and class are O(1), and it can enumerate every Value it holds so
// the collector can trace it (spec §9: "the spec requires only that
// visit_children, type(), and class() are O(1)").
type GCObject interface {
	Type() ObjectType
	Class() *Class
	VisitChildren(v Visitor)

	addr() Addr
	setAddr(Addr)
	marked() bool
	setMarked(bool)
}

// ObjectHeader is embedded in every heap type and supplies the header
// fields spec §3 lists: class pointer, type tag, lazily created singleton
// class, ivar map, frozen bit, and GC mark bit.
type ObjectHeader struct {
	a         Addr
	typ       ObjectType
	class     *Class
	singleton *Class
	ivars     map[string]Value
	frozen    bool
	mark      bool
}

func (h *ObjectHeader) Type() ObjectType { return h.typ }
func (h *ObjectHeader) Class() *Class    { return h.class }
func (h *ObjectHeader) addr() Addr       { return h.a }
func (h *ObjectHeader) setAddr(a Addr)   { h.a = a }
func (h *ObjectHeader) marked() bool     { return h.mark }
func (h *ObjectHeader) setMarked(m bool) { h.mark = m }
func (h *ObjectHeader) Frozen() bool     { return h.frozen }

// Instance is a plain Ruby object: an ObjectHeader plus nothing else. Every
// class/module/exception/proc also carries one, but Instance is what `new`
// produces for an ordinary user class.
type Instance struct {
	ObjectHeader
}

// NewInstance allocates a new instance of class via the heap; it is the
// constructor for ordinary objects (this core defines no Class#new method).
func (h *Heap) NewInstance(class *Class) Value {
	inst := &Instance{ObjectHeader{typ: TypeObject, class: class}}
	return h.Allocate(inst, 32)
}

func (i *Instance) VisitChildren(v Visitor) {
	if i.singleton != nil {
		v.Visit(i.singleton.selfValue)
	}
	for _, val := range i.ivars {
		v.Visit(val)
	}
}

// validIvarName matches Ruby's ivar-name grammar: "@" followed by an
// identifier.
var validIvarName = regexp.MustCompile(`^@[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidIvarName reports whether name could be used with ivar_set/ivar_get.
func IsValidIvarName(name string) bool {
	return validIvarName.MatchString(name)
}

// IvarGet implements spec §4.D's ivar_get. Fixnums/immediates can never
// carry ivars and always read back nil.
func (h *ObjectHeader) IvarGet(name string) Value {
	if h.ivars == nil {
		return NilValue
	}
	if v, ok := h.ivars[name]; ok {
		return v
	}
	return NilValue
}

// IvarSet implements spec §4.D's ivar_set, including the FrozenError and
// invalid-name failure modes.
func (h *ObjectHeader) IvarSet(name string, v Value) error {
	if !IsValidIvarName(name) {
		return &NameError{Message: fmt.Sprintf("%q is not allowed as an instance variable name", name)}
	}
	if h.frozen {
		return &FrozenError{Message: fmt.Sprintf("can't modify frozen %s", h.typ)}
	}
	if h.ivars == nil {
		h.ivars = make(map[string]Value)
	}
	h.ivars[name] = v
	return nil
}

// IvarDefined reports whether name has been set on this object.
func (h *ObjectHeader) IvarDefined(name string) bool {
	if h.ivars == nil {
		return false
	}
	_, ok := h.ivars[name]
	return ok
}

// IvarRemove deletes name from this object's ivar map, returning its prior
// value (or nil if unset).
func (h *ObjectHeader) IvarRemove(name string) Value {
	if h.ivars == nil {
		return NilValue
	}
	v, ok := h.ivars[name]
	if !ok {
		return NilValue
	}
	delete(h.ivars, name)
	return v
}

// Freeze implements spec §4.D's freeze(): it also freezes the singleton
// class if one has already been created, matching Ruby's "freezing a class
// freezes its singleton class" rule.
func (h *ObjectHeader) Freeze() {
	h.frozen = true
	if h.singleton != nil {
		h.singleton.frozen = true
	}
}

// SingletonClass lazily creates and returns this object's singleton class,
// whose superclass is the superclass's singleton class (for class
// receivers, see Class.SingletonClass) or, for ordinary receivers, the
// object's own class.
func (h *ObjectHeader) SingletonClass(heap *Heap, ordinary *Class) *Class {
	if h.singleton != nil {
		return h.singleton
	}
	sc := newClass(heap, "", ordinary, true)
	if h.frozen {
		sc.frozen = true
	}
	h.singleton = sc
	return sc
}

// HasSingleton reports whether a singleton class has already been created,
// without creating one (used by dispatch to pick the lookup class cheaply).
func (h *ObjectHeader) HasSingleton() *Class {
	return h.singleton
}

// CanHaveSingleton reports whether receivers of this header's kind may ever
// get a singleton class. Fixnums/floats/symbols are immediates in this
// runtime and never reach ObjectHeader.SingletonClass at all; this guard
// exists for the heap-allocated kinds that are still disallowed (none, at
// present, since every heap GCObject this core defines supports singleton
// classes) and is kept for parity with spec §4.D's "on fixnum/float/symbol
// receivers, fails with TypeError".
func CanHaveSingleton(v Value) bool {
	return v.IsHeap()
}

// Duplicate returns a shallow copy of inst with frozen=false, the same
// class, and a fresh ivar map (spec §4.D's duplicate()).
func (h *Heap) Duplicate(v Value) (Value, error) {
	obj := h.Deref(v)
	inst, ok := obj.(*Instance)
	if !ok {
		return NilValue, &TypeError{Message: "duplicate: not a plain object"}
	}
	copyIvars := make(map[string]Value, len(inst.ivars))
	for k, vv := range inst.ivars {
		copyIvars[k] = vv
	}
	dup := &Instance{ObjectHeader{typ: TypeObject, class: inst.class, ivars: copyIvars}}
	return h.Allocate(dup, 32), nil
}

// Clone returns a copy of inst, additionally copying the singleton class
// and preserving the frozen bit unless freezeOverride is non-nil (spec
// §4.D's clone(freeze:)).
func (h *Heap) Clone(v Value, freezeOverride *bool) (Value, error) {
	obj := h.Deref(v)
	inst, ok := obj.(*Instance)
	if !ok {
		return NilValue, &TypeError{Message: "clone: not a plain object"}
	}
	copyIvars := make(map[string]Value, len(inst.ivars))
	for k, vv := range inst.ivars {
		copyIvars[k] = vv
	}
	clone := &Instance{ObjectHeader{typ: TypeObject, class: inst.class, ivars: copyIvars, singleton: inst.singleton}}
	if freezeOverride != nil {
		clone.frozen = *freezeOverride
	} else {
		clone.frozen = inst.frozen
	}
	return h.Allocate(clone, 32), nil
}
