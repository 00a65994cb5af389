package runtime

import "fmt"

// ConstInfo is either a resolved constant Value or an autoload descriptor,
// per spec §3.
type ConstInfo struct {
	Value    Value
	Resolved bool

	Autoload     bool
	AutoloadPath string
	Loader       func() error // runs the loader, then const_find re-reads the table
}

// Class is both Ruby's Class and Module: spec §3 gives modules and classes
// the same header shape (superclass is nil for a pure module), so one Go
// type covers both, distinguished by IsModule.
type Class struct {
	ObjectHeader

	Name       string
	superclass *Class // nil for modules and for Object's superclass
	isModule   bool
	isSingleton bool

	includedModules []*Class // reverse include order, as spec §4.E requires
	ancestorsCache  []*Class
	ancestorsValid  bool

	methods       map[string]*MethodInfo
	constants     map[string]*ConstInfo
	classVars     map[string]Value
	constHooks    []func(name string, v Value)

	selfValue Value // this class's own Value, set once by the heap on allocation

	heap *Heap
}

func (c *Class) VisitChildren(v Visitor) {
	if c.superclass != nil {
		v.Visit(c.superclass.selfValue)
	}
	for _, m := range c.includedModules {
		v.Visit(m.selfValue)
	}
	for _, info := range c.methods {
		if info.Method != nil && info.Method.CapturedEnv != nil {
			v.Visit(info.Method.CapturedEnv.OwnValue())
		}
	}
	for _, ci := range c.constants {
		if ci.Resolved {
			v.Visit(ci.Value)
		}
	}
	for _, cv := range c.classVars {
		v.Visit(cv)
	}
	for _, val := range c.ivars {
		v.Visit(val)
	}
	if c.singleton != nil {
		v.Visit(c.singleton.selfValue)
	}
}

// newClass is the shared constructor for classes, modules, and singleton
// classes; NewClass/NewModule/SingletonClass are thin wrappers.
func newClass(heap *Heap, name string, superclass *Class, isSingleton bool) *Class {
	c := &Class{
		Name:       name,
		superclass: superclass,
		isSingleton: isSingleton,
		methods:    make(map[string]*MethodInfo),
		constants:  make(map[string]*ConstInfo),
		classVars:  make(map[string]Value),
		heap:       heap,
	}
	c.typ = TypeClass
	v := heap.Allocate(c, 64)
	c.selfValue = v
	return c
}

// NewClass registers and returns a new named class with the given
// superclass. A nil superclass means the class has none: its ancestor list
// ends with the class itself, so method lookup does not reach Object (only
// ConstFind's NotStrict mode falls back to the object class it is given).
func (h *Heap) NewClass(name string, superclass *Class) *Class {
	return newClass(h, name, superclass, false)
}

// NewModule registers and returns a new named module (no superclass).
func (h *Heap) NewModule(name string) *Class {
	c := newClass(h, name, nil, false)
	c.isModule = true
	c.typ = TypeModule
	return c
}

func (c *Class) IsModule() bool    { return c.isModule }
func (c *Class) IsSingleton() bool { return c.isSingleton }
func (c *Class) Self() Value       { return c.selfValue }

// SuperclassRef returns the class's direct superclass, or nil.
func (c *Class) SuperclassRef() *Class { return c.superclass }

// SingletonClass returns (lazily creating) this class's metaclass. Its
// superclass is the superclass's singleton class, or for a class with no
// superclass (such as Object) the class itself — this is the "metaclass
// tower" spec §4.D and §8 describe, which always terminates because each
// class's superclass chain is finite.
func (c *Class) SingletonClass(heap *Heap) *Class {
	if c.singleton != nil {
		return c.singleton
	}
	var metaSuper *Class
	if c.superclass != nil {
		metaSuper = c.superclass.SingletonClass(heap)
	} else {
		metaSuper = c // Object's metaclass sits on top of Class itself in real Ruby;
		// this core only needs the tower to terminate (spec §8), so resting it on
		// the class itself at the root is sufficient and keeps the chain finite.
	}
	sc := newClass(heap, "", metaSuper, true)
	if c.frozen {
		sc.frozen = true
	}
	c.singleton = sc
	return sc
}

// Include implements spec §4.E's include(module): idempotent, inserted
// just after self, invalidating the cached ancestor list.
func (c *Class) Include(module *Class) {
	for _, m := range c.includedModules {
		if m == module {
			return
		}
	}
	c.includedModules = append([]*Class{module}, c.includedModules...)
	c.ancestorsValid = false
}

// Ancestors returns the flattened lookup sequence: self, included modules
// in reverse include order, then the superclass's own ancestor list. The
// result is cached until Include invalidates it.
func (c *Class) Ancestors() []*Class {
	if c.ancestorsValid {
		return c.ancestorsCache
	}
	list := []*Class{c}
	list = append(list, c.includedModules...)
	if c.superclass != nil {
		list = append(list, c.superclass.Ancestors()...)
	}
	c.ancestorsCache = list
	c.ancestorsValid = true
	return list
}

// IsA reports whether c (or an instance of c) is considered an instance of
// other — i.e. other appears in c's ancestor list.
func (c *Class) IsA(other *Class) bool {
	for _, a := range c.Ancestors() {
		if a == other {
			return true
		}
	}
	return false
}

// ConstSet implements spec §4.E's const_set, firing any registered "constant
// defined" hooks.
func (c *Class) ConstSet(name string, v Value) {
	if c.constants == nil {
		c.constants = make(map[string]*ConstInfo)
	}
	c.constants[name] = &ConstInfo{Value: v, Resolved: true}
	for _, hook := range c.constHooks {
		hook(name, v)
	}
}

// OnConstDefined registers a hook invoked every time ConstSet defines a
// constant on c.
func (c *Class) OnConstDefined(fn func(name string, v Value)) {
	c.constHooks = append(c.constHooks, fn)
}

// ConstMode and ConstFailure parametrize ConstFind per spec §4.E.
type ConstMode int

const (
	ConstStrict ConstMode = iota
	ConstNotStrict
)

type ConstFailure int

const (
	ConstFailNull ConstFailure = iota
	ConstFailRaise
)

// ConstFind implements spec §4.E's const_find, including autoload and the
// NotStrict fallthrough to Object (Open Question (b) in spec §9: resolved
// here by following the source behavior of always falling through to
// Object when nesting/ancestors are exhausted — see DESIGN.md).
func (c *Class) ConstFind(name string, mode ConstMode, failure ConstFailure, object *Class) (Value, error) {
	if mode == ConstStrict {
		if v, ok, err := c.lookupOwnConst(name); ok || err != nil {
			return v, err
		}
		return constNotFound(name, failure)
	}

	for _, anc := range c.Ancestors() {
		if v, ok, err := anc.lookupOwnConst(name); ok || err != nil {
			return v, err
		}
	}
	if c != object && object != nil {
		if v, ok, err := object.lookupOwnConst(name); ok || err != nil {
			return v, err
		}
	}
	return constNotFound(name, failure)
}

func constNotFound(name string, failure ConstFailure) (Value, error) {
	if failure == ConstFailRaise {
		return NilValue, &NameError{Message: fmt.Sprintf("uninitialized constant %s", name)}
	}
	return NilValue, nil
}

func (c *Class) lookupOwnConst(name string) (Value, bool, error) {
	info, ok := c.constants[name]
	if !ok {
		return NilValue, false, nil
	}
	if info.Autoload {
		if err := info.Loader(); err != nil {
			return NilValue, false, err
		}
		info, ok = c.constants[name]
		if !ok || info.Autoload {
			return NilValue, false, &NameError{Message: fmt.Sprintf("autoload failed to define constant %s", name)}
		}
	}
	return info.Value, true, nil
}

// Autoload registers name on c as an autoload descriptor.
func (c *Class) Autoload(name, path string, loader func() error) {
	if c.constants == nil {
		c.constants = make(map[string]*ConstInfo)
	}
	c.constants[name] = &ConstInfo{Autoload: true, AutoloadPath: path, Loader: loader}
}

// ClassVarGet/ClassVarSet implement spec §4.E's class-variable propagation:
// writes look for an existing defining class up the superclass chain
// (falling back to c itself if none defines it yet); reads of an unset
// variable raise NameError.
func (c *Class) ClassVarGet(name string) (Value, error) {
	for cur := c; cur != nil; cur = cur.superclass {
		if v, ok := cur.classVars[name]; ok {
			return v, nil
		}
	}
	return NilValue, &NameError{Message: fmt.Sprintf("uninitialized class variable %s", name)}
}

func (c *Class) ClassVarSet(name string, v Value) {
	for cur := c; cur != nil; cur = cur.superclass {
		if _, ok := cur.classVars[name]; ok {
			cur.classVars[name] = v
			return
		}
	}
	c.classVars[name] = v
}
