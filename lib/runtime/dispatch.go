package runtime

import "fmt"

// MethodVisibility orders Public < Protected < Private, matching spec
// §4.F's visibility gate (a Private method can only be sent with an
// implicit receiver; a Protected method requires the caller to be a
// kind_of? the defining class).
type MethodVisibility int

const (
	Public MethodVisibility = iota
	Protected
	Private
)

// NativeFn is a method body implemented directly in Go rather than
// compiled from Ruby source — every method this core ships is native,
// since the parser/compiler front end is out of scope (spec §1).
type NativeFn func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error)

// Method is one entry in a MethodTable: its native body, declared arity
// (same convention as Block.Arity), the class it's considered defined on
// for `super` resolution, and the Frame it closed over if it was defined
// inside another method/block (define_method's case).
type Method struct {
	Name        string
	Fn          NativeFn
	Arity       int
	Owner       *Class
	CapturedEnv *Frame // non-nil only for define_method-style methods
}

// MethodInfo pairs a Method with its visibility. A nil Method with
// Undefined=true represents undef_method's tombstone: present in the
// table so ancestor lookup stops here instead of falling through to a
// superclass's method of the same name, per spec §4.F.
type MethodInfo struct {
	Method     *Method
	Visibility MethodVisibility
	Undefined  bool
}

// DefineMethod installs name on c with the given native body, arity, and
// visibility (spec §4.E/§4.F).
func (c *Class) DefineMethod(name string, fn NativeFn, arity int, vis MethodVisibility) {
	c.methods[name] = &MethodInfo{
		Method:     &Method{Name: name, Fn: fn, Arity: arity, Owner: c},
		Visibility: vis,
	}
}

// DefineMethodClosure installs a define_method-created method, which
// captures env the way a block does (spec §4.F: define_method bodies run
// with block-like self-rebinding, not lambda semantics).
func (c *Class) DefineMethodClosure(name string, env *Frame, fn NativeFn, arity int, vis MethodVisibility) {
	c.methods[name] = &MethodInfo{
		Method:     &Method{Name: name, Fn: fn, Arity: arity, Owner: c, CapturedEnv: env},
		Visibility: vis,
	}
}

// UndefMethod installs the tombstone described in MethodInfo's doc
// comment, per spec §4.F's undef_method.
func (c *Class) UndefMethod(name string) {
	c.methods[name] = &MethodInfo{Undefined: true, Visibility: Public}
}

// AliasMethod copies newName -> the method currently resolved for oldName
// via c's own ancestor chain, so later redefinitions of oldName don't
// affect the alias.
func (c *Class) AliasMethod(newName, oldName string) error {
	info, _ := lookupMethod(c, oldName)
	if info == nil || info.Undefined {
		return &NameError{Message: fmt.Sprintf("undefined method `%s' for class `%s'", oldName, c.Name)}
	}
	aliased := *info.Method
	aliased.Name = newName
	c.methods[newName] = &MethodInfo{Method: &aliased, Visibility: info.Visibility}
	return nil
}

// lookupClassFor picks the class dispatch walks from: the receiver's
// singleton class if it has one, otherwise its ordinary class — spec
// §4.F's "lookup class is the singleton class if present, else the
// object's class".
func (g *GlobalEnv) lookupClassFor(v Value) *Class {
	obj := g.Heap.Deref(v)
	if obj == nil {
		return g.Classes.classForImmediate(v)
	}
	if header, ok := obj.(interface{ HasSingleton() *Class }); ok {
		if sc := header.HasSingleton(); sc != nil {
			return sc
		}
	}
	return obj.Class()
}

// classForImmediate returns the class an immediate Value (fixnum,
// true/false, nil) dispatches against; these never have a singleton class
// (spec §4.D: "on fixnum/float/symbol receivers, fails with TypeError").
func (r *CoreClasses) classForImmediate(v Value) *Class {
	switch v.Type() {
	case ValueFixnum:
		return r.Integer
	case ValueTrue:
		return r.TrueClass
	case ValueFalse:
		return r.FalseClass
	case ValueNil:
		return r.NilClass
	default:
		return r.Object
	}
}

// lookupMethod walks cls's ancestor list for the first MethodInfo entry
// for name, returning the class it was found on. It returns the tombstone
// MethodInfo too (Undefined=true) so callers can distinguish "explicitly
// undefined" from "never defined" per spec §4.F.
func lookupMethod(cls *Class, name string) (*MethodInfo, *Class) {
	for _, anc := range cls.Ancestors() {
		if info, ok := anc.methods[name]; ok {
			return info, anc
		}
	}
	return nil, nil
}

// SendMode distinguishes a public call site (`recv.name`) from an
// implicit-self call site (a bare `name` inside a method body), since
// Private methods are only callable from the latter (spec §4.F).
type SendMode int

const (
	SendPublicOnly SendMode = iota
	SendAllowPrivate
)

// Send implements spec §4.F's method dispatch: resolve the lookup class,
// walk its ancestors for name, gate on visibility, and fall back to
// method_missing when nothing callable is found.
func (g *GlobalEnv) Send(self Value, name string, args []Value, block *Block, caller *Frame, mode SendMode) (Value, error) {
	lookupClass := g.lookupClassFor(self)
	info, owner := lookupMethod(lookupClass, name)

	if info == nil || info.Undefined {
		return g.sendMethodMissing(self, name, args, block, ReasonUndefined)
	}

	if !g.visibilityAllows(info.Visibility, owner, caller, mode) {
		reason := ReasonPrivate
		if info.Visibility == Protected {
			reason = ReasonProtected
		}
		return g.sendMethodMissing(self, name, args, block, reason)
	}

	return g.invoke(info.Method, self, args, block)
}

// visibilityAllows implements spec §4.F's gate: Public always allowed;
// Private only from an implicit-self (bare) call site; Protected only
// when the caller's self is_a? the method's defining class.
func (g *GlobalEnv) visibilityAllows(vis MethodVisibility, owner *Class, caller *Frame, mode SendMode) bool {
	switch vis {
	case Public:
		return true
	case Private:
		return mode == SendAllowPrivate
	case Protected:
		if caller == nil {
			return false
		}
		callerClass := g.lookupClassFor(caller.Self)
		return callerClass.IsA(owner)
	default:
		return false
	}
}

func (g *GlobalEnv) sendMethodMissing(self Value, name string, args []Value, block *Block, reason MissingReason) (Value, error) {
	lookupClass := g.lookupClassFor(self)
	info, _ := lookupMethod(lookupClass, "method_missing")
	if info == nil || info.Undefined {
		return NilValue, &NoMethodError{
			Message: fmt.Sprintf("undefined method `%s' for %s (%s)", name, self, reason),
			Reason:  reason,
		}
	}
	mmArgs := append([]Value{SymbolPlaceholder(name)}, args...)
	return g.invoke(info.Method, self, mmArgs, block)
}

// SymbolPlaceholder stands in for a real Symbol value until a concrete
// Symbol builtin exists: it returns a fixnum holding the length of name,
// so method_missing receives the selector's length, not the name itself
// (Symbol is one of the concrete builtin classes spec §1 places out of
// scope).
func SymbolPlaceholder(name string) Value {
	return NewFixnum(int64(len(name)))
}

// invoke runs method's native body, checking arity first. Neither invoke
// nor Send pushes a Frame — whoever calls Send builds the Frame it wants
// visible in backtraces, since only it knows the call-site file/line.
func (g *GlobalEnv) invoke(m *Method, self Value, args []Value, block *Block) (Value, error) {
	if m.Arity >= 0 && len(args) != m.Arity {
		return NilValue, &ArgumentError{Message: fmt.Sprintf("wrong number of arguments (given %d, expected %d)", len(args), m.Arity)}
	}
	return m.Fn(g, self, args, block)
}

// Super implements spec §4.F's super: resolution restarts one step past
// frame's DefiningModule in the *original receiver's* ancestor list, not
// in the defining module's own chain, so a module included later by a
// subclass is still consulted correctly.
func (g *GlobalEnv) Super(frame *Frame, args []Value, block *Block) (Value, error) {
	lookupClass := g.lookupClassFor(frame.Self)
	anc := lookupClass.Ancestors()
	start := -1
	for i, a := range anc {
		if a == frame.DefiningModule {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return NilValue, &NameError{Message: "super called outside of method"}
	}
	for _, a := range anc[start:] {
		if info, ok := a.methods[frame.OriginalName]; ok {
			if info.Undefined {
				break
			}
			return g.invoke(info.Method, frame.Self, args, block)
		}
	}
	return NilValue, &NoMethodError{
		Message: fmt.Sprintf("super: no superclass method `%s'", frame.OriginalName),
		Reason:  ReasonUndefined,
	}
}

// RespondTo reports whether Send on self with name would find a callable
// method without falling back to method_missing, honoring includePrivate
// the way Object#respond_to? does.
func (g *GlobalEnv) RespondTo(self Value, name string, includePrivate bool) bool {
	info, _ := lookupMethod(g.lookupClassFor(self), name)
	if info == nil || info.Undefined {
		return false
	}
	if info.Visibility == Public {
		return true
	}
	return includePrivate
}
