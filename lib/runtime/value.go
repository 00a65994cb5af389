// Package runtime is the shared Ruby-language runtime: value representation,
// heap and collector, class graph and method dispatch, blocks, and the
// exception/non-local-exit substrate. Concrete builtin classes, the
// parser/compiler front end, and persistence are external collaborators and
// are not implemented here.
package runtime

import "fmt"

// ValueType distinguishes how a Value's bits should be interpreted. It does
// not replace Object's type tag (see object.go); a heap Value's concrete
// kind lives on the Object it points to.
type ValueType int

const (
	ValueHeap ValueType = iota
	ValueFixnum
	ValueNil
	ValueTrue
	ValueFalse
)

func (t ValueType) String() string {
	switch t {
	case ValueHeap:
		return "heap"
	case ValueFixnum:
		return "fixnum"
	case ValueNil:
		return "nil"
	case ValueTrue:
		return "true"
	case ValueFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Value is a uniform 64-bit word holding either an immediate (fixnum, true,
// false, nil) or a heap reference (an Addr, see heap.go), matching the
// encoding Natalie uses for Ruby values: heap pointers have their low three
// bits "000", fixnums have the lowest bit set (the payload is shifted left
// by one, so the next two bits belong to the integer), and false/nil/true
// are the fixed sentinels below.
type Value uint64

const (
	tagMask   Value = 0b111
	tagFixnum Value = 0b001

	FalseValue Value = 0b00000000
	NilValue   Value = 0b00000100
	TrueValue  Value = 0b00010100
)

// maxFixnum/minFixnum bound the signed 63-bit fixnum domain: one bit is the
// tag, so the payload is int64's range with one bit shaved off.
const (
	maxFixnum = int64(1)<<62 - 1
	minFixnum = -(int64(1) << 62)
)

// FixnumFits reports whether i can be represented as a fixnum without
// promotion to a heap bignum.
func FixnumFits(i int64) bool {
	return i >= minFixnum && i <= maxFixnum
}

// NewFixnum builds a fixnum Value. The caller must have already checked
// FixnumFits (GlobalEnv.NewInteger does this and promotes to a bignum otherwise).
func NewFixnum(i int64) Value {
	if !FixnumFits(i) {
		panic(fmt.Sprintf("runtime: %d does not fit in a fixnum", i))
	}
	return Value(uint64(i)<<1) | tagFixnum
}

// addrFromValue recovers the Addr a heap Value encodes. Only valid when
// IsHeap() is true.
func addrFromValue(v Value) Addr {
	return Addr(v)
}

// valueFromAddr encodes a heap Addr as a Value. It aborts if addr is
// misaligned or zero, since both violate the "heap pointers are 8-byte
// aligned, non-null" invariant (spec §3).
func valueFromAddr(addr Addr) Value {
	if addr == 0 {
		panic("runtime: nil heap address")
	}
	if Value(addr)&tagMask != 0 {
		panic(fmt.Sprintf("runtime: misaligned heap address %#x", addr))
	}
	return Value(addr)
}

// IsHeap reports whether v is a reference to an allocated object.
func (v Value) IsHeap() bool {
	return v != FalseValue && v&tagMask == 0
}

// IsFixnum reports whether v is an inline integer.
func (v Value) IsFixnum() bool {
	return v&tagFixnum == tagFixnum
}

// IsNil reports whether v is nil.
func (v Value) IsNil() bool {
	return v == NilValue
}

// IsTrue reports whether v is exactly true.
func (v Value) IsTrue() bool {
	return v == TrueValue
}

// IsFalse reports whether v is exactly false.
func (v Value) IsFalse() bool {
	return v == FalseValue
}

// IsTruthy reports whether v is neither nil nor false; every other Value
// (fixnum 0 included) is truthy in Ruby semantics.
func (v Value) IsTruthy() bool {
	return v != NilValue && v != FalseValue
}

// Type classifies v's representation for callers that want a single switch
// instead of chained IsX calls.
func (v Value) Type() ValueType {
	switch {
	case v == NilValue:
		return ValueNil
	case v == TrueValue:
		return ValueTrue
	case v == FalseValue:
		return ValueFalse
	case v.IsFixnum():
		return ValueFixnum
	default:
		return ValueHeap
	}
}

// AsFixnum returns the signed integer a fixnum Value carries. Callers must
// check IsFixnum first; in debug builds this asserts.
func (v Value) AsFixnum() int64 {
	assertDebug(v.IsFixnum(), "AsFixnum on non-fixnum Value")
	return int64(v) >> 1
}

// ObjectID returns v's raw bit pattern. It is stable for the Value's
// lifetime, matching Ruby's object_id contract.
func (v Value) ObjectID() int64 {
	return int64(v)
}

// BoolValue converts a Go bool to the canonical true/false Value.
func BoolValue(b bool) Value {
	if b {
		return TrueValue
	}
	return FalseValue
}

func (v Value) String() string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsTrue():
		return "true"
	case v.IsFalse():
		return "false"
	case v.IsFixnum():
		return fmt.Sprintf("%d", v.AsFixnum())
	default:
		return fmt.Sprintf("#<addr=%#x>", uint64(v))
	}
}

func assertDebug(cond bool, msg string) {
	if debugAssertions && !cond {
		panic("runtime: assertion failed: " + msg)
	}
}

// debugAssertions gates the as_X() assertions spec §4.A calls for. It is a
// var, not a const, so a debug build of the embedding host can flip it.
var debugAssertions = true
