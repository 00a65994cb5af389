package runtime

import "math/big"

// Bignum is the heap-allocated arbitrary-precision integer spec §8 scenario
// 1 calls for: a fixnum computation whose result no longer fits 62 bits is
// promoted here, the same overflow-to-heap strategy real Ruby uses for
// Integer. External collaborators (parser/compiler/VM) are out of scope per
// spec §1, so Bignum only needs to exist and answer arithmetic this package
// itself drives.
type Bignum struct {
	ObjectHeader

	Val *big.Int
}

func (b *Bignum) VisitChildren(v Visitor) {
	for _, val := range b.ivars {
		v.Visit(val)
	}
}

// NewInteger returns a Value representing n: a fixnum when it fits, or a
// heap Bignum otherwise.
func (g *GlobalEnv) NewInteger(n *big.Int) Value {
	if n.IsInt64() {
		if i := n.Int64(); FixnumFits(i) {
			return NewFixnum(i)
		}
	}
	bn := &Bignum{Val: new(big.Int).Set(n)}
	bn.typ = TypeBignum
	bn.class = g.Classes.Integer
	return g.Heap.Allocate(bn, 64)
}

// AsBigInt returns v's value as a *big.Int, whether v is a fixnum or a
// Bignum. Returns nil if v is neither.
func (g *GlobalEnv) AsBigInt(v Value) *big.Int {
	if v.IsFixnum() {
		return big.NewInt(v.AsFixnum())
	}
	if bn, ok := g.Heap.Deref(v).(*Bignum); ok {
		return bn.Val
	}
	return nil
}

// AddInt implements Integer#+ with overflow promotion to Bignum (spec §8
// scenario 1: "adding two fixnums whose sum exceeds the fixnum range
// promotes the result to a Bignum, transparently to the caller").
func (g *GlobalEnv) AddInt(a, b Value) Value {
	return g.NewInteger(new(big.Int).Add(g.AsBigInt(a), g.AsBigInt(b)))
}

// MulInt implements Integer#* with the same overflow-to-Bignum behavior as
// AddInt.
func (g *GlobalEnv) MulInt(a, b Value) Value {
	return g.NewInteger(new(big.Int).Mul(g.AsBigInt(a), g.AsBigInt(b)))
}
