package runtime

import (
	"math/big"
	"testing"
)

// TestScenarioFixnumOverflowPromotesToBignum covers spec §8 scenario 1:
// adding two fixnums whose sum exceeds the fixnum range promotes
// transparently to a Bignum.
func TestScenarioFixnumOverflowPromotesToBignum(t *testing.T) {
	env := newTestEnv(t)
	a := NewFixnum(maxFixnum)
	b := NewFixnum(1)

	sum := env.AddInt(a, b)
	if sum.IsFixnum() {
		t.Fatalf("expected overflow to promote to Bignum, got a fixnum")
	}
	got := env.AsBigInt(sum)
	want := new(big.Int).Add(big.NewInt(maxFixnum), big.NewInt(1))
	if got.Cmp(want) != 0 {
		t.Fatalf("AddInt result = %v, want %v", got, want)
	}
}

// TestScenarioMethodMissingDistinguishesSendFromPublicSend covers spec §8
// scenario 2: calling a private method via Send raises, but the same
// selector dispatched with SendAllowPrivate (the public_send/private
// distinction this core exposes) succeeds.
func TestScenarioMethodMissingDistinguishesSendFromPublicSend(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Wallet", env.Classes.Object)
	cls.DefineMethod("balance", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(50), nil
	}, 0, Private)
	recv := env.Heap.NewInstance(cls)

	if _, err := env.Send(recv, "balance", nil, nil, nil, SendPublicOnly); err == nil {
		t.Fatalf("public_send-style dispatch must reject a private method")
	}
	v, err := env.Send(recv, "balance", nil, nil, nil, SendAllowPrivate)
	if err != nil || v != NewFixnum(50) {
		t.Fatalf("send-style dispatch should bypass the private floor, got (%v, %v)", v, err)
	}
}

// TestScenarioCapturedClosureSurvivesCollection covers spec §8 scenario 3: a
// block that closes over a frame's locals keeps that frame (and the values
// it holds) alive across a forced GC cycle as long as the block itself is
// reachable.
func TestScenarioCapturedClosureSurvivesCollection(t *testing.T) {
	env := newTestEnv(t)
	collector := NewCollector(env.Heap, env)

	outer := env.Heap.NewFrame(nil, nil, env.MainObject, "maker", "test.rb", 1)
	captured := env.Heap.NewInstance(env.Classes.Object)
	outer.SetLocal("captured", captured)

	block := env.Heap.NewBlock(outer, env.MainObject, BlockProc, -1, 0, func(self Value, args []Value) Value {
		v, _ := outer.GetLocal("captured")
		return v
	})

	thread := env.Threads.Current()
	rootFrame := env.Heap.NewFrame(nil, nil, env.MainObject, "", "test.rb", 1)
	rootFrame.SetLocal("block", block.OwnValue())
	thread.TopFrame = rootFrame

	collector.Collect()

	v, ok := outer.GetLocal("captured")
	if !ok || env.Heap.Deref(v) == nil {
		t.Fatalf("captured local should still be reachable through the live block after a collection")
	}
}

// TestScenarioEnsureRunsOnceDuringRaiseUnwind covers spec §8 scenario 4:
// ensure clauses run exactly once, in order, as an exception unwinds through
// nested frames, and the original exception (not a later ensure side
// effect) reaches the matching rescue.
func TestScenarioEnsureRunsOnceDuringRaiseUnwind(t *testing.T) {
	env := newTestEnv(t)
	var order []string
	var final *ExceptionObject

	Rescue(func() {
		Ensure(func() {
			Ensure(func() {
				env.Raise(&RangeError{Message: "boom"})
			}, func() {
				order = append(order, "inner-ensure")
			})
		}, func() {
			order = append(order, "outer-ensure")
		})
	}, []*Class{env.Classes.StandardError}, func(exc *ExceptionObject) {
		final = exc
	})

	if len(order) != 2 || order[0] != "inner-ensure" || order[1] != "outer-ensure" {
		t.Fatalf("ensure clauses must run exactly once each, innermost first: %v", order)
	}
	if final == nil || final.Message != "boom" {
		t.Fatalf("the original exception should reach the rescue unchanged, got %v", final)
	}
}

// TestScenarioNonLocalBlockReturnUnwindsToDefiningMethod covers spec §8
// scenario 5: a Proc-kind block's `return` unwinds past its immediate caller
// (standing in for `each`) straight back to the method that owns its
// break-point tag.
func TestScenarioNonLocalBlockReturnUnwindsToDefiningMethod(t *testing.T) {
	env := newTestEnv(t)
	var tag Addr = 42

	definingMethod := func() Value {
		return CatchReturn(tag, func() Value {
			each := func(items []Value, blk *Block) {
				for _, it := range items {
					blk.Call([]Value{it})
				}
			}
			b := env.Heap.NewBlock(nil, env.MainObject, BlockProc, -1, tag, func(self Value, args []Value) Value {
				if args[0] == NewFixnum(2) {
					env.Raise(&LocalJumpError{
						Message:       "unexpected return",
						BreakPointTag: tag,
						Value:         NewFixnum(99),
					})
				}
				return NilValue
			})
			each([]Value{NewFixnum(1), NewFixnum(2), NewFixnum(3)}, b)
			return NewFixnum(-1) // unreachable if return fires on item 2
		})
	}

	result := definingMethod()
	if result != NewFixnum(99) {
		t.Fatalf("non-local return should short-circuit each and return 99, got %v", result)
	}
}

// TestScenarioFreezingObjectPropagatesToSingletonClass covers spec §8
// scenario 6: freezing an object also freezes its already-materialized
// singleton class, and ivar writes on the frozen object still fail.
func TestScenarioFreezingObjectPropagatesToSingletonClass(t *testing.T) {
	env := newTestEnv(t)
	inst := env.Heap.NewInstance(env.Classes.Object)
	obj := env.Heap.Deref(inst).(*Instance)

	sc := obj.SingletonClass(env.Heap, env.Classes.Object)
	obj.Freeze()

	if !obj.Frozen() {
		t.Fatalf("object should be frozen")
	}
	if !sc.Frozen() {
		t.Fatalf("its singleton class should also be frozen")
	}
	if err := obj.IvarSet("@x", NewFixnum(1)); err == nil {
		t.Fatalf("ivar writes on a frozen object must still fail after singleton creation")
	}
}
