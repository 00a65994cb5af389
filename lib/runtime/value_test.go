package runtime

import "testing"

func TestFixnumRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -42, maxFixnum, minFixnum} {
		v := NewFixnum(n)
		if !v.IsFixnum() {
			t.Fatalf("NewFixnum(%d) not IsFixnum", n)
		}
		if got := v.AsFixnum(); got != n {
			t.Fatalf("NewFixnum(%d).AsFixnum() = %d", n, got)
		}
	}
}

func TestFixnumFits(t *testing.T) {
	if !FixnumFits(maxFixnum) || FixnumFits(maxFixnum+1) {
		t.Fatalf("FixnumFits boundary wrong at max")
	}
	if !FixnumFits(minFixnum) || FixnumFits(minFixnum-1) {
		t.Fatalf("FixnumFits boundary wrong at min")
	}
}

func TestSentinels(t *testing.T) {
	if !NilValue.IsNil() || NilValue.IsTruthy() {
		t.Fatalf("nil sentinel wrong")
	}
	if !TrueValue.IsTrue() || !TrueValue.IsTruthy() {
		t.Fatalf("true sentinel wrong")
	}
	if !FalseValue.IsFalse() || FalseValue.IsTruthy() {
		t.Fatalf("false sentinel wrong")
	}
	if NewFixnum(0).IsTruthy() == false {
		t.Fatalf("fixnum 0 must be truthy in Ruby semantics")
	}
}

func TestBoolValue(t *testing.T) {
	if BoolValue(true) != TrueValue || BoolValue(false) != FalseValue {
		t.Fatalf("BoolValue mismatch")
	}
}

func TestValueTypeSwitch(t *testing.T) {
	cases := map[Value]ValueType{
		NilValue:      ValueNil,
		TrueValue:     ValueTrue,
		FalseValue:    ValueFalse,
		NewFixnum(7):  ValueFixnum,
	}
	for v, want := range cases {
		if got := v.Type(); got != want {
			t.Fatalf("%v.Type() = %v, want %v", v, got, want)
		}
	}
}
