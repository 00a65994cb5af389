package runtime

import "testing"

func defineGreeter(env *GlobalEnv) *Class {
	cls := env.Heap.NewClass("Greeter", env.Classes.Object)
	cls.DefineMethod("greet", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(1), nil
	}, 0, Public)
	return cls
}

func TestSendDispatchesPublicMethod(t *testing.T) {
	env := newTestEnv(t)
	cls := defineGreeter(env)
	recv := env.Heap.NewInstance(cls)

	v, err := env.Send(recv, "greet", nil, nil, nil, SendPublicOnly)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if v != NewFixnum(1) {
		t.Fatalf("Send returned %v, want 1", v)
	}
}

func TestSendOnPrivateMethodFromOutsideRaisesNoMethodError(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Secretive", env.Classes.Object)
	cls.DefineMethod("secret", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(1), nil
	}, 0, Private)
	recv := env.Heap.NewInstance(cls)

	_, err := env.Send(recv, "secret", nil, nil, nil, SendPublicOnly)
	nme, ok := err.(*NoMethodError)
	if !ok {
		t.Fatalf("expected *NoMethodError, got %v", err)
	}
	if nme.Reason != ReasonPrivate {
		t.Fatalf("expected ReasonPrivate, got %v", nme.Reason)
	}
}

func TestSendAllowPrivateBypassesPrivateFloor(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Secretive", env.Classes.Object)
	cls.DefineMethod("secret", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(9), nil
	}, 0, Private)
	recv := env.Heap.NewInstance(cls)

	v, err := env.Send(recv, "secret", nil, nil, nil, SendAllowPrivate)
	if err != nil || v != NewFixnum(9) {
		t.Fatalf("Send with SendAllowPrivate should call a private method, got (%v, %v)", v, err)
	}
}

func TestSendProtectedMethodAllowedFromRelatedCaller(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Account", env.Classes.Object)
	cls.DefineMethod("balance", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(100), nil
	}, 0, Protected)

	recv := env.Heap.NewInstance(cls)
	other := env.Heap.NewInstance(cls)
	callerFrame := env.Heap.NewFrame(nil, nil, other, "compare", "test.rb", 1)

	v, err := env.Send(recv, "balance", nil, nil, callerFrame, SendPublicOnly)
	if err != nil || v != NewFixnum(100) {
		t.Fatalf("a protected method should be callable from another instance of the same class, got (%v, %v)", v, err)
	}
}

func TestSendProtectedMethodRejectedFromUnrelatedCaller(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Account", env.Classes.Object)
	cls.DefineMethod("balance", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(100), nil
	}, 0, Protected)
	unrelated := env.Heap.NewClass("Stranger", env.Classes.Object)

	recv := env.Heap.NewInstance(cls)
	other := env.Heap.NewInstance(unrelated)
	callerFrame := env.Heap.NewFrame(nil, nil, other, "peek", "test.rb", 1)

	_, err := env.Send(recv, "balance", nil, nil, callerFrame, SendPublicOnly)
	nme, ok := err.(*NoMethodError)
	if !ok || nme.Reason != ReasonProtected {
		t.Fatalf("expected a protected NoMethodError, got %v", err)
	}
}

func TestSendUndefinedMethodFallsBackToMethodMissing(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Ghost", env.Classes.Object)
	var seenName Value
	cls.DefineMethod("method_missing", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		if len(args) > 0 {
			seenName = args[0]
		}
		return NewFixnum(-1), nil
	}, -1, Public)
	recv := env.Heap.NewInstance(cls)

	v, err := env.Send(recv, "anything", nil, nil, nil, SendPublicOnly)
	if err != nil {
		t.Fatalf("method_missing should intercept an undefined selector, got error %v", err)
	}
	if v != NewFixnum(-1) {
		t.Fatalf("Send returned %v, want -1 from method_missing", v)
	}
	if seenName.IsNil() {
		t.Fatalf("method_missing should have received the missing selector as its first arg")
	}
}

func TestSendUndefinedMethodNoMethodMissingRaisesNoMethodError(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Plain", env.Classes.Object)
	recv := env.Heap.NewInstance(cls)

	_, err := env.Send(recv, "nope", nil, nil, nil, SendPublicOnly)
	nme, ok := err.(*NoMethodError)
	if !ok || nme.Reason != ReasonUndefined {
		t.Fatalf("expected an undefined NoMethodError, got %v", err)
	}
}

func TestUndefMethodMakesItUncallable(t *testing.T) {
	env := newTestEnv(t)
	cls := defineGreeter(env)
	cls.UndefMethod("greet")
	recv := env.Heap.NewInstance(cls)

	_, err := env.Send(recv, "greet", nil, nil, nil, SendPublicOnly)
	if _, ok := err.(*NoMethodError); !ok {
		t.Fatalf("expected *NoMethodError after UndefMethod, got %v", err)
	}
}

func TestAliasMethodCallsSameImplementation(t *testing.T) {
	env := newTestEnv(t)
	cls := defineGreeter(env)
	if err := cls.AliasMethod("hi", "greet"); err != nil {
		t.Fatalf("AliasMethod failed: %v", err)
	}
	recv := env.Heap.NewInstance(cls)

	v, err := env.Send(recv, "hi", nil, nil, nil, SendPublicOnly)
	if err != nil || v != NewFixnum(1) {
		t.Fatalf("aliased method should behave like the original, got (%v, %v)", v, err)
	}
}

func TestAliasMethodOfUndefinedNameFails(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Empty", env.Classes.Object)
	err := cls.AliasMethod("new_name", "missing")
	if _, ok := err.(*NameError); !ok {
		t.Fatalf("expected *NameError aliasing an undefined method, got %v", err)
	}
}

func TestSuperCallsParentImplementation(t *testing.T) {
	env := newTestEnv(t)
	parent := env.Heap.NewClass("Parent", env.Classes.Object)
	parent.DefineMethod("speak", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NewFixnum(1), nil
	}, 0, Public)
	child := env.Heap.NewClass("Child", parent)

	recv := env.Heap.NewInstance(child)
	frame := env.Heap.NewFrame(nil, nil, recv, "speak", "test.rb", 1)
	frame.DefiningModule = child
	frame.OriginalName = "speak"

	v, err := env.Super(frame, nil, nil)
	if err != nil || v != NewFixnum(1) {
		t.Fatalf("Super should invoke Parent#speak, got (%v, %v)", v, err)
	}
}

func TestSuperWithNoParentImplementationRaisesNoMethodError(t *testing.T) {
	env := newTestEnv(t)
	child := env.Heap.NewClass("Lonely", env.Classes.Object)
	recv := env.Heap.NewInstance(child)
	frame := env.Heap.NewFrame(nil, nil, recv, "speak", "test.rb", 1)
	frame.DefiningModule = child
	frame.OriginalName = "speak"

	_, err := env.Super(frame, nil, nil)
	if _, ok := err.(*NoMethodError); !ok {
		t.Fatalf("expected *NoMethodError when no ancestor defines the method, got %v", err)
	}
}

func TestRespondToHonorsVisibility(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Mixed", env.Classes.Object)
	cls.DefineMethod("pub", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NilValue, nil
	}, 0, Public)
	cls.DefineMethod("priv", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NilValue, nil
	}, 0, Private)
	recv := env.Heap.NewInstance(cls)

	if !env.RespondTo(recv, "pub", false) {
		t.Fatalf("RespondTo should be true for a public method")
	}
	if env.RespondTo(recv, "priv", false) {
		t.Fatalf("RespondTo(includePrivate=false) should be false for a private method")
	}
	if !env.RespondTo(recv, "priv", true) {
		t.Fatalf("RespondTo(includePrivate=true) should be true for a private method")
	}
}

func TestInvokeArityMismatchRaisesArgumentError(t *testing.T) {
	env := newTestEnv(t)
	cls := env.Heap.NewClass("Strict", env.Classes.Object)
	cls.DefineMethod("one_arg", func(g *GlobalEnv, self Value, args []Value, block *Block) (Value, error) {
		return NilValue, nil
	}, 1, Public)
	recv := env.Heap.NewInstance(cls)

	_, err := env.Send(recv, "one_arg", nil, nil, nil, SendPublicOnly)
	if _, ok := err.(*ArgumentError); !ok {
		t.Fatalf("expected *ArgumentError on arity mismatch, got %v", err)
	}
}
