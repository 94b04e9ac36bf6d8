package compiler

import "testing"

func TestEnvironmentLookup(t *testing.T) {
	env := NewEnvironment()
	env.PushBlock(nil)
	x := &Symbol{Name: "Count", Category: CategoryVariable, Type: IntType, Mode: IntMode, Size: 1}
	env.AddLocal("Count", x)

	if got := env.Lookup("count"); got != x {
		t.Errorf("Lookup is case-insensitive, got %v", got)
	}
	if got := env.Lookup("missing"); got != nil {
		t.Errorf("Lookup(missing) = %v, want nil", got)
	}
	if x.Level != 0 || x.Offset != 0 {
		t.Errorf("x at (%d, %d), want (0, 0)", x.Level, x.Offset)
	}
}

func TestEnvironmentShadowing(t *testing.T) {
	env := NewEnvironment()
	outer := &Symbol{Name: "x", Category: CategoryVariable, Size: 1}
	env.AddLocal("x", outer)

	env.Push(nil)
	if env.Find("x") != nil {
		t.Error("Find must only search the current scope")
	}
	inner := &Symbol{Name: "x", Category: CategoryVariable, Size: 1}
	env.AddLocal("x", inner)
	if env.Lookup("x") != inner {
		t.Error("inner declaration must shadow the outer one")
	}
	if inner.Level != 1 {
		t.Errorf("inner level = %d, want 1", inner.Level)
	}
	if env.ScopeLevel() != 2 {
		t.Errorf("ScopeLevel = %d, want 2", env.ScopeLevel())
	}

	env.Pop()
	if env.Lookup("x") != outer {
		t.Error("outer declaration must be visible again after Pop")
	}
	env.Pop()
	if env.ScopeLevel() != 1 {
		t.Error("the root scope is never popped")
	}
}

func TestEnvironmentOffsets(t *testing.T) {
	env := NewEnvironment()
	env.Push(nil)
	a := &Symbol{Category: CategoryVariable, Size: 3}
	b := &Symbol{Category: CategoryVariable, Size: 1}
	syn := &Symbol{Category: CategorySynonym}
	env.AddLocal("a", a)
	env.AddLocal("syn", syn)
	env.AddLocal("b", b)
	if a.Offset != 0 || b.Offset != 3 {
		t.Errorf("offsets = %d, %d, want 0, 3", a.Offset, b.Offset)
	}

	// A block scope continues the frame's offsets; the frame keeps the
	// high-water mark after the block ends.
	env.PushBlock(nil)
	c := &Symbol{Category: CategoryAction, Size: 2}
	env.AddLocal("c", c)
	if c.Offset != 4 || c.Level != 1 {
		t.Errorf("block local at (%d, %d), want (1, 4)", c.Level, c.Offset)
	}
	env.Pop()
	d := &Symbol{Category: CategoryVariable, Size: 1}
	env.AddLocal("d", d)
	if d.Offset != 4 {
		t.Errorf("offset after block = %d, want 4", d.Offset)
	}
	if size := env.Peek().FrameSize(); size != 6 {
		t.Errorf("FrameSize = %d, want 6", size)
	}
}

func TestEnvironmentAddLocalAtAndRoot(t *testing.T) {
	env := NewEnvironment()
	env.Push(nil)
	p := &Symbol{Category: CategoryParam, Size: 1}
	env.AddLocalAt("p", p, -4, 1)
	if p.Offset != -4 || p.Level != 1 {
		t.Errorf("param at (%d, %d)", p.Level, p.Offset)
	}
	if env.Peek().FrameSize() != 0 {
		t.Error("parameters do not occupy the callee's locals")
	}

	builtin := &Symbol{Name: "ABS", Category: CategoryProcedure}
	env.AddRoot("ABS", builtin)
	if env.Root().Lookup("abs") != builtin || env.Find("abs") != nil {
		t.Error("AddRoot must insert into the outermost scope only")
	}
}

func TestContextBuiltins(t *testing.T) {
	ctx := NewContext()
	for _, name := range []string{"int", "bool", "char", "string", "void"} {
		sym := ctx.Env.Lookup(name)
		if sym == nil || sym.Category != CategoryMode {
			t.Errorf("%s: got %v, want a mode", name, sym)
		}
	}
	arity := map[string]int{"ABS": 1, "ASC": 1, "NUM": 1, "UPPER": 1, "LOWER": 1, "READ": Variadic, "PRINT": Variadic}
	for name, want := range arity {
		sym := ctx.Env.Lookup(name)
		if sym == nil || sym.Proc == nil {
			t.Fatalf("%s is not registered", name)
		}
		if sym.Proc.NumArgs != want {
			t.Errorf("%s arity = %d, want %d", name, sym.Proc.NumArgs, want)
		}
	}
	if ctx.Env.Lookup("asc").Type != CharType {
		t.Error("ASC returns char")
	}
}

func TestContextLabelsAndFunctions(t *testing.T) {
	a, b := NewContext(), NewContext()
	if a.ID == b.ID {
		t.Error("contexts must have distinct ids")
	}
	if first := a.ReserveLabels(3); first != 0 {
		t.Errorf("first label = %d, want 0", first)
	}
	if next := a.ReserveLabels(2); next != 3 {
		t.Errorf("next label = %d, want 3", next)
	}
	if b.LabelCount != 0 {
		t.Error("contexts must not share label counters")
	}

	f := &Symbol{Name: "f"}
	a.PushFunction(f)
	if a.CurrentFunction() != f {
		t.Error("CurrentFunction after push")
	}
	a.PopFunction()
	if a.CurrentFunction() != nil {
		t.Error("CurrentFunction after pop")
	}

	a.Env.AddLocal("x", &Symbol{Category: CategoryVariable, Size: 1})
	a.Reset()
	if a.LabelCount != 0 || a.Env.Lookup("x") != nil || a.Env.Lookup("print") == nil {
		t.Error("Reset must drop user state and keep builtins")
	}
}
