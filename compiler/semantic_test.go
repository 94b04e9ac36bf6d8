package compiler

import (
	"strings"
	"testing"
)

func validate(t *testing.T, src string) (*Validator, *Program, bool) {
	t.Helper()
	prog := parseOK(t, src)
	v := NewValidator(NewContext())
	ok := v.Validate(prog)
	return v, prog, ok
}

func validOK(t *testing.T, src string) (*Validator, *Program) {
	t.Helper()
	v, prog, ok := validate(t, src)
	if !ok {
		t.Fatalf("Validate(%q) failed: %v", src, v.Issues())
	}
	return v, prog
}

// wantIssue checks that src produces exactly one issue, of kind.
func wantIssue(t *testing.T, src string, kind IssueKind) Issue {
	t.Helper()
	v, _, ok := validate(t, src)
	if ok {
		t.Fatalf("Validate(%q) succeeded, want %s", src, kind)
	}
	issues := v.Issues()
	if len(issues) != 1 {
		t.Fatalf("Validate(%q) gave %d issues, want 1: %v", src, len(issues), issues)
	}
	if issues[0].Kind != kind {
		t.Fatalf("Validate(%q) = %s, want %s", src, issues[0], kind)
	}
	return issues[0]
}

func TestValidateIsMemoized(t *testing.T) {
	prog := parseOK(t, "dcl x int = 1; x += 2;")
	v := NewValidator(NewContext())
	if !v.Validate(prog) {
		t.Fatalf("first Validate failed: %v", v.Issues())
	}
	if !v.Validate(prog) {
		t.Fatal("second Validate failed")
	}
	if len(v.Issues()) != 0 {
		t.Errorf("issues = %v", v.Issues())
	}
	if r := v.Result(prog); r == nil || !r.Valid {
		t.Errorf("Result(prog) = %+v", r)
	}

	bad := parseOK(t, "y := 1;")
	v = NewValidator(NewContext())
	v.Validate(bad)
	v.Validate(bad)
	if n := len(v.Issues()); n != 1 {
		t.Errorf("revalidating reported %d issues, want 1", n)
	}
}

func TestValidateUndeclared(t *testing.T) {
	issue := wantIssue(t, "y := 1;", UndeclaredIdentifier)
	if issue.Message != "y is not declared" || issue.Line != 1 {
		t.Errorf("issue = %+v", issue)
	}
	wantIssue(t, "dcl x foo;", UndeclaredIdentifier)
	wantIssue(t, "g(1);", UndeclaredIdentifier)
}

func TestValidateRedeclaration(t *testing.T) {
	issue := wantIssue(t, "dcl x int;\ndcl x bool;", Redeclaration)
	if issue.Line != 2 || !strings.Contains(issue.Message, "line 1") {
		t.Errorf("issue = %+v", issue)
	}
	issue = wantIssue(t, "dcl print int;", Redeclaration)
	if !strings.Contains(issue.Message, "builtin") {
		t.Errorf("issue = %+v", issue)
	}
	wantIssue(t, "f: proc(a int, a int); end;", Redeclaration)

	// Nested scopes may shadow program and builtin names.
	validOK(t, "dcl x int;\nf: proc(); dcl x bool, abs int; end;")
	validOK(t, "dcl x int; if true then dcl x bool; fi")
}

func TestValidateTypes(t *testing.T) {
	issue := wantIssue(t, "dcl b bool = 1;", TypeMismatch)
	if issue.Message != "expected bool, received int" {
		t.Errorf("message = %q", issue.Message)
	}
	wantIssue(t, "dcl x int; if x then x = 1; fi", TypeMismatch)
	wantIssue(t, "dcl x int; do while x; od;", TypeMismatch)
	wantIssue(t, "dcl a array[1:3] int, b array[1:4] int; a = b;", TypeMismatch)
	wantIssue(t, "f: proc(); return 1; end;", TypeMismatch)
	wantIssue(t, "f: proc(a int) returns(bool); return a; end;", TypeMismatch)
	wantIssue(t, "dcl c char = ABS(1);", TypeMismatch)

	validOK(t, "dcl b bool = 1 < 2, c bool = 'a' <= 'b', d bool = \"x\" == \"y\";")
	validOK(t, "dcl s chars[10] = \"ab\"; s += \"cd\"; dcl c char = s[0];")
	validOK(t, "dcl n int = NUM('a') + NUM(true); dcl c char = UPPER(ASC(n));")
}

func TestValidateOperators(t *testing.T) {
	wantIssue(t, "dcl b bool; b = b + b;", InvalidOperator)
	wantIssue(t, "dcl x int; x = !x;", InvalidOperator)
	wantIssue(t, `dcl s chars[5]; s -= "a";`, InvalidOperator)
	wantIssue(t, "dcl b bool; b += true;", InvalidOperator)
	wantIssue(t, "dcl c char; c = c + c;", InvalidOperator)
}

func TestValidateCalls(t *testing.T) {
	wantIssue(t, "f: proc(a int); end; f(1, 2);", ArgumentCountMismatch)
	wantIssue(t, "dcl n int = ABS(1, 2);", ArgumentCountMismatch)
	wantIssue(t, "dcl x int; x(1);", CallingNonCallable)

	issue := wantIssue(t, "f: proc(a int loc); end; f(3);", InvalidType)
	if issue.Message != "argument 1 must be a location" {
		t.Errorf("message = %q", issue.Message)
	}
	wantIssue(t, "READ(1);", InvalidType)
	wantIssue(t, "f: proc(); end; print(f());", InvalidType)

	validOK(t, "dcl x int, s string; READ(x, s); PRINT(x, s, 'c', \"done\");")
	validOK(t, "f: proc(a int loc, b int) returns(int); a += b; return a; end; dcl x int; x = f(x, 2);")
}

func TestValidateConstants(t *testing.T) {
	wantIssue(t, "dcl x int; syn n = x;", NonConstantExpression)
	wantIssue(t, "dcl n int = 3; dcl a array[1:n] int;", NonConstantExpression)
	wantIssue(t, "dcl a array[3:1] int;", InvalidType)

	v, prog := validOK(t, "syn n = 2 + 3 * 4, neg = -n, s = \"a\" + \"b\";")
	syns := prog.Stmts[0].(*SynStmt).Syns
	if sym := v.Info().Symbols[syns[0].Names[0]]; sym.Value.Int != 14 {
		t.Errorf("n = %v, want 14", sym.Value)
	}
	if sym := v.Info().Symbols[syns[1].Names[0]]; sym.Value.Int != -14 {
		t.Errorf("neg = %v, want -14", sym.Value)
	}
	if sym := v.Info().Symbols[syns[2].Names[0]]; sym.Value.Text != "ab" {
		t.Errorf("s = %v, want ab", sym.Value)
	}

	v, prog = validOK(t, "syn lo = 0; dcl a array[lo:lo + 4] int;")
	m := v.Info().ModeOf(prog.Stmts[1].(*DeclStmt).Decls[0].Mode)
	if m == nil || m.Size != 5 || m.Lower != 0 {
		t.Errorf("array mode = %+v", m)
	}
}

func TestValidateLocations(t *testing.T) {
	wantIssue(t, "syn n = 1; n = 2;", InvalidType)
	wantIssue(t, "dcl x int loc = 3;", InvalidType)
	wantIssue(t, "dcl x int; dcl p ref int = ->(x + 1);", InvalidType)
	wantIssue(t, "return 1;", InvalidType)
	wantIssue(t, "f: proc(a array[1:2] int); end;", InvalidType)

	validOK(t, "dcl x int; dcl r int loc = x; r = 4; dcl p ref int = ->x; p-> = 5;")
	validOK(t, "dcl a array[1:3] int; f: proc() returns(int loc); return a[2]; end; f() = 1;")
}

func TestValidateProcedureLayout(t *testing.T) {
	v, prog := validOK(t, "f: proc(a, b int, c int loc) returns(int); dcl t int; return a; end;")
	proc := prog.Stmts[0].(*ProcStmt)
	sym := v.Info().Procs[proc]
	if sym == nil || sym.Proc.Level != 1 || sym.Proc.NumArgs != 3 {
		t.Fatalf("proc symbol = %+v", sym)
	}
	wantOffsets := []int{-5, -4, -3}
	var got []int
	for _, p := range proc.Params {
		for _, id := range p.Names {
			got = append(got, v.Info().Symbols[id].Offset)
		}
	}
	for i := range wantOffsets {
		if got[i] != wantOffsets[i] {
			t.Errorf("parameter offsets = %v, want %v", got, wantOffsets)
			break
		}
	}
	if cat := v.Info().Symbols[proc.Params[1].Names[0]].Category; cat != CategoryParamRef {
		t.Errorf("c category = %s", cat)
	}
	if v.Info().Frames[proc] != 1 {
		t.Errorf("frame = %d, want 1", v.Info().Frames[proc])
	}
	ret := proc.Body[1].(*ReturnAction)
	if v.Info().Enclosing[ret] != sym {
		t.Error("return not linked to its procedure")
	}
}

func TestValidateForLoops(t *testing.T) {
	v, prog := validOK(t, "dcl n int = 2; do for i = 1 by n to 9; od; do for j = 1 by 2 to 9; od;")
	first := prog.Stmts[1].(*DoAction).For
	second := prog.Stmts[2].(*DoAction).For
	info := v.Info()

	if !info.Implicit[first] || info.Counters[first].Category != CategoryAction {
		t.Errorf("i should be an implicit counter")
	}
	if s := info.Slots[first]; s.Step < 0 || s.End < 0 {
		t.Errorf("non-constant step needs a slot: %+v", s)
	}
	if s := info.Slots[second]; s.Step != -1 {
		t.Errorf("constant step has a slot: %+v", s)
	}
	// n, then i, end, step for the first loop; the second loop reuses
	// the words the first block released.
	if info.Frames[prog] != 4 {
		t.Errorf("program frame = %d, want 4", info.Frames[prog])
	}

	v, prog = validOK(t, "dcl i int; do for i = 3 down to 1; od;")
	fc := prog.Stmts[1].(*DoAction).For
	if v.Info().Implicit[fc] {
		t.Error("declared counter treated as implicit")
	}
	if v.Info().Usage[fc.Counter] != UsageAssign {
		t.Errorf("counter usage = %s", v.Info().Usage[fc.Counter])
	}

	wantIssue(t, "dcl b bool; do for b = 1 to 2; od;", TypeMismatch)
	wantIssue(t, "syn k = 1; do for k = 1 to 2; od;", InvalidType)
}

func TestValidateUsage(t *testing.T) {
	v, prog := validOK(t, "dcl x int; dcl p ref int = ->x; x = 1; print(x);")
	info := v.Info()
	decl := prog.Stmts[0].(*DeclStmt).Decls[0].Names[0]
	ref := prog.Stmts[1].(*DeclStmt).Decls[0].Init.(*RefExpr).X.(*Ident)
	target := prog.Stmts[2].(*AssignAction).Target.(*Ident)
	arg := prog.Stmts[3].(*CallAction).Call.Args[0].(*Ident)

	tests := []struct {
		id   *Ident
		want Usage
	}{
		{decl, UsageDeclaration},
		{ref, UsageReference},
		{target, UsageAssign},
		{arg, UsageValue},
	}
	for i, tc := range tests {
		if got := info.Usage[tc.id]; got != tc.want {
			t.Errorf("occurrence %d: usage = %s, want %s", i, got, tc.want)
		}
		if info.Symbols[tc.id] != info.Symbols[decl] {
			t.Errorf("occurrence %d resolved to a different symbol", i)
		}
	}
}

func TestIssueString(t *testing.T) {
	issue := Issue{Kind: TypeMismatch, Message: "expected int, received bool", Line: 3}
	if got := issue.String(); got != "line 3: type mismatch: expected int, received bool" {
		t.Errorf("String() = %q", got)
	}
	text, err := NonConstantExpression.MarshalText()
	if err != nil || string(text) != "non-constant expression" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}
