package compiler

import (
	"strconv"
	"strings"
	"testing"
)

func parseOK(t *testing.T, src string) *Program {
	t.Helper()
	prog, errs := Parse(src)
	if len(errs) > 0 {
		t.Fatalf("Parse(%q) errors: %v", src, errs)
	}
	return prog
}

func TestParseDeclarations(t *testing.T) {
	prog := parseOK(t, "dcl a, b int = 1, c bool, r int loc = a;")
	if len(prog.Stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Stmts))
	}
	decl, ok := prog.Stmts[0].(*DeclStmt)
	if !ok {
		t.Fatalf("got %T, want *DeclStmt", prog.Stmts[0])
	}
	if len(decl.Decls) != 3 {
		t.Fatalf("got %d declarations, want 3", len(decl.Decls))
	}
	if n := len(decl.Decls[0].Names); n != 2 {
		t.Errorf("first declaration has %d names, want 2", n)
	}
	if lit, ok := decl.Decls[0].Init.(*IntLiteral); !ok || lit.Value != 1 {
		t.Errorf("first initializer = %#v", decl.Decls[0].Init)
	}
	if decl.Decls[1].Init != nil {
		t.Errorf("second declaration should have no initializer")
	}
	if !decl.Decls[2].Loc {
		t.Errorf("third declaration should be loc")
	}
}

func TestParseModes(t *testing.T) {
	prog := parseOK(t, `
type idx = int(1:10);
dcl m array[1:2, idx] chars[8];
dcl p ref int;
`)
	ty := prog.Stmts[0].(*TypeStmt)
	rm, ok := ty.Defs[0].Mode.(*RangeMode)
	if !ok || rm.Base == nil || rm.Base.Name.Name != "int" {
		t.Fatalf("type mode = %#v, want int(1:10)", ty.Defs[0].Mode)
	}

	arr, ok := prog.Stmts[1].(*DeclStmt).Decls[0].Mode.(*ArrayMode)
	if !ok {
		t.Fatalf("got %T, want *ArrayMode", prog.Stmts[1].(*DeclStmt).Decls[0].Mode)
	}
	if len(arr.Indexes) != 2 {
		t.Fatalf("got %d indexes, want 2", len(arr.Indexes))
	}
	if bare, ok := arr.Indexes[0].(*RangeMode); !ok || bare.Base != nil {
		t.Errorf("first index = %#v, want bare range", arr.Indexes[0])
	}
	if named, ok := arr.Indexes[1].(*ModeName); !ok || named.Name.Name != "idx" {
		t.Errorf("second index = %#v, want idx", arr.Indexes[1])
	}
	if _, ok := arr.Elem.(*CharsMode); !ok {
		t.Errorf("element = %T, want *CharsMode", arr.Elem)
	}

	if _, ok := prog.Stmts[2].(*DeclStmt).Decls[0].Mode.(*RefMode); !ok {
		t.Errorf("p mode is not a ref mode")
	}
}

func TestParseSynonyms(t *testing.T) {
	prog := parseOK(t, "syn n int = 3, c = 'x';")
	syn := prog.Stmts[0].(*SynStmt)
	if len(syn.Syns) != 2 {
		t.Fatalf("got %d synonyms, want 2", len(syn.Syns))
	}
	if syn.Syns[0].Mode == nil {
		t.Error("first synonym should carry a mode")
	}
	if syn.Syns[1].Mode != nil {
		t.Error("second synonym should have no mode")
	}
}

func TestParseProc(t *testing.T) {
	prog := parseOK(t, `
swap: proc(a, b int loc, n int) returns(int);
  dcl t int = a;
  a = b; b = t;
  return n;
end;
`)
	proc, ok := prog.Stmts[0].(*ProcStmt)
	if !ok {
		t.Fatalf("got %T, want *ProcStmt", prog.Stmts[0])
	}
	if proc.Name.Name != "swap" {
		t.Errorf("name = %q", proc.Name.Name)
	}
	if proc.NumArgs() != 3 {
		t.Errorf("NumArgs = %d, want 3", proc.NumArgs())
	}
	if !proc.Params[0].Loc || proc.Params[1].Loc {
		t.Errorf("loc flags = %v, %v", proc.Params[0].Loc, proc.Params[1].Loc)
	}
	if proc.Result == nil || proc.Result.Loc {
		t.Errorf("result = %#v", proc.Result)
	}
	if len(proc.Body) != 4 {
		t.Errorf("body has %d statements, want 4", len(proc.Body))
	}
}

func TestParseActions(t *testing.T) {
	prog := parseOK(t, `
x = 1;
x := 2;
x += 3;
a[1, 2] = x;
p-> = 4;
f(x);
if x > 1 then x = 0; elsif x < 0 then x = 1; else x = 2; fi
do for i = 10 by 2 down to 1 while x < 5; x += i; od
for i = 1 to 3 do print(i); od
while x < 10 do x += 1; od
`)
	assigns := []struct {
		op string
	}{{""}, {""}, {"+"}, {""}, {""}}
	for i, a := range assigns {
		as, ok := prog.Stmts[i].(*AssignAction)
		if !ok {
			t.Fatalf("stmt %d: got %T, want *AssignAction", i, prog.Stmts[i])
		}
		if as.Op != a.op {
			t.Errorf("stmt %d: op = %q, want %q", i, as.Op, a.op)
		}
	}
	if _, ok := prog.Stmts[3].(*AssignAction).Target.(*IndexExpr); !ok {
		t.Error("a[1, 2] should be an index target")
	}
	if _, ok := prog.Stmts[4].(*AssignAction).Target.(*DerefExpr); !ok {
		t.Error("p-> should be a deref target")
	}
	if _, ok := prog.Stmts[5].(*CallAction); !ok {
		t.Errorf("stmt 5: got %T, want *CallAction", prog.Stmts[5])
	}

	ifAct := prog.Stmts[6].(*IfAction)
	if len(ifAct.Branches) != 2 || ifAct.Else == nil {
		t.Errorf("if chain: %d branches, else=%v", len(ifAct.Branches), ifAct.Else != nil)
	}

	do := prog.Stmts[7].(*DoAction)
	if do.For == nil || do.While == nil {
		t.Fatal("do loop should have for and while control")
	}
	if !do.For.Down || do.For.Step == nil {
		t.Errorf("for control = %#v", do.For)
	}

	short := prog.Stmts[8].(*DoAction)
	if short.For == nil || short.For.Counter.Name != "i" || short.While != nil {
		t.Errorf("short for loop = %#v", short)
	}
	if w := prog.Stmts[9].(*DoAction); w.For != nil || w.While == nil {
		t.Errorf("while loop = %#v", w)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x = 2 + 3 * 4;", "(2 + (3 * 4))"},
		{"x = (2 + 3) * 4;", "((2 + 3) * 4)"},
		{"x = a || b && c;", "(a || (b && c))"},
		{"x = a == b < c;", "(a == (b < c))"},
		{"x = -a + b;", "((-a) + b)"},
		{"x = !a && b;", "((!a) && b)"},
		{"x = 10 - 4 - 3;", "((10 - 4) - 3)"},
	}
	for _, tc := range tests {
		prog := parseOK(t, tc.src)
		got := exprString(prog.Stmts[0].(*AssignAction).Value)
		if got != tc.want {
			t.Errorf("%s => %s, want %s", tc.src, got, tc.want)
		}
	}
}

func exprString(e Expr) string {
	switch e := e.(type) {
	case *IntLiteral:
		return strconv.FormatInt(e.Value, 10)
	case *Ident:
		return e.Name
	case *UnaryExpr:
		return "(" + e.Op + exprString(e.X) + ")"
	case *BinaryExpr:
		return "(" + exprString(e.X) + " " + e.Op + " " + exprString(e.Y) + ")"
	}
	return "?"
}

func TestParsePostfixAndConditional(t *testing.T) {
	prog := parseOK(t, "x = if a then ->b else c[1]-> fi;")
	ce, ok := prog.Stmts[0].(*AssignAction).Value.(*CondExpr)
	if !ok {
		t.Fatalf("got %T, want *CondExpr", prog.Stmts[0].(*AssignAction).Value)
	}
	if _, ok := ce.Branches[0].Value.(*RefExpr); !ok {
		t.Errorf("then value = %T, want *RefExpr", ce.Branches[0].Value)
	}
	deref, ok := ce.Else.(*DerefExpr)
	if !ok {
		t.Fatalf("else value = %T, want *DerefExpr", ce.Else)
	}
	if _, ok := deref.X.(*IndexExpr); !ok {
		t.Errorf("deref operand = %T, want *IndexExpr", deref.X)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"dcl x int", "expected ;"},
		{"dcl int;", "expected mode"},
		{"x = ;", "unexpected ;"},
		{"x + 1;", "expected action"},
		{"f: proc(; end;", "expected identifier"},
		{"if x then y = 1;", "unexpected end of input"},
	}
	for _, tc := range tests {
		_, errs := Parse(tc.src)
		if len(errs) == 0 {
			t.Errorf("Parse(%q) succeeded, want error containing %q", tc.src, tc.want)
			continue
		}
		if !strings.Contains(strings.Join(errs, "\n"), tc.want) {
			t.Errorf("Parse(%q) errors = %v, want one containing %q", tc.src, errs, tc.want)
		}
	}
}

func TestParseRecovers(t *testing.T) {
	prog, errs := Parse("dcl x int = ;\ndcl y int = 2;")
	if len(errs) == 0 {
		t.Fatal("expected a parse error")
	}
	if !strings.HasPrefix(errs[0], "line 1:") {
		t.Errorf("first error = %q, want line 1", errs[0])
	}
	found := false
	for _, s := range prog.Stmts {
		if d, ok := s.(*DeclStmt); ok && d.Decls[0].Names[0].Name == "y" {
			found = true
		}
	}
	if !found {
		t.Error("parser did not recover to the second declaration")
	}
}

func TestInspectVisitsEveryNode(t *testing.T) {
	prog := parseOK(t, "f: proc(a int) returns(int); return a + 1; end; dcl x int = f(2);")
	counts := map[string]int{}
	Inspect(prog, func(n Node) bool {
		switch n.(type) {
		case *Ident:
			counts["ident"]++
		case *IntLiteral:
			counts["int"]++
		}
		return true
	})
	// f, a, int, int (result), a, x, int, f
	if counts["ident"] != 8 {
		t.Errorf("visited %d identifiers, want 8", counts["ident"])
	}
	if counts["int"] != 2 {
		t.Errorf("visited %d int literals, want 2", counts["int"])
	}
}
