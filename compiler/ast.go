package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for LYA
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes. The set of node
// types is closed: every type in this file, and no others.
type Node interface {
	Span() Span
	node() // marker method
}

// Line returns the 1-based source line where n starts.
func Line(n Node) int {
	return n.Span().Start.Line
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is the root of a compilation unit.
type Program struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Stmt is the interface for statements: declarations and actions.
type Stmt interface {
	Node
	stmt() // marker method
}

// DeclStmt is `dcl a, b int = 1, c bool;`.
type DeclStmt struct {
	SpanVal Span
	Decls   []*Declaration
}

func (n *DeclStmt) Span() Span { return n.SpanVal }
func (n *DeclStmt) node()      {}
func (n *DeclStmt) stmt()      {}

// Declaration binds identifiers to storage of one mode, with an optional
// initializer applied to each of them. A loc declaration makes each name an
// alias of the location given as initializer.
type Declaration struct {
	SpanVal Span
	Names   []*Ident
	Mode    ModeExpr
	Loc     bool
	Init    Expr // may be nil
}

func (n *Declaration) Span() Span { return n.SpanVal }
func (n *Declaration) node()      {}

// SynStmt is `syn a, b int = 3, c = 'x';`.
type SynStmt struct {
	SpanVal Span
	Syns    []*SynonymDef
}

func (n *SynStmt) Span() Span { return n.SpanVal }
func (n *SynStmt) node()      {}
func (n *SynStmt) stmt()      {}

// SynonymDef binds identifiers to a compile-time constant.
type SynonymDef struct {
	SpanVal Span
	Names   []*Ident
	Mode    ModeExpr // may be nil
	Value   Expr
}

func (n *SynonymDef) Span() Span { return n.SpanVal }
func (n *SynonymDef) node()      {}

// TypeStmt is `type vec = array[1:3] int;`.
type TypeStmt struct {
	SpanVal Span
	Defs    []*ModeDef
}

func (n *TypeStmt) Span() Span { return n.SpanVal }
func (n *TypeStmt) node()      {}
func (n *TypeStmt) stmt()      {}

// ModeDef names a mode.
type ModeDef struct {
	SpanVal Span
	Names   []*Ident
	Mode    ModeExpr
}

func (n *ModeDef) Span() Span { return n.SpanVal }
func (n *ModeDef) node()      {}

// ProcStmt defines a procedure.
type ProcStmt struct {
	SpanVal Span
	Name    *Ident
	Params  []*FormalParam
	Result  *ResultSpec // nil for void procedures
	Body    []Stmt
}

func (n *ProcStmt) Span() Span { return n.SpanVal }
func (n *ProcStmt) node()      {}
func (n *ProcStmt) stmt()      {}

// NumArgs returns the total number of parameter identifiers.
func (n *ProcStmt) NumArgs() int {
	count := 0
	for _, p := range n.Params {
		count += len(p.Names)
	}
	return count
}

// FormalParam is one `a, b int [loc]` group in a parameter list.
type FormalParam struct {
	SpanVal Span
	Names   []*Ident
	Mode    ModeExpr
	Loc     bool
}

func (n *FormalParam) Span() Span { return n.SpanVal }
func (n *FormalParam) node()      {}

// ResultSpec is the `returns(mode [loc])` clause of a procedure.
type ResultSpec struct {
	SpanVal Span
	Mode    ModeExpr
	Loc     bool
}

func (n *ResultSpec) Span() Span { return n.SpanVal }
func (n *ResultSpec) node()      {}

// AssignAction is `loc = expr` or a compound form such as `loc += expr`.
// Op is "" for plain assignment, otherwise the arithmetic operator.
type AssignAction struct {
	SpanVal Span
	Target  Expr
	Op      string
	Value   Expr
}

func (n *AssignAction) Span() Span { return n.SpanVal }
func (n *AssignAction) node()      {}
func (n *AssignAction) stmt()      {}

// IfAction is an if/elsif/else chain.
type IfAction struct {
	SpanVal  Span
	Branches []*CondBranch
	Else     []Stmt // nil when there is no else part
}

func (n *IfAction) Span() Span { return n.SpanVal }
func (n *IfAction) node()      {}
func (n *IfAction) stmt()      {}

// CondBranch is one `cond then body` arm of an if chain.
type CondBranch struct {
	SpanVal Span
	Cond    Expr
	Body    []Stmt
}

func (n *CondBranch) Span() Span { return n.SpanVal }
func (n *CondBranch) node()      {}

// DoAction is a do ... od loop with optional for and while control.
type DoAction struct {
	SpanVal Span
	For     *ForControl // may be nil
	While   Expr        // may be nil
	Body    []Stmt
}

func (n *DoAction) Span() Span { return n.SpanVal }
func (n *DoAction) node()      {}
func (n *DoAction) stmt()      {}

// ForControl is `for i = start [by step] [down] to end`.
type ForControl struct {
	SpanVal Span
	Counter *Ident
	Start   Expr
	Step    Expr // may be nil, meaning 1
	Down    bool
	End     Expr
}

func (n *ForControl) Span() Span { return n.SpanVal }
func (n *ForControl) node()      {}

// CallAction is a procedure call used as an action.
type CallAction struct {
	SpanVal Span
	Call    *CallExpr
}

func (n *CallAction) Span() Span { return n.SpanVal }
func (n *CallAction) node()      {}
func (n *CallAction) stmt()      {}

// ReturnAction is `return [expr]`.
type ReturnAction struct {
	SpanVal Span
	Value   Expr // may be nil
}

func (n *ReturnAction) Span() Span { return n.SpanVal }
func (n *ReturnAction) node()      {}
func (n *ReturnAction) stmt()      {}

// ResultAction is `result expr`.
type ResultAction struct {
	SpanVal Span
	Value   Expr
}

func (n *ResultAction) Span() Span { return n.SpanVal }
func (n *ResultAction) node()      {}
func (n *ResultAction) stmt()      {}

// ---------------------------------------------------------------------------
// Modes
// ---------------------------------------------------------------------------

// ModeExpr is the interface for mode (type) expressions.
type ModeExpr interface {
	Node
	modeExpr() // marker method
}

// ModeName refers to a builtin or user-defined mode by name.
type ModeName struct {
	SpanVal Span
	Name    *Ident
}

func (n *ModeName) Span() Span { return n.SpanVal }
func (n *ModeName) node()      {}
func (n *ModeName) modeExpr()  {}

// RangeMode is a discrete range: `int(1:10)`, or a bare `1:10` inside an
// array index list, in which case Base is nil.
type RangeMode struct {
	SpanVal Span
	Base    *ModeName // may be nil
	Lo, Hi  Expr
}

func (n *RangeMode) Span() Span { return n.SpanVal }
func (n *RangeMode) node()      {}
func (n *RangeMode) modeExpr()  {}

// RefMode is `ref mode`.
type RefMode struct {
	SpanVal Span
	Elem    ModeExpr
}

func (n *RefMode) Span() Span { return n.SpanVal }
func (n *RefMode) node()      {}
func (n *RefMode) modeExpr()  {}

// CharsMode is `chars[n]`.
type CharsMode struct {
	SpanVal Span
	Len     Expr
}

func (n *CharsMode) Span() Span { return n.SpanVal }
func (n *CharsMode) node()      {}
func (n *CharsMode) modeExpr()  {}

// ArrayMode is `array[index {, index}] mode`.
type ArrayMode struct {
	SpanVal Span
	Indexes []ModeExpr
	Elem    ModeExpr
}

func (n *ArrayMode) Span() Span { return n.SpanVal }
func (n *ArrayMode) node()      {}
func (n *ArrayMode) modeExpr()  {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// CharLiteral represents a character literal ('a').
type CharLiteral struct {
	SpanVal Span
	Value   rune
}

func (n *CharLiteral) Span() Span { return n.SpanVal }
func (n *CharLiteral) node()      {}
func (n *CharLiteral) expr()      {}

// StringLiteral represents a string literal ("hello").
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// Ident is an identifier, either declared or referenced.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// UnaryExpr is `-x` or `!x`.
type UnaryExpr struct {
	SpanVal Span
	Op      string
	X       Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr is `x op y`.
type BinaryExpr struct {
	SpanVal Span
	Op      string
	X, Y    Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// CondExpr is `if c then a {elsif c then b} else z fi` used as a value.
type CondExpr struct {
	SpanVal  Span
	Branches []*CondValue
	Else     Expr
}

func (n *CondExpr) Span() Span { return n.SpanVal }
func (n *CondExpr) node()      {}
func (n *CondExpr) expr()      {}

// CondValue is one arm of a conditional expression.
type CondValue struct {
	SpanVal Span
	Cond    Expr
	Value   Expr
}

func (n *CondValue) Span() Span { return n.SpanVal }
func (n *CondValue) node()      {}

// CallExpr is `f(a, b)`; it also covers builtin calls.
type CallExpr struct {
	SpanVal Span
	Callee  *Ident
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// IndexExpr is `a[i, j]`; the index list is applied left to right.
type IndexExpr struct {
	SpanVal Span
	X       Expr
	Indexes []Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// DerefExpr is `p->`.
type DerefExpr struct {
	SpanVal Span
	X       Expr
}

func (n *DerefExpr) Span() Span { return n.SpanVal }
func (n *DerefExpr) node()      {}
func (n *DerefExpr) expr()      {}

// RefExpr is `->loc`.
type RefExpr struct {
	SpanVal Span
	X       Expr
}

func (n *RefExpr) Span() Span { return n.SpanVal }
func (n *RefExpr) node()      {}
func (n *RefExpr) expr()      {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Children returns the direct children of n in source order. Nil
// optional parts are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(cs ...Node) {
		for _, c := range cs {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	addStmts := func(stmts []Stmt) {
		for _, s := range stmts {
			add(s)
		}
	}
	addIdents := func(ids []*Ident) {
		for _, id := range ids {
			add(id)
		}
	}
	addExprs := func(es []Expr) {
		for _, e := range es {
			add(e)
		}
	}

	switch n := n.(type) {
	case *Program:
		addStmts(n.Stmts)
	case *DeclStmt:
		for _, d := range n.Decls {
			add(d)
		}
	case *Declaration:
		addIdents(n.Names)
		add(n.Mode, n.Init)
	case *SynStmt:
		for _, s := range n.Syns {
			add(s)
		}
	case *SynonymDef:
		addIdents(n.Names)
		add(n.Mode, n.Value)
	case *TypeStmt:
		for _, d := range n.Defs {
			add(d)
		}
	case *ModeDef:
		addIdents(n.Names)
		add(n.Mode)
	case *ProcStmt:
		add(n.Name)
		for _, p := range n.Params {
			add(p)
		}
		add(n.Result)
		addStmts(n.Body)
	case *FormalParam:
		addIdents(n.Names)
		add(n.Mode)
	case *ResultSpec:
		add(n.Mode)
	case *AssignAction:
		add(n.Target, n.Value)
	case *IfAction:
		for _, b := range n.Branches {
			add(b)
		}
		addStmts(n.Else)
	case *CondBranch:
		add(n.Cond)
		addStmts(n.Body)
	case *DoAction:
		add(n.For, n.While)
		addStmts(n.Body)
	case *ForControl:
		add(n.Counter, n.Start, n.Step, n.End)
	case *CallAction:
		add(n.Call)
	case *ReturnAction:
		add(n.Value)
	case *ResultAction:
		add(n.Value)
	case *ModeName:
		add(n.Name)
	case *RangeMode:
		add(n.Base, n.Lo, n.Hi)
	case *RefMode:
		add(n.Elem)
	case *CharsMode:
		add(n.Len)
	case *ArrayMode:
		for _, m := range n.Indexes {
			add(m)
		}
		add(n.Elem)
	case *IntLiteral, *BoolLiteral, *CharLiteral, *StringLiteral, *Ident:
	case *UnaryExpr:
		add(n.X)
	case *BinaryExpr:
		add(n.X, n.Y)
	case *CondExpr:
		for _, b := range n.Branches {
			add(b)
		}
		add(n.Else)
	case *CondValue:
		add(n.Cond, n.Value)
	case *CallExpr:
		add(n.Callee)
		addExprs(n.Args)
	case *IndexExpr:
		add(n.X)
		addExprs(n.Indexes)
	case *DerefExpr:
		add(n.X)
	case *RefExpr:
		add(n.X)
	default:
		panic(fmt.Sprintf("compiler: unexpected node %T", n))
	}
	return out
}

// isNilNode reports whether an interface holds a typed nil pointer.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *ForControl:
		return v == nil
	case *ResultSpec:
		return v == nil
	case *ModeName:
		return v == nil
	}
	return false
}

// Inspect traverses the tree depth-first, calling f for each node. If f
// returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}
