package compiler

import (
	"github.com/chazu/lya/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Validator: scope resolution and type checking
// ---------------------------------------------------------------------------

// Result is the outcome of validating one node.
type Result struct {
	Valid  bool
	Issues []Issue
}

// Usage records how an identifier occurrence is used.
type Usage int

const (
	UsageNone Usage = iota
	UsageDeclaration
	UsageValue
	UsageReference
	UsageAssign
)

var usageNames = [...]string{"none", "declaration", "value", "reference", "assign"}

func (u Usage) String() string {
	return usageNames[u]
}

// ForSlots locates the hidden words a counted loop keeps in its block
// scope. Step is -1 when the step is a constant.
type ForSlots struct {
	Level int
	End   int
	Step  int
}

// Info holds everything the validator learns about the tree. The
// generator reads it instead of resolving names again.
type Info struct {
	Types     map[Expr]*ExprType
	Modes     map[Node]*Mode
	Symbols   map[*Ident]*Symbol
	Usage     map[*Ident]Usage
	Constants map[Expr]bytecode.Value

	// Frames maps a Program or ProcStmt to the number of local words its
	// activation record needs.
	Frames map[Node]int
	Procs  map[*ProcStmt]*Symbol

	// Counters maps a for control to the counter it steps; Implicit marks
	// counters the loop declared itself.
	Counters map[*ForControl]*Symbol
	Implicit map[*ForControl]bool
	Slots    map[*ForControl]ForSlots

	// Enclosing maps return and result actions to their procedure.
	Enclosing map[Stmt]*Symbol
}

func newInfo() *Info {
	return &Info{
		Types:     make(map[Expr]*ExprType),
		Modes:     make(map[Node]*Mode),
		Symbols:   make(map[*Ident]*Symbol),
		Usage:     make(map[*Ident]Usage),
		Constants: make(map[Expr]bytecode.Value),
		Frames:    make(map[Node]int),
		Procs:     make(map[*ProcStmt]*Symbol),
		Counters:  make(map[*ForControl]*Symbol),
		Implicit:  make(map[*ForControl]bool),
		Slots:     make(map[*ForControl]ForSlots),
		Enclosing: make(map[Stmt]*Symbol),
	}
}

// TypeOf returns the type of e, or nil if e did not validate.
func (i *Info) TypeOf(e Expr) *ExprType { return i.Types[e] }

// ModeOf returns the mode of a mode expression or expression.
func (i *Info) ModeOf(n Node) *Mode { return i.Modes[n] }

// Validator checks a tree bottom-up while building scopes. Each node is
// checked at most once; later calls return the memoized result.
type Validator struct {
	ctx     *Context
	info    *Info
	results map[Node]*Result
	issues  []Issue
}

// NewValidator creates a validator that declares into ctx.
func NewValidator(ctx *Context) *Validator {
	return &Validator{
		ctx:     ctx,
		info:    newInfo(),
		results: make(map[Node]*Result),
	}
}

// Info returns the annotations gathered so far.
func (v *Validator) Info() *Info { return v.info }

// Issues returns every issue in the order it was found.
func (v *Validator) Issues() []Issue { return v.issues }

// Result returns the memoized result for n, or nil if n was never
// validated.
func (v *Validator) Result(n Node) *Result { return v.results[n] }

// Validate checks n and its subtree and reports whether they are valid.
func (v *Validator) Validate(n Node) bool {
	if r, ok := v.results[n]; ok {
		return r.Valid
	}
	r := &Result{Valid: true}
	v.results[n] = r
	ok := v.visit(n, r)
	r.Valid = ok && len(r.Issues) == 0
	return r.Valid
}

func (v *Validator) fail(r *Result, issue Issue) {
	r.Issues = append(r.Issues, issue)
	v.issues = append(v.issues, issue)
}

// visit dispatches on the node kind. It returns false if any child is
// invalid; local failures are recorded on r.
func (v *Validator) visit(n Node, r *Result) bool {
	switch n := n.(type) {
	case *Program:
		return v.visitProgram(n, r)
	case *DeclStmt:
		ok := true
		for _, d := range n.Decls {
			ok = v.Validate(d) && ok
		}
		return ok
	case *Declaration:
		return v.visitDeclaration(n, r)
	case *SynStmt:
		ok := true
		for _, s := range n.Syns {
			ok = v.Validate(s) && ok
		}
		return ok
	case *SynonymDef:
		return v.visitSynonym(n, r)
	case *TypeStmt:
		ok := true
		for _, d := range n.Defs {
			ok = v.Validate(d) && ok
		}
		return ok
	case *ModeDef:
		return v.visitModeDef(n, r)
	case *ProcStmt:
		return v.visitProc(n, r)
	case *AssignAction:
		return v.visitAssign(n, r)
	case *IfAction:
		return v.visitIf(n, r)
	case *DoAction:
		return v.visitDo(n, r)
	case *CallAction:
		return v.Validate(n.Call)
	case *ReturnAction:
		return v.visitReturn(n, n.Value, r)
	case *ResultAction:
		return v.visitReturn(n, n.Value, r)

	case *ModeName:
		return v.visitModeName(n, r)
	case *RangeMode:
		return v.visitRangeMode(n, r)
	case *RefMode:
		if !v.Validate(n.Elem) {
			return false
		}
		v.info.Modes[n] = NewRefMode(v.info.Modes[n.Elem])
		return true
	case *CharsMode:
		return v.visitCharsMode(n, r)
	case *ArrayMode:
		return v.visitArrayMode(n, r)

	case *IntLiteral:
		v.setExpr(n, IntMode)
		v.info.Constants[n] = bytecode.Int(n.Value)
		return true
	case *BoolLiteral:
		v.setExpr(n, BoolMode)
		v.info.Constants[n] = bytecode.Bool(n.Value)
		return true
	case *CharLiteral:
		v.setExpr(n, CharMode)
		v.info.Constants[n] = bytecode.Char(n.Value)
		return true
	case *StringLiteral:
		v.setExpr(n, NewCharsMode(len([]rune(n.Value))))
		v.info.Constants[n] = bytecode.Text(n.Value)
		return true
	case *Ident:
		return v.visitIdent(n, r)
	case *UnaryExpr:
		return v.visitUnary(n, r)
	case *BinaryExpr:
		return v.visitBinary(n, r)
	case *CondExpr:
		return v.visitCondExpr(n, r)
	case *CallExpr:
		return v.visitCall(n, r)
	case *IndexExpr:
		return v.visitIndex(n, r)
	case *DerefExpr:
		return v.visitDeref(n, r)
	case *RefExpr:
		return v.visitRef(n, r)
	}
	return true
}

func (v *Validator) setExpr(e Expr, m *Mode) {
	v.info.Modes[e] = m
	if m != nil {
		v.info.Types[e] = m.Type
	}
}

func (v *Validator) stmts(list []Stmt) bool {
	ok := true
	for _, s := range list {
		ok = v.Validate(s) && ok
	}
	return ok
}

// block validates list in a scope that allocates in the current frame.
func (v *Validator) block(list []Stmt) bool {
	v.ctx.Env.PushBlock(nil)
	ok := v.stmts(list)
	v.ctx.Env.Pop()
	return ok
}

// expect records a type mismatch unless got equals want. Unknown types
// were already diagnosed and are not reported again.
func (v *Validator) expect(r *Result, n Node, want, got *ExprType) bool {
	if want == nil || got == nil || want.Equal(got) {
		return true
	}
	v.fail(r, mismatch(n, want, got))
	return false
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (v *Validator) visitProgram(n *Program, r *Result) bool {
	v.ctx.Env.PushBlock(nil)
	ok := v.stmts(n.Stmts)
	v.info.Frames[n] = v.ctx.Env.Peek().FrameSize()
	v.ctx.Env.Pop()
	return ok
}

// declare checks id against the current scope. Names in the program's
// outermost scope may not reuse a builtin name either.
func (v *Validator) declare(r *Result, id *Ident) bool {
	env := v.ctx.Env
	prev := env.Find(id.Name)
	if prev == nil && env.ScopeLevel() == 2 {
		prev = env.Root().Lookup(id.Name)
	}
	if prev != nil {
		v.fail(r, redeclared(id, prev))
		return false
	}
	return true
}

func (v *Validator) bind(id *Ident, sym *Symbol) {
	v.info.Symbols[id] = sym
	v.info.Usage[id] = UsageDeclaration
}

func (v *Validator) visitDeclaration(n *Declaration, r *Result) bool {
	ok := v.Validate(n.Mode)
	mode := v.info.Modes[n.Mode]
	if n.Init != nil {
		ok = v.Validate(n.Init) && ok
	}
	if mode != nil && mode.Size == 0 {
		v.fail(r, invalidType(n.Mode, "cannot declare storage of mode %s", mode))
		mode = nil
	}

	category := CategoryVariable
	size := 0
	if mode != nil {
		size = mode.Size
	}
	switch {
	case n.Loc:
		category = CategoryVariableRef
		size = 1
		if n.Init == nil {
			v.fail(r, invalidType(n, "loc declaration needs a location"))
		} else if v.info.Types[n.Init] != nil {
			if !v.isLocation(n.Init) {
				v.fail(r, invalidType(n.Init, "loc declaration needs a location"))
			} else if v.expect(r, n.Init, typeOf(mode), v.info.Types[n.Init]) {
				v.sameSize(r, n.Init, mode, v.info.Modes[n.Init])
			}
			v.markUsage(n.Init, UsageReference)
		}
	case n.Init != nil:
		if v.expect(r, n.Init, typeOf(mode), v.info.Types[n.Init]) && mode != nil && mode.IsArray() {
			if !v.isLocation(n.Init) {
				v.fail(r, invalidType(n.Init, "array value must be a location"))
			} else {
				v.sameSize(r, n.Init, mode, v.info.Modes[n.Init])
			}
		}
	}

	for _, id := range n.Names {
		if !v.declare(r, id) {
			continue
		}
		sym := &Symbol{
			Name:     id.Name,
			Category: category,
			Type:     typeOf(mode),
			Mode:     mode,
			Size:     size,
			Line:     Line(id),
		}
		v.ctx.Env.AddLocal(id.Name, sym)
		v.bind(id, sym)
	}
	return ok
}

func (v *Validator) sameSize(r *Result, n Node, want, got *Mode) {
	if want == nil || got == nil || want.Size == got.Size {
		return
	}
	v.fail(r, newIssue(TypeMismatch, n, "expected %s of %d words, received %s of %d words", want, want.Size, got, got.Size))
}

func (v *Validator) visitSynonym(n *SynonymDef, r *Result) bool {
	ok := v.Validate(n.Value)
	var mode *Mode
	if n.Mode != nil {
		ok = v.Validate(n.Mode) && ok
		mode = v.info.Modes[n.Mode]
	}
	if ok {
		if mode != nil {
			v.expect(r, n.Value, mode.Type, v.info.Types[n.Value])
		} else {
			mode = v.info.Modes[n.Value]
		}
	}
	value, constant := v.info.Constants[n.Value]
	if ok && !constant {
		v.fail(r, nonConstant(n.Value))
	}

	for _, id := range n.Names {
		if !v.declare(r, id) {
			continue
		}
		sym := &Symbol{
			Name:     id.Name,
			Category: CategorySynonym,
			Type:     typeOf(mode),
			Mode:     mode,
			Line:     Line(id),
			Value:    value,
		}
		v.ctx.Env.AddLocal(id.Name, sym)
		v.bind(id, sym)
	}
	return ok
}

func (v *Validator) visitModeDef(n *ModeDef, r *Result) bool {
	ok := v.Validate(n.Mode)
	mode := v.info.Modes[n.Mode]
	for _, id := range n.Names {
		if !v.declare(r, id) {
			continue
		}
		var named *Mode
		if mode != nil {
			named = mode.Named(id.Name)
		}
		sym := &Symbol{
			Name:     id.Name,
			Category: CategoryMode,
			Type:     typeOf(mode),
			Mode:     named,
			Line:     Line(id),
		}
		if named != nil {
			sym.Size = named.Size
		}
		v.ctx.Env.AddLocal(id.Name, sym)
		v.bind(id, sym)
	}
	return ok
}

func (v *Validator) visitProc(n *ProcStmt, r *Result) bool {
	env := v.ctx.Env
	ok := true

	result, resultLoc := VoidMode, false
	if n.Result != nil {
		resultLoc = n.Result.Loc
		if v.Validate(n.Result.Mode) {
			result = v.info.Modes[n.Result.Mode]
			if !resultLoc && result.Size != 1 {
				v.fail(r, invalidType(n.Result, "result of mode %s must be returned as loc", result))
			}
		} else {
			ok = false
			result = nil
		}
	}

	info := &ProcInfo{
		Params:    n.Params,
		NumArgs:   n.NumArgs(),
		Result:    result,
		ResultLoc: resultLoc,
		Level:     env.Peek().Level + 1,
	}
	if result == nil {
		info.Result = VoidMode
	}
	for _, p := range n.Params {
		var mode *Mode
		if v.Validate(p.Mode) {
			mode = v.info.Modes[p.Mode]
			if !p.Loc && mode.Size != 1 {
				v.fail(r, invalidType(p, "parameter of mode %s must be passed as loc", mode))
			}
		} else {
			ok = false
		}
		for range p.Names {
			info.ParamModes = append(info.ParamModes, mode)
			info.ParamLoc = append(info.ParamLoc, p.Loc)
		}
	}

	sym := &Symbol{
		Name:     n.Name.Name,
		Category: CategoryProcedure,
		Type:     typeOf(result),
		Mode:     result,
		Line:     Line(n.Name),
		Proc:     info,
	}
	if v.declare(r, n.Name) {
		env.AddLocal(n.Name.Name, sym)
	}
	v.bind(n.Name, sym)
	v.info.Procs[n] = sym

	env.Push(sym)
	numArgs := info.NumArgs
	pos := 0
	for _, p := range n.Params {
		category := CategoryParam
		if p.Loc {
			category = CategoryParamRef
		}
		for _, id := range p.Names {
			mode := info.ParamModes[pos]
			offset := pos - (numArgs + 2)
			pos++
			if !v.declare(r, id) {
				continue
			}
			psym := &Symbol{
				Name:     id.Name,
				Category: category,
				Type:     typeOf(mode),
				Mode:     mode,
				Size:     1,
				Line:     Line(id),
			}
			env.AddLocalAt(id.Name, psym, offset, info.Level)
			v.bind(id, psym)
		}
	}

	v.ctx.PushFunction(sym)
	ok = v.stmts(n.Body) && ok
	v.ctx.PopFunction()
	v.info.Frames[n] = env.Peek().FrameSize()
	env.Pop()
	return ok
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

var compoundOps = map[string]map[string]bool{
	KindInt:    {"+": true, "-": true, "*": true, "/": true, "%": true},
	KindString: {"+": true},
}

func (v *Validator) visitAssign(n *AssignAction, r *Result) bool {
	ok := v.Validate(n.Target)
	ok = v.Validate(n.Value) && ok
	if !ok {
		return false
	}
	if !v.isLocation(n.Target) {
		if id, isIdent := n.Target.(*Ident); isIdent {
			sym := v.info.Symbols[id]
			v.fail(r, invalidType(n.Target, "cannot assign to %s %s", sym.Category, id.Name))
		} else {
			v.fail(r, invalidType(n.Target, "left side of assignment is not a location"))
		}
		return true
	}
	v.markUsage(n.Target, UsageAssign)

	tt, vt := v.info.Types[n.Target], v.info.Types[n.Value]
	if !v.expect(r, n.Value, tt, vt) {
		return true
	}
	if n.Op != "" && !compoundOps[tt.Kind][n.Op] {
		v.fail(r, badOperator(n, n.Op+"=", tt))
		return true
	}
	if tt.Is(KindArray) {
		if !v.isLocation(n.Value) {
			v.fail(r, invalidType(n.Value, "array value must be a location"))
			return true
		}
		v.sameSize(r, n.Value, v.info.Modes[n.Target], v.info.Modes[n.Value])
	}
	return true
}

// condition validates a boolean condition.
func (v *Validator) condition(r *Result, cond Expr) bool {
	if !v.Validate(cond) {
		return false
	}
	v.expect(r, cond, BoolType, v.info.Types[cond])
	return true
}

func (v *Validator) visitIf(n *IfAction, r *Result) bool {
	ok := true
	for _, b := range n.Branches {
		ok = v.condition(r, b.Cond) && ok
		ok = v.block(b.Body) && ok
	}
	if n.Else != nil {
		ok = v.block(n.Else) && ok
	}
	return ok
}

func (v *Validator) visitDo(n *DoAction, r *Result) bool {
	env := v.ctx.Env
	ok := true
	env.PushBlock(nil)
	if n.For != nil {
		ok = v.visitFor(n.For, r) && ok
	}
	if n.While != nil {
		ok = v.condition(r, n.While) && ok
	}
	ok = v.stmts(n.Body) && ok
	env.Pop()
	return ok
}

func (v *Validator) visitFor(fc *ForControl, r *Result) bool {
	env := v.ctx.Env
	ok := true
	for _, e := range []Expr{fc.Start, fc.Step, fc.End} {
		if e == nil {
			continue
		}
		if v.Validate(e) {
			v.expect(r, e, IntType, v.info.Types[e])
		} else {
			ok = false
		}
	}

	sym := env.Lookup(fc.Counter.Name)
	switch {
	case sym == nil:
		sym = &Symbol{
			Name:     fc.Counter.Name,
			Category: CategoryAction,
			Type:     IntType,
			Mode:     IntMode,
			Size:     1,
			Line:     Line(fc.Counter),
		}
		env.AddLocal(fc.Counter.Name, sym)
		v.info.Implicit[fc] = true
		v.info.Usage[fc.Counter] = UsageDeclaration
	case !sym.Category.HasStorage():
		v.fail(r, invalidType(fc.Counter, "loop counter %s is a %s", sym.Name, sym.Category))
		v.info.Usage[fc.Counter] = UsageAssign
	default:
		v.expect(r, fc.Counter, IntType, sym.Type)
		v.info.Usage[fc.Counter] = UsageAssign
	}
	v.info.Symbols[fc.Counter] = sym
	v.info.Counters[fc] = sym

	t := env.Peek()
	slots := ForSlots{Level: t.Level, End: t.Reserve(1), Step: -1}
	if fc.Step != nil {
		if _, constant := v.info.Constants[fc.Step]; !constant {
			slots.Step = t.Reserve(1)
		}
	}
	v.info.Slots[fc] = slots
	return ok
}

func (v *Validator) visitReturn(n Stmt, value Expr, r *Result) bool {
	ok := true
	if value != nil {
		ok = v.Validate(value)
	}
	fn := v.ctx.CurrentFunction()
	if fn == nil {
		v.fail(r, invalidType(n, "%s outside a procedure", actionName(n)))
		return ok
	}
	v.info.Enclosing[n] = fn
	if value == nil || !ok {
		return ok
	}
	proc := fn.Proc
	if proc.Result == VoidMode {
		v.fail(r, mismatch(value, VoidType, v.info.Types[value]))
		return ok
	}
	if !v.expect(r, value, proc.Result.Type, v.info.Types[value]) {
		return ok
	}
	if proc.ResultLoc {
		if !v.isLocation(value) {
			v.fail(r, invalidType(value, "%s of a loc result needs a location", actionName(n)))
			return ok
		}
		v.markUsage(value, UsageReference)
		v.sameSize(r, value, proc.Result, v.info.Modes[value])
	}
	return ok
}

func actionName(n Stmt) string {
	if _, ok := n.(*ResultAction); ok {
		return "result"
	}
	return "return"
}

// ---------------------------------------------------------------------------
// Modes
// ---------------------------------------------------------------------------

func (v *Validator) visitModeName(n *ModeName, r *Result) bool {
	sym := v.ctx.Env.Lookup(n.Name.Name)
	if sym == nil {
		v.fail(r, undeclared(n.Name))
		return true
	}
	v.info.Symbols[n.Name] = sym
	v.info.Usage[n.Name] = UsageValue
	if sym.Category != CategoryMode {
		v.fail(r, invalidType(n, "%s is a %s, not a mode", n.Name.Name, sym.Category))
		return true
	}
	v.info.Modes[n] = sym.Mode
	return true
}

// constInt folds e to an integer constant of type want.
func (v *Validator) constInt(r *Result, e Expr, want *ExprType) (int64, bool) {
	if !v.Validate(e) {
		return 0, false
	}
	if !v.expect(r, e, want, v.info.Types[e]) {
		return 0, false
	}
	c, ok := v.info.Constants[e]
	if !ok {
		v.fail(r, nonConstant(e))
		return 0, false
	}
	return c.Int, true
}

func (v *Validator) visitRangeMode(n *RangeMode, r *Result) bool {
	base := IntMode
	if n.Base != nil {
		if !v.Validate(n.Base) {
			return false
		}
		base = v.info.Modes[n.Base]
		if base.Size != 1 || base.Type.Is(KindReference) {
			v.fail(r, invalidType(n, "mode %s is not discrete", base))
			return true
		}
	}
	lo, okLo := v.constInt(r, n.Lo, base.Type)
	hi, okHi := v.constInt(r, n.Hi, base.Type)
	if !okLo || !okHi {
		return v.results[n.Lo].Valid && v.results[n.Hi].Valid
	}
	if lo > hi {
		v.fail(r, invalidType(n, "empty range %d:%d", lo, hi))
		return true
	}
	v.info.Modes[n] = NewRangeMode(base, lo, hi)
	return true
}

func (v *Validator) visitCharsMode(n *CharsMode, r *Result) bool {
	size, ok := v.constInt(r, n.Len, IntType)
	if !ok {
		return v.results[n.Len].Valid
	}
	if size < 1 {
		v.fail(r, invalidType(n, "chars length must be positive, got %d", size))
		return true
	}
	v.info.Modes[n] = NewCharsMode(int(size))
	return true
}

func (v *Validator) visitArrayMode(n *ArrayMode, r *Result) bool {
	ok := v.Validate(n.Elem)
	indexes := make([]*Mode, len(n.Indexes))
	for i, idx := range n.Indexes {
		if !v.Validate(idx) {
			ok = false
			continue
		}
		m := v.info.Modes[idx]
		if m == nil {
			continue
		}
		if !m.Ranged || !m.Type.Is(KindInt) {
			v.fail(r, invalidType(idx, "array index must be an int range, got %s", m))
			continue
		}
		indexes[i] = m
	}
	elem := v.info.Modes[n.Elem]
	if !ok || elem == nil || len(r.Issues) > 0 {
		return ok
	}
	if elem.Size == 0 {
		v.fail(r, invalidType(n.Elem, "array of %s", elem))
		return true
	}
	m := elem
	for i := len(indexes) - 1; i >= 0; i-- {
		m = NewArrayMode(indexes[i], m)
	}
	v.info.Modes[n] = m
	return true
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var unaryOps = map[string]map[string]bool{
	KindBool: {"!": true},
	KindInt:  {"-": true},
}

var binaryOps = map[string]map[string]bool{
	KindInt: {
		"+": true, "-": true, "*": true, "/": true, "%": true,
		"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
	},
	KindBool:   {"==": true, "!=": true, "&&": true, "||": true},
	KindString: {"==": true, "!=": true, "+": true},
	KindChar:   {"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true},
}

var relationalOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

// scalarMode returns the predefined mode holding values of t.
func scalarMode(t *ExprType) *Mode {
	switch t.Kind {
	case KindInt:
		return IntMode
	case KindBool:
		return BoolMode
	case KindChar:
		return CharMode
	case KindString:
		return StringMode
	}
	return nil
}

func typeOf(m *Mode) *ExprType {
	if m == nil {
		return nil
	}
	return m.Type
}

func (v *Validator) visitIdent(n *Ident, r *Result) bool {
	sym := v.ctx.Env.Lookup(n.Name)
	if sym == nil {
		v.fail(r, undeclared(n))
		return true
	}
	v.info.Symbols[n] = sym
	if _, seen := v.info.Usage[n]; !seen {
		v.info.Usage[n] = UsageValue
	}
	switch sym.Category {
	case CategoryMode:
		v.fail(r, invalidType(n, "mode %s used as a value", n.Name))
		return true
	case CategoryProcedure:
		v.fail(r, invalidType(n, "procedure %s used as a value", n.Name))
		return true
	case CategorySynonym:
		v.info.Constants[n] = sym.Value
	}
	v.setExpr(n, sym.Mode)
	return true
}

func (v *Validator) visitUnary(n *UnaryExpr, r *Result) bool {
	if !v.Validate(n.X) {
		return false
	}
	t := v.info.Types[n.X]
	if t == nil {
		return true
	}
	if !unaryOps[t.Kind][n.Op] {
		v.fail(r, badOperator(n, n.Op, t))
		return true
	}
	v.setExpr(n, scalarMode(t))
	if c, ok := v.info.Constants[n.X]; ok {
		if n.Op == "-" {
			v.info.Constants[n] = bytecode.Int(-c.Int)
		} else {
			v.info.Constants[n] = bytecode.Bool(c.Int == 0)
		}
	}
	return true
}

func (v *Validator) visitBinary(n *BinaryExpr, r *Result) bool {
	ok := v.Validate(n.X)
	ok = v.Validate(n.Y) && ok
	if !ok {
		return false
	}
	tx, ty := v.info.Types[n.X], v.info.Types[n.Y]
	if tx == nil || ty == nil || !v.expect(r, n.Y, tx, ty) {
		return true
	}
	if !binaryOps[tx.Kind][n.Op] {
		v.fail(r, badOperator(n, n.Op, tx))
		return true
	}
	if relationalOps[n.Op] {
		v.setExpr(n, BoolMode)
	} else {
		v.setExpr(n, scalarMode(tx))
	}
	x, okX := v.info.Constants[n.X]
	y, okY := v.info.Constants[n.Y]
	if okX && okY {
		if c, folded := foldBinary(n.Op, x, y); folded {
			v.info.Constants[n] = c
		}
	}
	return true
}

// foldBinary evaluates op on two constants the way the VM would.
func foldBinary(op string, x, y bytecode.Value) (bytecode.Value, bool) {
	if x.Kind == bytecode.KindText {
		switch op {
		case "+":
			return bytecode.Text(x.Text + y.Text), true
		case "==":
			return bytecode.Bool(x.Text == y.Text), true
		case "!=":
			return bytecode.Bool(x.Text != y.Text), true
		}
		return bytecode.Value{}, false
	}
	a, b := x.Int, y.Int
	switch op {
	case "+":
		return bytecode.Int(a + b), true
	case "-":
		return bytecode.Int(a - b), true
	case "*":
		return bytecode.Int(a * b), true
	case "/":
		if b == 0 {
			return bytecode.Value{}, false
		}
		return bytecode.Int(a / b), true
	case "%":
		if b == 0 {
			return bytecode.Value{}, false
		}
		return bytecode.Int(a % b), true
	case "<":
		return bytecode.Bool(a < b), true
	case "<=":
		return bytecode.Bool(a <= b), true
	case ">":
		return bytecode.Bool(a > b), true
	case ">=":
		return bytecode.Bool(a >= b), true
	case "==":
		return bytecode.Bool(a == b), true
	case "!=":
		return bytecode.Bool(a != b), true
	case "&&":
		return bytecode.Bool(a != 0 && b != 0), true
	case "||":
		return bytecode.Bool(a != 0 || b != 0), true
	}
	return bytecode.Value{}, false
}

func (v *Validator) visitCondExpr(n *CondExpr, r *Result) bool {
	ok := true
	for _, b := range n.Branches {
		ok = v.condition(r, b.Cond) && ok
		ok = v.Validate(b.Value) && ok
	}
	ok = v.Validate(n.Else) && ok
	if !ok {
		return false
	}
	want := v.info.Types[n.Else]
	for _, b := range n.Branches {
		v.expect(r, b.Value, want, v.info.Types[b.Value])
	}
	if want == nil {
		return true
	}
	if want.Is(KindArray) || want.Is(KindVoid) {
		v.fail(r, invalidType(n, "conditional expression cannot yield %s", want))
		return true
	}
	m := v.info.Modes[n.Else]
	if want.Is(KindString) {
		m = StringMode
	}
	v.setExpr(n, m)
	return true
}

func (v *Validator) visitCall(n *CallExpr, r *Result) bool {
	ok := true
	for _, a := range n.Args {
		ok = v.Validate(a) && ok
	}

	sym := v.ctx.Env.Lookup(n.Callee.Name)
	if sym == nil {
		v.fail(r, undeclared(n.Callee))
		return ok
	}
	v.info.Symbols[n.Callee] = sym
	v.info.Usage[n.Callee] = UsageValue
	if sym.Category != CategoryProcedure {
		v.fail(r, notCallable(n.Callee, sym))
		return ok
	}
	proc := sym.Proc
	v.setExpr(n, proc.Result)
	if proc.NumArgs != Variadic && len(n.Args) != proc.NumArgs {
		v.fail(r, arityMismatch(n, proc.NumArgs))
		return ok
	}
	if !ok {
		return false
	}

	switch {
	case proc.Builtin && proc.Op == bytecode.OpRdv:
		for _, a := range n.Args {
			v.readArg(r, a)
		}
	case proc.Builtin && proc.Op == bytecode.OpPrv:
		for _, a := range n.Args {
			v.printArg(r, a)
		}
	case proc.Builtin:
		v.builtinArg(r, n.Args[0], proc.Accepts)
	default:
		for i, a := range n.Args {
			v.userArg(r, a, proc.ParamModes[i], proc.ParamLoc[i], i)
		}
	}
	return true
}

func (v *Validator) readArg(r *Result, a Expr) {
	t := v.info.Types[a]
	if !v.isLocation(a) {
		v.fail(r, invalidType(a, "READ needs a location"))
		return
	}
	if t == nil || t.Is(KindArray) || t.Is(KindReference) {
		v.fail(r, invalidType(a, "READ cannot read %s", t))
		return
	}
	v.markUsage(a, UsageReference)
}

func (v *Validator) printArg(r *Result, a Expr) {
	t := v.info.Types[a]
	switch {
	case t == nil || t.Is(KindVoid):
		v.fail(r, invalidType(a, "PRINT cannot print %s", t))
	case t.Is(KindArray) && t.Innermost().Is(KindString):
		v.fail(r, invalidType(a, "PRINT cannot print %s", t))
	case t.Is(KindArray) && !v.isLocation(a):
		v.fail(r, invalidType(a, "array value must be a location"))
	}
}

func (v *Validator) builtinArg(r *Result, a Expr, accepts []*ExprType) {
	t := v.info.Types[a]
	for _, want := range accepts {
		if want.Equal(t) {
			return
		}
	}
	v.fail(r, mismatch(a, accepts[0], t))
}

func (v *Validator) userArg(r *Result, a Expr, want *Mode, loc bool, i int) {
	if want == nil {
		return
	}
	if !v.expect(r, a, want.Type, v.info.Types[a]) {
		return
	}
	if !loc {
		return
	}
	if !v.isLocation(a) {
		v.fail(r, invalidType(a, "argument %d must be a location", i+1))
		return
	}
	v.markUsage(a, UsageReference)
	v.sameSize(r, a, want, v.info.Modes[a])
}

func (v *Validator) visitIndex(n *IndexExpr, r *Result) bool {
	ok := v.Validate(n.X)
	for _, idx := range n.Indexes {
		if v.Validate(idx) {
			v.expect(r, idx, IntType, v.info.Types[idx])
		} else {
			ok = false
		}
	}
	if !ok {
		return false
	}
	m := v.info.Modes[n.X]
	if m == nil {
		return true
	}
	if !v.isLocation(n.X) {
		v.fail(r, invalidType(n.X, "indexed value must be a location"))
		return true
	}
	for _, idx := range n.Indexes {
		switch {
		case m.IsArray():
			m = m.Elem
		case m.IsString():
			m = CharMode
		default:
			v.fail(r, invalidType(idx, "cannot index %s", m))
			return true
		}
	}
	v.setExpr(n, m)
	return true
}

func (v *Validator) visitDeref(n *DerefExpr, r *Result) bool {
	if !v.Validate(n.X) {
		return false
	}
	m := v.info.Modes[n.X]
	if m == nil {
		return true
	}
	if !m.Type.Is(KindReference) {
		v.fail(r, invalidType(n, "cannot dereference %s", m))
		return true
	}
	v.setExpr(n, m.Elem)
	return true
}

func (v *Validator) visitRef(n *RefExpr, r *Result) bool {
	if !v.Validate(n.X) {
		return false
	}
	m := v.info.Modes[n.X]
	if m == nil {
		return true
	}
	if !v.isLocation(n.X) {
		v.fail(r, invalidType(n.X, "cannot take the address of a value"))
		return true
	}
	v.markUsage(n.X, UsageReference)
	v.setExpr(n, NewRefMode(m))
	return true
}

// isLocation reports whether e denotes storage that has an address.
func (v *Validator) isLocation(e Expr) bool {
	switch e := e.(type) {
	case *Ident:
		sym := v.info.Symbols[e]
		return sym != nil && sym.Category.HasStorage()
	case *IndexExpr, *DerefExpr:
		return true
	case *CallExpr:
		sym := v.info.Symbols[e.Callee]
		return sym != nil && sym.Proc != nil && sym.Proc.ResultLoc
	}
	return false
}

func (v *Validator) markUsage(e Expr, u Usage) {
	if id, ok := e.(*Ident); ok {
		v.info.Usage[id] = u
	}
}
