package compiler

import (
	"fmt"

	"github.com/chazu/lya/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: Compile a validated AST to LVM code
// ---------------------------------------------------------------------------

// Generator emits LVM code for a tree the Validator accepted. It reads
// symbols, modes and frame sizes from the validator's Info and label
// numbers from a LabelPlan; it never resolves a name itself.
type Generator struct {
	info *Info
	plan *LabelPlan

	prog   *bytecode.Program
	line   int
	errors []string
}

// NewGenerator creates a generator.
func NewGenerator(info *Info, plan *LabelPlan) *Generator {
	return &Generator{info: info, plan: plan}
}

// Errors returns accumulated generation errors. They only occur when the
// tree was not validated.
func (g *Generator) Errors() []string {
	return g.errors
}

func (g *Generator) errorf(format string, args ...interface{}) {
	g.errors = append(g.errors, fmt.Sprintf("line %d: %s", g.line, fmt.Sprintf(format, args...)))
}

// Generate compiles a whole program.
func (g *Generator) Generate(root *Program) *bytecode.Program {
	g.prog = bytecode.NewProgram()
	g.errors = nil

	// Entry labels are fixed before any body is emitted so that calls
	// can precede the definition in the instruction stream.
	for n, sym := range g.info.Procs {
		sym.Proc.StartLabel = g.plan.First(n)
	}

	frame := g.info.Frames[root]
	g.emit(bytecode.OpAlc, frame)
	g.stmts(root.Stmts)
	g.emit(bytecode.OpDlc, frame)
	g.emit(bytecode.OpStp)
	return g.prog
}

func (g *Generator) emit(op bytecode.Opcode, operands ...int) {
	g.prog.EmitAt(bytecode.Make(op, operands...), g.line)
}

// emitConst pushes a folded constant; text constants go through the
// string pool.
func (g *Generator) emitConst(v bytecode.Value) {
	if v.Kind == bytecode.KindText {
		g.emit(bytecode.OpLsc, g.prog.AddString(v.Text))
		return
	}
	g.prog.EmitAt(bytecode.Ldc(v), g.line)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) stmts(list []Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *Generator) stmt(s Stmt) {
	g.line = Line(s)

	switch s := s.(type) {
	case *DeclStmt:
		for _, d := range s.Decls {
			g.declaration(d)
		}
	case *SynStmt, *TypeStmt:
		// Compile-time only
	case *ProcStmt:
		g.proc(s)
	case *AssignAction:
		g.assign(s.Target, s.Op, s.Value)
	case *IfAction:
		g.ifAction(s)
	case *DoAction:
		g.doAction(s)
	case *CallAction:
		if g.call(s.Call) {
			g.emit(bytecode.OpDlc, 1)
		}
	case *ReturnAction:
		g.storeResult(s, s.Value)
		if fn := g.info.Enclosing[s]; fn != nil {
			g.emit(bytecode.OpJmp, fn.Proc.StartLabel+1)
		}
	case *ResultAction:
		g.storeResult(s, s.Value)
	default:
		g.errorf("unknown statement type: %T", s)
	}
}

func (g *Generator) declaration(d *Declaration) {
	if d.Init == nil {
		return
	}
	for _, id := range d.Names {
		sym := g.info.Symbols[id]
		if sym == nil {
			g.errorf("%s was not declared", id.Name)
			continue
		}
		if d.Loc {
			g.address(d.Init)
			g.emit(bytecode.OpStv, sym.Level, sym.Offset)
			continue
		}
		g.assignSymbol(sym, "", d.Init)
	}
}

// proc lays out a procedure inline, guarded by a jump over its body:
//
//	jmp after; lbl entry; enf L; alc frame; body; lbl ret; dlc frame; ret L n; lbl after
func (g *Generator) proc(n *ProcStmt) {
	sym := g.info.Procs[n]
	if sym == nil {
		g.errorf("procedure %s was not declared", n.Name.Name)
		return
	}
	entry := g.plan.First(n)
	ret, after := entry+1, entry+2
	level := sym.Proc.Level
	frame := g.info.Frames[n]

	g.emit(bytecode.OpJmp, after)
	g.emit(bytecode.OpLbl, entry)
	g.emit(bytecode.OpEnf, level)
	g.emit(bytecode.OpAlc, frame)
	g.stmts(n.Body)
	g.line = Line(n)
	g.emit(bytecode.OpLbl, ret)
	g.emit(bytecode.OpDlc, frame)
	g.emit(bytecode.OpRet, level, sym.Proc.NumArgs)
	g.emit(bytecode.OpLbl, after)
}

// storeResult writes value into the caller's result slot, which sits
// just below the arguments.
func (g *Generator) storeResult(s Stmt, value Expr) {
	fn := g.info.Enclosing[s]
	if fn == nil {
		g.errorf("%s outside a procedure", actionName(s))
		return
	}
	if value == nil {
		return
	}
	proc := fn.Proc
	if proc.ResultLoc {
		g.address(value)
	} else {
		g.value(value)
	}
	g.emit(bytecode.OpStv, proc.Level, -(proc.NumArgs + 3))
}

func (g *Generator) ifAction(n *IfAction) {
	first := g.plan.First(n)
	exit := first + len(n.Branches)
	for i, b := range n.Branches {
		g.value(b.Cond)
		g.emit(bytecode.OpJof, first+i)
		g.stmts(b.Body)
		g.emit(bytecode.OpJmp, exit)
		g.emit(bytecode.OpLbl, first+i)
	}
	g.stmts(n.Else)
	g.emit(bytecode.OpLbl, exit)
}

// doAction compiles a loop. A counted loop jumps straight to its
// comparison so the bounds are tested before the first iteration:
//
//	init; jmp cmp; lbl step; counter += step; lbl cmp; test; jof end; body; jmp step; lbl end
func (g *Generator) doAction(n *DoAction) {
	first := g.plan.First(n)
	start, cmp, end := first, first+1, first+2

	fc := n.For
	if fc == nil {
		g.emit(bytecode.OpLbl, start)
	} else {
		counter := g.info.Counters[fc]
		slots := g.info.Slots[fc]

		g.value(fc.Start)
		g.storeScalar(counter)
		g.value(fc.End)
		g.emit(bytecode.OpStv, slots.Level, slots.End)
		if slots.Step >= 0 {
			g.value(fc.Step)
			g.emit(bytecode.OpStv, slots.Level, slots.Step)
		}
		g.emit(bytecode.OpJmp, cmp)

		g.emit(bytecode.OpLbl, start)
		g.loadScalar(counter)
		switch {
		case fc.Step == nil:
			g.prog.EmitAt(bytecode.Ldc(bytecode.Int(1)), g.line)
		case slots.Step >= 0:
			g.emit(bytecode.OpLdv, slots.Level, slots.Step)
		default:
			g.emitConst(g.info.Constants[fc.Step])
		}
		if fc.Down {
			g.emit(bytecode.OpSub)
		} else {
			g.emit(bytecode.OpAdd)
		}
		g.storeScalar(counter)

		g.emit(bytecode.OpLbl, cmp)
		g.loadScalar(counter)
		g.emit(bytecode.OpLdv, slots.Level, slots.End)
		if fc.Down {
			g.emit(bytecode.OpGre)
		} else {
			g.emit(bytecode.OpLeq)
		}
		g.emit(bytecode.OpJof, end)
	}
	if n.While != nil {
		g.value(n.While)
		g.emit(bytecode.OpJof, end)
	}
	g.stmts(n.Body)
	g.line = Line(n)
	g.emit(bytecode.OpJmp, start)
	g.emit(bytecode.OpLbl, end)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

var arithOps = map[string]bytecode.Opcode{
	"+": bytecode.OpAdd,
	"-": bytecode.OpSub,
	"*": bytecode.OpMul,
	"/": bytecode.OpDiv,
	"%": bytecode.OpMod,
}

// assign stores value into target, combining with op first when op is
// not empty.
func (g *Generator) assign(target Expr, op string, value Expr) {
	if id, ok := target.(*Ident); ok {
		if sym := g.info.Symbols[id]; sym != nil {
			g.assignSymbol(sym, op, value)
			return
		}
	}
	// The target's address is computed once; compound forms read the
	// old value through a copy of it.
	mode := g.info.Modes[target]
	g.address(target)
	switch {
	case mode.IsString():
		g.storeString(mode, op, value)
	case mode.IsArray():
		g.address(value)
		g.emit(bytecode.OpSmr, mode.Size)
	default:
		if op != "" {
			g.emit(bytecode.OpDup)
			g.emit(bytecode.OpGrc)
		}
		g.value(value)
		if op != "" {
			g.emit(arithOps[op])
		}
		g.emit(bytecode.OpSmv, 1)
	}
}

func (g *Generator) assignSymbol(sym *Symbol, op string, value Expr) {
	mode := sym.Mode
	switch {
	case mode.IsString():
		g.loadAddress(sym)
		g.storeString(mode, op, value)
	case mode.IsArray():
		g.loadAddress(sym)
		g.address(value)
		g.emit(bytecode.OpSmr, mode.Size)
	default:
		if op != "" {
			g.loadScalar(sym)
		}
		g.value(value)
		if op != "" {
			g.emit(arithOps[op])
		}
		g.storeScalar(sym)
	}
}

// storeString copies value into the string block whose address is on top
// of the stack, appending to the block's contents for +=. Constant text
// goes straight from the pool with sts.
func (g *Generator) storeString(mode *Mode, op string, value Expr) {
	if c, ok := g.info.Constants[value]; ok && c.Kind == bytecode.KindText && op == "" {
		g.emit(bytecode.OpSts, g.prog.AddString(c.Text), mode.Capacity)
		return
	}
	if op != "" {
		g.emit(bytecode.OpDup)
	}
	g.value(value)
	if op != "" {
		g.emit(bytecode.OpScat)
	}
	g.emit(bytecode.OpScp, mode.Capacity)
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

func (g *Generator) loadScalar(sym *Symbol) {
	if sym.Category.IsIndirect() {
		g.emit(bytecode.OpLrv, sym.Level, sym.Offset)
		return
	}
	g.emit(bytecode.OpLdv, sym.Level, sym.Offset)
}

func (g *Generator) storeScalar(sym *Symbol) {
	if sym.Category.IsIndirect() {
		g.emit(bytecode.OpSrv, sym.Level, sym.Offset)
		return
	}
	g.emit(bytecode.OpStv, sym.Level, sym.Offset)
}

// loadAddress pushes the address of the symbol's storage.
func (g *Generator) loadAddress(sym *Symbol) {
	if sym.Category.IsIndirect() {
		g.emit(bytecode.OpLdv, sym.Level, sym.Offset)
		return
	}
	g.emit(bytecode.OpLdr, sym.Level, sym.Offset)
}

// loadIndirect replaces the address on top of the stack with the value
// stored there. Strings are passed around by address already.
func (g *Generator) loadIndirect(mode *Mode) {
	switch {
	case mode.IsString():
	case mode.IsArray():
		g.emit(bytecode.OpLmv, mode.Size)
	default:
		g.emit(bytecode.OpGrc)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[string]bytecode.Opcode{
	"+":  bytecode.OpAdd,
	"-":  bytecode.OpSub,
	"*":  bytecode.OpMul,
	"/":  bytecode.OpDiv,
	"%":  bytecode.OpMod,
	"&&": bytecode.OpAnd,
	"||": bytecode.OpLor,
	"<":  bytecode.OpLes,
	"<=": bytecode.OpLeq,
	">":  bytecode.OpGrt,
	">=": bytecode.OpGre,
	"==": bytecode.OpEqu,
	"!=": bytecode.OpNeq,
}

var stringOpcodes = map[string]bytecode.Opcode{
	"+":  bytecode.OpScat,
	"==": bytecode.OpSeq,
	"!=": bytecode.OpSne,
}

// value pushes the value of e.
func (g *Generator) value(e Expr) {
	switch e := e.(type) {
	case *IntLiteral:
		g.prog.EmitAt(bytecode.Ldc(bytecode.Int(e.Value)), g.line)
	case *BoolLiteral:
		g.prog.EmitAt(bytecode.Ldc(bytecode.Bool(e.Value)), g.line)
	case *CharLiteral:
		g.prog.EmitAt(bytecode.Ldc(bytecode.Char(e.Value)), g.line)
	case *StringLiteral:
		g.emit(bytecode.OpLsc, g.prog.AddString(e.Value))

	case *Ident:
		sym := g.info.Symbols[e]
		if sym == nil {
			g.errorf("%s was not resolved", e.Name)
			return
		}
		switch {
		case sym.Category == CategorySynonym:
			g.emitConst(sym.Value)
		case sym.Mode.IsString():
			g.loadAddress(sym)
		case sym.Mode.IsArray():
			g.loadAddress(sym)
			g.emit(bytecode.OpLmv, sym.Mode.Size)
		default:
			g.loadScalar(sym)
		}

	case *UnaryExpr:
		g.value(e.X)
		if e.Op == "-" {
			g.emit(bytecode.OpNeg)
		} else {
			g.emit(bytecode.OpNot)
		}

	case *BinaryExpr:
		g.value(e.X)
		g.value(e.Y)
		if g.info.Types[e.X].Is(KindString) {
			g.emit(stringOpcodes[e.Op])
		} else {
			g.emit(binaryOpcodes[e.Op])
		}

	case *CondExpr:
		first := g.plan.First(e)
		exit := first + len(e.Branches)
		for i, b := range e.Branches {
			g.value(b.Cond)
			g.emit(bytecode.OpJof, first+i)
			g.value(b.Value)
			g.emit(bytecode.OpJmp, exit)
			g.emit(bytecode.OpLbl, first+i)
		}
		g.value(e.Else)
		g.emit(bytecode.OpLbl, exit)

	case *CallExpr:
		g.call(e)
		if sym := g.info.Symbols[e.Callee]; sym != nil && sym.Proc.ResultLoc {
			g.loadIndirect(sym.Proc.Result)
		}

	case *IndexExpr, *DerefExpr:
		g.address(e)
		g.loadIndirect(g.info.Modes[e])

	case *RefExpr:
		g.address(e.X)

	default:
		g.errorf("unknown expression type: %T", e)
	}
}

// address pushes the address of the location e.
func (g *Generator) address(e Expr) {
	switch e := e.(type) {
	case *Ident:
		sym := g.info.Symbols[e]
		if sym == nil {
			g.errorf("%s was not resolved", e.Name)
			return
		}
		g.loadAddress(sym)

	case *IndexExpr:
		g.address(e.X)
		mode := g.info.Modes[e.X]
		for _, idx := range e.Indexes {
			g.value(idx)
			if mode.IsString() {
				g.emit(bytecode.OpChk, 0, mode.Capacity-1)
				// Skip the length word
				g.prog.EmitAt(bytecode.Ldc(bytecode.Int(1)), g.line)
				g.emit(bytecode.OpAdd)
				g.emit(bytecode.OpIdx, 1)
				mode = CharMode
				continue
			}
			g.emit(bytecode.OpChk, int(mode.Lower), int(mode.Upper))
			g.prog.EmitAt(bytecode.Ldc(bytecode.Int(mode.Lower)), g.line)
			g.emit(bytecode.OpSub)
			g.emit(bytecode.OpIdx, mode.Elem.Size)
			mode = mode.Elem
		}

	case *DerefExpr:
		g.value(e.X)

	case *CallExpr:
		g.call(e)

	default:
		g.errorf("%T is not a location", e)
	}
}

// call emits a procedure or builtin call and reports whether it left a
// word on the stack.
func (g *Generator) call(c *CallExpr) bool {
	sym := g.info.Symbols[c.Callee]
	if sym == nil || sym.Proc == nil {
		g.errorf("%s is not a procedure", c.Callee.Name)
		return false
	}
	proc := sym.Proc

	if proc.Builtin {
		switch proc.Op {
		case bytecode.OpRdv:
			g.read(c.Args)
			return false
		case bytecode.OpPrv:
			g.print(c.Args)
			return false
		}
		g.value(c.Args[0])
		g.emit(proc.Op)
		return true
	}

	g.emit(bytecode.OpAlc, 1)
	for i, a := range c.Args {
		if proc.ParamLoc[i] {
			g.address(a)
		} else {
			g.value(a)
		}
	}
	g.emit(bytecode.OpCfu, proc.StartLabel)
	return true
}

func (g *Generator) read(args []Expr) {
	for _, a := range args {
		mode := g.info.Modes[a]
		if mode.IsString() {
			g.address(a)
			g.emit(bytecode.OpRds, mode.Capacity)
			continue
		}
		if id, ok := a.(*Ident); ok {
			g.emit(bytecode.OpRdv)
			g.storeScalar(g.info.Symbols[id])
			continue
		}
		g.address(a)
		g.emit(bytecode.OpRdv)
		g.emit(bytecode.OpSmv, 1)
	}
}

func (g *Generator) print(args []Expr) {
	for _, a := range args {
		if lit, ok := a.(*StringLiteral); ok {
			g.emit(bytecode.OpPrc, g.prog.AddString(lit.Value))
			continue
		}
		mode := g.info.Modes[a]
		switch {
		case mode.IsString():
			g.value(a)
			g.emit(bytecode.OpPrs)
		case mode.IsArray():
			g.address(a)
			g.emit(bytecode.OpLmv, mode.Size)
			g.emit(bytecode.OpPrt, mode.Size)
		default:
			g.value(a)
			g.emit(bytecode.OpPrv)
		}
	}
	g.emit(bytecode.OpPrc, g.prog.AddString("\n"))
}
