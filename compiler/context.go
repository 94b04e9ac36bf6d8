package compiler

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/lya/pkg/bytecode"
)

var log = commonlog.GetLogger("lya.compiler")

// Context is the state of one compilation. It is passed explicitly
// through label reservation, validation and generation so that
// independent compilations never share scopes or label numbers.
type Context struct {
	ID  uuid.UUID
	Env *Environment

	// LabelCount is the next unreserved label number.
	LabelCount int

	// FunctionStack holds the procedures whose bodies enclose the node
	// being visited, innermost last.
	FunctionStack []*Symbol
}

// NewContext creates a context whose root scope holds the predefined
// modes and builtin procedures.
func NewContext() *Context {
	ctx := &Context{
		ID:  uuid.New(),
		Env: NewEnvironment(),
	}
	ctx.registerBuiltins()
	return ctx
}

// Reset discards every user declaration and label reservation.
func (c *Context) Reset() {
	c.Env = NewEnvironment()
	c.LabelCount = 0
	c.FunctionStack = nil
	c.registerBuiltins()
}

// ReserveLabels reserves n consecutive label numbers and returns the
// first.
func (c *Context) ReserveLabels(n int) int {
	first := c.LabelCount
	c.LabelCount += n
	return first
}

// PushFunction records entry into a procedure body.
func (c *Context) PushFunction(sym *Symbol) {
	c.FunctionStack = append(c.FunctionStack, sym)
}

// PopFunction records exit from a procedure body.
func (c *Context) PopFunction() {
	if n := len(c.FunctionStack); n > 0 {
		c.FunctionStack = c.FunctionStack[:n-1]
	}
}

// CurrentFunction returns the innermost enclosing procedure, or nil.
func (c *Context) CurrentFunction() *Symbol {
	if n := len(c.FunctionStack); n > 0 {
		return c.FunctionStack[n-1]
	}
	return nil
}

type builtinProc struct {
	name    string
	op      bytecode.Opcode
	accepts []*ExprType
	result  *Mode
	arity   int
}

var builtinProcs = []builtinProc{
	{"ABS", bytecode.OpAbs, []*ExprType{IntType}, IntMode, 1},
	{"ASC", bytecode.OpAsc, []*ExprType{IntType}, CharMode, 1},
	{"NUM", bytecode.OpNum, []*ExprType{CharType, BoolType, IntType}, IntMode, 1},
	{"UPPER", bytecode.OpUpc, []*ExprType{CharType}, CharMode, 1},
	{"LOWER", bytecode.OpLwc, []*ExprType{CharType}, CharMode, 1},
	{"READ", bytecode.OpRdv, nil, VoidMode, Variadic},
	{"PRINT", bytecode.OpPrv, nil, VoidMode, Variadic},
}

func (c *Context) registerBuiltins() {
	for _, m := range []*Mode{IntMode, BoolMode, CharMode, StringMode, VoidMode} {
		c.Env.AddRoot(m.Name, &Symbol{
			Name:     m.Name,
			Category: CategoryMode,
			Type:     m.Type,
			Mode:     m,
			Size:     m.Size,
		})
	}
	for _, b := range builtinProcs {
		c.Env.AddRoot(b.name, &Symbol{
			Name:     b.name,
			Category: CategoryProcedure,
			Type:     b.result.Type,
			Mode:     b.result,
			Proc: &ProcInfo{
				NumArgs: b.arity,
				Builtin: true,
				Op:      b.op,
				Accepts: b.accepts,
				Result:  b.result,
			},
		})
	}
}
