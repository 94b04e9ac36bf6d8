package compiler

import (
	"strings"

	"github.com/chazu/lya/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// Category classifies what a name denotes.
type Category int

const (
	CategoryMode Category = iota
	CategoryVariable
	CategoryVariableRef // loc declaration: the slot holds an address
	CategoryParam
	CategoryParamRef // loc parameter: the slot holds an address
	CategoryProcedure
	CategoryAction // storage owned by an action, such as a for-loop counter
	CategorySynonym
)

var categoryNames = map[Category]string{
	CategoryMode:        "mode",
	CategoryVariable:    "variable",
	CategoryVariableRef: "location",
	CategoryParam:       "parameter",
	CategoryParamRef:    "loc parameter",
	CategoryProcedure:   "procedure",
	CategoryAction:      "loop counter",
	CategorySynonym:     "synonym",
}

func (c Category) String() string {
	return categoryNames[c]
}

// HasStorage reports whether symbols of this category occupy frame words.
func (c Category) HasStorage() bool {
	switch c {
	case CategoryVariable, CategoryVariableRef, CategoryParam, CategoryParamRef, CategoryAction:
		return true
	}
	return false
}

// IsIndirect reports whether the symbol's slot holds the address of its
// storage rather than the storage itself.
func (c Category) IsIndirect() bool {
	return c == CategoryVariableRef || c == CategoryParamRef
}

// Variadic marks a builtin whose arity is not checked.
const Variadic = -1

// Symbol is a declared name. Level and Offset are the runtime address
// descriptor: the word lives at D[Level]+Offset.
type Symbol struct {
	Name     string // original spelling
	Category Category
	Type     *ExprType
	Mode     *Mode
	Level    int
	Offset   int
	Size     int
	Line     int // declaration line, 0 for builtins

	// Value is the folded constant of a synonym.
	Value bytecode.Value

	// Proc is set for procedures.
	Proc *ProcInfo
}

// ProcInfo extends a procedure symbol.
type ProcInfo struct {
	StartLabel int
	Params     []*FormalParam
	NumArgs    int // Variadic for READ and PRINT
	Builtin    bool

	// Op is the instruction an inline builtin compiles to; Accepts lists
	// the argument types it takes.
	Op      bytecode.Opcode
	Accepts []*ExprType

	// Level is the display level of the procedure's frame.
	Level int

	Result    *Mode // VoidMode when the procedure returns nothing
	ResultLoc bool

	// ParamModes and ParamLoc are indexed by argument position.
	ParamModes []*Mode
	ParamLoc   []bool
}

// ---------------------------------------------------------------------------
// SymbolTable
// ---------------------------------------------------------------------------

// SymbolTable maps lower-cased names to symbols for one scope.
type SymbolTable struct {
	symbols map[string]*Symbol
	order   []*Symbol

	// NextOffset is the offset the next storage symbol receives.
	NextOffset int
	// Level is the display level of the frame this scope allocates in.
	Level int
	// Owner is the procedure whose body this scope is, or nil.
	Owner *Symbol

	// frame is the table that owns the activation record; block scopes
	// share their parent's frame.
	frame     *SymbolTable
	highWater int
}

// NewSymbolTable creates a table that owns its own frame.
func NewSymbolTable(owner *Symbol, level int) *SymbolTable {
	t := &SymbolTable{
		symbols: make(map[string]*Symbol),
		Level:   level,
		Owner:   owner,
	}
	t.frame = t
	return t
}

// Add inserts a symbol under name, replacing any previous entry.
func (t *SymbolTable) Add(name string, sym *Symbol) {
	key := strings.ToLower(name)
	if _, ok := t.symbols[key]; !ok {
		t.order = append(t.order, sym)
	}
	t.symbols[key] = sym
}

// Lookup finds a symbol in this table only.
func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.symbols[strings.ToLower(name)]
}

// Symbols returns the symbols in insertion order.
func (t *SymbolTable) Symbols() []*Symbol {
	return t.order
}

// Reserve allocates n words at the next offset and returns the offset.
func (t *SymbolTable) Reserve(n int) int {
	off := t.NextOffset
	t.NextOffset += n
	if t.NextOffset > t.frame.highWater {
		t.frame.highWater = t.NextOffset
	}
	return off
}

// FrameSize returns the number of words the frame needs for every scope
// that has allocated in it.
func (t *SymbolTable) FrameSize() int {
	return t.frame.highWater
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

// Environment is the stack of active scopes.
type Environment struct {
	stack []*SymbolTable
}

// NewEnvironment creates an environment holding only the root scope.
func NewEnvironment() *Environment {
	return &Environment{stack: []*SymbolTable{NewSymbolTable(nil, 0)}}
}

// Push enters a new activation record, one display level deeper.
func (e *Environment) Push(owner *Symbol) *SymbolTable {
	t := NewSymbolTable(owner, e.Peek().Level+1)
	e.stack = append(e.stack, t)
	return t
}

// PushBlock enters a scope that allocates in the current frame.
func (e *Environment) PushBlock(owner *Symbol) *SymbolTable {
	parent := e.Peek()
	t := &SymbolTable{
		symbols:    make(map[string]*Symbol),
		NextOffset: parent.NextOffset,
		Level:      parent.Level,
		Owner:      owner,
		frame:      parent.frame,
	}
	if owner == nil {
		t.Owner = parent.Owner
	}
	e.stack = append(e.stack, t)
	return t
}

// Pop leaves the innermost scope.
func (e *Environment) Pop() *SymbolTable {
	t := e.Peek()
	if len(e.stack) > 1 {
		e.stack = e.stack[:len(e.stack)-1]
	}
	return t
}

// Peek returns the innermost scope.
func (e *Environment) Peek() *SymbolTable {
	return e.stack[len(e.stack)-1]
}

// Root returns the outermost scope.
func (e *Environment) Root() *SymbolTable {
	return e.stack[0]
}

// ScopeLevel returns the number of active scopes.
func (e *Environment) ScopeLevel() int {
	return len(e.stack)
}

// AddLocal inserts sym into the innermost scope. Storage symbols receive
// the next free offset; every symbol receives the scope's display level.
func (e *Environment) AddLocal(name string, sym *Symbol) {
	t := e.Peek()
	sym.Level = t.Level
	if sym.Category.HasStorage() {
		sym.Offset = t.Reserve(sym.Size)
	}
	t.Add(name, sym)
}

// AddLocalAt inserts sym into the innermost scope with an explicit
// address, as for parameters.
func (e *Environment) AddLocalAt(name string, sym *Symbol, offset, level int) {
	sym.Offset = offset
	sym.Level = level
	e.Peek().Add(name, sym)
}

// AddRoot inserts sym into the outermost scope without assigning an
// address.
func (e *Environment) AddRoot(name string, sym *Symbol) {
	e.Root().Add(name, sym)
}

// Lookup searches scopes from innermost to outermost. It returns nil when
// the name is undeclared.
func (e *Environment) Lookup(name string) *Symbol {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if sym := e.stack[i].Lookup(name); sym != nil {
			return sym
		}
	}
	return nil
}

// Find searches the innermost scope only.
func (e *Environment) Find(name string) *Symbol {
	return e.Peek().Lookup(name)
}
