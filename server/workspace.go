package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/lya/compiler"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

// Diagnostic is a problem found in a document. Line and Column are
// 1-based; Column is 0 when only the line is known.
type Diagnostic struct {
	Line     int
	Column   int
	Length   int
	Severity Severity
	Code     string
	Message  string
}

// Document is an open source file and the result of compiling it.
type Document struct {
	URI  string
	Text string

	Compilation *compiler.Compilation
	Err         error

	idents []*compiler.Ident
	decls  map[*compiler.Symbol]*compiler.Ident
}

// Workspace holds the open documents. It is owned by a Worker.
type Workspace struct {
	docs map[string]*Document
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{docs: make(map[string]*Document)}
}

// Open stores text under uri and analyzes it, replacing any previous
// version.
func (ws *Workspace) Open(uri, text string) *Document {
	doc := Analyze(uri, text)
	ws.docs[uri] = doc
	return doc
}

// Close forgets a document.
func (ws *Workspace) Close(uri string) {
	delete(ws.docs, uri)
}

// Get returns the document stored under uri, or nil.
func (ws *Workspace) Get(uri string) *Document {
	return ws.docs[uri]
}

// Analyze compiles text and indexes its identifiers.
func Analyze(uri, text string) *Document {
	c, err := compiler.Compile(text)
	doc := &Document{
		URI:         uri,
		Text:        text,
		Compilation: c,
		Err:         err,
		decls:       make(map[*compiler.Symbol]*compiler.Ident),
	}
	if c.AST == nil {
		return doc
	}
	compiler.Inspect(c.AST, func(n compiler.Node) bool {
		if id, ok := n.(*compiler.Ident); ok {
			doc.idents = append(doc.idents, id)
		}
		return true
	})
	if c.Info != nil {
		for id, u := range c.Info.Usage {
			if u != compiler.UsageDeclaration {
				continue
			}
			if sym := c.Info.Symbols[id]; sym != nil {
				doc.decls[sym] = id
			}
		}
	}
	return doc
}

// Diagnostics converts parse errors, semantic issues and generation
// errors into diagnostics, ordered by line.
func (d *Document) Diagnostics() []Diagnostic {
	var out []Diagnostic
	c := d.Compilation
	for _, msg := range c.ParseErrors {
		line, text := splitLine(msg)
		out = append(out, Diagnostic{Line: line, Severity: SeverityError, Code: "parse", Message: text})
	}
	for _, is := range c.Issues {
		out = append(out, Diagnostic{
			Line:     is.Line,
			Severity: SeverityError,
			Code:     is.Kind.String(),
			Message:  is.Message,
		})
	}
	if len(out) == 0 && d.Err != nil {
		out = append(out, Diagnostic{Line: 1, Severity: SeverityError, Code: "internal", Message: d.Err.Error()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// splitLine separates the "line N: " prefix the parser puts on errors.
func splitLine(msg string) (int, string) {
	var line int
	if _, err := fmt.Sscanf(msg, "line %d:", &line); err != nil {
		return 1, msg
	}
	if i := strings.Index(msg, ": "); i >= 0 {
		return line, msg[i+2:]
	}
	return line, msg
}

// IdentAt returns the identifier occurrence covering the 1-based line
// and column, or nil.
func (d *Document) IdentAt(line, column int) *compiler.Ident {
	for _, id := range d.idents {
		start := id.Span().Start
		if start.Line == line && column >= start.Column && column < start.Column+len(id.Name) {
			return id
		}
	}
	return nil
}

// SymbolOf returns the symbol an identifier occurrence resolved to.
func (d *Document) SymbolOf(id *compiler.Ident) *compiler.Symbol {
	if id == nil || d.Compilation.Info == nil {
		return nil
	}
	return d.Compilation.Info.Symbols[id]
}

// Declaration returns the identifier that declared sym in this document,
// or nil for builtins and implicit names.
func (d *Document) Declaration(sym *compiler.Symbol) *compiler.Ident {
	return d.decls[sym]
}

// References returns every occurrence that resolved to sym, in source
// order.
func (d *Document) References(sym *compiler.Symbol) []*compiler.Ident {
	var refs []*compiler.Ident
	for _, id := range d.idents {
		if d.SymbolOf(id) == sym {
			refs = append(refs, id)
		}
	}
	return refs
}

// Symbols returns the symbols declared in the document, ordered by name.
func (d *Document) Symbols() []*compiler.Symbol {
	syms := make([]*compiler.Symbol, 0, len(d.decls))
	for sym := range d.decls {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Name != syms[j].Name {
			return syms[i].Name < syms[j].Name
		}
		return syms[i].Line < syms[j].Line
	})
	return syms
}

// Describe renders a one-line summary of sym.
func Describe(sym *compiler.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", sym.Category, sym.Name)
	switch {
	case sym.Proc != nil:
		b.WriteString(signature(sym.Proc))
	case sym.Category == compiler.CategoryMode:
		fmt.Fprintf(&b, " = %s", sym.Type)
	case sym.Category == compiler.CategorySynonym:
		fmt.Fprintf(&b, " %s = %s", sym.Mode, sym.Value.Literal())
	case sym.Mode != nil:
		fmt.Fprintf(&b, " %s", sym.Mode)
		if sym.Category.IsIndirect() {
			b.WriteString(" loc")
		}
	}
	return b.String()
}

func signature(p *compiler.ProcInfo) string {
	var params []string
	switch {
	case p.NumArgs == compiler.Variadic:
		params = []string{"..."}
	case p.Builtin:
		for _, t := range p.Accepts {
			params = append(params, t.String())
		}
		params = []string{strings.Join(params, "|")}
	default:
		for i, m := range p.ParamModes {
			s := m.String()
			if p.ParamLoc[i] {
				s += " loc"
			}
			params = append(params, s)
		}
	}
	sig := "(" + strings.Join(params, ", ") + ")"
	if p.Result != nil && p.Result != compiler.VoidMode {
		sig += " returns(" + p.Result.String()
		if p.ResultLoc {
			sig += " loc"
		}
		sig += ")"
	}
	return sig
}
