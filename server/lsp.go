package server

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/lya/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lya-lsp"

var log = commonlog.GetLogger("lya.server")

// LspServer publishes compiler diagnostics and answers hover, completion,
// definition and reference queries for LYA documents.
type LspServer struct {
	worker *Worker

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server with an empty workspace.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace()),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	defer s.worker.Stop()
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("LYA LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		s.update(ctx, params.TextDocument.URI, whole.Text)
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.worker.Do(func(ws *Workspace) interface{} {
		ws.Close(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return toProtocolDiagnostics(ws.Open(string(uri), text).Diagnostics())
	})
	if err != nil {
		log.Errorf("analyzing %s: %s", uri, err)
		return
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := string(params.TextDocument.URI)
	pos := params.Position
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		doc := ws.Get(uri)
		if doc == nil {
			return []protocol.CompletionItem(nil)
		}
		return complete(doc, extractPrefix(doc.Text, pos))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := string(params.TextDocument.URI)
	pos := params.Position
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		doc := ws.Get(uri)
		if doc == nil {
			return (*protocol.Hover)(nil)
		}
		return hover(doc, pos)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := string(params.TextDocument.URI)
	pos := params.Position
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		doc := ws.Get(uri)
		if doc == nil {
			return []protocol.Location(nil)
		}
		return definition(doc, pos)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := string(params.TextDocument.URI)
	pos := params.Position
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		doc := ws.Get(uri)
		if doc == nil {
			return []protocol.Location(nil)
		}
		return references(doc, pos, params.Context.IncludeDeclaration)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.([]protocol.Location), nil
}

// --- Workspace-backed logic (called on worker goroutine) ---

func complete(doc *Document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	matches := func(name string) bool {
		return strings.HasPrefix(strings.ToLower(name), lowerPrefix)
	}
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, sym := range doc.Symbols() {
		if matches(sym.Name) {
			add(sym.Name, completionKind(sym), Describe(sym))
		}
	}
	for _, sym := range builtins() {
		if matches(sym.Name) {
			add(sym.Name, completionKind(sym), Describe(sym))
		}
	}
	if prefix != "" {
		for _, kw := range compiler.Keywords() {
			if matches(kw) {
				add(kw, protocol.CompletionItemKindKeyword, "keyword")
			}
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func completionKind(sym *compiler.Symbol) protocol.CompletionItemKind {
	switch sym.Category {
	case compiler.CategoryMode:
		return protocol.CompletionItemKindClass
	case compiler.CategoryProcedure:
		return protocol.CompletionItemKindFunction
	case compiler.CategorySynonym:
		return protocol.CompletionItemKindConstant
	}
	return protocol.CompletionItemKindVariable
}

// builtins returns the predefined modes and procedures.
func builtins() []*compiler.Symbol {
	return compiler.NewContext().Env.Root().Symbols()
}

// symbolAt resolves the identifier under an LSP position.
func symbolAt(doc *Document, pos protocol.Position) (*compiler.Ident, *compiler.Symbol) {
	id := doc.IdentAt(int(pos.Line)+1, int(pos.Character)+1)
	if id == nil {
		return nil, nil
	}
	return id, doc.SymbolOf(id)
}

func hover(doc *Document, pos protocol.Position) *protocol.Hover {
	id, sym := symbolAt(doc, pos)
	if sym == nil {
		// Unresolved occurrences still describe builtins by name.
		word := extractWord(doc.Text, pos)
		if word == "" {
			return nil
		}
		for _, b := range builtins() {
			if strings.EqualFold(b.Name, word) {
				sym = b
			}
		}
		if sym == nil {
			return nil
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "```lya\n%s\n```", Describe(sym))
	if sym.Line > 0 {
		fmt.Fprintf(&b, "\n\nDeclared on line %d", sym.Line)
	} else {
		b.WriteString("\n\nBuiltin")
	}
	if sym.Category.HasStorage() {
		fmt.Fprintf(&b, "; frame level %d, offset %d", sym.Level, sym.Offset)
	}

	h := &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
	if id != nil {
		r := identRange(id)
		h.Range = &r
	}
	return h
}

func definition(doc *Document, pos protocol.Position) []protocol.Location {
	_, sym := symbolAt(doc, pos)
	if sym == nil {
		return nil
	}
	decl := doc.Declaration(sym)
	if decl == nil {
		return nil
	}
	return []protocol.Location{{URI: protocol.DocumentUri(doc.URI), Range: identRange(decl)}}
}

func references(doc *Document, pos protocol.Position, includeDecl bool) []protocol.Location {
	_, sym := symbolAt(doc, pos)
	if sym == nil {
		return nil
	}
	decl := doc.Declaration(sym)
	var locations []protocol.Location
	for _, id := range doc.References(sym) {
		if id == decl && !includeDecl {
			continue
		}
		locations = append(locations, protocol.Location{URI: protocol.DocumentUri(doc.URI), Range: identRange(id)})
	}
	return locations
}

// --- Diagnostics ---

func toProtocolDiagnostics(diags []Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	source := lspName
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		line := protocol.UInteger(0)
		if d.Line > 0 {
			line = protocol.UInteger(d.Line - 1)
		}
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: 0},
				End:   protocol.Position{Line: line + 1, Character: 0},
			},
			Severity: &severity,
			Source:   &source,
			Message:  fmt.Sprintf("%s: %s", d.Code, d.Message),
		})
	}
	return out
}

func identRange(id *compiler.Ident) protocol.Range {
	start := id.Span().Start
	line := protocol.UInteger(start.Line - 1)
	col := protocol.UInteger(start.Column - 1)
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col + protocol.UInteger(len(id.Name))},
	}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
