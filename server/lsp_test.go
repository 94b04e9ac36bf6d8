package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "dcl total"
	pos := protocol.Position{Line: 0, Character: 9}
	prefix := extractPrefix(text, pos)
	if prefix != "total" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "total")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	prefix := extractPrefix("", protocol.Position{Line: 0, Character: 0})
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "dcl x int;\nx = 1;\npri"
	prefix := extractPrefix(text, protocol.Position{Line: 2, Character: 3})
	if prefix != "pri" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "pri")
	}
}

func TestExtractPrefix_StopsAtOperator(t *testing.T) {
	text := "x = a+count_"
	prefix := extractPrefix(text, protocol.Position{Line: 0, Character: 12})
	if prefix != "count_" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "count_")
	}
}

func TestExtractPrefix_CursorPastEnd(t *testing.T) {
	prefix := extractPrefix("abc", protocol.Position{Line: 0, Character: 40})
	if prefix != "abc" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "abc")
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	prefix := extractPrefix("single line", protocol.Position{Line: 5, Character: 0})
	if prefix != "" {
		t.Errorf("extractPrefix beyond document = %q, want empty string", prefix)
	}
}

func TestExtractWord_Middle(t *testing.T) {
	text := "total = add(2);"
	word := extractWord(text, protocol.Position{Line: 0, Character: 9})
	if word != "add" {
		t.Errorf("extractWord = %q, want %q", word, "add")
	}
}

func TestExtractWord_AtSpace(t *testing.T) {
	word := extractWord("a   b", protocol.Position{Line: 0, Character: 2})
	if word != "" {
		t.Errorf("extractWord = %q, want empty string", word)
	}
}

func TestExtractWord_WithUnderscore(t *testing.T) {
	word := extractWord("dcl my_var int;", protocol.Position{Line: 0, Character: 6})
	if word != "my_var" {
		t.Errorf("extractWord = %q, want %q", word, "my_var")
	}
}

func TestExtractWord_LineBeyondDocument(t *testing.T) {
	if word := extractWord("x", protocol.Position{Line: 3, Character: 0}); word != "" {
		t.Errorf("extractWord beyond document = %q, want empty string", word)
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Errorf("boolPtr(true) = %v", p)
	}
	if p := boolPtr(false); p == nil || *p {
		t.Errorf("boolPtr(false) = %v", p)
	}
}

// ---------------------------------------------------------------------------
// Language features
// ---------------------------------------------------------------------------

const sampleURI = "file:///tmp/sample.lya"

const sample = `dcl total int;
add: proc(n int) returns(int);
  return total + n;
end;
total = add(2);
`

func openSample(t *testing.T, text string) *Document {
	t.Helper()
	ws := NewWorkspace()
	return ws.Open(sampleURI, text)
}

func TestLSP_Complete(t *testing.T) {
	doc := openSample(t, sample)
	items := complete(doc, "tot")
	if len(items) != 1 || items[0].Label != "total" {
		t.Fatalf("complete(tot) = %+v", items)
	}
	if *items[0].Kind != protocol.CompletionItemKindVariable {
		t.Errorf("kind = %v, want variable", *items[0].Kind)
	}

	labels := map[string]protocol.CompletionItemKind{}
	for _, item := range complete(doc, "") {
		labels[item.Label] = *item.Kind
	}
	if labels["add"] != protocol.CompletionItemKindFunction {
		t.Errorf("add missing or wrong kind: %v", labels)
	}
	if _, ok := labels["PRINT"]; !ok {
		t.Errorf("builtins missing from completion: %v", labels)
	}
	if _, ok := labels["while"]; ok {
		t.Error("keywords offered without a prefix")
	}

	found := false
	for _, item := range complete(doc, "WHI") {
		if item.Label == "while" && *item.Kind == protocol.CompletionItemKindKeyword {
			found = true
		}
	}
	if !found {
		t.Error("keyword completion is not case insensitive")
	}
}

func TestLSP_Hover_Variable(t *testing.T) {
	doc := openSample(t, sample)
	// "total" inside the procedure body
	h := hover(doc, protocol.Position{Line: 2, Character: 11})
	if h == nil {
		t.Fatal("hover returned nil")
	}
	content := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(content, "variable total int") || !strings.Contains(content, "line 1") {
		t.Errorf("hover content = %q", content)
	}
	if h.Range == nil || h.Range.Start.Line != 2 || h.Range.Start.Character != 9 || h.Range.End.Character != 14 {
		t.Errorf("hover range = %+v", h.Range)
	}
}

func TestLSP_Hover_Procedure(t *testing.T) {
	doc := openSample(t, sample)
	h := hover(doc, protocol.Position{Line: 4, Character: 9})
	if h == nil {
		t.Fatal("hover returned nil")
	}
	content := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(content, "procedure add(int) returns(int)") {
		t.Errorf("hover content = %q", content)
	}
}

func TestLSP_Hover_Builtin(t *testing.T) {
	doc := openSample(t, "print(abs(-2));\n")
	h := hover(doc, protocol.Position{Line: 0, Character: 7})
	if h == nil {
		t.Fatal("hover returned nil")
	}
	if content := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(content, "Builtin") {
		t.Errorf("hover content = %q", content)
	}
}

func TestLSP_Hover_Whitespace(t *testing.T) {
	doc := openSample(t, sample)
	if h := hover(doc, protocol.Position{Line: 3, Character: 5}); h != nil {
		t.Errorf("hover on whitespace = %+v", h)
	}
}

func TestLSP_Definition(t *testing.T) {
	doc := openSample(t, sample)
	locs := definition(doc, protocol.Position{Line: 4, Character: 0})
	if len(locs) != 1 {
		t.Fatalf("definition = %+v", locs)
	}
	if locs[0].URI != sampleURI || locs[0].Range.Start.Line != 0 || locs[0].Range.Start.Character != 4 {
		t.Errorf("definition = %+v", locs[0])
	}

	// The parameter resolves to its own declaration, not the global.
	locs = definition(doc, protocol.Position{Line: 2, Character: 17})
	if len(locs) != 1 || locs[0].Range.Start.Line != 1 || locs[0].Range.Start.Character != 10 {
		t.Errorf("definition of n = %+v", locs)
	}
}

func TestLSP_Definition_Builtin(t *testing.T) {
	doc := openSample(t, sample)
	// "int" has no declaration in the document
	if locs := definition(doc, protocol.Position{Line: 0, Character: 11}); len(locs) != 0 {
		t.Errorf("definition of builtin = %+v", locs)
	}
}

func TestLSP_References(t *testing.T) {
	doc := openSample(t, sample)
	pos := protocol.Position{Line: 0, Character: 5}
	if locs := references(doc, pos, true); len(locs) != 3 {
		t.Errorf("references with declaration = %d, want 3", len(locs))
	}
	locs := references(doc, pos, false)
	if len(locs) != 2 {
		t.Fatalf("references without declaration = %+v", locs)
	}
	if locs[0].Range.Start.Line != 2 || locs[1].Range.Start.Line != 4 {
		t.Errorf("references out of order: %+v", locs)
	}
}

func TestLSP_Diagnostics(t *testing.T) {
	doc := openSample(t, "dcl x int;\nx = y;\n")
	diags := toProtocolDiagnostics(doc.Diagnostics())
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags[0]
	if d.Range.Start.Line != 1 || *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("diagnostic = %+v", d)
	}
	if !strings.Contains(d.Message, "y") {
		t.Errorf("message = %q", d.Message)
	}

	if diags := toProtocolDiagnostics(openSample(t, sample).Diagnostics()); len(diags) != 0 {
		t.Errorf("clean document has diagnostics: %+v", diags)
	}
}

func TestLSP_DocumentStore(t *testing.T) {
	s := NewLSP("test")
	defer s.worker.Stop()

	_, err := s.worker.Do(func(ws *Workspace) interface{} {
		ws.Open(sampleURI, sample)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return ws.Get(sampleURI)
	})
	if err != nil || result.(*Document) == nil {
		t.Fatalf("document not stored: %v", err)
	}
	result, _ = s.worker.Do(func(ws *Workspace) interface{} {
		ws.Close(sampleURI)
		return ws.Get(sampleURI)
	})
	if result.(*Document) != nil {
		t.Error("document still stored after Close")
	}
}
