package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleHeader(t *testing.T) {
	p := NewProgram()
	p.Emit(Make(OpStp))

	out := p.DisassembleWithName("main")
	if !strings.Contains(out, "; === main ===") {
		t.Error("missing name header")
	}
	if !strings.Contains(out, "; LYA Virtual Machine program v2") {
		t.Error("missing version header")
	}
	if !strings.Contains(out, "0000  stp") {
		t.Errorf("missing instruction line in:\n%s", out)
	}
}

func TestDisassembleAnnotations(t *testing.T) {
	p := NewProgram()
	p.EmitAt(Make(OpJmp, 4), 3)
	p.Emit(Make(OpPrc, p.AddString("hi")))
	p.Emit(Make(OpLbl, 4))

	out := p.Disassemble()
	if !strings.Contains(out, "-> 0002") {
		t.Errorf("jump target not annotated:\n%s", out)
	}
	if !strings.Contains(out, "line 3") {
		t.Errorf("source line not annotated:\n%s", out)
	}
	if !strings.Contains(out, `"hi"`) {
		t.Errorf("string operand not annotated:\n%s", out)
	}
	if !strings.Contains(out, "; Strings:") {
		t.Errorf("string pool not listed:\n%s", out)
	}
}

func TestAssembleRoundTrip(t *testing.T) {
	src := `
		alc 1
		ldc 'x'      ; a char
		ldc true
		ldc -12
		ldv 0 1
		ret 1, 2
		lbl 5
	`
	p, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []string{"alc 1", "ldc 'x'", "ldc true", "ldc -12", "ldv 0 1", "ret 1 2", "lbl 5"}
	got := p.DisassembleToLines()
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}

	again, err := Assemble(strings.Join(got, "\n"))
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if again.Disassemble() != p.Disassemble() {
		t.Error("reassembled program differs")
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"push 1", "unknown instruction"},
		{"ldv 1", "takes 2 operand(s)"},
		{"alc x", "bad operand"},
		{"ldc", "ldc needs an operand"},
		{"ldc 'ab'", "bad character literal"},
		{".string nope", "bad string"},
	}
	for _, tt := range tests {
		_, err := Assemble(tt.src)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Assemble(%q) error = %v, want %q", tt.src, err, tt.want)
		}
	}
}
