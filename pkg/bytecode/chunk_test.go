package bytecode

import (
	"errors"
	"testing"
)

func TestNewProgram(t *testing.T) {
	p := NewProgram()
	if p.Version != ProgramVersion {
		t.Errorf("Version = %d, want %d", p.Version, ProgramVersion)
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
}

func TestAddStringDeduplicates(t *testing.T) {
	p := NewProgram()
	a := p.AddString("hello")
	b := p.AddString("world")
	c := p.AddString("hello")

	if a != 0 || b != 1 {
		t.Errorf("indexes = %d, %d; want 0, 1", a, b)
	}
	if c != a {
		t.Errorf("duplicate string got index %d, want %d", c, a)
	}
	if len(p.Strings) != 2 {
		t.Errorf("pool size = %d, want 2", len(p.Strings))
	}
}

func TestEmitRecordsLines(t *testing.T) {
	p := NewProgram()
	p.Emit(Make(OpAlc, 1))
	p.EmitAt(Ldc(Int(3)), 7)
	p.EmitAt(Make(OpStv, 0, 0), 7)

	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
	if got := p.LineOf(0); got != 0 {
		t.Errorf("LineOf(0) = %d, want 0", got)
	}
	if got := p.LineOf(2); got != 7 {
		t.Errorf("LineOf(2) = %d, want 7", got)
	}
	if got := p.LineOf(99); got != 0 {
		t.Errorf("LineOf(99) = %d, want 0", got)
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		ins  Instruction
		want string
	}{
		{Make(OpAdd), "add"},
		{Make(OpAlc, 3), "alc 3"},
		{Make(OpLdv, 1, -4), "ldv 1 -4"},
		{Ldc(Int(42)), "ldc 42"},
		{Ldc(Bool(true)), "ldc true"},
		{Ldc(Char('a')), "ldc 'a'"},
	}
	for _, tt := range tests {
		if got := tt.ins.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestAppendRebasesStrings(t *testing.T) {
	a := NewProgram()
	a.Emit(Make(OpPrc, a.AddString("x")))

	b := NewProgram()
	b.Emit(Make(OpPrc, b.AddString("y")))
	b.Emit(Make(OpPrc, b.AddString("x")))

	a.Append(b)
	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}
	if got := a.Strings[a.Code[1].A]; got != "y" {
		t.Errorf("appended prc refers to %q, want y", got)
	}
	if a.Code[2].A != 0 {
		t.Errorf("shared string should reuse index 0, got %d", a.Code[2].A)
	}
}

func TestLabels(t *testing.T) {
	p := NewProgram()
	p.Emit(Make(OpJmp, 2))
	p.Emit(Make(OpLbl, 1))
	p.Emit(Make(OpNop))
	p.Emit(Make(OpLbl, 2))

	labels, err := p.Labels()
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if labels[1] != 1 || labels[2] != 3 {
		t.Errorf("labels = %v, want map[1:1 2:3]", labels)
	}
	if err := p.CheckLabels(); err != nil {
		t.Errorf("CheckLabels: %v", err)
	}
}

func TestDuplicateLabel(t *testing.T) {
	p := NewProgram()
	p.Emit(Make(OpLbl, 1))
	p.Emit(Make(OpLbl, 1))

	if _, err := p.Labels(); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("Labels() error = %v, want ErrDuplicateLabel", err)
	}
}

func TestCheckLabelsMissing(t *testing.T) {
	p := NewProgram()
	p.Emit(Make(OpJof, 9))
	if err := p.CheckLabels(); !errors.Is(err, ErrUnresolvedLabel) {
		t.Errorf("CheckLabels() error = %v, want ErrUnresolvedLabel", err)
	}
}

func TestCoerceInput(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"TRUE", Bool(true)},
		{"false", Bool(false)},
		{"42", Int(42)},
		{" -7\n", Int(-7)},
		{"hello", Text("hello")},
	}
	for _, tt := range tests {
		if got := CoerceInput(tt.in); got != tt.want {
			t.Errorf("CoerceInput(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Int(-3), "-3"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Char('z'), "z"},
		{Text("abc"), "abc"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	if !Char('a').Equal(Int(97)) {
		t.Error("char 'a' should equal 97")
	}
	if Text("1").Equal(Text("2")) {
		t.Error("different text should not be equal")
	}
	if !Text("7").Equal(Int(7)) {
		t.Error("text 7 should equal int 7")
	}
}

func TestMarshalProgram(t *testing.T) {
	p := NewProgram()
	p.EmitAt(Make(OpAlc, 1), 1)
	p.EmitAt(Ldc(Char('q')), 1)
	p.EmitAt(Make(OpPrc, p.AddString("done")), 2)
	p.Emit(Make(OpStp))

	data, err := MarshalProgram(p)
	if err != nil {
		t.Fatalf("MarshalProgram: %v", err)
	}
	got, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatalf("UnmarshalProgram: %v", err)
	}
	if got.Disassemble() != p.Disassemble() {
		t.Errorf("round trip changed program:\n%s\nwant:\n%s", got.Disassemble(), p.Disassemble())
	}
}

func TestUnmarshalProgramBadMagic(t *testing.T) {
	if _, err := UnmarshalProgram([]byte("nope")); !errors.Is(err, ErrBadProgram) {
		t.Errorf("error = %v, want ErrBadProgram", err)
	}
}
