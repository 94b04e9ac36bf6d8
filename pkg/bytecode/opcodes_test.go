package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if info.Operands < 0 || info.Operands > 2 {
			t.Errorf("%s has %d operands, want 0-2", info.Name, info.Operands)
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got < 45 {
		t.Errorf("Expected at least 45 opcodes, got %d", got)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "nop"},
		{OpLdc, "ldc"},
		{OpLdv, "ldv"},
		{OpAdd, "add"},
		{OpLor, "lor"},
		{OpSmv, "smv"},
		{OpScat, "scat"},
		{OpJof, "jof"},
		{OpRet, "ret"},
		{OpStp, "stp"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestLookupOpcodeRoundTrip(t *testing.T) {
	for _, op := range AllOpcodes() {
		got, ok := LookupOpcode(op.String())
		if !ok || got != op {
			t.Errorf("LookupOpcode(%q) = %v, %v; want %v", op.String(), got, ok, op)
		}
	}
	if _, ok := LookupOpcode("push"); ok {
		t.Error("LookupOpcode(push) should fail")
	}
}

func TestOpcodeOperands(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpNop, 0},
		{OpLdc, 1},
		{OpLdv, 2},
		{OpAlc, 1},
		{OpIdx, 1},
		{OpRet, 2},
		{OpEnf, 1},
		{OpPrv, 0},
	}

	for _, tt := range tests {
		if got := tt.op.Operands(); got != tt.want {
			t.Errorf("%s.Operands() = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestIsJump(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpJmp || op == OpJof || op == OpCfu
		if op.IsJump() != want {
			t.Errorf("%s.IsJump() = %v, want %v", op, op.IsJump(), want)
		}
	}
}

func TestIsPrint(t *testing.T) {
	for _, op := range []Opcode{OpPrv, OpPrt, OpPrc, OpPrs} {
		if !op.IsPrint() {
			t.Errorf("%s.IsPrint() = false", op)
		}
	}
	if OpRdv.IsPrint() || OpRds.IsPrint() {
		t.Error("read opcodes should not be print opcodes")
	}
}
