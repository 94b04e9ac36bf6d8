package bytecode

import (
	"fmt"
	"strings"
)

// ProgramVersion is the current program format version.
// Increment when making incompatible changes to the format.
const ProgramVersion uint16 = 2

// ProgramMagic prefixes serialized programs: "LVM1".
var ProgramMagic = []byte{'L', 'V', 'M', '1'}

// Instruction is one LVM instruction. A and B are the integer operands
// (label ids, display levels, offsets, sizes, pool indexes); K is the
// constant operand of ldc.
type Instruction struct {
	Op Opcode `cbor:"1,keyasint"`
	A  int    `cbor:"2,keyasint,omitempty"`
	B  int    `cbor:"3,keyasint,omitempty"`
	K  Value  `cbor:"4,keyasint,omitempty"`
}

// Make builds an instruction from an opcode and its integer operands.
func Make(op Opcode, operands ...int) Instruction {
	ins := Instruction{Op: op}
	if len(operands) > 0 {
		ins.A = operands[0]
	}
	if len(operands) > 1 {
		ins.B = operands[1]
	}
	return ins
}

// Ldc builds a load-constant instruction.
func Ldc(v Value) Instruction {
	return Instruction{Op: OpLdc, K: v}
}

// String formats the instruction in assembler syntax.
func (ins Instruction) String() string {
	switch {
	case ins.Op == OpLdc:
		return fmt.Sprintf("%s %s", ins.Op, ins.K.Literal())
	case ins.Op.Operands() == 2:
		return fmt.Sprintf("%s %d %d", ins.Op, ins.A, ins.B)
	case ins.Op.Operands() == 1:
		return fmt.Sprintf("%s %d", ins.Op, ins.A)
	default:
		return ins.Op.String()
	}
}

// Program is a linearized LVM program: the instruction list P and the
// string-constant pool H.
type Program struct {
	Version uint16        `cbor:"1,keyasint"`
	Code    []Instruction `cbor:"2,keyasint"`
	Strings []string      `cbor:"3,keyasint,omitempty"`

	// Lines maps each instruction to the source line that produced it
	// (0 when unknown). Optional debug information.
	Lines []int `cbor:"4,keyasint,omitempty"`
}

// NewProgram creates a new empty program with the current version.
func NewProgram() *Program {
	return &Program{
		Version: ProgramVersion,
		Code:    make([]Instruction, 0, 64),
	}
}

// AddString adds a string to the constant pool and returns its index.
// If the string already exists, returns the existing index.
func (p *Program) AddString(s string) int {
	for i, existing := range p.Strings {
		if existing == s {
			return i
		}
	}
	p.Strings = append(p.Strings, s)
	return len(p.Strings) - 1
}

// Emit appends an instruction and returns its index.
func (p *Program) Emit(ins Instruction) int {
	return p.EmitAt(ins, 0)
}

// EmitAt appends an instruction tagged with a source line.
func (p *Program) EmitAt(ins Instruction, line int) int {
	idx := len(p.Code)
	p.Code = append(p.Code, ins)
	if line > 0 || p.Lines != nil {
		for len(p.Lines) < idx {
			p.Lines = append(p.Lines, 0)
		}
		p.Lines = append(p.Lines, line)
	}
	return idx
}

// Append appends every instruction of other, rebasing its string pool
// indexes onto p's pool.
func (p *Program) Append(other *Program) {
	for i, ins := range other.Code {
		switch ins.Op {
		case OpSts, OpLsc, OpPrc:
			ins.A = p.AddString(other.Strings[ins.A])
		}
		p.EmitAt(ins, other.LineOf(i))
	}
}

// LineOf returns the source line recorded for instruction i.
func (p *Program) LineOf(i int) int {
	if i < 0 || i >= len(p.Lines) {
		return 0
	}
	return p.Lines[i]
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Code)
}

// Labels returns the label→index map that pass 1 of the VM builds, or an
// error if a label is defined more than once.
func (p *Program) Labels() (map[int]int, error) {
	labels := make(map[int]int)
	for i, ins := range p.Code {
		if ins.Op != OpLbl {
			continue
		}
		if prev, dup := labels[ins.A]; dup {
			return nil, fmt.Errorf("%w: label %d at %d and %d", ErrDuplicateLabel, ins.A, prev, i)
		}
		labels[ins.A] = i
	}
	return labels, nil
}

// CheckLabels verifies that every jump target has exactly one definition.
func (p *Program) CheckLabels() error {
	labels, err := p.Labels()
	if err != nil {
		return err
	}
	var missing []string
	for i, ins := range p.Code {
		if !ins.Op.IsJump() {
			continue
		}
		if _, ok := labels[ins.A]; !ok {
			missing = append(missing, fmt.Sprintf("%d (at %d)", ins.A, i))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnresolvedLabel, strings.Join(missing, ", "))
	}
	return nil
}
