package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; LYA Virtual Machine program v%d\n", p.Version))
	sb.WriteString(fmt.Sprintf("; Instructions: %d\n\n", len(p.Code)))

	if len(p.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range p.Strings {
			display := s
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, display))
		}
		sb.WriteString("\n")
	}

	labels, _ := p.Labels()

	sb.WriteString("; Code:\n")
	for i, ins := range p.Code {
		text := ins.String()
		var notes []string
		if ins.Op.IsJump() {
			if target, ok := labels[ins.A]; ok {
				notes = append(notes, fmt.Sprintf("-> %04d", target))
			} else {
				notes = append(notes, "-> ?")
			}
		}
		switch ins.Op {
		case OpSts, OpLsc, OpPrc:
			if ins.A >= 0 && ins.A < len(p.Strings) {
				notes = append(notes, strconv.Quote(p.Strings[ins.A]))
			}
		}
		if line := p.LineOf(i); line > 0 {
			notes = append(notes, fmt.Sprintf("line %d", line))
		}
		if len(notes) > 0 {
			sb.WriteString(fmt.Sprintf("%04d  %-20s ; %s\n", i, text, strings.Join(notes, ", ")))
		} else {
			sb.WriteString(fmt.Sprintf("%04d  %s\n", i, text))
		}
	}

	return sb.String()
}

// DisassembleToLines returns one assembler line per instruction.
func (p *Program) DisassembleToLines() []string {
	lines := make([]string, len(p.Code))
	for i, ins := range p.Code {
		lines[i] = ins.String()
	}
	return lines
}

// Assemble parses assembler text, one instruction per line, into a
// program. Blank lines and text after ';' are ignored. A line of the form
// `.string "text"` appends to the string pool. ldc accepts integers,
// true/false, 'c' and "text" operands.
func Assemble(src string) (*Program, error) {
	p := NewProgram()
	for n, raw := range strings.Split(src, "\n") {
		line := stripComment(raw)
		if line == "" {
			continue
		}
		lineNo := n + 1

		mnemonic, rest, _ := strings.Cut(line, " ")
		mnemonic = strings.ToLower(mnemonic)
		rest = strings.TrimSpace(rest)

		if mnemonic == ".string" {
			s, err := strconv.Unquote(rest)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad string %s: %w", lineNo, rest, err)
			}
			p.Strings = append(p.Strings, s)
			continue
		}

		op, ok := LookupOpcode(mnemonic)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown instruction %q", lineNo, mnemonic)
		}

		if op == OpLdc {
			v, err := parseLiteral(rest)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			p.Emit(Ldc(v))
			continue
		}

		fields := strings.FieldsFunc(rest, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
		if len(fields) != op.Operands() {
			return nil, fmt.Errorf("line %d: %s takes %d operand(s), got %d", lineNo, op, op.Operands(), len(fields))
		}
		operands := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad operand %q", lineNo, f)
			}
			operands[i] = v
		}
		p.Emit(Make(op, operands...))
	}
	return p, nil
}

func stripComment(line string) string {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0 && c == '\\':
			i++
		case inQuote != 0 && c == inQuote:
			inQuote = 0
		case inQuote == 0 && (c == '"' || c == '\''):
			inQuote = c
		case inQuote == 0 && c == ';':
			return strings.TrimSpace(line[:i])
		}
	}
	return strings.TrimSpace(line)
}

func parseLiteral(s string) (Value, error) {
	switch {
	case s == "":
		return Value{}, fmt.Errorf("ldc needs an operand")
	case strings.EqualFold(s, "true"):
		return Bool(true), nil
	case strings.EqualFold(s, "false"):
		return Bool(false), nil
	case s[0] == '\'':
		r, _, tail, err := strconv.UnquoteChar(s[1:], '\'')
		if err != nil || tail != "'" {
			return Value{}, fmt.Errorf("bad character literal %s", s)
		}
		return Char(r), nil
	case s[0] == '"':
		t, err := strconv.Unquote(s)
		if err != nil {
			return Value{}, fmt.Errorf("bad text literal %s", s)
		}
		return Text(t), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("bad constant %q", s)
	}
	return Int(n), nil
}
