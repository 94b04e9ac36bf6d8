package bytecode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("lya.vm")

// DefaultMemorySize is the number of words in M when Config leaves it unset.
const DefaultMemorySize = 65536

// cancelCheckInterval is how many instructions run between context checks.
const cancelCheckInterval = 1024

// Fatal execution failures. A RuntimeError wraps exactly one of these.
var (
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrSegmentation    = errors.New("address outside memory")
	ErrUnresolvedLabel = errors.New("unresolved label")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrBadDisplay      = errors.New("bad display level")
	ErrBadString       = errors.New("bad string reference")
	ErrStringTooLong   = errors.New("string longer than memory")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInputExhausted  = errors.New("input exhausted")
	ErrUnknownOpcode   = errors.New("unknown opcode")
)

// RuntimeError reports a fatal condition raised while executing the
// instruction at PC.
type RuntimeError struct {
	PC  int
	Op  Opcode
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("lvm: %s at %d (%s)", e.Err, e.PC, e.Op)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Config controls the resources of a VM.
type Config struct {
	MemorySize int  // words in M; DefaultMemorySize when zero
	MaxSteps   int  // 0 means unlimited
	Trace      bool // log every instruction at debug level
}

// VM is the LYA virtual machine: a flat memory M used as operand stack
// and activation records, a display D, and the string pool H.
type VM struct {
	config Config

	M  []Value
	D  []int
	sp int
	pc int

	code   []Instruction
	labels map[int]int
	pool   []string // H, never written after Load
	steps  int

	in  *bufio.Reader
	out io.Writer
}

// NewVM creates a VM reading from stdin and writing to stdout.
func NewVM(config Config) *VM {
	return NewVMWithIO(config, os.Stdin, os.Stdout)
}

// NewVMWithIO creates a VM with explicit console streams.
func NewVMWithIO(config Config, in io.Reader, out io.Writer) *VM {
	if config.MemorySize <= 0 {
		config.MemorySize = DefaultMemorySize
	}
	return &VM{
		config: config,
		M:      make([]Value, config.MemorySize),
		D:      []int{0},
		sp:     -1,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// SP returns the current stack pointer.
func (vm *VM) SP() int {
	return vm.sp
}

// Word returns M[addr], or the zero word when addr is outside memory.
func (vm *VM) Word(addr int) Value {
	if addr < 0 || addr >= len(vm.M) {
		return Value{}
	}
	return vm.M[addr]
}

// Stack returns a copy of M[0..sp].
func (vm *VM) Stack() []Value {
	out := make([]Value, vm.sp+1)
	copy(out, vm.M[:vm.sp+1])
	return out
}

// Steps returns the number of instructions executed by the last Run.
func (vm *VM) Steps() int {
	return vm.steps
}

// Load performs pass 1: it records the position of every label. It
// also clears M and the display, so a VM can run several programs in turn.
func (vm *VM) Load(prog *Program) error {
	labels, err := prog.Labels()
	if err != nil {
		return &RuntimeError{PC: 0, Op: OpLbl, Err: err}
	}
	vm.code = prog.Code
	vm.labels = labels
	vm.pool = prog.Strings
	vm.pc = 0
	vm.steps = 0

	clear(vm.M)
	vm.D = append(vm.D[:0], 0)
	vm.sp = -1
	return nil
}

// Run loads prog and executes it until stp or the end of the code.
// It returns the final stack contents.
func (vm *VM) Run(ctx context.Context, prog *Program) ([]Value, error) {
	if err := vm.Load(prog); err != nil {
		return nil, err
	}
	if err := vm.execute(ctx); err != nil {
		return vm.Stack(), err
	}
	return vm.Stack(), nil
}

// execute is pass 2.
func (vm *VM) execute(ctx context.Context) error {
	for vm.pc < len(vm.code) {
		ins := vm.code[vm.pc]
		vm.steps++
		if vm.config.MaxSteps > 0 && vm.steps > vm.config.MaxSteps {
			return vm.fail(ins.Op, ErrStepLimit)
		}
		if vm.steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if vm.config.Trace {
			log.Debugf("[%04d] %-16s sp=%d", vm.pc, ins, vm.sp)
		}

		stop, err := vm.step(ins)
		if err != nil {
			return vm.fail(ins.Op, err)
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (vm *VM) fail(op Opcode, err error) error {
	var rt *RuntimeError
	if errors.As(err, &rt) {
		return err
	}
	return &RuntimeError{PC: vm.pc, Op: op, Err: err}
}

// step executes one instruction and advances pc.
func (vm *VM) step(ins Instruction) (bool, error) {
	next := vm.pc + 1

	switch ins.Op {
	// ============ Memory Access ============
	case OpNop, OpLbl:
		// Labels were resolved by Load

	case OpLdc:
		if err := vm.push(ins.K); err != nil {
			return false, err
		}

	case OpLdv:
		addr, err := vm.frameAddr(ins.A, ins.B)
		if err != nil {
			return false, err
		}
		v, err := vm.load(addr)
		if err != nil {
			return false, err
		}
		if err := vm.push(v); err != nil {
			return false, err
		}

	case OpLdr:
		addr, err := vm.frameAddr(ins.A, ins.B)
		if err != nil {
			return false, err
		}
		if err := vm.push(Int(int64(addr))); err != nil {
			return false, err
		}

	case OpStv:
		addr, err := vm.frameAddr(ins.A, ins.B)
		if err != nil {
			return false, err
		}
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if err := vm.store(addr, v); err != nil {
			return false, err
		}

	case OpLrv:
		addr, err := vm.frameAddr(ins.A, ins.B)
		if err != nil {
			return false, err
		}
		ref, err := vm.load(addr)
		if err != nil {
			return false, err
		}
		v, err := vm.load(int(ref.AsInt()))
		if err != nil {
			return false, err
		}
		if err := vm.push(v); err != nil {
			return false, err
		}

	case OpSrv:
		addr, err := vm.frameAddr(ins.A, ins.B)
		if err != nil {
			return false, err
		}
		ref, err := vm.load(addr)
		if err != nil {
			return false, err
		}
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if err := vm.store(int(ref.AsInt()), v); err != nil {
			return false, err
		}

	case OpAlc:
		if err := vm.grow(ins.A); err != nil {
			return false, err
		}

	case OpDlc:
		if err := vm.shrink(ins.A); err != nil {
			return false, err
		}

	case OpDup:
		if err := vm.need(1); err != nil {
			return false, err
		}
		if err := vm.push(vm.M[vm.sp]); err != nil {
			return false, err
		}

	// ============ Arithmetic ============
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		a, b, err := vm.operands()
		if err != nil {
			return false, err
		}
		x, y := a.AsInt(), b.AsInt()
		var r int64
		switch ins.Op {
		case OpAdd:
			r = x + y
		case OpSub:
			r = x - y
		case OpMul:
			r = x * y
		case OpDiv:
			if y == 0 {
				return false, ErrDivisionByZero
			}
			r = x / y
		case OpMod:
			if y == 0 {
				return false, ErrDivisionByZero
			}
			r = x % y
		}
		vm.M[vm.sp] = Int(r)

	case OpNeg:
		if err := vm.need(1); err != nil {
			return false, err
		}
		vm.M[vm.sp] = Int(-vm.M[vm.sp].AsInt())

	case OpAbs:
		if err := vm.need(1); err != nil {
			return false, err
		}
		n := vm.M[vm.sp].AsInt()
		if n < 0 {
			n = -n
		}
		vm.M[vm.sp] = Int(n)

	// ============ Logical and Relational ============
	case OpAnd, OpLor, OpLes, OpLeq, OpGrt, OpGre, OpEqu, OpNeq:
		a, b, err := vm.operands()
		if err != nil {
			return false, err
		}
		var r bool
		switch ins.Op {
		case OpAnd:
			r = a.Truthy() && b.Truthy()
		case OpLor:
			r = a.Truthy() || b.Truthy()
		case OpLes:
			r = a.AsInt() < b.AsInt()
		case OpLeq:
			r = a.AsInt() <= b.AsInt()
		case OpGrt:
			r = a.AsInt() > b.AsInt()
		case OpGre:
			r = a.AsInt() >= b.AsInt()
		case OpEqu:
			r = a.Equal(b)
		case OpNeq:
			r = !a.Equal(b)
		}
		vm.M[vm.sp] = Bool(r)

	case OpNot:
		if err := vm.need(1); err != nil {
			return false, err
		}
		vm.M[vm.sp] = Bool(!vm.M[vm.sp].Truthy())

	// ============ Conversions ============
	case OpAsc, OpNum, OpUpc, OpLwc:
		if err := vm.need(1); err != nil {
			return false, err
		}
		v := vm.M[vm.sp]
		switch ins.Op {
		case OpAsc:
			v = Char(rune(v.AsInt()))
		case OpNum:
			v = Int(v.AsInt())
		case OpUpc:
			v = Char(unicode.ToUpper(rune(v.AsInt())))
		case OpLwc:
			v = Char(unicode.ToLower(rune(v.AsInt())))
		}
		vm.M[vm.sp] = v

	// ============ Address Arithmetic ============
	case OpIdx:
		a, b, err := vm.operands()
		if err != nil {
			return false, err
		}
		vm.M[vm.sp] = Int(a.AsInt() + b.AsInt()*int64(ins.A))

	case OpChk:
		if err := vm.need(1); err != nil {
			return false, err
		}
		if i := vm.M[vm.sp].AsInt(); i < int64(ins.A) || i > int64(ins.B) {
			return false, fmt.Errorf("%w: %d not in %d:%d", ErrIndexOutOfRange, i, ins.A, ins.B)
		}

	case OpGrc:
		if err := vm.need(1); err != nil {
			return false, err
		}
		v, err := vm.load(int(vm.M[vm.sp].AsInt()))
		if err != nil {
			return false, err
		}
		vm.M[vm.sp] = v

	case OpLmv:
		if err := vm.need(1); err != nil {
			return false, err
		}
		k := ins.A
		src := int(vm.M[vm.sp].AsInt())
		if err := vm.checkRange(src, k); err != nil {
			return false, err
		}
		if vm.sp+k > len(vm.M) {
			return false, ErrStackOverflow
		}
		copy(vm.M[vm.sp:vm.sp+k], vm.M[src:src+k])
		vm.sp += k - 1

	case OpSmv:
		k := ins.A
		if err := vm.need(k + 1); err != nil {
			return false, err
		}
		dst := int(vm.M[vm.sp-k].AsInt())
		if err := vm.checkRange(dst, k); err != nil {
			return false, err
		}
		copy(vm.M[dst:dst+k], vm.M[vm.sp-k+1:vm.sp+1])
		vm.sp -= k + 1

	case OpSmr:
		k := ins.A
		if err := vm.need(2); err != nil {
			return false, err
		}
		dst := int(vm.M[vm.sp-1].AsInt())
		src := int(vm.M[vm.sp].AsInt())
		if err := vm.checkRange(dst, k); err != nil {
			return false, err
		}
		if err := vm.checkRange(src, k); err != nil {
			return false, err
		}
		copy(vm.M[dst:dst+k], vm.M[src:src+k])
		vm.sp -= 2

	// ============ Strings ============
	case OpSts:
		if ins.A < 0 || ins.A >= len(vm.pool) {
			return false, ErrBadString
		}
		adr, err := vm.pop()
		if err != nil {
			return false, err
		}
		if err := vm.writeString(int(adr.AsInt()), vm.pool[ins.A], ins.B); err != nil {
			return false, err
		}

	case OpLsc:
		if ins.A < 0 || ins.A >= len(vm.pool) {
			return false, ErrBadString
		}
		if err := vm.push(Int(int64(-(ins.A + 1)))); err != nil {
			return false, err
		}

	case OpScp:
		ref, err := vm.pop()
		if err != nil {
			return false, err
		}
		adr, err := vm.pop()
		if err != nil {
			return false, err
		}
		s, err := vm.str(ref)
		if err != nil {
			return false, err
		}
		if err := vm.writeString(int(adr.AsInt()), s, ins.A); err != nil {
			return false, err
		}

	case OpScat, OpSeq, OpSne:
		a, b, err := vm.operands()
		if err != nil {
			return false, err
		}
		x, err := vm.str(a)
		if err != nil {
			return false, err
		}
		y, err := vm.str(b)
		if err != nil {
			return false, err
		}
		switch ins.Op {
		case OpScat:
			// The result is a self-contained word; H stays as loaded.
			if utf8.RuneCountInString(x)+utf8.RuneCountInString(y) > len(vm.M) {
				return false, ErrStringTooLong
			}
			vm.M[vm.sp] = Text(x + y)
		case OpSeq:
			vm.M[vm.sp] = Bool(x == y)
		case OpSne:
			vm.M[vm.sp] = Bool(x != y)
		}

	// ============ Console I/O ============
	case OpRdv:
		line, err := vm.readLine()
		if err != nil {
			return false, err
		}
		if err := vm.push(CoerceInput(line)); err != nil {
			return false, err
		}

	case OpRds:
		adr, err := vm.pop()
		if err != nil {
			return false, err
		}
		line, err := vm.readLine()
		if err != nil {
			return false, err
		}
		if err := vm.writeString(int(adr.AsInt()), line, ins.A); err != nil {
			return false, err
		}

	case OpPrv:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		fmt.Fprint(vm.out, v.String())

	case OpPrt:
		k := ins.A
		if err := vm.need(k); err != nil {
			return false, err
		}
		parts := make([]string, k)
		for i, v := range vm.M[vm.sp-k+1 : vm.sp+1] {
			parts[i] = v.String()
		}
		fmt.Fprint(vm.out, strings.Join(parts, " "))
		vm.sp -= k

	case OpPrc:
		if ins.A < 0 || ins.A >= len(vm.pool) {
			return false, ErrBadString
		}
		fmt.Fprint(vm.out, vm.pool[ins.A])

	case OpPrs:
		ref, err := vm.pop()
		if err != nil {
			return false, err
		}
		s, err := vm.str(ref)
		if err != nil {
			return false, err
		}
		fmt.Fprint(vm.out, s)

	// ============ Control Flow ============
	case OpJmp:
		target, err := vm.label(ins.A)
		if err != nil {
			return false, err
		}
		next = target

	case OpJof:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if !v.Truthy() {
			target, err := vm.label(ins.A)
			if err != nil {
				return false, err
			}
			next = target
		}

	case OpCfu:
		target, err := vm.label(ins.A)
		if err != nil {
			return false, err
		}
		if err := vm.push(Int(int64(vm.pc + 1))); err != nil {
			return false, err
		}
		next = target

	case OpEnf:
		k := ins.A
		if k < 0 {
			return false, ErrBadDisplay
		}
		for len(vm.D) <= k {
			vm.D = append(vm.D, 0)
		}
		if err := vm.push(Int(int64(vm.D[k]))); err != nil {
			return false, err
		}
		vm.D[k] = vm.sp + 1

	case OpRet:
		k, n := ins.A, ins.B
		if k < 0 || k >= len(vm.D) {
			return false, ErrBadDisplay
		}
		if err := vm.need(2); err != nil {
			return false, err
		}
		vm.D[k] = int(vm.M[vm.sp].AsInt())
		next = int(vm.M[vm.sp-1].AsInt())
		if err := vm.shrink(n + 2); err != nil {
			return false, err
		}

	case OpStp:
		vm.pc = len(vm.code)
		return true, nil

	default:
		return false, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, byte(ins.Op))
	}

	vm.pc = next
	return false, nil
}

// Stack helpers

func (vm *VM) push(v Value) error {
	if vm.sp+1 >= len(vm.M) {
		return ErrStackOverflow
	}
	vm.sp++
	vm.M[vm.sp] = v
	return nil
}

func (vm *VM) pop() (Value, error) {
	if vm.sp < 0 {
		return Value{}, ErrStackUnderflow
	}
	v := vm.M[vm.sp]
	vm.sp--
	return v, nil
}

// need checks that the stack holds at least n words.
func (vm *VM) need(n int) error {
	if vm.sp+1 < n {
		return ErrStackUnderflow
	}
	return nil
}

// operands pops the right operand of a binary instruction and returns
// both, leaving sp on the left operand's slot.
func (vm *VM) operands() (Value, Value, error) {
	if err := vm.need(2); err != nil {
		return Value{}, Value{}, err
	}
	b := vm.M[vm.sp]
	vm.sp--
	return vm.M[vm.sp], b, nil
}

func (vm *VM) grow(n int) error {
	if n < 0 {
		return vm.shrink(-n)
	}
	if vm.sp+n >= len(vm.M) {
		return ErrStackOverflow
	}
	for i := 1; i <= n; i++ {
		vm.M[vm.sp+i] = Value{}
	}
	vm.sp += n
	return nil
}

func (vm *VM) shrink(n int) error {
	if vm.sp-n < -1 {
		return ErrStackUnderflow
	}
	vm.sp -= n
	return nil
}

// Memory helpers

func (vm *VM) frameAddr(level, offset int) (int, error) {
	if level < 0 || level >= len(vm.D) {
		return 0, ErrBadDisplay
	}
	return vm.D[level] + offset, nil
}

func (vm *VM) load(addr int) (Value, error) {
	if addr < 0 || addr >= len(vm.M) {
		return Value{}, ErrSegmentation
	}
	return vm.M[addr], nil
}

func (vm *VM) store(addr int, v Value) error {
	if addr < 0 || addr >= len(vm.M) {
		return ErrSegmentation
	}
	vm.M[addr] = v
	return nil
}

func (vm *VM) checkRange(addr, k int) error {
	if addr < 0 || k < 0 || addr+k > len(vm.M) {
		return ErrSegmentation
	}
	return nil
}

func (vm *VM) label(id int) (int, error) {
	pc, ok := vm.labels[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnresolvedLabel, id)
	}
	return pc, nil
}

// str resolves a string reference: a negative word -(k+1) names pool
// entry k, a non-negative word is the address of a length-prefixed block,
// and a text word (console input or a concatenation) stands for itself.
func (vm *VM) str(ref Value) (string, error) {
	if ref.Kind == KindText {
		return ref.Text, nil
	}
	n := int(ref.Int)
	if n < 0 {
		k := -n - 1
		if k >= len(vm.pool) {
			return "", ErrBadString
		}
		return vm.pool[k], nil
	}
	length, err := vm.load(n)
	if err != nil {
		return "", err
	}
	l := int(length.AsInt())
	if err := vm.checkRange(n+1, l); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range vm.M[n+1 : n+1+l] {
		sb.WriteRune(rune(c.AsInt()))
	}
	return sb.String(), nil
}

// writeString stores s as a length-prefixed block at adr, truncated to
// capacity characters unless capacity is negative.
func (vm *VM) writeString(adr int, s string, capacity int) error {
	runes := []rune(s)
	if capacity >= 0 && len(runes) > capacity {
		runes = runes[:capacity]
	}
	if err := vm.checkRange(adr, len(runes)+1); err != nil {
		return err
	}
	vm.M[adr] = Int(int64(len(runes)))
	for i, r := range runes {
		vm.M[adr+1+i] = Char(r)
	}
	return nil
}

func (vm *VM) readLine() (string, error) {
	line, err := vm.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrInputExhausted
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
