package bytecode

import "fmt"

// Opcode represents an LVM instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Memory access (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpLdc Opcode = 0x01 // sp++; M[sp] = k
	OpLdv Opcode = 0x02 // sp++; M[sp] = M[D[i]+j]
	OpLdr Opcode = 0x03 // sp++; M[sp] = D[i]+j
	OpStv Opcode = 0x04 // M[D[i]+j] = M[sp]; sp--
	OpLrv Opcode = 0x05 // sp++; M[sp] = M[M[D[i]+j]]
	OpSrv Opcode = 0x06 // M[M[D[i]+j]] = M[sp]; sp--
	OpAlc Opcode = 0x07 // sp += n
	OpDlc Opcode = 0x08 // sp -= n
	OpDup Opcode = 0x09 // sp++; M[sp] = M[sp-1]

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd Opcode = 0x10 // M[sp-1] = M[sp-1] + M[sp]; sp--
	OpSub Opcode = 0x11 // M[sp-1] = M[sp-1] - M[sp]; sp--
	OpMul Opcode = 0x12 // M[sp-1] = M[sp-1] * M[sp]; sp--
	OpDiv Opcode = 0x13 // M[sp-1] = M[sp-1] / M[sp]; sp--
	OpMod Opcode = 0x14 // M[sp-1] = M[sp-1] % M[sp]; sp--
	OpNeg Opcode = 0x15 // M[sp] = -M[sp]
	OpAbs Opcode = 0x16 // M[sp] = |M[sp]|

	// ========================================================================
	// Logical and relational (0x20-0x2F)
	// ========================================================================

	OpAnd Opcode = 0x20 // M[sp-1] = M[sp-1] and M[sp]; sp--
	OpLor Opcode = 0x21 // M[sp-1] = M[sp-1] or M[sp]; sp--
	OpNot Opcode = 0x22 // M[sp] = not M[sp]
	OpLes Opcode = 0x23 // M[sp-1] = M[sp-1] < M[sp]; sp--
	OpLeq Opcode = 0x24 // M[sp-1] = M[sp-1] <= M[sp]; sp--
	OpGrt Opcode = 0x25 // M[sp-1] = M[sp-1] > M[sp]; sp--
	OpGre Opcode = 0x26 // M[sp-1] = M[sp-1] >= M[sp]; sp--
	OpEqu Opcode = 0x27 // M[sp-1] = M[sp-1] == M[sp]; sp--
	OpNeq Opcode = 0x28 // M[sp-1] = M[sp-1] != M[sp]; sp--

	// ========================================================================
	// Conversions (0x30-0x3F)
	// ========================================================================

	OpAsc Opcode = 0x30 // M[sp] = char(M[sp])
	OpNum Opcode = 0x31 // M[sp] = int(M[sp])
	OpUpc Opcode = 0x32 // M[sp] = upper(M[sp])
	OpLwc Opcode = 0x33 // M[sp] = lower(M[sp])

	// ========================================================================
	// Address arithmetic and block moves (0x40-0x4F)
	// ========================================================================

	OpIdx Opcode = 0x40 // M[sp-1] = M[sp-1] + M[sp]*k; sp--
	OpGrc Opcode = 0x41 // M[sp] = M[M[sp]]
	OpLmv Opcode = 0x42 // t = M[sp]; M[sp:sp+k] = M[t:t+k]; sp += k-1
	OpSmv Opcode = 0x43 // t = M[sp-k]; M[t:t+k] = M[sp-k+1:sp+1]; sp -= k+1
	OpSmr Opcode = 0x44 // t1 = M[sp-1]; t2 = M[sp]; M[t1:t1+k] = M[t2:t2+k]; sp -= 2
	OpChk Opcode = 0x45 // fail unless lo <= M[sp] <= hi

	// ========================================================================
	// Strings (0x50-0x5F)
	// ========================================================================

	OpSts  Opcode = 0x50 // adr = M[sp]; copy H[k] into block at adr, capacity n; sp--
	OpLsc  Opcode = 0x51 // sp++; M[sp] = ref(H[k])
	OpScp  Opcode = 0x52 // copy string M[sp] into block at M[sp-1], capacity n; sp -= 2
	OpScat Opcode = 0x53 // M[sp-1] = ref(str(M[sp-1]) + str(M[sp])); sp--
	OpSeq  Opcode = 0x54 // M[sp-1] = str(M[sp-1]) == str(M[sp]); sp--
	OpSne  Opcode = 0x55 // M[sp-1] = str(M[sp-1]) != str(M[sp]); sp--

	// ========================================================================
	// Console I/O (0x60-0x6F)
	// ========================================================================

	OpRdv Opcode = 0x60 // sp++; M[sp] = input()
	OpRds Opcode = 0x61 // adr = M[sp]; M[adr] = len(line); M[adr+1:] = line; sp--
	OpPrv Opcode = 0x62 // print(M[sp]); sp--
	OpPrt Opcode = 0x63 // print(M[sp-k+1:sp+1]); sp -= k
	OpPrc Opcode = 0x64 // print(H[i])
	OpPrs Opcode = 0x65 // print(str(M[sp])); sp--

	// ========================================================================
	// Control flow (0x70-0x7F)
	// ========================================================================

	OpLbl Opcode = 0x70 // Define label i (resolved before execution)
	OpJmp Opcode = 0x71 // pc = label(p)
	OpJof Opcode = 0x72 // if not M[sp]: pc = label(p); sp--
	OpCfu Opcode = 0x73 // sp++; M[sp] = pc+1; pc = label(p)
	OpEnf Opcode = 0x74 // sp++; M[sp] = D[k]; D[k] = sp+1
	OpRet Opcode = 0x75 // D[k] = M[sp]; pc = M[sp-1]; sp -= n+2
	OpStp Opcode = 0x76 // Stop execution
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name     string // LVM mnemonic
	Operands int    // Number of operands (0-2)
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Memory access
	OpNop: {"nop", 0},
	OpLdc: {"ldc", 1},
	OpLdv: {"ldv", 2},
	OpLdr: {"ldr", 2},
	OpStv: {"stv", 2},
	OpLrv: {"lrv", 2},
	OpSrv: {"srv", 2},
	OpAlc: {"alc", 1},
	OpDlc: {"dlc", 1},
	OpDup: {"dup", 0},

	// Arithmetic
	OpAdd: {"add", 0},
	OpSub: {"sub", 0},
	OpMul: {"mul", 0},
	OpDiv: {"div", 0},
	OpMod: {"mod", 0},
	OpNeg: {"neg", 0},
	OpAbs: {"abs", 0},

	// Logical and relational
	OpAnd: {"and", 0},
	OpLor: {"lor", 0},
	OpNot: {"not", 0},
	OpLes: {"les", 0},
	OpLeq: {"leq", 0},
	OpGrt: {"grt", 0},
	OpGre: {"gre", 0},
	OpEqu: {"equ", 0},
	OpNeq: {"neq", 0},

	// Conversions
	OpAsc: {"asc", 0},
	OpNum: {"num", 0},
	OpUpc: {"upc", 0},
	OpLwc: {"lwc", 0},

	// Address arithmetic
	OpIdx: {"idx", 1},
	OpGrc: {"grc", 0},
	OpLmv: {"lmv", 1},
	OpSmv: {"smv", 1},
	OpSmr: {"smr", 1},
	OpChk: {"chk", 2},

	// Strings
	OpSts:  {"sts", 2},
	OpLsc:  {"lsc", 1},
	OpScp:  {"scp", 1},
	OpScat: {"scat", 0},
	OpSeq:  {"seq", 0},
	OpSne:  {"sne", 0},

	// Console I/O
	OpRdv: {"rdv", 0},
	OpRds: {"rds", 1},
	OpPrv: {"prv", 0},
	OpPrt: {"prt", 1},
	OpPrc: {"prc", 1},
	OpPrs: {"prs", 0},

	// Control flow
	OpLbl: {"lbl", 1},
	OpJmp: {"jmp", 1},
	OpJof: {"jof", 1},
	OpCfu: {"cfu", 1},
	OpEnf: {"enf", 1},
	OpRet: {"ret", 2},
	OpStp: {"stp", 0},
}

// opcodesByName is the reverse of opcodeInfoTable, used by the assembler.
var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operands returns the number of operands this opcode takes.
func (op Opcode) Operands() int {
	return GetOpcodeInfo(op).Operands
}

// IsJump returns true if this opcode transfers control to a label.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJof || op == OpCfu
}

// IsPrint returns true if this opcode writes to the console.
func (op Opcode) IsPrint() bool {
	return op >= OpPrv && op <= OpPrs
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
