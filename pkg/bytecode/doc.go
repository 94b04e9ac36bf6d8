// Package bytecode implements the LYA Virtual Machine (LVM): its
// instruction set, the Program container, a disassembler and assembler,
// a CBOR wire format, and the interpreter itself.
//
// # Architecture Overview
//
//   - Opcodes: about fifty instructions with zero to two integer operands,
//     grouped by category (memory, arithmetic, logic, conversions, address
//     arithmetic, strings, console I/O, control flow).
//
//   - Program: the instruction list P, the string-constant pool H, and an
//     optional per-instruction source line table. Programs serialize to
//     "LVM1"-prefixed canonical CBOR.
//
//   - VM: a flat memory M that is both operand stack and activation record
//     storage, a stack pointer sp, and a display D holding one frame base
//     per lexical level.
//
// # Execution
//
// Running a program takes two passes. The first records the position of
// every lbl instruction; the second executes from pc 0 until stp or the
// end of the code, resolving jmp, jof and cfu targets through the label
// table.
//
// # Calling Convention
//
// A call site reserves the result slot with alc 1, pushes its arguments
// and executes cfu, which pushes the return address. The callee's enf k
// saves D[k] and points it just past the saved value, so parameter p of n
// lives at offset p-(n+2) and the result slot at -(n+3). ret k n restores
// D[k], jumps back and drops the n arguments plus the two linkage words,
// leaving the result on top of the stack.
//
// # Strings
//
// A string variable is a block of capacity+1 words: the length followed
// by one character per word. On the operand stack a string is a single
// reference word. Non-negative references are block addresses; -(k+1)
// refers to pool entry k. A concatenation yields a text word holding the
// result itself, so H never changes once loaded.
//
// # Failures
//
// Conditions such as stack overflow, out-of-range addresses or indexes,
// division by zero and unknown labels stop execution with a *RuntimeError wrapping one
// of the Err sentinels.
package bytecode
