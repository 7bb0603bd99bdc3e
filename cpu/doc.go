// Package cpu implements the integer machine and its assembler.
//
// The machine is a stored-program interpreter over a zero-initialized,
// unbounded memory of signed 64-bit words. Each instruction word holds a
// two digit opcode and up to three parameter mode digits selecting
// position, immediate, or relative addressing. Execution suspends, rather
// than blocks, when an input instruction finds the input queue empty; the
// caller appends input and calls Run again to resume at the same
// instruction.
//
// The assembler provides a small mnemonic language for the instruction
// set, supporting labels, equates, and compile-time expression evaluation.
package cpu
