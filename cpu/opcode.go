package cpu

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Op is an operation selector, the low two decimal digits of an
// instruction word.
type Op int

const (
	OP_ADD = Op(1)  // add
	OP_MUL = Op(2)  // mul
	OP_IN  = Op(3)  // in
	OP_OUT = Op(4)  // out
	OP_JNZ = Op(5)  // jnz
	OP_JZ  = Op(6)  // jz
	OP_LT  = Op(7)  // lt
	OP_EQ  = Op(8)  // eq
	OP_ARB = Op(9)  // arb
	OP_HLT = Op(99) // hlt
)

// opInfo describes the operand layout of an Op.
type opInfo struct {
	name     string
	operands int
	writes   int // Index of the destination operand, or -1.
}

var _op_info = map[Op]opInfo{
	OP_ADD: {"add", 3, 2},
	OP_MUL: {"mul", 3, 2},
	OP_IN:  {"in", 1, 0},
	OP_OUT: {"out", 1, -1},
	OP_JNZ: {"jnz", 2, -1},
	OP_JZ:  {"jz", 2, -1},
	OP_LT:  {"lt", 3, 2},
	OP_EQ:  {"eq", 3, 2},
	OP_ARB: {"arb", 1, -1},
	OP_HLT: {"hlt", 0, -1},
}

// Valid returns true if the Op is defined.
func (op Op) Valid() bool {
	_, ok := _op_info[op]
	return ok
}

// Operands returns the number of operand words following the opcode word.
func (op Op) Operands() int {
	return _op_info[op].operands
}

// Writes returns the index of the operand used as a write destination,
// or -1 if the Op does not write memory.
func (op Op) Writes() int {
	info, ok := _op_info[op]
	if !ok {
		return -1
	}
	return info.writes
}

// String returns the mnemonic of the Op.
func (op Op) String() string {
	info, ok := _op_info[op]
	if !ok {
		return "op(" + strconv.Itoa(int(op)) + ")"
	}
	return info.name
}

// Mode is a parameter addressing mode.
type Mode int

//go:generate go tool stringer -linecomment -type=Mode
const (
	MODE_POSITION  = Mode(0) // position
	MODE_IMMEDIATE = Mode(1) // immediate
	MODE_RELATIVE  = Mode(2) // relative
)

// prefix is the assembler operand prefix for the mode.
func (mode Mode) prefix() string {
	switch mode {
	case MODE_IMMEDIATE:
		return "#"
	case MODE_RELATIVE:
		return "@"
	}
	return ""
}

// Instruction is a decoded instruction word.
type Instruction struct {
	Word  int64   // Raw instruction word.
	Op    Op      // Operation.
	Modes [3]Mode // Operand modes, first operand first.
}

// Decode decodes an instruction word.
//
//	word = MMM_OO
//	       ||| ++- opcode
//	       ||+---- mode of operand 1
//	       |+----- mode of operand 2
//	       +------ mode of operand 3
//
// Missing mode digits are MODE_POSITION.
func Decode(word int64) (ins Instruction, err error) {
	ins.Word = word

	if word < 0 {
		err = ErrOpcodeInvalid
		return
	}

	ins.Op = Op(word % 100)
	if !ins.Op.Valid() {
		err = ErrOpcodeInvalid
		return
	}

	digits := word / 100
	for n := range ins.Modes {
		mode := Mode(digits % 10)
		if mode > MODE_RELATIVE {
			err = ErrModeInvalid
			return
		}
		ins.Modes[n] = mode
		digits /= 10
	}

	if digits != 0 {
		err = ErrModeInvalid
		return
	}

	return
}

// MakeWord encodes an instruction word from an Op and its operand modes.
// Modes not given are MODE_POSITION.
func MakeWord(op Op, modes ...Mode) (word int64) {
	scale := int64(100)
	word = int64(op)
	for _, mode := range modes {
		word += int64(mode) * scale
		scale *= 10
	}
	return
}

// Size returns the number of words used by the instruction.
func (ins Instruction) Size() int {
	return 1 + ins.Op.Operands()
}

// Format returns the assembly language representation of the instruction,
// given the operand words that follow it.
func (ins Instruction) Format(args []int64) string {
	words := []string{ins.Op.String()}
	for n := range ins.Op.Operands() {
		if n >= len(args) {
			words = append(words, "?")
			continue
		}
		words = append(words, ins.Modes[n].prefix()+strconv.FormatInt(args[n], 10))
	}

	return strings.Join(words, " ")
}

// String returns the decoded fields of the instruction.
func (ins Instruction) String() string {
	modes := make([]string, ins.Op.Operands())
	for n := range modes {
		modes[n] = ins.Modes[n].String()
	}
	return fmt.Sprintf("%v(%v)", ins.Op, strings.Join(modes, ","))
}

// Disassemble walks a program image, yielding the address and assembly
// text of each instruction. Words that do not decode are yielded as data.
func Disassemble(program Program) iter.Seq2[int, string] {
	return func(yield func(ip int, text string) bool) {
		for ip := 0; ip < len(program); {
			ins, err := Decode(program[ip])
			if err != nil || ip+ins.Size() > len(program) {
				if !yield(ip, ".data "+strconv.FormatInt(program[ip], 10)) {
					return
				}
				ip++
				continue
			}

			if !yield(ip, ins.Format(program[ip+1:ip+ins.Size()])) {
				return
			}
			ip += ins.Size()
		}
	}
}
