package cpu

import (
	"iter"
	"strconv"
	"strings"

	stdio "io"

	"github.com/ezrec/intvm/io"
)

// Program is a machine's initial memory image.
type Program []int64

// ParseProgram reads a program image of comma or whitespace separated
// decimal words.
func ParseProgram(input stdio.Reader) (prog Program, err error) {
	tape := &io.Tape{Mode: io.TAPE_MODE_NUMBER, Input: input}
	for word := range tape.Receive() {
		prog = append(prog, word)
	}

	err = tape.Err()
	if err != nil {
		return
	}

	if len(prog) == 0 {
		err = ErrProgramEmpty
		return
	}

	return
}

// String returns the program in its comma separated text form.
func (prog Program) String() string {
	words := make([]string, len(prog))
	for n, word := range prog {
		words[n] = strconv.FormatInt(word, 10)
	}
	return strings.Join(words, ",")
}

// Opcode represents a line of assembled code with its source location and
// generated words.
type Opcode struct {
	LineNo    int
	Ip        int
	Words     []string
	Codes     []int64
	LinkLabel []string // Label to link, per code word; empty if none.
}

// Listing is an assembled program with source line information.
type Listing struct {
	Opcodes []Opcode
}

// Debug locates the opcode containing ip.
type Debug struct {
	*Opcode
	Index int
}

// Debug returns the source opcode that generated the word at ip.
func (prog *Listing) Debug(ip int) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if ip >= op.Ip && ip < op.Ip+len(op.Codes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  ip - op.Ip,
			}
			break
		}
	}

	return
}

// LineNo returns the source line of the word at ip, or 0 if unknown.
func (prog *Listing) LineNo(ip int) int {
	dbg := prog.Debug(ip)
	if dbg.Opcode == nil {
		return 0
	}
	return dbg.LineNo
}

// Binary returns the program image.
func (prog *Listing) Binary() (bin Program) {
	for _, code := range prog.Codes() {
		bin = append(bin, code)
	}

	return
}

// Codes iterates over every generated word and its address.
func (prog *Listing) Codes() iter.Seq2[int, int64] {
	return func(yield func(ip int, code int64) bool) {
		for _, op := range prog.Opcodes {
			for n, code := range op.Codes {
				if !yield(op.Ip+n, code) {
					return
				}
			}
		}
	}
}
