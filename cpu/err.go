package cpu

import (
	"errors"

	"github.com/ezrec/intvm/translate"
)

var f = translate.From

var (
	// Execution faults
	ErrOpcodeInvalid   = errors.New(f("opcode invalid"))
	ErrModeInvalid     = errors.New(f("mode invalid"))
	ErrAddressNegative = errors.New(f("negative address"))
	ErrWriteImmediate  = errors.New(f("immediate write target"))

	// Caller errors
	ErrOutputEmpty = errors.New(f("output empty"))

	// Program errors
	ErrProgramEmpty = errors.New(f("program empty"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrLabelInvalid       = errors.New(f("label invalid"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeMissingArgs  = errors.New(f("missing arguments"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrMacroRecursion     = errors.New(f(".macro expansion too deep"))
)

// ErrFault is a fatal execution error, located at the faulting
// instruction.
type ErrFault struct {
	Ip   int64 // Instruction pointer of the faulting instruction.
	Word int64 // Raw word at Ip.
	Err  error
}

func (err *ErrFault) Error() string {
	return f("fault at ip %v word %v: %v", err.Ip, err.Word, err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}

// ErrAddress is a fault caused by an invalid memory address.
type ErrAddress int64

func (ea ErrAddress) Error() string {
	return f("address %v", int64(ea))
}

func (ea ErrAddress) Unwrap() error {
	return ErrAddressNegative
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrMacro locates an error inside a macro expansion.
type ErrMacro struct {
	Macro  string
	LineNo int // Line of the macro body.
	Err    error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.LineNo, err.Err)
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}
