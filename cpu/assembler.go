// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	stdio "io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"
)

const (
	MACRO_DEPTH_LIMIT = 16 // Maximum nesting of macro invocations.
)

// Macro is a named block of source lines, expanded where it is invoked.
type Macro struct {
	LineNo int      // Line number of the first body line.
	Args   []string // Argument names.
	Lines  []string // Body lines, comments removed.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

var (
	_op_by_name = map[string]Op{}

	charRe  = regexp.MustCompile(`'\\?[^']'`)
	parenRe = regexp.MustCompile(`\$\([^\$]*\)`)
	labelRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	tokenRe = regexp.MustCompile(`'\\?[^']'|\??[A-Za-z_][A-Za-z0-9_.]*`)
)

func init() {
	for op, info := range _op_info {
		_op_by_name[info.name] = op
	}
}

// Assembler is a two pass assembler for the machine's instruction set.
//
// Each line holds an optional label, then an instruction or directive:
//
//	loop:   in @1             ; relative destination
//	        add #1, x, x      ; immediate, positional, positional
//	        jnz #1, #loop
//	x:      .data 0
//	        .equ LIMIT $(10*10)
//
// Labels may be referenced before they are defined.
//
// Macros take named arguments, substituted as words in the body. Words
// prefixed with '?' are local to each expansion:
//
//	.macro  count N
//	?loop:  add #-1, N, N
//	        jnz N, #?loop
//	.endm
type Assembler struct {
	Logger *zap.Logger // If set, logs the assembler actions.
	Opcode []Opcode    // List of generated opcodes.

	predefine  map[string]string   // Predefines
	Label      map[string]int      // Map of labels to addresses.
	Equate     map[string]string   // Map of equates.
	Macro      map[string](*Macro) // Map of macros.
	expansions int                 // Macro expansions so far.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

func (asm *Assembler) logger() *zap.Logger {
	if asm.Logger == nil {
		return zap.NewNop()
	}
	return asm.Logger
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	return
}

// operand decodes an operand word into its mode, value, and a label to
// add to the value at link time.
func (asm *Assembler) operand(word string) (mode Mode, value int64, label string, err error) {
	switch word[0] {
	case '#':
		mode = MODE_IMMEDIATE
		word = word[1:]
	case '@':
		mode = MODE_RELATIVE
		word = word[1:]
	}

	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}

	equate, ok := asm.Equate[word]
	if ok {
		word = equate
	}

	value, err = asm.valueOf(word)
	if err == nil {
		return
	}

	// label, label+offset, or label-offset
	name, offset := word, ""
	if n := strings.LastIndexAny(word, "+-"); n > 0 {
		name, offset = word[:n], word[n:]
	}
	if !labelRe.MatchString(name) {
		return
	}

	label = name
	value = 0
	err = nil
	if len(offset) > 0 {
		value, err = asm.valueOf(offset)
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value64 int64
		value64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates.
			continue
		}
		pred[key] = starlark.MakeInt64(value64)
	}
	for key, ip := range asm.Label {
		pred[key] = starlark.MakeInt(ip)
	}
	err = nil

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// parseLine splits a single line into words, handling labels and
// directives that do not generate code.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = strconv.Itoa(lineno)

	// Do 'x' evaluations
	line = charRe.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "t":
				str = "\t"
			case "'":
				str = "'"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return strconv.Itoa(int(str[0]))
	})

	// Do $() evaluations
	line = parenRe.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return strconv.FormatInt(value, 10)
	})
	if err != nil {
		return
	}

	words = strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = nil
		return
	}

	for len(words) > 0 && strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		if !labelRe.MatchString(label) {
			err = ErrLabelInvalid
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		asm.Label[label] = asm.currentIp()
		words = words[1:]
	}

	return
}

// parseWords generates the code for an instruction or .data directive.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	if len(words) == 0 {
		return
	}

	op := Opcode{
		LineNo: lineno,
		Ip:     asm.currentIp(),
		Words:  words,
	}

	link := false
	add := func(code int64, label string) {
		op.Codes = append(op.Codes, code)
		op.LinkLabel = append(op.LinkLabel, label)
		if len(label) > 0 {
			link = true
		}
	}

	if words[0] == ".data" {
		if len(words) < 2 {
			err = ErrOpcodeMissingArgs
			return
		}
		for _, word := range words[1:] {
			var mode Mode
			var value int64
			var label string
			mode, value, label, err = asm.operand(word)
			if err != nil {
				return
			}
			if mode != MODE_POSITION {
				err = ErrInstructionInvalid
				return
			}
			add(value, label)
		}
	} else {
		code, ok := _op_by_name[words[0]]
		if !ok {
			err = ErrInstructionInvalid
			return
		}

		args := words[1:]
		if len(args) < code.Operands() {
			err = ErrOpcodeMissingArgs
			return
		}
		if len(args) > code.Operands() {
			err = ErrOpcodeExtraArgs
			return
		}

		modes := make([]Mode, len(args))
		add(0, "")
		for n, arg := range args {
			var value int64
			var label string
			modes[n], value, label, err = asm.operand(arg)
			if err != nil {
				return
			}
			if n == code.Writes() && modes[n] == MODE_IMMEDIATE {
				err = ErrWriteImmediate
				return
			}
			add(value, label)
		}
		op.Codes[0] = MakeWord(code, modes...)
	}

	if !link {
		op.LinkLabel = nil
	}

	asm.Opcode = append(asm.Opcode, op)

	return
}

// assemble generates the code for a single line, expanding a macro
// invocation.
func (asm *Assembler) assemble(line string, lineno int, depth int) (err error) {
	words, err := asm.parseLine(line, lineno)
	if err != nil {
		return
	}

	if len(words) > 0 {
		macro, ok := asm.Macro[words[0]]
		if ok {
			return asm.expand(words[0], macro, words[1:], depth+1)
		}
	}

	return asm.parseWords(words, lineno)
}

// expand assembles the body of a macro with its arguments substituted.
func (asm *Assembler) expand(name string, macro *Macro, args []string, depth int) (err error) {
	if depth > MACRO_DEPTH_LIMIT {
		err = ErrMacroRecursion
		return
	}

	if len(args) != len(macro.Args) {
		err = ErrMacroSyntax
		return
	}

	asm.expansions++
	local := fmt.Sprintf("%v_%v_", name, asm.expansions)

	bind := make(map[string]string, len(args))
	for n, arg := range macro.Args {
		bind[arg] = args[n]
	}

	asm.logger().Debug("expand", zap.String("macro", name), zap.Strings("args", args))

	for n, body := range macro.Lines {
		lineno := macro.LineNo + n

		line := tokenRe.ReplaceAllStringFunc(body, func(word string) string {
			switch word[0] {
			case '\'':
				return word
			case '?':
				return local + word[1:]
			}
			value, ok := bind[word]
			if ok {
				return value
			}
			return word
		})

		err = asm.assemble(line, lineno, depth)
		if err != nil {
			err = ErrMacro{Macro: name, LineNo: lineno, Err: err}
			return
		}
	}

	return
}

// define starts a macro definition from a .macro line.
func (asm *Assembler) define(words []string, lineno int) (macro *Macro, err error) {
	if len(words) < 2 || !labelRe.MatchString(words[1]) {
		err = ErrMacroSyntax
		return
	}

	name := words[1]
	_, reserved := _op_by_name[name]
	if reserved {
		err = ErrMacroSyntax
		return
	}

	_, ok := asm.Macro[name]
	if ok {
		err = ErrMacroDuplicate
		return
	}

	macro = &Macro{
		LineNo: lineno + 1,
	}
	for _, arg := range words[2:] {
		if !labelRe.MatchString(arg) {
			err = ErrMacroSyntax
			return
		}
		macro.Args = append(macro.Args, arg)
	}

	asm.Macro[name] = macro

	return
}

// currentIp gets the current Ip
func (asm *Assembler) currentIp() int {
	if len(asm.Opcode) == 0 {
		return 0
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Ip + len(last.Codes)
}

// Parse parses an input stream into a Listing.
func (asm *Assembler) Parse(input stdio.Reader) (prog *Listing, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	logger := asm.logger()

	asm.Label = make(map[string]int)
	asm.Opcode = asm.Opcode[:0]
	asm.Macro = make(map[string](*Macro))
	asm.expansions = 0
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		logger.Debug("parse", zap.Int("lineno", lineno), zap.String("text", text))

		line, _, _ = strings.Cut(text, ";")
		line = strings.TrimSpace(line)

		words := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			macro, err = asm.define(words, lineno)
			if err != nil {
				return
			}
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		err = asm.assemble(line, lineno, 0)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		for index, label := range op.LinkLabel {
			if len(label) == 0 {
				continue
			}
			ip, ok := asm.Label[label]
			if !ok {
				lineno = op.LineNo
				line = strings.Join(op.Words, " ")
				err = ErrLabelMissing(label)
				return
			}
			op.Codes[index] += int64(ip)
		}
	}

	prog = &Listing{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}
