package cpu

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ezrec/intvm/io"
)

// State is the execution state of a Machine.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_RUNNING = State(0) // running
	STATE_WAITING = State(1) // waiting
	STATE_HALTED  = State(2) // halted
	STATE_FAULTED = State(3) // faulted
)

// Machine is the execution context for a single loaded program.
type Machine struct {
	ip    int64 // Current instruction pointer.
	base  int64 // Relative base.
	state State
	fault error // Sticky fault, set in STATE_FAULTED.
	ticks int   // Executed instruction counter.

	memory *Memory
	input  *io.Queue
	output *io.Queue

	logger *zap.Logger
}

// Option configures a new Machine.
type Option func(m *Machine)

// WithInput seeds the input queue.
func WithInput(values ...int64) Option {
	return func(m *Machine) {
		m.input.Push(values...)
	}
}

// WithLogger sets the instruction trace logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// NewMachine creates a Machine with a private copy of program in memory.
func NewMachine(program Program, opts ...Option) (m *Machine) {
	m = &Machine{
		memory: NewMemory(program),
		input:  io.NewQueue(),
		output: io.NewQueue(),
		logger: zap.L(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.Named("cpu")
	m.state = m.initialState()

	return
}

// Load creates a Machine for program with initial inputs.
func Load(program Program, inputs ...int64) *Machine {
	return NewMachine(program, WithInput(inputs...))
}

// initialState is STATE_WAITING if the first instruction would block on
// input, STATE_RUNNING otherwise. An input with an immediate destination
// never waits, so the first Run faults on it.
func (m *Machine) initialState() State {
	word, _ := m.memory.Read(m.ip)
	ins, err := Decode(word)
	if err != nil || ins.Op != OP_IN || !m.input.Empty() {
		return STATE_RUNNING
	}
	if ins.Modes[ins.Op.Writes()] == MODE_IMMEDIATE {
		return STATE_RUNNING
	}
	return STATE_WAITING
}

// State returns the current execution state.
func (m *Machine) State() State {
	return m.state
}

// Fault returns the fault that stopped the machine, if any.
func (m *Machine) Fault() error {
	return m.fault
}

// Ip returns the current instruction pointer.
func (m *Machine) Ip() int64 {
	return m.ip
}

// RelativeBase returns the current relative base.
func (m *Machine) RelativeBase() int64 {
	return m.base
}

// Ticks returns the number of instructions executed.
func (m *Machine) Ticks() int {
	return m.ticks
}

// AddInput appends values to the back of the input queue.
func (m *Machine) AddInput(values ...int64) {
	m.input.Push(values...)
}

// InputLen returns the number of unconsumed inputs.
func (m *Machine) InputLen() int {
	return m.input.Len()
}

// TakeOutput removes and returns the oldest output.
// Returns ErrOutputEmpty if nothing has been output.
func (m *Machine) TakeOutput() (value int64, err error) {
	value, ok := m.output.Pop()
	if !ok {
		err = ErrOutputEmpty
	}
	return
}

// DrainOutput removes and returns all pending outputs, oldest first.
func (m *Machine) DrainOutput() []int64 {
	return m.output.Drain()
}

// OutputLen returns the number of pending outputs.
func (m *Machine) OutputLen() int {
	return m.output.Len()
}

// MemoryAt returns the word at addr without affecting execution.
func (m *Machine) MemoryAt(addr int64) (value int64, err error) {
	return m.memory.Read(addr)
}

// Poke writes a word to memory. It is intended for patching a program
// before its first Run.
func (m *Machine) Poke(addr int64, value int64) (err error) {
	err = m.memory.Write(addr, value)
	if err != nil {
		return
	}

	if m.ticks == 0 && (m.state == STATE_RUNNING || m.state == STATE_WAITING) {
		m.state = m.initialState()
	}

	return
}

// Snapshot returns a copy of the machine's dense memory region, the
// addresses below MEMORY_DENSE_LIMIT. SparseSnapshot holds the rest.
func (m *Machine) Snapshot() []int64 {
	return m.memory.Snapshot()
}

// SparseSnapshot returns a copy of the words written at or above
// MEMORY_DENSE_LIMIT.
func (m *Machine) SparseSnapshot() map[int64]int64 {
	return m.memory.Sparse()
}

// Clone returns an independent copy of the machine, including its memory
// and both queues.
func (m *Machine) Clone() *Machine {
	clone := *m
	clone.memory = m.memory.Clone()
	clone.input = m.input.Clone()
	clone.output = m.output.Clone()
	return &clone
}

// String returns the current machine state as a string.
func (m *Machine) String() (text string) {
	word, _ := m.memory.Read(m.ip)
	text += fmt.Sprintf("%6s: %v\n", "state", m.state)
	text += fmt.Sprintf("%6s: %d\n", "ip", m.ip)
	text += fmt.Sprintf("%6s: %d\n", "word", word)
	text += fmt.Sprintf("%6s: %d\n", "base", m.base)
	text += fmt.Sprintf("%6s: %d\n", "ticks", m.ticks)
	text += fmt.Sprintf("%6s: %v\n", "input", m.input.Values())
	text += fmt.Sprintf("%6s: %v\n", "output", m.output.Values())
	return
}

// Run executes instructions until the machine halts, faults, or blocks
// on an empty input queue. Calling Run on a halted machine does nothing;
// calling it on a faulted machine returns the original fault.
func (m *Machine) Run() (state State, err error) {
	for {
		state, err = m.Step()
		if err != nil || state != STATE_RUNNING {
			return
		}
	}
}

// Step executes a single instruction. A waiting machine first retries the
// pending input, staying in STATE_WAITING if none has arrived.
func (m *Machine) Step() (state State, err error) {
	switch m.state {
	case STATE_HALTED:
		return m.state, nil
	case STATE_FAULTED:
		return m.state, m.fault
	case STATE_WAITING:
		if m.input.Empty() {
			return m.state, nil
		}
		m.state = STATE_RUNNING
	}

	ins, err := m.Fetch()
	if err == nil {
		err = m.Execute(ins)
	}

	if err != nil {
		word, _ := m.memory.Read(m.ip)
		err = &ErrFault{Ip: m.ip, Word: word, Err: err}
		m.fault = err
		m.state = STATE_FAULTED
		m.logger.Debug("fault", zap.Error(err))
	}

	state = m.state
	return
}

// Fetch decodes the instruction at the instruction pointer.
func (m *Machine) Fetch() (ins Instruction, err error) {
	word, err := m.memory.Read(m.ip)
	if err != nil {
		return
	}

	ins, err = Decode(word)
	return
}

// operand returns the raw operand word n (0-based) of the current
// instruction.
func (m *Machine) operand(n int) (word int64, err error) {
	return m.memory.Read(m.ip + 1 + int64(n))
}

// getValue resolves operand n of ins to a value.
func (m *Machine) getValue(ins Instruction, n int) (value int64, err error) {
	word, err := m.operand(n)
	if err != nil {
		return
	}

	switch ins.Modes[n] {
	case MODE_IMMEDIATE:
		value = word
	case MODE_POSITION:
		value, err = m.memory.Read(word)
	case MODE_RELATIVE:
		value, err = m.memory.Read(m.base + word)
	default:
		err = ErrModeInvalid
	}

	return
}

// getAddress resolves operand n of ins to a write destination.
func (m *Machine) getAddress(ins Instruction, n int) (addr int64, err error) {
	word, err := m.operand(n)
	if err != nil {
		return
	}

	switch ins.Modes[n] {
	case MODE_IMMEDIATE:
		err = ErrWriteImmediate
		return
	case MODE_POSITION:
		addr = word
	case MODE_RELATIVE:
		addr = m.base + word
	default:
		err = ErrModeInvalid
		return
	}

	if addr < 0 {
		err = ErrAddress(addr)
	}

	return
}

// getValues resolves the first count operands of ins to values.
func (m *Machine) getValues(ins Instruction, count int) (values [3]int64, err error) {
	for n := range count {
		values[n], err = m.getValue(ins, n)
		if err != nil {
			err = errors.Join(errors.New(f("operand %d", n+1)), err)
			return
		}
	}
	return
}

// trace logs the instruction about to execute.
func (m *Machine) trace(ins Instruction) {
	ce := m.logger.Check(zap.DebugLevel, "exec")
	if ce == nil {
		return
	}

	args := make([]int64, ins.Op.Operands())
	for n := range args {
		args[n], _ = m.operand(n)
	}

	ce.Write(
		zap.Int64("ip", m.ip),
		zap.Int64("base", m.base),
		zap.String("code", ins.Format(args)),
	)
}

// Execute executes a single decoded instruction located at the
// instruction pointer. All operands are resolved before any state
// changes, so a failed instruction leaves the machine untouched.
func (m *Machine) Execute(ins Instruction) (err error) {
	m.trace(ins)

	next_ip := m.ip + int64(ins.Size())

	var dst int64
	if n := ins.Op.Writes(); n >= 0 {
		dst, err = m.getAddress(ins, n)
		if err != nil {
			err = errors.Join(errors.New(f("operand %d", n+1)), err)
			return
		}
	}

	switch ins.Op {
	case OP_ADD, OP_MUL, OP_LT, OP_EQ:
		var arg [3]int64
		arg, err = m.getValues(ins, 2)
		if err != nil {
			return
		}
		var value int64
		switch ins.Op {
		case OP_ADD:
			value = arg[0] + arg[1]
		case OP_MUL:
			value = arg[0] * arg[1]
		case OP_LT:
			if arg[0] < arg[1] {
				value = 1
			}
		case OP_EQ:
			if arg[0] == arg[1] {
				value = 1
			}
		}
		err = m.memory.Write(dst, value)
		if err != nil {
			return
		}
	case OP_IN:
		value, ok := m.input.Pop()
		if !ok {
			// Suspend without advancing.
			m.state = STATE_WAITING
			m.logger.Debug("waiting", zap.Int64("ip", m.ip))
			return
		}
		err = m.memory.Write(dst, value)
		if err != nil {
			return
		}
	case OP_OUT:
		var arg [3]int64
		arg, err = m.getValues(ins, 1)
		if err != nil {
			return
		}
		m.output.Push(arg[0])
	case OP_JNZ, OP_JZ:
		var arg [3]int64
		arg, err = m.getValues(ins, 2)
		if err != nil {
			return
		}
		if (arg[0] != 0) == (ins.Op == OP_JNZ) {
			next_ip = arg[1]
		}
	case OP_ARB:
		var arg [3]int64
		arg, err = m.getValues(ins, 1)
		if err != nil {
			return
		}
		m.base += arg[0]
	case OP_HLT:
		m.state = STATE_HALTED
		next_ip = m.ip
		m.logger.Debug("halted", zap.Int64("ip", m.ip), zap.Int("ticks", m.ticks+1))
	default:
		err = ErrOpcodeInvalid
		return
	}

	m.ip = next_ip
	m.ticks++

	return
}
