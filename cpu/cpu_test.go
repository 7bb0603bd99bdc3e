package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// runToHalt runs the machine, failing the test if it does not halt.
func runToHalt(t *testing.T, m *Machine) {
	t.Helper()

	state, err := m.Run()
	require.NoError(t, err)
	require.Equal(t, STATE_HALTED, state)
}

func TestMachine_Memory(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program Program
		memory  Program
	}){
		{"add", Program{1, 0, 0, 0, 99}, Program{2, 0, 0, 0, 99}},
		{"mul", Program{2, 3, 0, 3, 99}, Program{2, 3, 0, 6, 99}},
		{"mul_far", Program{2, 4, 4, 5, 99, 0}, Program{2, 4, 4, 5, 99, 9801}},
		{"self_modify", Program{1, 1, 1, 4, 99, 5, 6, 0, 99}, Program{30, 1, 1, 4, 2, 5, 6, 0, 99}},
		{"two_ops", Program{1, 9, 10, 3, 2, 3, 11, 0, 99, 30, 40, 50},
			Program{3500, 9, 10, 70, 2, 3, 11, 0, 99, 30, 40, 50}},
		{"negative", Program{1101, 100, -1, 4, 0}, Program{1101, 100, -1, 4, 99}},
	}

	for _, entry := range table {
		m := Load(entry.program)
		runToHalt(t, m)
		assert.Equal([]int64(entry.memory), m.Snapshot(), entry.name)

		value, err := m.MemoryAt(0)
		assert.NoError(err)
		assert.Equal(entry.memory[0], value, entry.name)
	}
}

func TestMachine_Echo(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{3, 0, 4, 0, 99}, 7)
	assert.Equal(STATE_RUNNING, m.State())
	runToHalt(t, m)

	assert.Equal([]int64{7}, m.DrainOutput())
	assert.Equal(0, m.InputLen())
}

func TestMachine_Compare(t *testing.T) {
	assert := assert.New(t)

	large := Program{3, 21, 1008, 21, 8, 20, 1005, 20, 22, 107, 8, 21, 20, 1006, 20, 31,
		1106, 0, 36, 98, 0, 0, 1002, 21, 125, 20, 4, 20, 1105, 1, 46, 104,
		999, 1105, 1, 46, 1101, 1000, 1, 20, 4, 20, 1105, 1, 46, 98, 99}

	table := [](struct {
		name    string
		program Program
		input   int64
		output  int64
	}){
		{"eq_pos_true", Program{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}, 8, 1},
		{"eq_pos_false", Program{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}, 7, 0},
		{"lt_pos_true", Program{3, 9, 7, 9, 10, 9, 4, 9, 99, -1, 8}, 5, 1},
		{"lt_pos_false", Program{3, 9, 7, 9, 10, 9, 4, 9, 99, -1, 8}, 8, 0},
		{"eq_imm_true", Program{3, 3, 1108, -1, 8, 3, 4, 3, 99}, 8, 1},
		{"lt_imm_false", Program{3, 3, 1107, -1, 8, 3, 4, 3, 99}, 9, 0},
		{"jz_pos_zero", Program{3, 12, 6, 12, 15, 1, 13, 14, 13, 4, 13, 99, -1, 0, 1, 9}, 0, 0},
		{"jz_pos_one", Program{3, 12, 6, 12, 15, 1, 13, 14, 13, 4, 13, 99, -1, 0, 1, 9}, 5, 1},
		{"jnz_imm_zero", Program{3, 3, 1105, -1, 9, 1101, 0, 0, 12, 4, 12, 99, 1}, 0, 0},
		{"jnz_imm_one", Program{3, 3, 1105, -1, 9, 1101, 0, 0, 12, 4, 12, 99, 1}, -3, 1},
		{"large_below", large, 7, 999},
		{"large_equal", large, 8, 1000},
		{"large_above", large, 9, 1001},
	}

	for _, entry := range table {
		m := Load(entry.program, entry.input)
		runToHalt(t, m)
		assert.Equal([]int64{entry.output}, m.DrainOutput(), entry.name)
	}
}

func TestMachine_Relative(t *testing.T) {
	assert := assert.New(t)

	quine := Program{109, 1, 204, -1, 1001, 100, 1, 100, 1008, 100, 16, 101, 1006, 101, 0, 99}
	m := Load(quine)
	runToHalt(t, m)
	assert.Equal([]int64(quine), m.DrainOutput())
	assert.Equal(int64(1)+int64(len(quine))-1, m.RelativeBase())

	m = Load(Program{1102, 34915192, 34915192, 7, 4, 7, 99, 0})
	runToHalt(t, m)
	value, err := m.TakeOutput()
	assert.NoError(err)
	assert.Equal(int64(1219070632396864), value)

	m = Load(Program{104, 1125899906842624, 99})
	runToHalt(t, m)
	value, err = m.TakeOutput()
	assert.NoError(err)
	assert.Equal(int64(1125899906842624), value)
}

func TestMachine_RelativeWrite(t *testing.T) {
	assert := assert.New(t)

	// arb #1000; in @5; out 1005; hlt
	m := Load(Program{109, 1000, 203, 5, 4, 1005, 99}, 42)
	runToHalt(t, m)
	assert.Equal([]int64{42}, m.DrainOutput())

	value, err := m.MemoryAt(1005)
	assert.NoError(err)
	assert.Equal(int64(42), value)
}

func TestMachine_Suspend(t *testing.T) {
	assert := assert.New(t)

	// out #1; in 11; out 11; hlt
	m := Load(Program{104, 1, 3, 11, 4, 11, 99})
	assert.Equal(STATE_RUNNING, m.State())

	state, err := m.Run()
	assert.NoError(err)
	assert.Equal(STATE_WAITING, state)
	assert.Equal(int64(2), m.Ip())
	assert.Equal([]int64{1}, m.DrainOutput())

	// No input yet; still waiting, nothing changes.
	ticks := m.Ticks()
	state, err = m.Run()
	assert.NoError(err)
	assert.Equal(STATE_WAITING, state)
	assert.Equal(int64(2), m.Ip())
	assert.Equal(ticks, m.Ticks())

	m.AddInput(55)
	state, err = m.Run()
	assert.NoError(err)
	assert.Equal(STATE_HALTED, state)

	value, err := m.MemoryAt(11)
	assert.NoError(err)
	assert.Equal(int64(55), value)
	assert.Equal([]int64{55}, m.DrainOutput())
}

func TestMachine_InitialWaiting(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{3, 0, 4, 0, 99})
	assert.Equal(STATE_WAITING, m.State())
	assert.Equal(0, m.Ticks())

	m.AddInput(-4)
	runToHalt(t, m)
	assert.Equal([]int64{-4}, m.DrainOutput())
}

func TestMachine_InitialImmediateInput(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program Program
		ip      int64
	}){
		{"first", Program{103, 0, 99}, 0},
		{"later", Program{104, 1, 103, 0, 99}, 2},
	}

	for _, entry := range table {
		m := Load(entry.program)
		state, err := m.Run()
		assert.Equal(STATE_FAULTED, state, entry.name)
		assert.ErrorIs(err, ErrWriteImmediate, entry.name)

		var fault *ErrFault
		if assert.ErrorAs(err, &fault, entry.name) {
			assert.Equal(entry.ip, fault.Ip, entry.name)
			assert.Equal(int64(103), fault.Word, entry.name)
		}
	}
}

func TestState_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("running", STATE_RUNNING.String())
	assert.Equal("waiting", STATE_WAITING.String())
	assert.Equal("halted", STATE_HALTED.String())
	assert.Equal("faulted", STATE_FAULTED.String())
	assert.Equal("State(9)", State(9).String())
}

func TestMachine_Halted(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{104, 3, 99})
	runToHalt(t, m)
	assert.Equal(2, m.Ticks())
	before := m.Snapshot()
	ip := m.Ip()

	state, err := m.Run()
	assert.NoError(err)
	assert.Equal(STATE_HALTED, state)
	assert.Equal(before, m.Snapshot())
	assert.Equal(ip, m.Ip())
	assert.Equal(2, m.Ticks())
	assert.Equal([]int64{3}, m.DrainOutput())
}

func TestMachine_TakeOutput(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{104, 1, 104, 2, 99})
	runToHalt(t, m)
	assert.Equal(2, m.OutputLen())

	for _, want := range []int64{1, 2} {
		value, err := m.TakeOutput()
		assert.NoError(err)
		assert.Equal(want, value)
	}

	_, err := m.TakeOutput()
	assert.ErrorIs(err, ErrOutputEmpty)
	var fault *ErrFault
	assert.False(errors.As(err, &fault))
	assert.Equal(STATE_HALTED, m.State())
}

func TestMachine_Faults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program Program
		ip      int64
		word    int64
		err     error
	}){
		{"opcode", Program{104, 1, 42}, 2, 42, ErrOpcodeInvalid},
		{"mode", Program{30001, 0, 0, 0}, 0, 30001, ErrModeInvalid},
		{"read_negative", Program{4, -3, 99}, 0, 4, ErrAddressNegative},
		{"write_negative", Program{1101, 1, 1, -1, 99}, 0, 1101, ErrAddressNegative},
		{"rel_negative", Program{109, -10, 204, 2, 99}, 2, 204, ErrAddressNegative},
		{"write_immediate", Program{11101, 1, 1, 3, 99}, 0, 11101, ErrWriteImmediate},
		{"jump_negative", Program{1105, 1, -7}, -7, 0, ErrAddressNegative},
		{"run_off", Program{1106, 0, 3}, 3, 0, ErrOpcodeInvalid},
	}

	for _, entry := range table {
		m := Load(entry.program)
		state, err := m.Run()
		assert.Equal(STATE_FAULTED, state, entry.name)
		assert.ErrorIs(err, entry.err, entry.name)

		var fault *ErrFault
		if assert.True(errors.As(err, &fault), entry.name) {
			assert.Equal(entry.ip, fault.Ip, entry.name)
			assert.Equal(entry.word, fault.Word, entry.name)
		}

		// Faults are sticky.
		ticks := m.Ticks()
		state, again := m.Run()
		assert.Equal(STATE_FAULTED, state, entry.name)
		assert.Equal(err, again, entry.name)
		assert.Equal(err, m.Fault(), entry.name)
		assert.Equal(ticks, m.Ticks(), entry.name)
	}
}

func TestMachine_FaultAtomic(t *testing.T) {
	assert := assert.New(t)

	// in -1 with input queued: the input must not be consumed.
	m := Load(Program{3, -1, 99}, 5)
	state, err := m.Run()
	assert.Equal(STATE_FAULTED, state)
	assert.ErrorIs(err, ErrAddressNegative)
	assert.Equal(1, m.InputLen())
	assert.Equal(int64(0), m.Ip())

	// out from a negative address produces no output.
	m = Load(Program{4, -1, 99})
	_, err = m.Run()
	assert.ErrorIs(err, ErrAddressNegative)
	assert.Equal(0, m.OutputLen())
}

func TestMachine_Poke(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{1, 0, 0, 0, 99})
	assert.NoError(m.Poke(0, 2))
	runToHalt(t, m)

	value, err := m.MemoryAt(0)
	assert.NoError(err)
	assert.Equal(int64(4), value)

	assert.ErrorIs(m.Poke(-1, 0), ErrAddressNegative)
	_, err = m.MemoryAt(-2)
	assert.ErrorIs(err, ErrAddressNegative)

	// Poking the first instruction into an input re-evaluates the start state.
	m = Load(Program{99, 0, 4, 0, 99})
	assert.Equal(STATE_RUNNING, m.State())
	assert.NoError(m.Poke(0, 3))
	assert.Equal(STATE_WAITING, m.State())
}

func TestMachine_Step(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{1101, 2, 3, 0, 104, 9, 99})

	state, err := m.Step()
	assert.NoError(err)
	assert.Equal(STATE_RUNNING, state)
	assert.Equal(int64(4), m.Ip())
	assert.Equal(1, m.Ticks())

	state, err = m.Step()
	assert.NoError(err)
	assert.Equal(STATE_RUNNING, state)
	assert.Equal(1, m.OutputLen())

	state, err = m.Step()
	assert.NoError(err)
	assert.Equal(STATE_HALTED, state)
	assert.Equal(int64(6), m.Ip())
}

func TestMachine_Clone(t *testing.T) {
	assert := assert.New(t)

	// Echo twice.
	prog := Program{3, 20, 4, 20, 3, 20, 4, 20, 99}
	m := Load(prog, 1)
	state, err := m.Run()
	assert.NoError(err)
	assert.Equal(STATE_WAITING, state)

	clone := m.Clone()
	m.AddInput(2)
	clone.AddInput(3)

	runToHalt(t, m)
	runToHalt(t, clone)

	assert.Equal([]int64{1, 2}, m.DrainOutput())
	assert.Equal([]int64{1, 3}, clone.DrainOutput())
}

func TestMachine_Deterministic(t *testing.T) {
	assert := assert.New(t)

	prog := Program{3, 21, 1008, 21, 8, 20, 1005, 20, 22, 107, 8, 21, 20, 1006, 20, 31,
		1106, 0, 36, 98, 0, 0, 1002, 21, 125, 20, 4, 20, 1105, 1, 46, 104,
		999, 1105, 1, 46, 1101, 1000, 1, 20, 4, 20, 1105, 1, 46, 98, 99}

	for input := range int64(12) {
		a := Load(prog, input)
		b := Load(prog, input)
		runToHalt(t, a)
		runToHalt(t, b)
		assert.Equal(a.Snapshot(), b.Snapshot())
		assert.Equal(a.SparseSnapshot(), b.SparseSnapshot())
		assert.Equal(a.DrainOutput(), b.DrainOutput())
		assert.Equal(a.Ticks(), b.Ticks())
	}
}

func TestMachine_SparseSnapshot(t *testing.T) {
	assert := assert.New(t)

	// Store input at a far address, echo it, then halt.
	far := int64(MEMORY_DENSE_LIMIT) + 5
	m := Load(Program{3, far, 4, far, 99}, 42)
	runToHalt(t, m)

	assert.Equal([]int64{42}, m.DrainOutput())
	assert.Equal(map[int64]int64{far: 42}, m.SparseSnapshot())
	assert.Equal(Program{3, far, 4, far, 99}, Program(m.Snapshot()))

	clone := m.Clone()
	assert.Equal(m.SparseSnapshot(), clone.SparseSnapshot())
}

func TestMachine_Trace(t *testing.T) {
	assert := assert.New(t)

	core, logs := observer.New(zap.DebugLevel)
	m := NewMachine(Program{1101, 2, 3, 0, 99}, WithLogger(zap.New(core)))
	runToHalt(t, m)

	execs := logs.FilterMessage("exec").All()
	if assert.Len(execs, 2) {
		assert.Equal("add #2 #3 0", execs[0].ContextMap()["code"])
		assert.Equal(int64(4), execs[1].ContextMap()["ip"])
	}
	assert.Equal(1, logs.FilterMessage("halted").Len())
}

func TestMachine_String(t *testing.T) {
	assert := assert.New(t)

	m := Load(Program{104, 5, 3, 0, 99})
	_, err := m.Run()
	assert.NoError(err)
	text := m.String()
	assert.Contains(text, "state: waiting")
	assert.Contains(text, "ip: 2")
	assert.Contains(text, "output: [5]")
}
