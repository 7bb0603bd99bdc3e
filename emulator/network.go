package emulator

import (
	"go.uber.org/zap"

	"github.com/ezrec/intvm/cpu"
	"github.com/ezrec/intvm/internal"
)

// Network is a chain of machines, each machine's output wired to the
// next machine's input. With Feedback set the last machine's output is
// also wired back to the first machine.
type Network struct {
	Machines []*cpu.Machine
	Feedback bool

	logger *zap.Logger
}

// newNetwork creates a copy of program per phase, seeding each machine
// with its phase as first input.
func newNetwork(program cpu.Program, phases []int64, feedback bool, opts ...cpu.Option) (net *Network) {
	net = &Network{
		Feedback: feedback,
		logger:   zap.L().Named("network"),
	}

	for _, phase := range phases {
		machine_opts := append([]cpu.Option{cpu.WithInput(phase)}, opts...)
		net.Machines = append(net.Machines, cpu.NewMachine(program, machine_opts...))
	}

	return
}

// NewPipeline creates an open chain of machines.
func NewPipeline(program cpu.Program, phases []int64, opts ...cpu.Option) *Network {
	return newNetwork(program, phases, false, opts...)
}

// NewRing creates a chain of machines whose last output feeds the first.
func NewRing(program cpu.Program, phases []int64, opts ...cpu.Option) *Network {
	return newNetwork(program, phases, true, opts...)
}

// SetLogger sets the network logger.
func (net *Network) SetLogger(l *zap.Logger) {
	net.logger = l.Named("network")
}

// Halted returns true if every machine has halted.
func (net *Network) Halted() bool {
	for _, m := range net.Machines {
		if m.State() != cpu.STATE_HALTED {
			return false
		}
	}
	return true
}

// stalled returns true if no machine can make progress.
func (net *Network) stalled() bool {
	for _, m := range net.Machines {
		switch m.State() {
		case cpu.STATE_HALTED:
		case cpu.STATE_WAITING:
			if m.InputLen() > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Run feeds signal to the first machine, then runs the machines in turn,
// moving outputs down the chain, until every machine has halted.
// The result is the last value output by the last machine.
func (net *Network) Run(signal int64) (output int64, err error) {
	if len(net.Machines) == 0 {
		err = ErrNetworkEmpty
		return
	}

	net.Machines[0].AddInput(signal)

	last := len(net.Machines) - 1
	produced := false

	for round := 0; ; round++ {
		for index, m := range net.Machines {
			_, err = m.Run()
			if err != nil {
				err = &ErrStage{Index: index, Err: err}
				return
			}

			values := m.DrainOutput()
			if len(values) == 0 {
				continue
			}

			if index < last {
				net.Machines[index+1].AddInput(values...)
				continue
			}

			output = values[len(values)-1]
			produced = true
			if net.Feedback {
				net.Machines[0].AddInput(values...)
			}
		}

		net.logger.Debug("round", zap.Int("round", round), zap.Int64("output", output))

		if net.Halted() {
			break
		}

		if net.stalled() {
			err = ErrNetworkStalled
			return
		}
	}

	if !produced {
		err = &ErrStage{Index: last, Err: cpu.ErrOutputEmpty}
		return
	}

	return
}

// MaxSignal tries every ordering of phases, returning the largest network
// output and the ordering that produced it.
func MaxSignal(program cpu.Program, phases []int64, feedback bool, opts ...cpu.Option) (best int64, order []int64, err error) {
	found := false
	for perm := range internal.Permutations(phases) {
		net := newNetwork(program, perm, feedback, opts...)

		var output int64
		output, err = net.Run(0)
		if err != nil {
			return
		}

		if !found || output > best {
			best = output
			order = perm
			found = true
		}
	}

	if !found {
		err = ErrNetworkEmpty
	}

	return
}
