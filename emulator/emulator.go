// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator drives machines against devices: a single machine
// attached to a tape, or a network of machines wired output to input.
package emulator

import (
	"errors"
	stdio "io"

	"go.uber.org/zap"

	"github.com/ezrec/intvm/cpu"
	"github.com/ezrec/intvm/io"
)

// Emulator state. Machine + source listing + tape.
type Emulator struct {
	*cpu.Machine              // Reference to the machine.
	Listing      *cpu.Listing // Source listing, if assembled. May be nil.
	Tape         io.Tape      // Tape I/O channel.

	logger *zap.Logger
}

// NewEmulator creates an emulator for program.
func NewEmulator(program cpu.Program, opts ...cpu.Option) (emu *Emulator) {
	emu = &Emulator{
		Machine: cpu.NewMachine(program, opts...),
		logger:  zap.L().Named("emulator"),
	}

	return
}

// NewEmulatorListing creates an emulator for an assembled program.
func NewEmulatorListing(listing *cpu.Listing, opts ...cpu.Option) (emu *Emulator) {
	emu = NewEmulator(listing.Binary(), opts...)
	emu.Listing = listing
	return
}

// SetLogger sets the emulator logger.
func (emu *Emulator) SetLogger(l *zap.Logger) {
	emu.logger = l.Named("emulator")
}

// LineNo returns the source line number for the executing opcode, or 0
// if there is no listing.
func (emu *Emulator) LineNo() int {
	if emu.Listing == nil {
		return 0
	}

	return emu.Listing.LineNo(int(emu.Machine.Ip()))
}

// flush sends all pending machine outputs to the tape.
func (emu *Emulator) flush() (err error) {
	for _, value := range emu.Machine.DrainOutput() {
		err = emu.Tape.Send(value)
		if err != nil {
			return
		}
	}

	return
}

// Tick runs the machine until it halts or waits, copies its output to the
// tape, and when waiting, feeds it the next word from the tape.
func (emu *Emulator) Tick() (done bool, err error) {
	state, err := emu.Machine.Run()

	flush_err := emu.flush()

	if err != nil {
		err = &ErrRuntime{LineNo: emu.LineNo(), Err: err}
		return
	}

	if flush_err != nil {
		err = flush_err
		return
	}

	switch state {
	case cpu.STATE_HALTED:
		done = true
		emu.logger.Debug("halted", zap.Int("ticks", emu.Machine.Ticks()))
	case cpu.STATE_WAITING:
		var value int64
		value, err = emu.Tape.Read()
		if errors.Is(err, stdio.EOF) {
			err = &ErrRuntime{LineNo: emu.LineNo(), Err: ErrInputExhausted}
			return
		}
		if err != nil {
			return
		}
		emu.logger.Debug("input", zap.Int64("value", value))
		emu.Machine.AddInput(value)
	}

	return
}

// Run ticks the emulator until the machine halts or fails.
func (emu *Emulator) Run() (err error) {
	for done := false; !done; {
		done, err = emu.Tick()
		if err != nil {
			return
		}
	}

	return
}
