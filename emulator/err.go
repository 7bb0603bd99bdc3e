package emulator

import (
	"errors"

	"github.com/ezrec/intvm/translate"
)

var f = translate.From

var (
	ErrInputExhausted = errors.New(f("input exhausted"))
	ErrNetworkEmpty   = errors.New(f("network has no machines"))
	ErrNetworkStalled = errors.New(f("network stalled waiting for input"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrStage indicates which machine of a network failed.
type ErrStage struct {
	Index int
	Err   error
}

func (err *ErrStage) Error() string {
	return f("stage %d %v", err.Index, err.Err)
}

func (err *ErrStage) Unwrap() error {
	return err.Err
}
