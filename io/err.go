package io

import (
	"errors"

	"github.com/ezrec/intvm/translate"
)

var f = translate.From

var (
	// Tape errors
	ErrTapeNoInput  = errors.New(f("tape has no input"))
	ErrTapeNoOutput = errors.New(f("tape has no output"))
)

// ErrTapeNumber is returned when a numeric tape token is not an integer.
type ErrTapeNumber string

func (err ErrTapeNumber) Error() string {
	return f("tape '%v' is not a number", string(err))
}
