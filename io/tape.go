package io

import (
	"bufio"
	"io"
	"iter"
	"strconv"
	"unicode"
)

// TapeMode selects how a Tape converts between bytes and words.
//
// TAPE_MODE_NUMBER reads decimal tokens and writes one decimal per line.
// TAPE_MODE_ASCII reads one word per byte and writes 7-bit words as bytes.
type TapeMode int

//go:generate go tool stringer -linecomment -type=TapeMode
const (
	TAPE_MODE_NUMBER = TapeMode(0) // number
	TAPE_MODE_ASCII  = TapeMode(1) // ascii
)

// Tape provides sequential I/O operations for reading and writing byte streams.
// It wraps an io.Reader for input and io.Writer for output, converting between
// word-level Channel operations and byte-level I/O.
type Tape struct {
	Mode   TapeMode
	Input  io.Reader
	Output io.Writer

	reader *bufio.Reader
	source io.Reader
	err    error
}

var _ Channel = (*Tape)(nil)

// Rewind is not possible on a tape.
func (tc *Tape) Rewind() {
}

// Err returns the first non-EOF error seen by Receive.
func (tc *Tape) Err() error {
	return tc.err
}

func (tc *Tape) buffered() (reader *bufio.Reader, err error) {
	if tc.Input == nil {
		err = ErrTapeNoInput
		return
	}

	if tc.reader == nil || tc.source != tc.Input {
		tc.reader = bufio.NewReader(tc.Input)
		tc.source = tc.Input
	}

	reader = tc.reader
	return
}

// Read reads the next word from the input.
// Returns io.EOF when the input is exhausted.
func (tc *Tape) Read() (value int64, err error) {
	reader, err := tc.buffered()
	if err != nil {
		return
	}

	if tc.Mode == TAPE_MODE_ASCII {
		var one byte
		one, err = reader.ReadByte()
		if err != nil {
			return
		}
		value = int64(one)
		return
	}

	// Skip separators.
	var token []byte
	for {
		var one byte
		one, err = reader.ReadByte()
		if err != nil {
			if err == io.EOF && len(token) > 0 {
				err = nil
				break
			}
			return
		}
		if one == ',' || unicode.IsSpace(rune(one)) {
			if len(token) > 0 {
				break
			}
			continue
		}
		token = append(token, one)
	}

	value, err = strconv.ParseInt(string(token), 10, 64)
	if err != nil {
		err = ErrTapeNumber(token)
		return
	}

	return
}

// Receive returns an iterator that yields words from the input stream
// until it is exhausted or fails. Failures other than io.EOF are
// available from Err.
func (tc *Tape) Receive() iter.Seq[int64] {
	return func(yield func(value int64) bool) {
		for {
			value, err := tc.Read()
			if err != nil {
				if err != io.EOF {
					tc.err = err
				}
				return
			}
			if !yield(value) {
				return
			}
		}
	}
}

// Send writes a word to the output stream.
func (tc *Tape) Send(value int64) (err error) {
	if tc.Output == nil {
		err = ErrTapeNoOutput
		return
	}

	var buff []byte
	if tc.Mode == TAPE_MODE_ASCII && value >= 0 && value < 0x80 {
		buff = []byte{byte(value)}
	} else {
		buff = strconv.AppendInt(buff, value, 10)
		buff = append(buff, '\n')
	}

	_, err = tc.Output.Write(buff)
	return
}
