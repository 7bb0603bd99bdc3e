// Package io provides the word-level I/O channels attached to a machine.
// It includes the growable FIFO Queue used for machine input and output,
// and the Tape device that converts between byte streams and words.
package io

import (
	"iter"
)

// Channel defines the interface for all I/O channels.
// Channels move whole 64-bit signed words in FIFO order.
type Channel interface {
	// Rewind resets the channel to its initial state.
	Rewind()
	// Receive returns an iterator that yields words from the channel.
	Receive() iter.Seq[int64]
	// Send writes a single word to the channel.
	Send(value int64) error
}
