package io

import (
	"iter"
)

// Queue is an unbounded FIFO of words.
// It is a circular buffer that doubles its backing storage when full.
type Queue struct {
	readIndex int
	size      int
	data      []int64
}

var _ Channel = (*Queue)(nil)

// NewQueue creates a queue pre-loaded with values.
func NewQueue(values ...int64) (q *Queue) {
	q = &Queue{}
	q.Push(values...)
	return
}

// Len returns the number of queued words.
func (q *Queue) Len() int {
	return q.size
}

// Empty returns true if no words are queued.
func (q *Queue) Empty() bool {
	return q.size == 0
}

// grow doubles the backing storage, unwrapping the ring.
func (q *Queue) grow() {
	capacity := len(q.data) * 2
	if capacity == 0 {
		capacity = 8
	}

	data := make([]int64, capacity)
	n := copy(data, q.data[q.readIndex:])
	copy(data[n:], q.data[:q.readIndex])

	q.data = data
	q.readIndex = 0
}

// Push appends values to the back of the queue.
func (q *Queue) Push(values ...int64) {
	for _, value := range values {
		if q.size == len(q.data) {
			q.grow()
		}
		q.data[(q.readIndex+q.size)%len(q.data)] = value
		q.size++
	}
}

// Peek returns the front of the queue without removing it.
func (q *Queue) Peek() (value int64, ok bool) {
	if q.size == 0 {
		return
	}

	return q.data[q.readIndex], true
}

// Pop removes and returns the front of the queue.
func (q *Queue) Pop() (value int64, ok bool) {
	value, ok = q.Peek()
	if ok {
		q.readIndex++
		if q.readIndex == len(q.data) {
			q.readIndex = 0
		}
		q.size--
	}
	return
}

// Drain removes and returns all queued words, oldest first.
func (q *Queue) Drain() (values []int64) {
	values = q.Values()
	q.Rewind()
	return
}

// Values returns a copy of the queued words, oldest first, leaving the
// queue unchanged.
func (q *Queue) Values() (values []int64) {
	if q.size == 0 {
		return
	}

	values = make([]int64, q.size)
	for n := range q.size {
		values[n] = q.data[(q.readIndex+n)%len(q.data)]
	}
	return
}

// Clone returns an independent copy of the queue.
func (q *Queue) Clone() *Queue {
	return NewQueue(q.Values()...)
}

// Rewind empties the queue. The backing storage is retained.
func (q *Queue) Rewind() {
	q.readIndex = 0
	q.size = 0
}

// Receive returns an iterator that pops words until the queue is empty.
func (q *Queue) Receive() iter.Seq[int64] {
	return func(yield func(value int64) bool) {
		for {
			value, ok := q.Pop()
			if !ok {
				return
			}
			if !yield(value) {
				return
			}
		}
	}
}

// Send pushes a word to the back of the queue. It never fails.
func (q *Queue) Send(value int64) (err error) {
	q.Push(value)
	return
}
