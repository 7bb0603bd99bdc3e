package cpu

import (
	"maps"
	"slices"
)

const (
	MEMORY_DENSE_LIMIT = 1 << 24 // Addresses at or above this are stored sparsely.
)

// Memory is a zero-initialized word address space over all non-negative
// addresses. Low addresses are held in a slice that doubles as it grows;
// addresses beyond MEMORY_DENSE_LIMIT are held in a map.
type Memory struct {
	data   []int64
	sparse map[int64]int64
}

// NewMemory creates a memory pre-loaded with a copy of image.
func NewMemory(image []int64) *Memory {
	return &Memory{
		data: slices.Clone(image),
	}
}

// Len returns the extent of the dense region: one past the highest
// address loaded or written below MEMORY_DENSE_LIMIT.
func (mem *Memory) Len() int {
	return len(mem.data)
}

// Read returns the word at addr. Never-written addresses read as 0.
func (mem *Memory) Read(addr int64) (value int64, err error) {
	switch {
	case addr < 0:
		err = ErrAddress(addr)
	case addr < int64(len(mem.data)):
		value = mem.data[addr]
	case addr >= MEMORY_DENSE_LIMIT:
		value = mem.sparse[addr]
	}

	return
}

// Write stores value at addr, extending the address space as needed.
func (mem *Memory) Write(addr int64, value int64) (err error) {
	switch {
	case addr < 0:
		err = ErrAddress(addr)
		return
	case addr >= MEMORY_DENSE_LIMIT:
		if mem.sparse == nil {
			mem.sparse = make(map[int64]int64)
		}
		mem.sparse[addr] = value
		return
	}

	if addr >= int64(len(mem.data)) {
		mem.grow(int(addr) + 1)
	}

	mem.data[addr] = value

	return
}

// grow extends the dense region to size words, doubling the backing
// storage when it overflows.
func (mem *Memory) grow(size int) {
	if size > cap(mem.data) {
		capacity := max(cap(mem.data)*2, size, 64)
		data := make([]int64, len(mem.data), capacity)
		copy(data, mem.data)
		mem.data = data
	}

	extent := len(mem.data)
	mem.data = mem.data[:size]
	clear(mem.data[extent:])
}

// Snapshot returns a copy of the dense region. Words at or above
// MEMORY_DENSE_LIMIT are not included; see Sparse.
func (mem *Memory) Snapshot() []int64 {
	return slices.Clone(mem.data)
}

// Sparse returns a copy of the words written at or above
// MEMORY_DENSE_LIMIT, keyed by address.
func (mem *Memory) Sparse() map[int64]int64 {
	sparse := make(map[int64]int64, len(mem.sparse))
	maps.Copy(sparse, mem.sparse)
	return sparse
}

// Clone returns an independent copy of the memory.
func (mem *Memory) Clone() *Memory {
	return &Memory{
		data:   slices.Clone(mem.data),
		sparse: maps.Clone(mem.sparse),
	}
}
