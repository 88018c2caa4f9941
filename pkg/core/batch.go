package core

import "fmt"

// IDBatches is a gap-free partition of a record-ID sequence into
// consecutive batches of at most a fixed size. Input order is preserved:
// concatenating all batches reproduces the input exactly. The partition is
// never mutated after construction.
type IDBatches struct {
	ids  []string
	size int
}

// NewIDBatches partitions ids into batches of at most size identifiers.
// The batch size bounds each round-trip's payload; it is fixed, not
// adaptive.
func NewIDBatches(ids []string, size int) (*IDBatches, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	return &IDBatches{ids: ids, size: size}, nil
}

// Len returns the number of batches: ceil(len(ids) / size).
func (b *IDBatches) Len() int {
	return (len(b.ids) + b.size - 1) / b.size
}

// Total returns the total number of record identifiers.
func (b *IDBatches) Total() int {
	return len(b.ids)
}

// Batch returns the i'th batch. Every batch except possibly the last has
// exactly the configured size. The returned slice aliases the input; do
// not mutate it.
func (b *IDBatches) Batch(i int) []string {
	start := i * b.size
	if start >= len(b.ids) {
		return nil
	}
	end := start + b.size
	if end > len(b.ids) {
		end = len(b.ids)
	}
	return b.ids[start:end]
}
