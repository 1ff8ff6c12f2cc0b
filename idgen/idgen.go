// Package idgen provides sequential identifier generators.
package idgen

import "sync/atomic"

// ID is a unique identifier represented as a uint64.
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is "1".
func New() Generator {
	return NewStartingAt(1)
}

// NewStartingAt returns a sequential generator whose first emitted ID is
// first. It panics if first is zero, since zero is reserved for "no ID".
func NewStartingAt(first ID) Generator {
	if first == 0 {
		panic("the first ID must not be zero")
	}

	return &sequentialGenerator{next: uint64(first) - 1}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}
