// Package position computes fractional sort keys for ordered siblings.
//
// Positions only need to be strictly increasing within a parent; they are
// never required to be contiguous or integral. Inserting repeatedly at the
// same boundary halves the gap each time, so after roughly thirty inserts
// at one spot neighbouring keys collide at the rounding precision. Readers
// tolerate that with an id tie-break and Renumber repairs it on demand.
package position

import "math"

const (
	// Seed is the position of the first item in an empty parent.
	Seed = 1.0

	// Step is the gap between a new tail and its predecessor, and between
	// consecutive items after Renumber.
	Step = 1.0

	// Precision is the number of decimal places kept on the wire.
	Precision = 9
)

var scale = math.Pow10(Precision)

// Round truncates v to the wire precision.
func Round(v float64) float64 {
	return math.Round(v*scale) / scale
}

// Allocate returns a position strictly between prev and next when both are
// set, after prev when only prev is set, before next when only next is set,
// and Seed when the parent is empty.
func Allocate(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return Seed
	case prev == nil:
		if *next <= 0 {
			return Round(*next - Step)
		}
		return Round(*next / 2)
	case next == nil:
		return Round(*prev + Step)
	default:
		return Round((*prev + *next) / 2)
	}
}

// AllocateForIndex returns the position for an item inserted at index into
// ordered, the ascending positions of its future siblings with the moved item
// already excluded. index is clamped to [0, len(ordered)].
func AllocateForIndex(ordered []float64, index int) float64 {
	if index < 0 {
		index = 0
	}
	if index > len(ordered) {
		index = len(ordered)
	}

	var prev, next *float64
	if index > 0 {
		p := ordered[index-1]
		prev = &p
	}
	if index < len(ordered) {
		n := ordered[index]
		next = &n
	}
	return Allocate(prev, next)
}

// Renumber returns n evenly spaced positions starting at Seed.
func Renumber(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = Seed + float64(i)*Step
	}
	return out
}

// Collides reports whether ordered contains two neighbours that are not
// strictly increasing.
func Collides(ordered []float64) bool {
	for i := 1; i < len(ordered); i++ {
		if ordered[i] <= ordered[i-1] {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v, for passing literal bounds to Allocate.
func Ptr(v float64) *float64 { return &v }
