package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 encapsulates a float64 for non-locking atomic operations.
// The value is held as its IEEE-754 bit pattern so that the sync/atomic
// compare-and-swap primitives apply to it directly.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead atomically reads the float64.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicMax raises the stored value to @candidate if @candidate is larger,
// retrying until either the swap lands or another writer has stored a value
// at least as large. NaN candidates are ignored.
func (af *AtomicFloat64) AtomicMax(candidate float64) (stored float64) {
	if math.IsNaN(candidate) {
		return af.AtomicRead()
	}
	for {
		old := af.bits.Load()
		stored = math.Float64frombits(old)
		if stored >= candidate {
			return
		}
		if af.bits.CompareAndSwap(old, math.Float64bits(candidate)) {
			return candidate
		}
	}
}
