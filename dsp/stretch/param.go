package stretch

import (
	"math"
	"sync/atomic"
)

// atomicFloat is a float64 that one control goroutine may store while the
// audio goroutine loads it. Loads never block and always see a whole value,
// possibly a stale one.
type atomicFloat struct {
	bits atomic.Uint64
}

func newAtomicFloat(v float64) *atomicFloat {
	a := &atomicFloat{}
	a.store(v)

	return a
}

func (a *atomicFloat) load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat) store(v float64) {
	a.bits.Store(math.Float64bits(v))
}
