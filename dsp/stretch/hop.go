package stretch

import (
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

const (
	nominalOuthop     = 256.0
	minProposedOuthop = 128.0
	maxProposedOuthop = 512.0
	maxInhop          = 1024
)

// inhopForRatio returns the input hop used at effective ratio r. Larger
// stretches get longer output hops so the input hop does not collapse.
func inhopForRatio(r float64) int {
	proposed := nominalOuthop

	switch {
	case r > 1.5:
		proposed = math.Pow(2, 8+2*math.Log10(r-0.5))
	case r < 1:
		proposed = math.Pow(2, 8+2*math.Log10(r))
	}

	proposed = core.Clamp(proposed, minProposedOuthop, maxProposedOuthop)

	return core.ClampInt(int(math.Floor(proposed/r)), 1, maxInhop)
}

// hopSchedule derives hop sizes from the live ratio and keeps the output
// position tracking the accumulated input position times the ratio.
type hopSchedule struct {
	maxOuthop int

	inhop      int
	outhop     int
	prevInhop  int
	prevOuthop int

	// target is the running sum of inhop*ratio.
	target   float64
	consumed int64
	produced int64
}

func newHopSchedule(maxOuthop int) *hopSchedule {
	return &hopSchedule{maxOuthop: maxOuthop}
}

func (h *hopSchedule) reset(ratio float64) {
	h.inhop = inhopForRatio(ratio)
	h.outhop = core.ClampInt(int(math.Round(float64(h.inhop)*ratio)), 1, h.maxOuthop)
	h.prevInhop = h.inhop
	h.prevOuthop = h.outhop
	h.target = 0
	h.consumed = 0
	h.produced = 0
}

// plan sets inhop and outhop for the next hop at ratio without committing.
func (h *hopSchedule) plan(ratio float64) {
	h.inhop = inhopForRatio(ratio)
	want := int64(math.Round(h.target+float64(h.inhop)*ratio)) - h.produced
	h.outhop = core.ClampInt(int(want), 1, h.maxOuthop)
}

// commit records the planned hop as done.
func (h *hopSchedule) commit(ratio float64) {
	h.target += float64(h.inhop) * ratio
	h.consumed += int64(h.inhop)
	h.produced += int64(h.outhop)
	h.prevInhop = h.inhop
	h.prevOuthop = h.outhop
}
