// Package phase computes the output phase of every bin of one FFT scale,
// locking bins to nearby spectral peaks as directed by per-channel guidance.
package phase

import (
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/stretch/guide"
	"github.com/cwbudde/algo-stretch/dsp/stretch/peak"
)

// Parameters configures a GuidedPhaseAdvance.
type Parameters struct {
	FFTSize    int
	SampleRate float64
	Channels   int
}

// GuidedPhaseAdvance carries phase history for one scale across all
// channels. All buffers are sized at construction.
type GuidedPhaseAdvance struct {
	p        Parameters
	binCount int

	picker       *peak.Picker
	currentPeaks [][]int
	prevPeaks    [][]int
	nextPeaks    []int

	greatestChannel []int
	prevInPhase     [][]float64
	prevOutPhase    [][]float64
	unlocked        [][]float64
}

// New allocates history for p.Channels channels of p.FFTSize/2+1 bins.
func New(p Parameters) *GuidedPhaseAdvance {
	bins := p.FFTSize/2 + 1

	a := &GuidedPhaseAdvance{
		p:               p,
		binCount:        bins,
		picker:          peak.New(bins),
		currentPeaks:    make([][]int, p.Channels),
		prevPeaks:       make([][]int, p.Channels),
		nextPeaks:       make([]int, bins),
		greatestChannel: make([]int, bins),
		prevInPhase:     make([][]float64, p.Channels),
		prevOutPhase:    make([][]float64, p.Channels),
		unlocked:        make([][]float64, p.Channels),
	}

	for c := 0; c < p.Channels; c++ {
		a.currentPeaks[c] = make([]int, bins)
		a.prevPeaks[c] = make([]int, bins)
		a.prevInPhase[c] = make([]float64, bins)
		a.prevOutPhase[c] = make([]float64, bins)
		a.unlocked[c] = make([]float64, bins)
	}

	return a
}

// FFTSize returns the scale this instance serves.
func (a *GuidedPhaseAdvance) FFTSize() int { return a.p.FFTSize }

// Reset clears the phase history.
func (a *GuidedPhaseAdvance) Reset() {
	for c := 0; c < a.p.Channels; c++ {
		clear(a.prevInPhase[c])
		clear(a.prevOutPhase[c])
		clear(a.unlocked[c])
		clear(a.prevPeaks[c])
		clear(a.currentPeaks[c])
	}
}

// Advance writes outPhase for every channel over the scale's bin range.
//
// mag and phase are the current analysis frame, prevMag the previous one.
// inhop and outhop must be the hop sizes that separated the previous frame
// from this one. When usingMidSide is set the two channels carry mid and
// side, and a phase reset on either applies to both. Slices are not length
// checked.
func (a *GuidedPhaseAdvance) Advance(
	outPhase, mag, phase, prevMag [][]float64,
	cfg *guide.Configuration,
	guidance []*guide.Guidance,
	usingMidSide bool,
	inhop, outhop int,
) {
	scale := cfg.ScaleIndex(a.p.FFTSize)
	if scale < 0 {
		return
	}

	limits := cfg.BandLimits[scale]
	lowest := limits.B0Min
	highest := min(limits.B1Max, a.binCount-1)
	channels := a.p.Channels

	a.findPeaks(mag, prevMag, guidance, lowest, highest)

	for i := lowest; i <= highest; i++ {
		best := 0
		for c := 1; c < channels; c++ {
			if mag[c][i] > mag[best][i] {
				best = c
			}
		}

		a.greatestChannel[i] = best
	}

	inhop = max(inhop, 1)
	omegaFactor := 2 * math.Pi * float64(inhop) / float64(a.p.FFTSize)
	hopRatio := float64(outhop) / float64(inhop)

	for c := 0; c < channels; c++ {
		for i := lowest; i <= highest; i++ {
			omega := omegaFactor * float64(i)
			expected := a.prevInPhase[c][i] + omega
			err := core.Princarg(phase[c][i] - expected)
			a.unlocked[c][i] = a.prevOutPhase[c][i] + (omega+err)*hopRatio
		}
	}

	binHz := a.p.SampleRate / float64(a.p.FFTSize)

	for c := 0; c < channels; c++ {
		g := guidance[c]

		var sibling *guide.Guidance
		if usingMidSide && channels == 2 {
			sibling = guidance[1-c]
		}

		band := 0

		for i := lowest; i <= highest; i++ {
			f := float64(i) * binHz

			if g.PhaseReset.Contains(f) || g.Kick.Contains(f) ||
				(sibling != nil && sibling.PhaseReset.Contains(f)) {
				outPhase[c][i] = phase[c][i]
				continue
			}

			if inhop == outhop || g.HighUnlocked.Contains(f) {
				outPhase[c][i] = core.Princarg(a.unlocked[c][i])
				continue
			}

			for band < len(g.PhaseLockBands)-1 && f >= g.PhaseLockBands[band].F1 {
				band++
			}

			beta := g.PhaseLockBands[band].Beta

			peakCh := c
			pk := a.currentPeaks[c][i]
			prevPk := a.prevPeaks[c][pk]

			if g.ChannelLock.Contains(f) {
				other := a.greatestChannel[i]
				if other != c {
					otherPk := a.currentPeaks[other][i]
					if a.prevPeaks[other][otherPk] == prevPk {
						peakCh = other
						pk = otherPk
					}
				}
			}

			peakAdvance := a.unlocked[peakCh][pk] - a.prevOutPhase[peakCh][pk]
			peakNew := a.prevOutPhase[peakCh][prevPk] + peakAdvance
			diff := phase[c][i] - phase[peakCh][pk]

			outPhase[c][i] = core.Princarg(peakNew + beta*diff)
		}
	}

	for c := 0; c < channels; c++ {
		copy(a.prevInPhase[c][lowest:highest+1], phase[c][lowest:highest+1])
		copy(a.prevOutPhase[c][lowest:highest+1], outPhase[c][lowest:highest+1])
	}
}

func (a *GuidedPhaseAdvance) findPeaks(mag, prevMag [][]float64, guidance []*guide.Guidance, lowest, highest int) {
	for c := 0; c < a.p.Channels; c++ {
		bands := &guidance[c].PhaseLockBands

		for b := range bands {
			from := a.bin(bands[b].F0, lowest, highest)

			to := a.bin(bands[b].F1, lowest, highest)
			if b == len(bands)-1 {
				to = highest + 1
			}

			if to > from {
				a.picker.FindNearestAndNextPeaks(mag[c], from, to-from, bands[b].P, a.currentPeaks[c], a.nextPeaks)
			}
		}

		a.picker.FindNearestAndNextPeaks(prevMag[c], lowest, highest-lowest+1, 1, a.prevPeaks[c], a.nextPeaks)
	}
}

func (a *GuidedPhaseAdvance) bin(f float64, lowest, highest int) int {
	return core.ClampInt(core.BinForFrequency(f, a.p.FFTSize, a.p.SampleRate), lowest, highest+1)
}
