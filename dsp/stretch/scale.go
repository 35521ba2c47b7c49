package stretch

import (
	"fmt"

	"github.com/cwbudde/algo-stretch/dsp/spectrum"
	"github.com/cwbudde/algo-stretch/dsp/stretch/guide"
	"github.com/cwbudde/algo-stretch/dsp/stretch/phase"
	"github.com/cwbudde/algo-stretch/dsp/window"
)

// scale is one FFT resolution: its transform, windows and phase history,
// shared by all channels.
type scale struct {
	index    int
	fftSize  int
	binCount int

	// Polar conversion is restricted to [polarFrom, polarFrom+polarCount).
	polarFrom  int
	polarCount int

	fft       spectrum.Transform
	analysis  *window.Window
	synthesis *window.Window

	// windowScaleFactor is the sum of analysis*synthesis over the synthesis
	// window, so a frame scaled by outhop/windowScaleFactor overlap-adds to
	// unity gain.
	windowScaleFactor float64

	advance *phase.GuidedPhaseAdvance

	// Per-channel views handed to advance, one entry per channel.
	mags     [][]float64
	phases   [][]float64
	advanced [][]float64
	prevMags [][]float64
}

// windowShapes picks the analysis and synthesis windows for a scale. The
// longest scale of a multi-resolution layout resynthesises with a half
// length window.
func windowShapes(fftSize, longest int, multi bool) (analysis, synthesis window.Type, synthesisSize int) {
	switch {
	case !multi:
		return window.TypeHann, window.TypeHann, fftSize
	case fftSize == longest:
		return window.TypeHann, window.TypeHann, fftSize / 2
	default:
		return window.TypeNiemitaloForward, window.TypeNiemitaloReverse, fftSize
	}
}

func newScale(index int, limits guide.BandLimits, cfg *guide.Configuration, p engineParams) (*scale, error) {
	n := limits.FFTSize
	multi := cfg.BandCount > 1

	fft, err := spectrum.NewTransform(p.backend, n)
	if err != nil {
		return nil, fmt.Errorf("stretch: scale %d: %w", n, err)
	}

	at, st, sn := windowShapes(n, cfg.LongestFFTSize, multi)

	analysis, err := window.New(at, n)
	if err != nil {
		return nil, fmt.Errorf("stretch: analysis window %d: %w", n, err)
	}

	synthesis, err := window.New(st, sn)
	if err != nil {
		return nil, fmt.Errorf("stretch: synthesis window %d: %w", sn, err)
	}

	s := &scale{
		index:     index,
		fftSize:   n,
		binCount:  n/2 + 1,
		fft:       fft,
		analysis:  analysis,
		synthesis: synthesis,
		advance: phase.New(phase.Parameters{
			FFTSize:    n,
			SampleRate: p.sampleRate,
			Channels:   p.channels,
		}),
		mags:     make([][]float64, p.channels),
		phases:   make([][]float64, p.channels),
		advanced: make([][]float64, p.channels),
		prevMags: make([][]float64, p.channels),
	}

	if n == cfg.ClassificationFFTSize {
		s.polarFrom, s.polarCount = 0, s.binCount
	} else {
		s.polarFrom = limits.B0Min
		s.polarCount = min(limits.B1Max, s.binCount-1) - limits.B0Min + 1
	}

	off := (n - sn) / 2
	for i := 0; i < sn; i++ {
		s.windowScaleFactor += analysis.Value(i+off) * synthesis.Value(i)
	}

	return s, nil
}

// bind points the per-channel views at the channels' buffers for this scale.
func (s *scale) bind(chans []*channelData) {
	for c, ch := range chans {
		cs := ch.scales[s.index]
		s.mags[c] = cs.mag
		s.phases[c] = cs.phase
		s.advanced[c] = cs.advancedPhase
		s.prevMags[c] = cs.prevMag
	}
}
