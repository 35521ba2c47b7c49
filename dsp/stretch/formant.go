package stretch

import (
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/spectrum"
)

const (
	formantCutoffDivisor = 650.0
	formantMaxFrequency  = 10000.0
	formantMaxRatio      = 60.0
	maxEnvelope          = 1e10
)

// formant estimates a smoothed spectral envelope by liftering the real
// cepstrum, and reshapes other spectra so the envelope survives a pitch
// change.
type formant struct {
	fftSize  int
	cutoff   int
	cepstra  []float64
	envelope []float64
	spare    []float64
}

func newFormant(fftSize int, sampleRate float64) *formant {
	cutoff := core.ClampInt(int(math.Floor(sampleRate/formantCutoffDivisor)), 2, fftSize/2)

	return &formant{
		fftSize:  fftSize,
		cutoff:   cutoff,
		cepstra:  make([]float64, fftSize),
		envelope: make([]float64, fftSize/2+1),
		spare:    make([]float64, fftSize/2+1),
	}
}

func (f *formant) reset() {
	clear(f.cepstra)
	clear(f.envelope)
}

// analyse computes the envelope of mag, which has fftSize/2+1 bins.
func (f *formant) analyse(t spectrum.Transform, mag []float64) error {
	if err := t.InverseCepstral(mag, f.cepstra); err != nil {
		return err
	}

	// Keep one side of the even cepstrum: the transform back then yields
	// half the smoothed log spectrum.
	clear(f.cepstra[f.cutoff:])
	f.cepstra[0] /= 2
	f.cepstra[f.cutoff-1] /= 2

	if err := t.Forward(f.cepstra, f.envelope, f.spare); err != nil {
		return err
	}

	for i, v := range f.envelope {
		e := float64(approx.FastExp(float32(v)))
		f.envelope[i] = math.Min(e*e, maxEnvelope)
	}

	return nil
}

// envelopeAt interpolates the envelope at a fractional bin.
func (f *formant) envelopeAt(bin float64) float64 {
	last := len(f.envelope) - 1
	if bin <= 0 {
		return f.envelope[0]
	}

	lo := int(bin)
	if lo >= last {
		return f.envelope[last]
	}

	frac := bin - float64(lo)

	return f.envelope[lo]*(1-frac) + f.envelope[lo+1]*frac
}

// adjust reshapes mag, a spectrum of fftSize points, so that after the
// output is resampled by 1/pitch its envelope is the analysed one scaled by
// formantScale (0 keeps it in place).
func (f *formant) adjust(mag []float64, fftSize int, sampleRate, pitch, formantScale float64) {
	if formantScale == 0 {
		formantScale = 1 / pitch
	}

	targetFactor := float64(f.fftSize) / float64(fftSize)
	sourceFactor := targetFactor / formantScale
	highBin := min(len(mag), int(math.Floor(float64(fftSize)*formantMaxFrequency/sampleRate)))

	for i := 0; i < highBin; i++ {
		target := f.envelopeAt(float64(i) * targetFactor)
		if target <= 0 {
			continue
		}

		source := f.envelopeAt(float64(i) * sourceFactor)
		mag[i] *= core.Clamp(source/target, 1/formantMaxRatio, formantMaxRatio)
	}
}
