package guide

import (
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

// MaxBands is the number of FFT scales in multi-window mode.
const MaxBands = 3

// BandLimits is the frequency range a scale may ever contribute.
type BandLimits struct {
	FFTSize int
	F0Min   float64
	F1Max   float64
	B0Min   int
	B1Max   int
}

func newBandLimits(fftSize int, sampleRate, f0min, f1max float64) BandLimits {
	return BandLimits{
		FFTSize: fftSize,
		F0Min:   f0min,
		F1Max:   f1max,
		B0Min:   int(math.Floor(f0min * float64(fftSize) / sampleRate)),
		B1Max:   min(fftSize/2, int(math.Ceil(f1max*float64(fftSize)/sampleRate))),
	}
}

// Configuration is the immutable scale layout derived from the sample rate.
// BandLimits is ordered longest scale first; only the first BandCount
// entries are active.
type Configuration struct {
	LongestFFTSize        int
	ShortestFFTSize       int
	ClassificationFFTSize int
	BandLimits            [MaxBands]BandLimits
	BandCount             int
}

// ScaleIndex returns the index in BandLimits of the scale with the given
// FFT size, or -1.
func (c *Configuration) ScaleIndex(fftSize int) int {
	for i := 0; i < c.BandCount; i++ {
		if c.BandLimits[i].FFTSize == fftSize {
			return i
		}
	}

	return -1
}

// ClassificationIndex returns the index of the classification scale.
func (c *Configuration) ClassificationIndex() int {
	return c.ScaleIndex(c.ClassificationFFTSize)
}

func newConfiguration(sampleRate float64, singleWindow bool) Configuration {
	nyquist := sampleRate / 2
	class := core.NextPowerOfTwo(int(math.Ceil(sampleRate / 32)))

	if singleWindow {
		return Configuration{
			LongestFFTSize:        class,
			ShortestFFTSize:       class,
			ClassificationFFTSize: class,
			BandLimits:            [MaxBands]BandLimits{newBandLimits(class, sampleRate, 0, nyquist)},
			BandCount:             1,
		}
	}

	longest := core.NextPowerOfTwo(int(math.Ceil(sampleRate / 16)))
	shortest := core.NextPowerOfTwo(int(math.Ceil(sampleRate / 64)))

	return Configuration{
		LongestFFTSize:        longest,
		ShortestFFTSize:       shortest,
		ClassificationFFTSize: class,
		BandLimits: [MaxBands]BandLimits{
			newBandLimits(longest, sampleRate, 0, math.Min(maxLower, nyquist)),
			newBandLimits(class, sampleRate, 0, nyquist),
			newBandLimits(shortest, sampleRate, math.Min(minHigher, nyquist), nyquist),
		},
		BandCount: MaxBands,
	}
}
