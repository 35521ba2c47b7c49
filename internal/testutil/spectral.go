package testutil

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// DominantFrequency returns the frequency in Hz of the strongest bin of the
// Hann-windowed spectrum of sig, refined by parabolic interpolation.
func DominantFrequency(sig []float64, sampleRate float64) float64 {
	n := len(sig)
	if n < 4 {
		return 0
	}

	windowed := make([]float64, n)
	for i, v := range sig {
		windowed[i] = v * 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}

	spec := fft.FFTReal(windowed)

	best := 1
	for k := 2; k < n/2; k++ {
		if cmplx.Abs(spec[k]) > cmplx.Abs(spec[best]) {
			best = k
		}
	}

	a := math.Log(cmplx.Abs(spec[best-1]) + 1e-300)
	b := math.Log(cmplx.Abs(spec[best]) + 1e-300)
	c := math.Log(cmplx.Abs(spec[best+1]) + 1e-300)

	offset := 0.0
	if d := a - 2*b + c; d != 0 {
		offset = 0.5 * (a - c) / d
	}

	return (float64(best) + offset) * sampleRate / float64(n)
}

// BestLag returns the lag in [minLag, maxLag] that maximises the normalised
// cross-correlation of sig against ref, where sig[i+lag] pairs with ref[i].
func BestLag(ref, sig []float64, minLag, maxLag int) int {
	best, bestScore := minLag, math.Inf(-1)

	for lag := minLag; lag <= maxLag; lag++ {
		dot, energy := 0.0, 0.0
		for i, r := range ref {
			j := i + lag
			if j < 0 || j >= len(sig) {
				continue
			}
			dot += r * sig[j]
			energy += sig[j] * sig[j]
		}

		if energy == 0 {
			continue
		}

		if score := dot / math.Sqrt(energy); score > bestScore {
			best, bestScore = lag, score
		}
	}

	return best
}
