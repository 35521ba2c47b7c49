package window

import "math"

// Analysis holds numerically computed spectral properties of a window.
type Analysis struct {
	// CoherentGain is sum(w[n]) / N, the DC response of the window.
	CoherentGain float64
	// ENBW is the equivalent noise bandwidth in bins.
	ENBW float64
	// Bandwidth3dB is the two-sided half-power main lobe width in bins.
	Bandwidth3dB float64
	// ScallopLossdB is the response half a bin away from DC relative to DC.
	ScallopLossdB float64
	// HighestSidelobedB is the largest response past the first null, relative to DC.
	HighestSidelobedB float64
}

// Analyze evaluates the window's DTFT numerically.
func Analyze(coeffs []float64) Analysis {
	n := len(coeffs)
	if n == 0 {
		return Analysis{}
	}

	dc := responseAt(coeffs, 0)
	if dc == 0 {
		return Analysis{}
	}

	var a Analysis

	a.CoherentGain = math.Sqrt(dc) / float64(n)
	a.ENBW, _ = EquivalentNoiseBandwidth(coeffs)
	a.ScallopLossdB = 10 * math.Log10(responseAt(coeffs, 0.5/float64(n))/dc)

	lo, hi := 0.0, 0.5
	for range 60 {
		mid := (lo + hi) / 2
		if responseAt(coeffs, mid)/dc > 0.5 {
			lo = mid
		} else {
			hi = mid
		}
	}

	a.Bandwidth3dB = 2 * lo * float64(n)

	// Walk outward in eighth-bin steps: first down to the null, then track
	// the largest value beyond it.
	step := 1 / (8 * float64(n))
	prev := dc
	f := step
	for ; f < 0.5; f += step {
		v := responseAt(coeffs, f)
		if v > prev && prev < dc*0.1 {
			break
		}
		prev = v
	}

	peak := 0.0
	for ; f < 0.5; f += step {
		peak = math.Max(peak, responseAt(coeffs, f))
	}

	if peak > 0 {
		a.HighestSidelobedB = 10 * math.Log10(peak/dc)
	} else {
		a.HighestSidelobedB = math.Inf(-1)
	}

	return a
}

// responseAt returns |W(f)|^2 at normalised frequency f in cycles per sample.
func responseAt(coeffs []float64, f float64) float64 {
	re, im := 0.0, 0.0
	w := 2 * math.Pi * f
	for k, c := range coeffs {
		re += c * math.Cos(w*float64(k))
		im -= c * math.Sin(w*float64(k))
	}
	return re*re + im*im
}
