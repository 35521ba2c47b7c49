package spectrum

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// ToPolar writes magnitude and phase for bins [from, from+count).
// Bins outside the range are left untouched.
func ToPolar(mag, phase, re, im []float64, from, count int) {
	if count <= 0 {
		return
	}

	to := from + count
	vecmath.Magnitude(mag[from:to], re[from:to], im[from:to])

	for i := from; i < to; i++ {
		phase[i] = math.Atan2(im[i], re[i])
	}
}

// ToCartesian is the inverse of ToPolar over bins [from, from+count).
func ToCartesian(re, im, mag, phase []float64, from, count int) {
	for i := from; i < from+count; i++ {
		s, c := math.Sincos(phase[i])
		re[i] = mag[i] * c
		im[i] = mag[i] * s
	}
}

// MagnitudeFromParts computes |X[k]| = sqrt(re[k]^2 + im[k]^2) into dst.
func MagnitudeFromParts(dst, re, im []float64) {
	vecmath.Magnitude(dst, re, im)
}

// FFTShift swaps the two halves of an even-length buffer in place, moving
// the frame centre to index 0.
func FFTShift(buf []float64) {
	half := len(buf) / 2
	for i := 0; i < half; i++ {
		buf[i], buf[i+half] = buf[i+half], buf[i]
	}
}
