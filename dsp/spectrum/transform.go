package spectrum

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
)

// ErrInvalidSize is returned for transform sizes that are not a power of two >= 2.
var ErrInvalidSize = errors.New("spectrum: transform size must be a power of two >= 2")

// Backend selects the FFT implementation behind a [Transform].
type Backend int

const (
	// BackendAlgoFFT uses github.com/cwbudde/algo-fft complex plans.
	BackendAlgoFFT Backend = iota
	// BackendGonum uses gonum.org/v1/gonum/dsp/fourier real transforms.
	BackendGonum
)

func (b Backend) String() string {
	switch b {
	case BackendAlgoFFT:
		return "algo-fft"
	case BackendGonum:
		return "gonum"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// cepstralFloor keeps log() finite on silent bins.
const cepstralFloor = 1e-6

// Transform is a fixed-size real FFT.
//
// Forward reads Size() time samples and writes Size()/2+1 bins to re and im.
// Inverse is the normalised inverse of Forward. InverseCepstral writes the
// real cepstrum of a magnitude spectrum (Size()/2+1 bins) into Size() samples.
// None of the methods allocate.
type Transform interface {
	Size() int
	Forward(time, re, im []float64) error
	Inverse(re, im, time []float64) error
	InverseCepstral(mag, cepstrum []float64) error
}

// NewTransform builds a transform of size n using backend b.
func NewTransform(b Backend, n int) (Transform, error) {
	if n < 2 || !core.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}

	switch b {
	case BackendAlgoFFT:
		return newAlgoTransform(n)
	case BackendGonum:
		return newGonumTransform(n), nil
	default:
		return nil, fmt.Errorf("spectrum: unknown backend %v", b)
	}
}

// cepstrum holds the scratch needed to express InverseCepstral in terms of
// a backend's Inverse.
type cepstrum struct {
	re, im []float64
}

func newCepstrum(n int) cepstrum {
	return cepstrum{
		re: make([]float64, n/2+1),
		im: make([]float64, n/2+1),
	}
}

func (c *cepstrum) inverse(t Transform, mag, out []float64) error {
	for i := range c.re {
		c.re[i] = math.Log(mag[i] + cepstralFloor)
		c.im[i] = 0
	}

	return t.Inverse(c.re, c.im, out)
}
