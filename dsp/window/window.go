package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window shape.
type Type int

const (
	TypeRectangular Type = iota
	TypeBartlett
	TypeHamming
	TypeHann
	TypeBlackman
	TypeGaussian
	TypeParzen
	TypeNuttall
	TypeBlackmanHarris
	// TypeNiemitaloForward is an asymmetric analysis window whose peak sits
	// late in the frame. TypeNiemitaloReverse is its time reversal and serves
	// as the matching synthesis window.
	TypeNiemitaloForward
	TypeNiemitaloReverse
)

var typeNames = [...]string{
	TypeRectangular:      "Rectangular",
	TypeBartlett:         "Bartlett",
	TypeHamming:          "Hamming",
	TypeHann:             "Hann",
	TypeBlackman:         "Blackman",
	TypeGaussian:         "Gaussian",
	TypeParzen:           "Parzen",
	TypeNuttall:          "Nuttall",
	TypeBlackmanHarris:   "BlackmanHarris",
	TypeNiemitaloForward: "NiemitaloForward",
	TypeNiemitaloReverse: "NiemitaloReverse",
}

// Types lists every supported window shape in declaration order.
func Types() []Type {
	out := make([]Type, len(typeNames))
	for i := range out {
		out[i] = Type(i)
	}

	return out
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Unknown"
	}

	return typeNames[t]
}

// ParseType returns the type whose String matches name.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}

	return 0, false
}

// Window is a cached gain envelope for one (shape, size) pair.
// A Window is immutable after construction and safe for concurrent reads.
type Window struct {
	typ   Type
	cache []float64
	area  float64
}

// New builds the envelope for t at size n.
func New(t Type, n int) (*Window, error) {
	if err := validateSize(n); err != nil {
		return nil, err
	}

	if err := validateType(t); err != nil {
		return nil, err
	}

	cache := Generate(t, n)

	sum := 0.0
	for _, v := range cache {
		sum += v
	}

	return &Window{typ: t, cache: cache, area: sum / float64(n)}, nil
}

// Type returns the window shape.
func (w *Window) Type() Type { return w.typ }

// Size returns the window length.
func (w *Window) Size() int { return len(w.cache) }

// Area returns the arithmetic mean of the envelope.
func (w *Window) Area() float64 { return w.area }

// Value returns the gain at index i.
func (w *Window) Value(i int) float64 { return w.cache[i] }

// Values returns a copy of the envelope.
func (w *Window) Values() []float64 {
	return append([]float64(nil), w.cache...)
}

// RMS returns the root-mean-square gain of the envelope.
func (w *Window) RMS() float64 {
	sum := 0.0
	for _, v := range w.cache {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(w.cache)))
}

// Cut multiplies the first Size() samples of buf by the envelope in place.
func (w *Window) Cut(buf []float64) {
	vecmath.MulBlockInPlace(buf[:len(w.cache)], w.cache)
}

// CutInto writes src*envelope to dst.
func (w *Window) CutInto(src, dst []float64) {
	n := len(w.cache)
	vecmath.MulBlock(dst[:n], src[:n], w.cache)
}

// CutAndAdd accumulates src*envelope into dst.
func (w *Window) CutAndAdd(src, dst []float64) {
	for i, g := range w.cache {
		dst[i] += src[i] * g
	}
}

// Add accumulates envelope*scale into dst.
func (w *Window) Add(dst []float64, scale float64) {
	for i, g := range w.cache {
		dst[i] += g * scale
	}
}

// Generate returns a fresh coefficient slice of length n for shape t.
// Unknown shapes produce a rectangular window.
func Generate(t Type, n int) []float64 {
	if n <= 0 {
		return nil
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}

	switch t {
	case TypeBartlett:
		bartlett(out)
	case TypeHamming:
		cosineWindow(out, 0.54, 0.46, 0, 0)
	case TypeHann:
		cosineWindow(out, 0.5, 0.5, 0, 0)
	case TypeBlackman:
		cosineWindow(out, 0.42, 0.5, 0.08, 0)
	case TypeGaussian:
		gaussian(out)
	case TypeParzen:
		parzen(out)
	case TypeNuttall:
		cosineWindow(out, 0.3635819, 0.4891775, 0.1365995, 0.0106411)
	case TypeBlackmanHarris:
		cosineWindow(out, 0.35875, 0.48829, 0.14128, 0.01168)
	case TypeNiemitaloForward:
		niemitalo(out, 1)
	case TypeNiemitaloReverse:
		niemitalo(out, -1)
	}

	return out
}

// EquivalentNoiseBandwidth returns the ENBW in bins for a window.
func EquivalentNoiseBandwidth(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	sum := 0.0
	sumSquares := 0.0

	for _, c := range coeffs {
		sum += c
		sumSquares += c * c
	}

	if sum == 0 {
		return 0, errZeroCoherentGain
	}

	return float64(len(coeffs)) * sumSquares / (sum * sum), nil
}

// cosineWindow is the periodic generalised cosine form used for FFT framing.
func cosineWindow(out []float64, a0, a1, a2, a3 float64) {
	n := float64(len(out))
	for i := range out {
		x := 2 * math.Pi * float64(i) / n
		out[i] *= a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
	}
}

func bartlett(out []float64) {
	n := len(out)
	if n == 2 {
		out[0], out[1] = 0, 0
		return
	}

	half := n / 2
	for i := 0; i < half; i++ {
		r := float64(i) / float64(half)
		out[i] *= r
		out[i+n-half] *= 1 - r
	}
}

func gaussian(out []float64) {
	n := len(out)
	if n < 2 {
		return
	}

	c := float64(n-1) / 2
	for i := range out {
		d := (float64(i) - c) / (c / 3)
		out[i] *= math.Pow(2, -d*d)
	}
}

func parzen(out []float64) {
	last := len(out) - 1
	if last < 1 {
		return
	}

	half := float64(last) / 2
	for i := range out {
		x := math.Abs(float64(i)-half) / half
		if x <= 0.5 {
			out[i] *= 1 - 6*x*x*(1-x)
		} else {
			out[i] *= 2 * math.Pow(1-x, 3)
		}
	}
}

const (
	niemitaloHarmonics = 10
	niemitaloSkew      = 1.5
)

// niemitalo builds hann(x)*exp(dir*skew*s(x)) where s is a band-limited
// falling sawtooth. Samples sit at half-sample offsets so that the two
// directions are exact index reversals of each other and their product is
// hann(x)^2, which overlap-adds to a constant at quarter-frame hops.
func niemitalo(out []float64, dir float64) {
	n := float64(len(out))
	for i := range out {
		x := (float64(i) + 0.5) / n
		saw := 0.0
		for k := 1; k <= niemitaloHarmonics; k++ {
			saw -= math.Sin(2*math.Pi*float64(k)*x) / (math.Pi * float64(k))
		}

		hann := 0.5 - 0.5*math.Cos(2*math.Pi*x)
		out[i] *= hann * math.Exp(dir*niemitaloSkew*saw)
	}
}
