package classify

import "slices"

// ClassifierParameters configures a BinClassifier.
type ClassifierParameters struct {
	BinCount int
	// HorizontalFilterLength is the number of frames in the per-bin median.
	HorizontalFilterLength int
	// HorizontalFilterLag delays the frame used for the vertical median so it
	// lines up with the centre of the horizontal history.
	HorizontalFilterLag int
	// VerticalFilterLength is the number of bins in the per-frame median.
	VerticalFilterLength int
	HarmonicThreshold    float64
	PercussiveThreshold  float64
}

// DefaultClassifierParameters returns the settings used by the stretcher.
func DefaultClassifierParameters(binCount int) ClassifierParameters {
	return ClassifierParameters{
		BinCount:               binCount,
		HorizontalFilterLength: 9,
		HorizontalFilterLag:    1,
		VerticalFilterLength:   10,
		HarmonicThreshold:      2.0,
		PercussiveThreshold:    2.0,
	}
}

// BinClassifier separates steady partials from broadband onsets by comparing
// a median over time (large for harmonics) with a median over frequency
// (large for percussive frames).
type BinClassifier struct {
	p ClassifierParameters

	history  [][]float64
	histPos  int
	histFill int

	lagged [][]float64
	lagPos int

	horizontal []float64
	scratch    []float64
}

var _ Classifier = (*BinClassifier)(nil)

// NewBinClassifier allocates all history up front.
func NewBinClassifier(p ClassifierParameters) *BinClassifier {
	p.HorizontalFilterLength = max(1, p.HorizontalFilterLength)
	p.HorizontalFilterLag = max(0, p.HorizontalFilterLag)
	p.VerticalFilterLength = max(1, p.VerticalFilterLength)

	c := &BinClassifier{
		p:          p,
		history:    make([][]float64, p.HorizontalFilterLength),
		lagged:     make([][]float64, p.HorizontalFilterLag+1),
		horizontal: make([]float64, p.BinCount),
		scratch:    make([]float64, max(p.HorizontalFilterLength, p.VerticalFilterLength)),
	}

	for i := range c.history {
		c.history[i] = make([]float64, p.BinCount)
	}

	for i := range c.lagged {
		c.lagged[i] = make([]float64, p.BinCount)
	}

	return c
}

// Reset forgets all history.
func (c *BinClassifier) Reset() {
	for _, row := range c.history {
		clear(row)
	}

	for _, row := range c.lagged {
		clear(row)
	}

	c.histPos, c.histFill, c.lagPos = 0, 0, 0
}

// Classify consumes the next magnitude frame and writes one label per bin.
func (c *BinClassifier) Classify(mag []float64, out []Class) {
	n := c.p.BinCount

	copy(c.history[c.histPos], mag[:n])
	c.histPos = (c.histPos + 1) % len(c.history)
	c.histFill = min(c.histFill+1, len(c.history))

	copy(c.lagged[c.lagPos], mag[:n])
	c.lagPos = (c.lagPos + 1) % len(c.lagged)
	frame := c.lagged[c.lagPos]

	for bin := 0; bin < n; bin++ {
		s := c.scratch[:c.histFill]
		for i := range s {
			s[i] = c.history[i][bin]
		}

		c.horizontal[bin] = median(s)
	}

	half := c.p.VerticalFilterLength / 2

	for bin := 0; bin < n; bin++ {
		lo := max(0, bin-half)
		hi := min(n, lo+c.p.VerticalFilterLength)

		s := c.scratch[:hi-lo]
		copy(s, frame[lo:hi])
		v := median(s)
		h := c.horizontal[bin]

		switch {
		case h > v*c.p.HarmonicThreshold:
			out[bin] = Harmonic
		case v > h*c.p.PercussiveThreshold:
			out[bin] = Percussive
		default:
			out[bin] = Residual
		}
	}
}

// median sorts s in place and returns its lower-middle element.
func median(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}

	slices.Sort(s)

	return s[(len(s)-1)/2]
}
