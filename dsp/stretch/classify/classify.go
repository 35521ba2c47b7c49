// Package classify labels spectral bins as harmonic, percussive or residual
// and reduces those labels to frequency boundaries.
//
// The stretcher treats both stages as oracles behind the [Classifier] and
// [Segmenter] interfaces; [BinClassifier] and [BinSegmenter] are the default
// median-filter implementations.
package classify

// Class is the label assigned to one bin. The numeric order is used when
// median-filtering labels.
type Class uint8

const (
	Harmonic Class = iota
	Percussive
	Residual
)

func (c Class) String() string {
	switch c {
	case Harmonic:
		return "harmonic"
	case Percussive:
		return "percussive"
	case Residual:
		return "residual"
	default:
		return "unknown"
	}
}

// Segmentation summarises one classified frame as frequency boundaries in Hz.
type Segmentation struct {
	// PercussiveBelow is the top of the percussive run starting at the
	// lowest bins, or 0 when there is none.
	PercussiveBelow float64
	// PercussiveAbove is the bottom of the percussive run sitting below the
	// top residual run.
	PercussiveAbove float64
	// ResidualAbove is the bottom of the residual run reaching Nyquist.
	ResidualAbove float64
}

// Classifier labels every bin of successive magnitude spectra.
type Classifier interface {
	Classify(mag []float64, out []Class)
	Reset()
}

// Segmenter reduces a labelled frame to a Segmentation.
type Segmenter interface {
	Segment(classes []Class) Segmentation
	Reset()
}
