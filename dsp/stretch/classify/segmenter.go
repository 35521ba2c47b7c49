package classify

// SegmenterParameters configures a BinSegmenter.
type SegmenterParameters struct {
	FFTSize    int
	BinCount   int
	SampleRate float64
	// ClassFilterLength is the width in bins of the label median filter.
	ClassFilterLength int
}

// DefaultSegmenterParameters returns the settings used by the stretcher.
func DefaultSegmenterParameters(fftSize int, sampleRate float64) SegmenterParameters {
	return SegmenterParameters{
		FFTSize:           fftSize,
		BinCount:          fftSize/2 + 1,
		SampleRate:        sampleRate,
		ClassFilterLength: 18,
	}
}

// BinSegmenter smooths labels across frequency and scans for the low
// percussive run and the top residual and percussive runs.
type BinSegmenter struct {
	p        SegmenterParameters
	filtered []Class
}

var _ Segmenter = (*BinSegmenter)(nil)

// NewBinSegmenter allocates the filter buffer up front.
func NewBinSegmenter(p SegmenterParameters) *BinSegmenter {
	p.ClassFilterLength = max(1, p.ClassFilterLength)

	return &BinSegmenter{p: p, filtered: make([]Class, p.BinCount)}
}

// Reset is a no-op: segmentation depends on the current frame only.
func (s *BinSegmenter) Reset() {}

// Segment reduces classes to frequency boundaries.
func (s *BinSegmenter) Segment(classes []Class) Segmentation {
	n := s.p.BinCount
	s.filter(classes[:n])

	bin := 1
	for bin < n && s.filtered[bin] == Percussive {
		bin++
	}

	var seg Segmentation
	if bin > 1 {
		seg.PercussiveBelow = s.frequency(bin)
	}

	bin = n - 1
	for bin > 0 && s.filtered[bin] == Residual {
		bin--
	}

	seg.ResidualAbove = s.frequency(bin + 1)

	for bin > 0 && s.filtered[bin] == Percussive {
		bin--
	}

	seg.PercussiveAbove = s.frequency(bin + 1)

	return seg
}

// filter is a sliding median over the label values. With three label values
// the median follows directly from per-label counts.
func (s *BinSegmenter) filter(classes []Class) {
	n := len(classes)
	length := min(s.p.ClassFilterLength, n)
	half := length / 2

	var counts [3]int

	lo, hi := 0, 0
	for bin := 0; bin < n; bin++ {
		wantLo := max(0, bin-half)
		wantHi := min(n, wantLo+length)

		for hi < wantHi {
			counts[classes[hi]]++
			hi++
		}

		for lo < wantLo {
			counts[classes[lo]]--
			lo++
		}

		mid := (hi - lo - 1) / 2
		switch {
		case mid < counts[Harmonic]:
			s.filtered[bin] = Harmonic
		case mid < counts[Harmonic]+counts[Percussive]:
			s.filtered[bin] = Percussive
		default:
			s.filtered[bin] = Residual
		}
	}
}

func (s *BinSegmenter) frequency(bin int) float64 {
	nyquist := s.p.SampleRate / 2
	f := float64(bin) * s.p.SampleRate / float64(s.p.FFTSize)

	return min(f, nyquist)
}
