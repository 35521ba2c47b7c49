// Package peak locates spectral peaks used to group bins for phase locking.
package peak

// Picker finds local maxima in magnitude spectra. It holds scratch sized at
// construction and does not allocate afterwards.
type Picker struct {
	peaks []int
}

// New returns a picker for spectra of up to n bins.
func New(n int) *Picker {
	return &Picker{peaks: make([]int, 0, n)}
}

// FindNearestAndNextPeaks scans v[from:from+count] for peaks and fills
// nearest and next over the same range.
//
// A bin is a peak when it is strictly greater than the width bins below it
// and no smaller than the width bins above it, considering only bins inside
// the range. nearest[i] receives the closest peak (the lower one on a tie)
// and next[i] the first peak at or above i. Bins with no peak in the
// relevant direction map to themselves.
func (p *Picker) FindNearestAndNextPeaks(v []float64, from, count, width int, nearest, next []int) {
	if count <= 0 {
		return
	}

	if width < 1 {
		width = 1
	}

	to := from + count
	p.peaks = p.peaks[:0]

	for i := from; i < to; i++ {
		if isPeak(v, i, from, to, width) {
			p.peaks = append(p.peaks, i)
		}
	}

	if len(p.peaks) == 0 {
		for i := from; i < to; i++ {
			nearest[i] = i
			next[i] = i
		}

		return
	}

	k := 0
	for i := from; i < to; i++ {
		for k < len(p.peaks) && p.peaks[k] < i {
			k++
		}

		// p.peaks[k] is the first peak >= i, p.peaks[k-1] the last below.
		switch {
		case k == len(p.peaks):
			nearest[i] = p.peaks[k-1]
			next[i] = i
		case k == 0:
			nearest[i] = p.peaks[0]
			next[i] = p.peaks[0]
		default:
			above, below := p.peaks[k], p.peaks[k-1]
			if above-i < i-below {
				nearest[i] = above
			} else {
				nearest[i] = below
			}
			next[i] = above
		}
	}
}

func isPeak(v []float64, i, from, to, width int) bool {
	x := v[i]

	for j := max(from, i-width); j < i; j++ {
		if v[j] >= x {
			return false
		}
	}

	for j := i + 1; j <= i+width && j < to; j++ {
		if v[j] > x {
			return false
		}
	}

	return true
}
