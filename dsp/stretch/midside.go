package stretch

// encodeMidSide converts a left/right pair in place to mid and side.
func encodeMidSide(left, right []float64) {
	for i := range left {
		l, r := left[i], right[i]
		left[i] = (l + r) / 2
		right[i] = (l - r) / 2
	}
}

// decodeMidSide is the inverse of encodeMidSide.
func decodeMidSide(mid, side []float64) {
	for i := range mid {
		m, s := mid[i], side[i]
		mid[i] = m + s
		side[i] = m - s
	}
}
