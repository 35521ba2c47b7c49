package resample

import "math"

// kernelResolution is the number of table points per zero crossing.
const kernelResolution = 128

// kernel is a tabulated half of sinc(x)*kaiser(x/zeroCrossings) for
// x in [0, zeroCrossings], read back with linear interpolation.
type kernel struct {
	zeroCrossings int
	table         []float64
}

func newKernel(zeroCrossings int, beta float64) kernel {
	n := zeroCrossings*kernelResolution + 2
	table := make([]float64, n)

	for i := range table {
		x := float64(i) / kernelResolution
		table[i] = sinc(x) * kaiserAt(x/float64(zeroCrossings), beta)
	}

	return kernel{zeroCrossings: zeroCrossings, table: table}
}

// at evaluates the kernel at x (in zero crossings).
func (k *kernel) at(x float64) float64 {
	x = math.Abs(x)
	if x >= float64(k.zeroCrossings) {
		return 0
	}

	p := x * kernelResolution
	i := int(p)
	f := p - float64(i)

	return k.table[i] + f*(k.table[i+1]-k.table[i])
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

// kaiserAt evaluates a Kaiser window at normalised distance r in [0, 1]
// from its centre.
func kaiserAt(r, beta float64) float64 {
	if beta == 0 {
		return 1
	}

	if r >= 1 {
		return 0
	}

	return i0(beta*math.Sqrt(1-r*r)) / i0(beta)
}

func i0(x float64) float64 {
	// Power series approximation.
	sum := 1.0
	term := 1.0

	x2 := (x * x) / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)

		sum += term
		if term < 1e-16*sum {
			break
		}
	}

	return sum
}
