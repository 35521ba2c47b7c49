package spectrum

import "gonum.org/v1/gonum/dsp/fourier"

type gonumTransform struct {
	n      int
	fft    *fourier.FFT
	coeffs []complex128
	seq    []float64
	cep    cepstrum
}

func newGonumTransform(n int) *gonumTransform {
	return &gonumTransform{
		n:      n,
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
		seq:    make([]float64, n),
		cep:    newCepstrum(n),
	}
}

func (t *gonumTransform) Size() int { return t.n }

func (t *gonumTransform) Forward(time, re, im []float64) error {
	t.fft.Coefficients(t.coeffs, time[:t.n])

	for k, c := range t.coeffs {
		re[k] = real(c)
		im[k] = imag(c)
	}

	return nil
}

func (t *gonumTransform) Inverse(re, im, time []float64) error {
	for k := range t.coeffs {
		t.coeffs[k] = complex(re[k], im[k])
	}

	// gonum's inverse is unnormalised.
	t.fft.Sequence(t.seq, t.coeffs)

	scale := 1 / float64(t.n)
	for i, v := range t.seq {
		time[i] = v * scale
	}

	return nil
}

func (t *gonumTransform) InverseCepstral(mag, cepstrum []float64) error {
	return t.cep.inverse(t, mag, cepstrum)
}
