package spectrum

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
)

type algoTransform struct {
	n    int
	plan *algofft.Plan[complex128]
	time []complex128
	spec []complex128
	cep  cepstrum
}

func newAlgoTransform(n int) (*algoTransform, error) {
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("spectrum: failed to create FFT plan: %w", err)
	}

	return &algoTransform{
		n:    n,
		plan: plan,
		time: make([]complex128, n),
		spec: make([]complex128, n),
		cep:  newCepstrum(n),
	}, nil
}

func (t *algoTransform) Size() int { return t.n }

func (t *algoTransform) Forward(time, re, im []float64) error {
	for i := range t.time {
		t.time[i] = complex(time[i], 0)
	}

	if err := t.plan.Forward(t.spec, t.time); err != nil {
		return fmt.Errorf("spectrum: forward FFT failed: %w", err)
	}

	for k := 0; k <= t.n/2; k++ {
		re[k] = real(t.spec[k])
		im[k] = imag(t.spec[k])
	}

	return nil
}

func (t *algoTransform) Inverse(re, im, time []float64) error {
	half := t.n / 2

	t.spec[0] = complex(re[0], 0)
	t.spec[half] = complex(re[half], 0)

	for k := 1; k < half; k++ {
		t.spec[k] = complex(re[k], im[k])
		t.spec[t.n-k] = complex(re[k], -im[k])
	}

	if err := t.plan.Inverse(t.time, t.spec); err != nil {
		return fmt.Errorf("spectrum: inverse FFT failed: %w", err)
	}

	for i := range t.time {
		time[i] = real(t.time[i])
	}

	return nil
}

func (t *algoTransform) InverseCepstral(mag, cepstrum []float64) error {
	return t.cep.inverse(t, mag, cepstrum)
}
