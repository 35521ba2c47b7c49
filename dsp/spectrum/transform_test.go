package spectrum

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-stretch/internal/testutil"
)

var backends = []Backend{BackendAlgoFFT, BackendGonum}

func TestNewTransformValidation(t *testing.T) {
	for _, n := range []int{0, 1, 3, 1000} {
		if _, err := NewTransform(BackendAlgoFFT, n); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("n=%d: expected ErrInvalidSize, got %v", n, err)
		}
	}

	if _, err := NewTransform(Backend(7), 64); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestForwardFindsSineBin(t *testing.T) {
	const n = 1024

	// Bin 37 exactly.
	in := testutil.DeterministicSine(37, n, 1, n)

	for _, b := range backends {
		t.Run(b.String(), func(t *testing.T) {
			tr, err := NewTransform(b, n)
			if err != nil {
				t.Fatal(err)
			}

			re := make([]float64, n/2+1)
			im := make([]float64, n/2+1)
			mag := make([]float64, n/2+1)
			phase := make([]float64, n/2+1)

			if err := tr.Forward(in, re, im); err != nil {
				t.Fatal(err)
			}

			ToPolar(mag, phase, re, im, 0, n/2+1)

			peak := 0
			for k, v := range mag {
				if v > mag[peak] {
					peak = k
				}
			}

			if peak != 37 {
				t.Fatalf("peak bin=%d, want 37", peak)
			}

			if math.Abs(mag[37]-n/2) > 1e-6 {
				t.Fatalf("peak magnitude=%v, want %v", mag[37], n/2)
			}
		})
	}
}

func TestInverseReconstructs(t *testing.T) {
	const n = 256

	in := testutil.DeterministicNoise(3, 1, n)

	for _, b := range backends {
		tr, err := NewTransform(b, n)
		if err != nil {
			t.Fatal(err)
		}

		re := make([]float64, n/2+1)
		im := make([]float64, n/2+1)
		out := make([]float64, n)

		if err := tr.Forward(in, re, im); err != nil {
			t.Fatal(err)
		}
		if err := tr.Inverse(re, im, out); err != nil {
			t.Fatal(err)
		}

		testutil.RequireSliceNearlyEqual(t, out, in, 1e-9)
	}
}

func TestBackendsAgree(t *testing.T) {
	const n = 512

	in := testutil.DeterministicNoise(11, 1, n)

	var res [2][]float64
	for i, b := range backends {
		tr, err := NewTransform(b, n)
		if err != nil {
			t.Fatal(err)
		}

		re := make([]float64, n/2+1)
		im := make([]float64, n/2+1)
		if err := tr.Forward(in, re, im); err != nil {
			t.Fatal(err)
		}

		res[i] = append(re, im...)
	}

	testutil.RequireSliceNearlyEqual(t, res[0], res[1], 1e-9)
}

func TestInverseCepstralOfFlatSpectrum(t *testing.T) {
	const n = 64

	mag := make([]float64, n/2+1)
	for i := range mag {
		mag[i] = math.E
	}

	for _, b := range backends {
		tr, err := NewTransform(b, n)
		if err != nil {
			t.Fatal(err)
		}

		cep := make([]float64, n)
		if err := tr.InverseCepstral(mag, cep); err != nil {
			t.Fatal(err)
		}

		// log(e) == 1 on every bin: a unit impulse at quefrency 0.
		want := math.Log(math.E + cepstralFloor)
		if math.Abs(cep[0]-want) > 1e-9 {
			t.Fatalf("%v: cep[0]=%v, want %v", b, cep[0], want)
		}
		for i := 1; i < n; i++ {
			if math.Abs(cep[i]) > 1e-9 {
				t.Fatalf("%v: cep[%d]=%v, want 0", b, i, cep[i])
			}
		}
	}
}

func TestPolarCartesianRange(t *testing.T) {
	re := []float64{1, 0, -2, 3}
	im := []float64{0, 1, 0, 4}
	mag := make([]float64, 4)
	phase := []float64{9, 9, 9, 9}

	ToPolar(mag, phase, re, im, 1, 2)

	if mag[0] != 0 || phase[0] != 9 || phase[3] != 9 {
		t.Fatal("ToPolar wrote outside the requested range")
	}
	if mag[1] != 1 || math.Abs(phase[1]-math.Pi/2) > 1e-12 {
		t.Fatalf("bin 1: mag=%v phase=%v", mag[1], phase[1])
	}
	if mag[2] != 2 || math.Abs(phase[2]-math.Pi) > 1e-12 {
		t.Fatalf("bin 2: mag=%v phase=%v", mag[2], phase[2])
	}

	re2 := make([]float64, 4)
	im2 := make([]float64, 4)
	ToCartesian(re2, im2, mag, phase, 1, 2)

	if math.Abs(re2[2]+2) > 1e-12 || math.Abs(im2[1]-1) > 1e-12 {
		t.Fatalf("ToCartesian mismatch: %v %v", re2, im2)
	}
}

func TestFFTShift(t *testing.T) {
	buf := []float64{0, 1, 2, 3, 4, 5}
	FFTShift(buf)

	want := []float64{3, 4, 5, 0, 1, 2}
	testutil.RequireSliceNearlyEqual(t, buf, want, 0)
}
