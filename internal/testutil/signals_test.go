package testutil

import (
	"math"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 48000, 1.0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}
	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}
	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}
}

func TestDeterministicNoiseReproducible(t *testing.T) {
	a := DeterministicNoise(42, 1.0, 64)
	b := DeterministicNoise(42, 1.0, 64)
	c := DeterministicNoise(43, 1.0, 64)

	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic at index %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Fatal("different seeds produced identical noise")
	}
}

func TestConcatAndDC(t *testing.T) {
	got := Concat(DC(1, 2), nil, DC(2, 3))
	want := []float64{1, 1, 2, 2, 2}
	RequireSliceNearlyEqual(t, got, want, 0)
}

func TestDominantFrequency(t *testing.T) {
	for _, f := range []float64{220, 440, 1234.5} {
		got := DominantFrequency(DeterministicSine(f, 48000, 0.5, 8192), 48000)
		if math.Abs(got-f) > 2 {
			t.Fatalf("DominantFrequency(%v) = %v", f, got)
		}
	}
}

func TestBestLag(t *testing.T) {
	ref := DeterministicNoise(7, 1, 512)
	sig := Concat(make([]float64, 37), ref)

	if got := BestLag(ref, sig, 0, 100); got != 37 {
		t.Fatalf("BestLag = %d, want 37", got)
	}
}
