package window

import (
	"errors"
	"math"
	"testing"
)

func TestGenerateAllTypesFinite(t *testing.T) {
	for _, typ := range Types() {
		t.Run(typ.String(), func(t *testing.T) {
			w := Generate(typ, 64)
			if len(w) != 64 {
				t.Fatalf("len=%d, want 64", len(w))
			}

			for i, v := range w {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("coefficient[%d] invalid: %v", i, v)
				}
				if v < -1e-12 {
					t.Fatalf("coefficient[%d] negative: %v", i, v)
				}
			}
		})
	}
}

func TestGenerateIsPure(t *testing.T) {
	for _, typ := range Types() {
		a := Generate(typ, 300)
		b := Generate(typ, 300)

		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%v: sample %d differs between calls: %v vs %v", typ, i, a[i], b[i])
			}
		}
	}
}

func TestAreaIsMean(t *testing.T) {
	for _, typ := range Types() {
		for _, n := range []int{7, 64, 1024} {
			w, err := New(typ, n)
			if err != nil {
				t.Fatalf("New(%v, %d) error: %v", typ, n, err)
			}

			sum := 0.0
			for i := 0; i < w.Size(); i++ {
				sum += w.Value(i)
			}

			if !almostEqual(w.Area(), sum/float64(n), 1e-12) {
				t.Fatalf("%v/%d: area=%v, mean=%v", typ, n, w.Area(), sum/float64(n))
			}
		}
	}
}

func TestKnownAreas(t *testing.T) {
	tests := []struct {
		typ  Type
		want float64
	}{
		{TypeRectangular, 1},
		{TypeHann, 0.5},
		{TypeHamming, 0.54},
		{TypeBlackman, 0.42},
		{TypeNuttall, 0.3635819},
		{TypeBlackmanHarris, 0.35875},
		{TypeBartlett, 0.5},
	}

	for _, tt := range tests {
		w, err := New(tt.typ, 512)
		if err != nil {
			t.Fatal(err)
		}

		if !almostEqual(w.Area(), tt.want, 1e-9) {
			t.Fatalf("%v: area=%v, want %v", tt.typ, w.Area(), tt.want)
		}
	}
}

func TestNiemitaloPairIsTimeReversed(t *testing.T) {
	const n = 2048

	fwd := Generate(TypeNiemitaloForward, n)
	rev := Generate(TypeNiemitaloReverse, n)

	for i := range fwd {
		if !almostEqual(fwd[i], rev[n-1-i], 1e-12) {
			t.Fatalf("index %d: forward=%v reverse[N-1-i]=%v", i, fwd[i], rev[n-1-i])
		}
	}

	// The peak of the analysis window sits in the second half.
	peak := 0
	for i, v := range fwd {
		if v > fwd[peak] {
			peak = i
		}
	}

	if peak <= n/2 {
		t.Fatalf("forward peak at %d, want > %d", peak, n/2)
	}
}

func TestNiemitaloProductOverlapAddsToConstant(t *testing.T) {
	for _, n := range []int{1024, 2048} {
		fwd := Generate(TypeNiemitaloForward, n)
		rev := Generate(TypeNiemitaloReverse, n)
		hop := n / 4

		want := -1.0
		for i := 0; i < hop; i++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				j := i + k*hop
				sum += fwd[j] * rev[j]
			}

			if want < 0 {
				want = sum
			}

			if !almostEqual(sum, want, 1e-9) {
				t.Fatalf("n=%d offset %d: overlap sum=%v, want %v", n, i, sum, want)
			}
		}

		if !almostEqual(want, 1.5, 1e-9) {
			t.Fatalf("n=%d: overlap sum=%v, want 1.5", n, want)
		}
	}
}

func TestCutVariants(t *testing.T) {
	w, err := New(TypeHann, 8)
	if err != nil {
		t.Fatal(err)
	}

	buf := []float64{1, 1, 1, 1, 1, 1, 1, 1, 9}
	w.Cut(buf)

	for i := 0; i < 8; i++ {
		if !almostEqual(buf[i], w.Value(i), 1e-15) {
			t.Fatalf("Cut[%d]=%v, want %v", i, buf[i], w.Value(i))
		}
	}

	if buf[8] != 9 {
		t.Fatalf("Cut wrote past the window: %v", buf[8])
	}

	src := []float64{2, 2, 2, 2, 2, 2, 2, 2}
	dst := make([]float64, 8)
	w.CutInto(src, dst)

	acc := make([]float64, 8)
	w.CutAndAdd(src, acc)
	w.CutAndAdd(src, acc)

	add := make([]float64, 8)
	w.Add(add, 4)

	for i := range dst {
		if !almostEqual(dst[i], 2*w.Value(i), 1e-15) {
			t.Fatalf("CutInto[%d]=%v", i, dst[i])
		}
		if !almostEqual(acc[i], 2*dst[i], 1e-15) {
			t.Fatalf("CutAndAdd[%d]=%v", i, acc[i])
		}
		if !almostEqual(add[i], acc[i], 1e-15) {
			t.Fatalf("Add[%d]=%v, want %v", i, add[i], acc[i])
		}
	}
}

func TestRMS(t *testing.T) {
	w, err := New(TypeRectangular, 10)
	if err != nil {
		t.Fatal(err)
	}
	if w.RMS() != 1 {
		t.Fatalf("rectangular RMS=%v, want 1", w.RMS())
	}

	h, err := New(TypeHann, 1024)
	if err != nil {
		t.Fatal(err)
	}
	// mean(hann^2) = 3/8.
	if !almostEqual(h.RMS(), math.Sqrt(0.375), 1e-9) {
		t.Fatalf("hann RMS=%v", h.RMS())
	}
}

func TestValuesReturnsCopy(t *testing.T) {
	w, err := New(TypeHann, 16)
	if err != nil {
		t.Fatal(err)
	}

	v := w.Values()
	v[3] = 42

	if w.Value(3) == 42 {
		t.Fatal("Values exposed the internal cache")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(TypeHann, 0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	if _, err := New(Type(99), 16); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, ok := ParseType(typ.String())
		if !ok || got != typ {
			t.Fatalf("ParseType(%q) = %v, %v", typ.String(), got, ok)
		}
	}
	if _, ok := ParseType("Kaiser"); ok {
		t.Fatal("unexpected match")
	}
}

func TestENBWAndAnalyze(t *testing.T) {
	w := Generate(TypeHann, 2048)

	enbw, err := EquivalentNoiseBandwidth(w)
	if err != nil {
		t.Fatalf("EquivalentNoiseBandwidth error: %v", err)
	}
	if !almostEqual(enbw, 1.5, 0.01) {
		t.Fatalf("hann ENBW=%v, want ~1.5", enbw)
	}

	a := Analyze(Generate(TypeHann, 256))
	if !almostEqual(a.CoherentGain, 0.5, 1e-9) {
		t.Fatalf("coherent gain=%v", a.CoherentGain)
	}
	if a.Bandwidth3dB < 1.3 || a.Bandwidth3dB > 1.6 {
		t.Fatalf("3 dB bandwidth=%v bins", a.Bandwidth3dB)
	}
	if a.HighestSidelobedB > -30 || a.HighestSidelobedB < -33 {
		t.Fatalf("hann sidelobe=%v dB, want about -31.5", a.HighestSidelobedB)
	}

	if _, err := EquivalentNoiseBandwidth(nil); err == nil {
		t.Fatal("expected error for empty coefficients")
	}
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
