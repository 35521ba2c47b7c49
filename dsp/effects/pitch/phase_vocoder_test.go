package pitch

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-stretch/internal/testutil"
)

func TestNewPhaseVocoderShifter(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		wantErr    bool
	}{
		{name: "valid 44100", sampleRate: 44100, wantErr: false},
		{name: "valid 48000", sampleRate: 48000, wantErr: false},
		{name: "invalid zero", sampleRate: 0, wantErr: true},
		{name: "invalid negative", sampleRate: -1, wantErr: true},
		{name: "invalid NaN", sampleRate: math.NaN(), wantErr: true},
		{name: "invalid +Inf", sampleRate: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPhaseVocoderShifter(tt.sampleRate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPhaseVocoderShifter() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr && p == nil {
				t.Fatalf("NewPhaseVocoderShifter() returned nil without error")
			}
		})
	}
}

func TestPhaseVocoderShifterSetPitchRatio(t *testing.T) {
	p, err := NewPhaseVocoderShifter(48000)
	if err != nil {
		t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
	}

	tests := []struct {
		name    string
		ratio   float64
		wantErr bool
	}{
		{name: "valid octave down", ratio: 0.5, wantErr: false},
		{name: "valid unison", ratio: 1.0, wantErr: false},
		{name: "valid octave up", ratio: 2.0, wantErr: false},
		{name: "invalid zero", ratio: 0, wantErr: true},
		{name: "invalid low bound", ratio: 0.1, wantErr: true},
		{name: "invalid high bound", ratio: 8.0, wantErr: true},
		{name: "invalid NaN", ratio: math.NaN(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetPitchRatio(tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetPitchRatio(%f) error = %v, wantErr %v", tt.ratio, err, tt.wantErr)
			}

			if !tt.wantErr && p.PitchRatio() != tt.ratio {
				t.Fatalf("PitchRatio() = %f, want %f", p.PitchRatio(), tt.ratio)
			}
		})
	}
}

func TestPhaseVocoderShifterSemitones(t *testing.T) {
	p, err := NewPhaseVocoderShifter(48000)
	if err != nil {
		t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
	}

	if err := p.SetPitchSemitones(12); err != nil {
		t.Fatalf("SetPitchSemitones(12) error = %v", err)
	}

	if math.Abs(p.PitchRatio()-2) > 1e-12 {
		t.Fatalf("PitchRatio() = %f, want 2", p.PitchRatio())
	}

	if math.Abs(p.PitchSemitones()-12) > 1e-9 {
		t.Fatalf("PitchSemitones() = %f, want 12", p.PitchSemitones())
	}

	if err := p.SetPitchSemitones(36); err == nil {
		t.Fatalf("SetPitchSemitones(36) should fail")
	}

	if err := p.SetPitchSemitones(math.Inf(1)); err == nil {
		t.Fatalf("SetPitchSemitones(+Inf) should fail")
	}
}

func TestPhaseVocoderShifterMovesTone(t *testing.T) {
	const fs = 48000.0

	tests := []struct {
		name    string
		ratio   float64
		formant bool
	}{
		{name: "fifth up", ratio: 1.5},
		{name: "octave down", ratio: 0.5},
		{name: "fifth up with formants", ratio: 1.5, formant: true},
	}

	in := testutil.DeterministicSine(400, fs, 0.5, 65536)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPhaseVocoderShifter(fs)
			if err != nil {
				t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
			}

			if err := p.SetFormantPreserved(tt.formant); err != nil {
				t.Fatalf("SetFormantPreserved() error = %v", err)
			}

			if err := p.SetPitchRatio(tt.ratio); err != nil {
				t.Fatalf("SetPitchRatio() error = %v", err)
			}

			out := p.Process(in)
			if len(out) != len(in) {
				t.Fatalf("len(out) = %d, want %d", len(out), len(in))
			}

			testutil.RequireFinite(t, out)

			got := testutil.DominantFrequency(out[16384:16384+32768], fs)
			want := 400 * tt.ratio

			if math.Abs(got-want) > 4 {
				t.Fatalf("dominant frequency = %.2f Hz, want %.2f Hz", got, want)
			}
		})
	}
}

func TestPhaseVocoderShifterIdentityCopies(t *testing.T) {
	p, err := NewPhaseVocoderShifter(44100)
	if err != nil {
		t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
	}

	in := testutil.DeterministicNoise(1, 0.5, 1000)
	out := p.Process(in)

	testutil.RequireSliceNearlyEqual(t, out, in, 0)

	out[0] = 42
	if in[0] == 42 {
		t.Fatalf("Process returned the input slice")
	}
}

func TestPhaseVocoderShifterIsRepeatable(t *testing.T) {
	p, err := NewPhaseVocoderShifter(44100)
	if err != nil {
		t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
	}

	if err := p.SetPitchSemitones(-3); err != nil {
		t.Fatalf("SetPitchSemitones() error = %v", err)
	}

	in := testutil.DeterministicNoise(5, 0.4, 20000)

	first := p.Process(in)

	buf := append([]float64(nil), in...)
	p.ProcessInPlace(buf)

	testutil.RequireSliceNearlyEqual(t, buf, first, 1e-12)
}

func TestPhaseVocoderShifterSetSampleRate(t *testing.T) {
	p, err := NewPhaseVocoderShifter(44100)
	if err != nil {
		t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
	}

	if err := p.SetSampleRate(0); err == nil {
		t.Fatalf("SetSampleRate(0) should fail")
	}

	if err := p.SetPitchRatio(2); err != nil {
		t.Fatalf("SetPitchRatio() error = %v", err)
	}

	if err := p.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate(96000) error = %v", err)
	}

	if p.SampleRate() != 96000 || p.st.SampleRate() != 96000 {
		t.Fatalf("sample rate not applied: %f / %f", p.SampleRate(), p.st.SampleRate())
	}

	if p.st.PitchScale() != 2 {
		t.Fatalf("pitch scale lost on rebuild: %f", p.st.PitchScale())
	}
}

func TestPhaseVocoderShifterEmptyInput(t *testing.T) {
	p, err := NewPhaseVocoderShifter(48000)
	if err != nil {
		t.Fatalf("NewPhaseVocoderShifter() error = %v", err)
	}

	if out := p.Process(nil); out != nil {
		t.Fatalf("Process(nil) = %v, want nil", out)
	}
}
