package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/stretch"
)

const (
	defaultPitchRatio = 1.0
	minPitchRatio     = 0.25
	maxPitchRatio     = 4.0
	pitchIdentityEps  = 1e-9

	processBlock = 4096
)

// PhaseVocoderShifter shifts the pitch of a mono buffer with the
// multi-resolution phase vocoder of package stretch, keeping its length.
//
// Each call to Process treats its input as a complete signal; no state is
// carried between calls. This processor is not thread-safe.
type PhaseVocoderShifter struct {
	sampleRate       float64
	pitchRatio       float64
	formantPreserved bool
	opts             []stretch.Option

	st  *stretch.Stretcher
	buf []float64
}

// NewPhaseVocoderShifter creates a shifter at sampleRate. opts are passed
// to every stretcher the shifter builds; time ratio and pitch scale options
// are overridden.
func NewPhaseVocoderShifter(sampleRate float64, opts ...stretch.Option) (*PhaseVocoderShifter, error) {
	if !isFinitePositive(sampleRate) {
		return nil, fmt.Errorf("phase vocoder shifter sample rate must be positive and finite: %f", sampleRate)
	}

	p := &PhaseVocoderShifter{
		sampleRate: sampleRate,
		pitchRatio: defaultPitchRatio,
		opts:       opts,
		buf:        make([]float64, processBlock),
	}

	if err := p.rebuild(); err != nil {
		return nil, err
	}

	return p, nil
}

// SampleRate returns the current sample rate in Hz.
func (p *PhaseVocoderShifter) SampleRate() float64 { return p.sampleRate }

// PitchRatio returns the pitch ratio.
func (p *PhaseVocoderShifter) PitchRatio() float64 { return p.pitchRatio }

// PitchSemitones returns the pitch shift in semitones.
func (p *PhaseVocoderShifter) PitchSemitones() float64 { return 12.0 * math.Log2(p.pitchRatio) }

// FormantPreserved reports whether the spectral envelope is kept in place.
func (p *PhaseVocoderShifter) FormantPreserved() bool { return p.formantPreserved }

// SetSampleRate updates the sample rate and rebuilds the stretcher.
func (p *PhaseVocoderShifter) SetSampleRate(sampleRate float64) error {
	if !isFinitePositive(sampleRate) {
		return fmt.Errorf("phase vocoder shifter sample rate must be positive and finite: %f", sampleRate)
	}

	if sampleRate == p.sampleRate {
		return nil
	}

	p.sampleRate = sampleRate

	return p.rebuild()
}

// SetPitchRatio updates the pitch ratio, which must lie in [0.25, 4].
func (p *PhaseVocoderShifter) SetPitchRatio(ratio float64) error {
	if !isFinitePositive(ratio) || ratio < minPitchRatio || ratio > maxPitchRatio {
		return fmt.Errorf("pitch ratio must be in [%f, %f]: %f", minPitchRatio, maxPitchRatio, ratio)
	}

	p.pitchRatio = ratio
	p.st.SetPitchScale(ratio)

	return nil
}

// SetPitchSemitones updates the pitch shift in semitones.
func (p *PhaseVocoderShifter) SetPitchSemitones(semitones float64) error {
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		return fmt.Errorf("phase vocoder shifter semitones must be finite: %f", semitones)
	}

	if err := p.SetPitchRatio(math.Pow(2, semitones/12.0)); err != nil {
		return fmt.Errorf("phase vocoder shifter semitones out of range: %w", err)
	}

	return nil
}

// SetFormantPreserved selects formant preservation. Changing it rebuilds
// the stretcher.
func (p *PhaseVocoderShifter) SetFormantPreserved(enabled bool) error {
	if enabled == p.formantPreserved {
		return nil
	}

	p.formantPreserved = enabled

	return p.rebuild()
}

// Reset clears the stretcher. Process also starts every buffer from a
// clean state.
func (p *PhaseVocoderShifter) Reset() {
	p.st.Reset()
}

// Process returns a pitch-shifted copy of input with the same length.
func (p *PhaseVocoderShifter) Process(input []float64) []float64 {
	if len(input) == 0 {
		return nil
	}

	out := make([]float64, 0, len(input))

	if core.NearlyEqual(p.pitchRatio, 1, pitchIdentityEps) {
		return append(out, input...)
	}

	p.st.Reset()

	for at := 0; at < len(input); at += processBlock {
		end := min(len(input), at+processBlock)
		p.st.Process([][]float64{input[at:end]}, end == len(input))
		out = p.drain(out)
	}

	if len(out) < len(input) {
		out = append(out, make([]float64, len(input)-len(out))...)
	}

	return out[:len(input)]
}

// ProcessInPlace applies pitch shifting to buf in place.
func (p *PhaseVocoderShifter) ProcessInPlace(buf []float64) {
	copy(buf, p.Process(buf))
}

func (p *PhaseVocoderShifter) drain(out []float64) []float64 {
	dst := [][]float64{p.buf}

	for p.st.Available() > 0 {
		n := p.st.Retrieve(dst)
		out = append(out, p.buf[:n]...)
	}

	return out
}

func (p *PhaseVocoderShifter) rebuild() error {
	opts := append([]stretch.Option(nil), p.opts...)
	opts = append(opts, stretch.WithTimeRatio(1), stretch.WithPitchScale(p.pitchRatio))

	if p.formantPreserved {
		opts = append(opts, stretch.WithFormantPreserved())
	}

	st, err := stretch.NewStretcher(p.sampleRate, 1, opts...)
	if err != nil {
		return fmt.Errorf("phase vocoder shifter: %w", err)
	}

	p.st = st

	return nil
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
