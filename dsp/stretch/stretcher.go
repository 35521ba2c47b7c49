package stretch

import (
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
)

type processMode int

const (
	modeJustCreated processMode = iota
	modeStudying
	modeProcessing
	modeFinished
)

func (m processMode) String() string {
	switch m {
	case modeJustCreated:
		return "just-created"
	case modeStudying:
		return "studying"
	case modeProcessing:
		return "processing"
	case modeFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// realtimeOutputBlocks sizes the realtime output buffer in max-size
// process blocks.
const realtimeOutputBlocks = 8

// Stretcher changes duration and pitch of a multi-channel stream.
//
// In the default offline mode the whole input is fed through Process,
// optionally after a Study pass, and the output is exactly
// round(input*timeRatio) samples long with no leading delay. With
// WithRealtime the caller should prepend PreferredStartPad samples of
// silence and discard StartDelay output samples.
//
// A Stretcher is not safe for concurrent use, except that the Set methods
// for time ratio, pitch scale and formant scale may be called from another
// goroutine while processing runs.
type Stretcher struct {
	e        *engine
	log      logger.Logger
	channels int
	mode     processMode
	final    bool

	studied        int64
	received       int64
	maxProcessSize int
}

// NewStretcher returns a stretcher for channels channels at sampleRate.
func NewStretcher(sampleRate float64, channels int, opts ...Option) (*Stretcher, error) {
	cfg := newConfig(opts)
	if !cfg.lookAheadSet {
		cfg.lookAhead = true
	}

	e, err := newEngine(sampleRate, channels, cfg, false)
	if err != nil {
		return nil, err
	}

	s := &Stretcher{
		e:              e,
		log:            e.log,
		channels:       channels,
		maxProcessSize: e.cfg.maxProcessSize,
	}
	s.sizeBuffers()

	return s, nil
}

func (s *Stretcher) sizeBuffers() {
	in := s.e.longest + maxInhop + s.maxProcessSize + s.pad()
	out := 2 * s.e.maxHopOutput

	if s.e.cfg.realtime {
		out += realtimeOutputBlocks * s.maxProcessSize
	}

	s.e.ensureCapacity(in, out)
}

// pad is the half frame that offline mode prepends and later drops.
func (s *Stretcher) pad() int {
	return s.e.longest / 2
}

// Channels returns the channel count.
func (s *Stretcher) Channels() int { return s.channels }

// SampleRate returns the sample rate in Hz.
func (s *Stretcher) SampleRate() float64 { return s.e.p.sampleRate }

// IsRealtime reports whether the stretcher runs in buffered realtime mode.
func (s *Stretcher) IsRealtime() bool { return s.e.cfg.realtime }

// Reset discards all buffered audio and returns to the initial state.
// Parameters are kept.
func (s *Stretcher) Reset() {
	s.e.reset()
	s.mode = modeJustCreated
	s.final = false
	s.studied = 0
	s.received = 0

	s.log.Debugf("stretch: reset")
}

// SetTimeRatio sets the output duration relative to the input. Invalid
// values are clamped and logged.
func (s *Stretcher) SetTimeRatio(r float64) {
	v, ok := sanitizeRatio(r, minTimeRatio, maxTimeRatio)
	if !ok {
		s.log.Warnf("stretch: time ratio %v out of range, using %v", r, v)
	}

	s.e.timeRatio.store(v)
}

// TimeRatio returns the current time ratio.
func (s *Stretcher) TimeRatio() float64 { return s.e.timeRatio.load() }

// SetPitchScale sets the output frequency relative to the input, within
// [0.25, 4]. Invalid values are clamped and logged.
func (s *Stretcher) SetPitchScale(p float64) {
	v, ok := sanitizeRatio(p, minPitchScale, maxPitchScale)
	if !ok {
		s.log.Warnf("stretch: pitch scale %v out of range, using %v", p, v)
	}

	s.e.pitchScale.store(v)
}

// PitchScale returns the current pitch scale.
func (s *Stretcher) PitchScale() float64 { return s.e.pitchScale.load() }

// SetFormantScale sets the formant scale used with WithFormantPreserved.
// Zero follows the inverse of the pitch scale.
func (s *Stretcher) SetFormantScale(f float64) {
	v, ok := sanitizeFormantScale(f)
	if !ok {
		s.log.Warnf("stretch: formant scale %v invalid, using %v", f, v)
	}

	s.e.formantScale.store(v)
}

// FormantScale returns the current formant scale.
func (s *Stretcher) FormantScale() float64 { return s.e.formantScale.load() }

// StartDelay returns the number of leading output samples to discard in
// realtime mode after feeding PreferredStartPad samples of silence. It is
// zero offline.
func (s *Stretcher) StartDelay() int {
	if !s.e.cfg.realtime {
		return 0
	}

	return int(math.Round(float64(s.pad()) / s.e.pitchScale.load()))
}

// PreferredStartPad returns the silence to prepend in realtime mode.
func (s *Stretcher) PreferredStartPad() int {
	if !s.e.cfg.realtime {
		return 0
	}

	return s.pad()
}

// SamplesRequired returns how many more input samples are needed before
// the next hop can run.
func (s *Stretcher) SamplesRequired() int {
	if s.mode == modeFinished {
		return 0
	}

	avail := s.e.inputAvailable()
	if s.mode != modeProcessing && !s.e.cfg.realtime {
		avail += s.pad()
	}

	return max(0, s.e.required()-avail)
}

// SetMaxProcessSize declares the largest block that will be passed to
// Process. Growing allocates, so in realtime mode call it before
// processing starts.
func (s *Stretcher) SetMaxProcessSize(n int) {
	if n < 1 {
		s.log.Warnf("stretch: max process size %d invalid, ignoring", n)

		return
	}

	if n <= s.maxProcessSize {
		return
	}

	s.maxProcessSize = n
	s.sizeBuffers()

	s.log.Debugf("stretch: max process size now %d", n)
}

// ExpectedOutputDuration returns the output length for the input studied
// or processed so far at the current time ratio.
func (s *Stretcher) ExpectedOutputDuration() int64 {
	in := max(s.studied, s.received)

	return int64(math.Round(float64(in) * s.e.timeRatio.load()))
}

// InputConsumed returns the sum of all input hops, including offline
// padding.
func (s *Stretcher) InputConsumed() int64 { return s.e.hops.consumed }

// OutputProduced returns the sum of all output hops before resampling.
func (s *Stretcher) OutputProduced() int64 { return s.e.hops.produced }

// Study notes the length of input that will later be processed. It is an
// offline-only pass and must precede Process.
func (s *Stretcher) Study(in [][]float64, final bool) {
	if s.e.cfg.realtime {
		s.log.Warnf("stretch: study is not available in realtime mode, ignoring")

		return
	}

	if s.mode == modeProcessing || s.mode == modeFinished {
		s.log.Warnf("stretch: cannot study after processing has started, ignoring")

		return
	}

	n, ok := s.blockLength(in)
	if !ok {
		return
	}

	if s.mode == modeJustCreated {
		s.log.Debugf("stretch: %v -> %v", s.mode, modeStudying)
		s.mode = modeStudying
	}

	s.studied += int64(n)

	if final {
		s.log.Debugf("stretch: studied %d samples", s.studied)
	}
}

// Process feeds one block of input; final marks the end of the stream.
// Output becomes available through Available and Retrieve.
func (s *Stretcher) Process(in [][]float64, final bool) {
	if s.mode == modeFinished {
		s.log.Warnf("stretch: process called after final block, ignoring")

		return
	}

	n, ok := s.blockLength(in)
	if !ok {
		return
	}

	if s.mode != modeProcessing {
		s.begin()
	}

	if n > 0 && s.final {
		s.log.Warnf("stretch: %d samples after final block, ignoring", n)

		n = 0
	}

	if n > 0 {
		if s.e.cfg.realtime && n > s.maxProcessSize {
			s.log.Warnf("stretch: block of %d exceeds max process size %d", n, s.maxProcessSize)
		}

		s.received += int64(s.e.writeInput(in, n))
	}

	if final {
		s.final = true
		if !s.e.cfg.realtime {
			s.e.outputLimit = s.ExpectedOutputDuration()
		}
	}

	s.run()
}

func (s *Stretcher) begin() {
	if !s.e.cfg.realtime {
		s.e.writeInputZeros(s.pad())
		s.e.dropPending = s.pad()
	}

	s.log.Debugf("stretch: %v -> %v", s.mode, modeProcessing)
	s.mode = modeProcessing
}

// blockLength validates the channel layout of in and returns the common
// length.
func (s *Stretcher) blockLength(in [][]float64) (int, bool) {
	if len(in) == 0 {
		return 0, true
	}

	if len(in) != s.channels {
		s.log.Warnf("stretch: got %d channels, expected %d, ignoring block", len(in), s.channels)

		return 0, false
	}

	n := len(in[0])
	for _, c := range in[1:] {
		if len(c) != n {
			s.log.Warnf("stretch: channel lengths differ, truncating block")

			n = min(n, len(c))
		}
	}

	return n, true
}

// preTarget is the hop output, before resampling, after which a finished
// stream is complete.
func (s *Stretcher) preTarget() int64 {
	return int64(math.Round(float64(s.received)*s.e.ratio())) + int64(s.pad())
}

func (s *Stretcher) run() {
	for s.e.outputCanTakeHop() {
		if s.final && s.e.hops.produced >= s.preTarget() {
			s.finish()

			return
		}

		if !s.final && s.e.inputAvailable() < s.e.required() {
			return
		}

		s.e.processHop()
	}
}

func (s *Stretcher) finish() {
	s.e.flush()

	if !s.e.cfg.realtime {
		if deficit := s.e.outputLimit - s.e.emitted; deficit > 0 {
			if deficit > int64(s.e.hops.maxOuthop) {
				s.log.Warnf("stretch: output short by %d samples, padding with silence", deficit)
			} else {
				s.log.Debugf("stretch: padding %d samples of output", deficit)
			}

			s.e.writeSilence(int(deficit))
		}
	}

	s.log.Debugf("stretch: %v -> %v after %d input samples", s.mode, modeFinished, s.received)
	s.mode = modeFinished
}

// Available returns the number of output samples ready to retrieve, or -1
// once the final block has been processed and all output retrieved.
func (s *Stretcher) Available() int {
	n := s.e.outputAvailable()
	if n == 0 && s.mode == modeFinished {
		return -1
	}

	return n
}

// Retrieve moves up to len(out[0]) samples per channel into out and
// returns the count.
func (s *Stretcher) Retrieve(out [][]float64) int {
	if len(out) != s.channels {
		s.log.Warnf("stretch: retrieve with %d channels, expected %d", len(out), s.channels)

		return 0
	}

	n := len(out[0])
	for _, c := range out[1:] {
		n = min(n, len(c))
	}

	return s.e.read(out, n)
}
