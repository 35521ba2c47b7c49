package stretch

import (
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// LiveShifter changes pitch in fixed-size blocks at a constant latency.
//
// Every call to Shift consumes BlockSize input samples per channel and
// produces BlockSize output samples; the output lags the input by
// StartDelay samples regardless of the pitch scale. Analysis uses a single
// FFT resolution and no look-ahead. Shift does not allocate.
//
// Like Stretcher, only the Set methods may be called concurrently with
// Shift.
type LiveShifter struct {
	e         *engine
	log       logger.Logger
	channels  int
	blockSize int
	delay     int
}

// NewLiveShifter returns a shifter for channels channels at sampleRate.
func NewLiveShifter(sampleRate float64, channels int, opts ...Option) (*LiveShifter, error) {
	cfg := newConfig(opts)

	lookAhead := cfg.lookAheadSet && cfg.lookAhead
	timeRatio := cfg.timeRatio

	cfg.realtime = true
	cfg.singleWindow = true
	cfg.lookAhead = false
	cfg.timeRatio = 1

	e, err := newEngine(sampleRate, channels, cfg, true)
	if err != nil {
		return nil, err
	}

	if lookAhead {
		e.log.Warnf("stretch: live shifter runs without look-ahead, ignoring option")
	}

	if timeRatio != 1 {
		e.log.Warnf("stretch: live shifter keeps duration, ignoring time ratio %v", timeRatio)
	}

	l := &LiveShifter{
		e:         e,
		log:       e.log,
		channels:  channels,
		blockSize: e.cfg.blockSize,
	}

	// Output lags by the half frame held in the overlap-add accumulator,
	// stretched by the lowest pitch, plus the resampler history.
	half := float64(e.longest / 2)
	l.delay = int(half) +
		int(math.Ceil(half/minPitchScale)) +
		int(math.Ceil(float64(e.resampler.MaxLatency())/minPitchScale)) + 8

	e.ensureCapacity(
		e.longest+maxInhop+l.blockSize,
		2*(l.delay+l.blockSize+e.maxHopOutput),
	)

	l.Reset()

	return l, nil
}

// Channels returns the channel count.
func (l *LiveShifter) Channels() int { return l.channels }

// BlockSize returns the number of samples per channel Shift works on.
func (l *LiveShifter) BlockSize() int { return l.blockSize }

// StartDelay returns the constant output latency in samples.
func (l *LiveShifter) StartDelay() int { return l.delay }

// Reset discards buffered audio. The output restarts with StartDelay
// samples of silence.
func (l *LiveShifter) Reset() {
	l.e.reset()

	half := l.e.longest / 2
	l.e.writeInputZeros(half)
	l.e.dropPending = half

	for _, ch := range l.e.chans {
		ch.out.WriteZeros(l.delay)
	}
}

// SetPitchScale sets the frequency scale, clamped to [0.25, 4].
func (l *LiveShifter) SetPitchScale(p float64) {
	v, ok := sanitizeRatio(p, minPitchScale, maxPitchScale)
	if !ok {
		l.log.Warnf("stretch: pitch scale %v out of range, using %v", p, v)
	}

	l.e.pitchScale.store(v)
}

// PitchScale returns the current pitch scale.
func (l *LiveShifter) PitchScale() float64 { return l.e.pitchScale.load() }

// SetFormantScale sets the formant scale used with WithFormantPreserved.
func (l *LiveShifter) SetFormantScale(f float64) {
	v, ok := sanitizeFormantScale(f)
	if !ok {
		l.log.Warnf("stretch: formant scale %v invalid, using %v", f, v)
	}

	l.e.formantScale.store(v)
}

// FormantScale returns the current formant scale.
func (l *LiveShifter) FormantScale() float64 { return l.e.formantScale.load() }

// Shift reads BlockSize samples per channel from in and writes BlockSize
// samples per channel to out. On a layout mismatch out is silenced.
func (l *LiveShifter) Shift(in, out [][]float64) {
	b := l.blockSize

	if !l.validBlock(in, out) {
		for _, c := range out {
			clear(c[:min(len(c), b)])
		}

		return
	}

	l.e.writeInput(in, b)

	for l.e.inputAvailable() >= l.e.required() && l.e.outputCanTakeHop() {
		l.e.processHop()
	}

	got := l.e.read(out, b)
	if got < b {
		for _, c := range out {
			clear(c[got:b])
		}

		l.log.Warnf("stretch: live output short by %d samples", b-got)
	}
}

func (l *LiveShifter) validBlock(in, out [][]float64) bool {
	if len(in) != l.channels || len(out) != l.channels {
		l.log.Warnf("stretch: shift with %d/%d channels, expected %d", len(in), len(out), l.channels)

		return false
	}

	for c := range in {
		if len(in[c]) < l.blockSize || len(out[c]) < l.blockSize {
			l.log.Warnf("stretch: shift buffers shorter than block size %d", l.blockSize)

			return false
		}
	}

	return true
}
