package resample

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRatio indicates a non-positive or non-finite ratio.
	ErrInvalidRatio = errors.New("resample: invalid ratio")
	// ErrInvalidChannels indicates a channel count below one.
	ErrInvalidChannels = errors.New("resample: channel count must be > 0")
)

// Quality controls default anti-aliasing filter settings.
type Quality int

const (
	// QualityFast prioritizes lower CPU usage.
	QualityFast Quality = iota
	// QualityBalanced is the default quality/performance trade-off.
	QualityBalanced
	// QualityBest prioritizes stopband attenuation and passband flatness.
	QualityBest
)

// Profile exposes default filter parameters for each quality mode.
// The kernel spans TapsPerPhase input samples at unity ratio.
type Profile struct {
	TapsPerPhase      int
	CutoffScale       float64
	KaiserBeta        float64
	NominalStopbandDB float64
}

// QualityProfile returns the default profile used by quality mode q.
func QualityProfile(q Quality) Profile {
	switch q {
	case QualityFast:
		return Profile{TapsPerPhase: 16, CutoffScale: 0.88, KaiserBeta: 5.0, NominalStopbandDB: 55}
	case QualityBest:
		return Profile{TapsPerPhase: 64, CutoffScale: 0.96, KaiserBeta: 9.0, NominalStopbandDB: 90}
	default:
		return Profile{TapsPerPhase: 32, CutoffScale: 0.92, KaiserBeta: 7.5, NominalStopbandDB: 75}
	}
}

// Dynamism hints how often the ratio will change between calls.
type Dynamism int

const (
	// DynamismConstant applies a new ratio immediately at the start of a call.
	DynamismConstant Dynamism = iota
	// DynamismRatioOftenChanging ramps the read increment across each call
	// from the previous ratio to the new one to avoid zipper noise.
	DynamismRatioOftenChanging
)

type config struct {
	quality  Quality
	profile  Profile
	dynamism Dynamism
	minRatio float64
}

// Option configures the resampler.
type Option func(*config)

// WithQuality selects a predefined anti-aliasing quality mode.
func WithQuality(q Quality) Option {
	return func(cfg *config) {
		cfg.quality = q
	}
}

// WithDynamism sets the ratio-change hint.
func WithDynamism(d Dynamism) Option {
	return func(cfg *config) {
		cfg.dynamism = d
	}
}

// WithMinRatio sets the smallest ratio the resampler must support without
// narrowing its kernel further. It sizes the history buffers. Default 0.25.
func WithMinRatio(r float64) Option {
	return func(cfg *config) {
		if r > 0 && !math.IsInf(r, 0) {
			cfg.minRatio = r
		}
	}
}

func defaultConfig() config {
	return config{
		quality:  QualityBalanced,
		minRatio: 0.25,
	}
}

func (c config) finalized() config {
	c.profile = QualityProfile(c.quality)
	return c
}

// Resampler converts a multi-channel stream by a ratio that may change
// between calls. It does not allocate after construction.
type Resampler struct {
	cfg      config
	kern     kernel
	channels int
	maxInput int
	maxHalf  int

	bufs    [][]float64
	weights []float64
	filled  int
	pos     float64

	lastRatio float64
	ended     bool
}

// New creates a resampler for the given channel count that accepts at most
// maxInput samples per channel in each call.
func New(channels, maxInput int, opts ...Option) (*Resampler, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	if maxInput < 1 {
		return nil, fmt.Errorf("resample: max input must be > 0: %d", maxInput)
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	cfg = cfg.finalized()

	r := &Resampler{
		cfg:      cfg,
		kern:     newKernel(cfg.profile.TapsPerPhase/2, cfg.profile.KaiserBeta),
		channels: channels,
		maxInput: maxInput,
	}

	r.maxHalf = int(math.Ceil(float64(r.kern.zeroCrossings)/r.cutoff(cfg.minRatio))) + 1

	r.bufs = make([][]float64, channels)
	for c := range r.bufs {
		r.bufs[c] = make([]float64, maxInput+2*r.maxHalf+4)
	}

	r.weights = make([]float64, 2*r.maxHalf+3)
	r.Reset()

	return r, nil
}

// Reset clears the stream state.
func (r *Resampler) Reset() {
	for _, b := range r.bufs {
		for i := range b {
			b[i] = 0
		}
	}

	// Input sample 0 lands after maxHalf priming zeros.
	r.filled = r.maxHalf
	r.pos = float64(r.maxHalf)
	r.lastRatio = 0
	r.ended = false
}

// Channels returns the configured channel count.
func (r *Resampler) Channels() int { return r.channels }

// Quality returns the configured quality mode.
func (r *Resampler) Quality() Quality { return r.cfg.quality }

// Latency returns the number of input samples held back at the last used
// ratio while the stream is open.
func (r *Resampler) Latency() int {
	ratio := r.lastRatio
	if ratio <= 0 {
		ratio = 1
	}

	return int(math.Ceil(float64(r.kern.zeroCrossings) / r.cutoff(ratio)))
}

// MaxLatency returns Latency() at the configured minimum ratio.
func (r *Resampler) MaxLatency() int {
	return r.maxHalf
}

// Resample consumes inCount samples per channel from in and writes at most
// outSpace samples per channel to out, returning the count written.
// ratio is output rate over input rate. Setting final flushes held-back
// input; further input after final is ignored until Reset.
//
// Input beyond the internal capacity is dropped, so callers should pass no
// more than the maxInput given to New and provide at least
// ceil(inCount*ratio)+1 output space.
func (r *Resampler) Resample(out [][]float64, outSpace int, in [][]float64, inCount int, ratio float64, final bool) int {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = r.lastRatio
		if ratio <= 0 {
			ratio = 1
		}
	}

	prevRatio := r.lastRatio
	if prevRatio <= 0 || r.cfg.dynamism == DynamismConstant {
		prevRatio = ratio
	}

	r.lastRatio = ratio

	r.compact()

	if !r.ended && inCount > 0 {
		inCount = min(inCount, len(r.bufs[0])-r.filled)
		for c := 0; c < r.channels; c++ {
			copy(r.bufs[c][r.filled:r.filled+inCount], in[c][:inCount])
		}

		r.filled += inCount
	} else {
		inCount = 0
	}

	if final {
		r.ended = true
	}

	fc := r.cutoff(ratio)
	half := float64(r.kern.zeroCrossings) / fc

	stepFrom := 1 / prevRatio
	stepTo := 1 / ratio
	rampLen := math.Max(1, float64(inCount)*ratio)

	produced := 0
	for produced < outSpace {
		if r.ended {
			if r.pos >= float64(r.filled) {
				break
			}
		} else if r.pos+half > float64(r.filled-1) {
			break
		}

		r.render(out, produced, fc, half)
		produced++

		step := stepTo
		if stepFrom != stepTo {
			t := math.Min(1, float64(produced)/rampLen)
			step = stepFrom + (stepTo-stepFrom)*t
		}

		r.pos += step
	}

	return produced
}

func (r *Resampler) render(out [][]float64, at int, fc, half float64) {
	lo := max(0, int(math.Ceil(r.pos-half)))
	hi := min(r.filled-1, int(math.Floor(r.pos+half)))

	n := 0
	for j := lo; j <= hi && n < len(r.weights); j++ {
		r.weights[n] = fc * r.kern.at((float64(j)-r.pos)*fc)
		n++
	}

	for c := 0; c < r.channels; c++ {
		src := r.bufs[c][lo : lo+n]

		sum := 0.0
		for i, w := range r.weights[:n] {
			sum += src[i] * w
		}

		out[c][at] = sum
	}
}

// compact drops history no longer reachable by the kernel.
func (r *Resampler) compact() {
	drop := int(math.Floor(r.pos)) - r.maxHalf - 1
	if drop <= 0 {
		return
	}

	drop = min(drop, r.filled)
	for _, b := range r.bufs {
		copy(b, b[drop:r.filled])
	}

	r.filled -= drop
	r.pos -= float64(drop)
}

func (r *Resampler) cutoff(ratio float64) float64 {
	return math.Min(1, math.Max(ratio, r.cfg.minRatio)) * r.cfg.profile.CutoffScale
}

// Process resamples a complete mono signal by ratio in one call.
func Process(input []float64, ratio float64, opts ...Option) ([]float64, error) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRatio, ratio)
	}

	if len(input) == 0 {
		return nil, nil
	}

	r, err := New(1, len(input), append(opts, WithMinRatio(math.Min(ratio, 0.25)))...)
	if err != nil {
		return nil, err
	}

	out := make([]float64, int(math.Ceil(float64(len(input))*ratio))+2)
	n := r.Resample([][]float64{out}, len(out), [][]float64{input}, len(input), ratio, true)

	return out[:n], nil
}
