package stretch

import (
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"

	"github.com/cwbudde/algo-stretch/dsp/resample"
	"github.com/cwbudde/algo-stretch/dsp/spectrum"
)

const (
	defaultMaxProcessSize = 1024
	defaultBlockSize      = 512

	minPitchScale = 0.25
	maxPitchScale = 4.0
	minTimeRatio  = 1.0 / 64
	maxTimeRatio  = 64.0
	maxBlockSize  = 1 << 16
)

type config struct {
	realtime           bool
	singleWindow       bool
	formantPreserved   bool
	channelsTogether   bool
	lookAhead          bool
	lookAheadSet       bool
	resetOnSilence     bool
	tighterChannelLock bool

	log         logger.Logger
	logLevel    logger.Level
	logLevelSet bool

	timeRatio    float64
	pitchScale   float64
	formantScale float64

	maxProcessSize int
	blockSize      int

	backend         spectrum.Backend
	resampleQuality resample.Quality
}

// Option configures a Stretcher or LiveShifter.
type Option func(*config)

// WithRealtime selects buffered realtime operation: no internal padding or
// trimming, and no allocation once SetMaxProcessSize has been honoured.
func WithRealtime() Option {
	return func(cfg *config) {
		cfg.realtime = true
	}
}

// WithSingleWindow analyses with the classification FFT size only.
func WithSingleWindow() Option {
	return func(cfg *config) {
		cfg.singleWindow = true
	}
}

// WithFormantPreserved keeps the spectral envelope in place when the pitch
// changes.
func WithFormantPreserved() Option {
	return func(cfg *config) {
		cfg.formantPreserved = true
	}
}

// WithChannelsTogether processes stereo input as mid and side so the image
// stays stable. It has no effect on other channel counts.
func WithChannelsTogether() Option {
	return func(cfg *config) {
		cfg.channelsTogether = true
	}
}

// WithLookAhead enables or disables classification one hop ahead, which is
// needed for pre-kick detection.
func WithLookAhead(enabled bool) Option {
	return func(cfg *config) {
		cfg.lookAhead = enabled
		cfg.lookAheadSet = true
	}
}

// WithResetOnSilence controls whether phases are reset on silent frames.
// Enabled by default.
func WithResetOnSilence(enabled bool) Option {
	return func(cfg *config) {
		cfg.resetOnSilence = enabled
	}
}

// WithTighterChannelLock locks phases across channels over the whole
// spectrum instead of the low band only.
func WithTighterChannelLock() Option {
	return func(cfg *config) {
		cfg.tighterChannelLock = true
	}
}

// WithLogger sets the logger. A nil logger selects the package default.
func WithLogger(l logger.Logger) Option {
	return func(cfg *config) {
		cfg.log = l
	}
}

// WithLogLevel restricts the logger to level.
func WithLogLevel(level logger.Level) Option {
	return func(cfg *config) {
		cfg.logLevel = level
		cfg.logLevelSet = true
	}
}

// WithTimeRatio sets the initial time ratio (output duration over input).
func WithTimeRatio(r float64) Option {
	return func(cfg *config) {
		cfg.timeRatio = r
	}
}

// WithPitchScale sets the initial pitch scale (output over input frequency).
func WithPitchScale(s float64) Option {
	return func(cfg *config) {
		cfg.pitchScale = s
	}
}

// WithFormantScale sets the initial formant scale. Zero follows the inverse
// of the pitch scale.
func WithFormantScale(s float64) Option {
	return func(cfg *config) {
		cfg.formantScale = s
	}
}

// WithMaxProcessSize sets the largest block that will be passed to Process.
func WithMaxProcessSize(n int) Option {
	return func(cfg *config) {
		cfg.maxProcessSize = n
	}
}

// WithBlockSize sets the LiveShifter block size. Default 512.
func WithBlockSize(n int) Option {
	return func(cfg *config) {
		cfg.blockSize = n
	}
}

// WithTransform selects the FFT backend.
func WithTransform(b spectrum.Backend) Option {
	return func(cfg *config) {
		cfg.backend = b
	}
}

// WithResampleQuality selects the output resampler quality.
func WithResampleQuality(q resample.Quality) Option {
	return func(cfg *config) {
		cfg.resampleQuality = q
	}
}

func defaultConfig() config {
	return config{
		resetOnSilence:  true,
		timeRatio:       1,
		pitchScale:      1,
		maxProcessSize:  defaultMaxProcessSize,
		blockSize:       defaultBlockSize,
		backend:         spectrum.BackendAlgoFFT,
		resampleQuality: resample.QualityBalanced,
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// sanitize clamps out-of-range settings to usable values and reports each
// change.
func (c *config) sanitize() error {
	var mErr *multierror.Error

	if v, ok := sanitizeRatio(c.timeRatio, minTimeRatio, maxTimeRatio); !ok {
		mErr = multierror.Append(mErr, fmt.Errorf("time ratio %v out of range, using %v", c.timeRatio, v))
		c.timeRatio = v
	}

	if v, ok := sanitizeRatio(c.pitchScale, minPitchScale, maxPitchScale); !ok {
		mErr = multierror.Append(mErr, fmt.Errorf("pitch scale %v out of range, using %v", c.pitchScale, v))
		c.pitchScale = v
	}

	if v, ok := sanitizeFormantScale(c.formantScale); !ok {
		mErr = multierror.Append(mErr, fmt.Errorf("formant scale %v invalid, using %v", c.formantScale, v))
		c.formantScale = v
	}

	if c.maxProcessSize < 1 {
		mErr = multierror.Append(mErr, fmt.Errorf("max process size %d invalid, using %d", c.maxProcessSize, defaultMaxProcessSize))
		c.maxProcessSize = defaultMaxProcessSize
	}

	if c.blockSize < 1 || c.blockSize > maxBlockSize {
		mErr = multierror.Append(mErr, fmt.Errorf("block size %d invalid, using %d", c.blockSize, defaultBlockSize))
		c.blockSize = defaultBlockSize
	}

	if c.backend != spectrum.BackendAlgoFFT && c.backend != spectrum.BackendGonum {
		mErr = multierror.Append(mErr, fmt.Errorf("unknown transform backend %v, using %v", c.backend, spectrum.BackendAlgoFFT))
		c.backend = spectrum.BackendAlgoFFT
	}

	return mErr.ErrorOrNil()
}

// sanitizeRatio replaces non-finite or non-positive values with 1 and
// clamps the rest to [lo, hi]. ok is false when v was changed.
func sanitizeRatio(v, lo, hi float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 1, false
	}

	c := math.Min(hi, math.Max(lo, v))

	return c, c == v
}

// sanitizeFormantScale accepts zero (automatic) or a valid pitch-like scale.
func sanitizeFormantScale(v float64) (float64, bool) {
	if v == 0 {
		return 0, true
	}

	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}

	return sanitizeRatio(v, minPitchScale, maxPitchScale)
}
