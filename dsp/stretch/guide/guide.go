// Package guide decides, frame by frame, how the phase vocoder should
// analyse and resynthesise: which FFT scale covers which frequencies, how
// tightly phases are locked to peaks, and where phases are reset.
package guide

import (
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/stretch/classify"
	"github.com/cwbudde/algo-stretch/internal/logging"
)

// Boundary limits in Hz between the long, classification and short scales.
const (
	minLower     = 500.0
	defaultLower = 700.0
	maxLower     = 1100.0

	minHigher     = 4000.0
	defaultHigher = 4800.0
	maxHigher     = 7000.0
)

const (
	silenceThreshold   = 1e-6
	kickBandTop        = 200.0
	kickMinEnergy      = 1e-2
	kickRiseRatio      = 1.4
	channelLockTop     = 600.0
	resetGap           = 4000.0
	resetLowSnap       = 200.0
	unityResetStart    = 16000.0
	unityResetShrink   = 0.9
	unityResetGrow     = 1.1
	unityResetLowSnap  = 100.0
	longStretchRatio   = 2.0
	longStretchUnlock  = 12000.0
	longStretchMinimum = 1000.0
	valleySearchBins   = 3
)

// Range is an optional frequency interval in Hz.
type Range struct {
	Present bool
	F0      float64
	F1      float64
}

// Contains reports whether f lies in [F0, F1) of a present range.
func (r Range) Contains(f float64) bool {
	return r.Present && f >= r.F0 && f < r.F1
}

// FFTBand assigns the frequency interval [F0, F1) to one scale.
type FFTBand struct {
	FFTSize int
	F0      float64
	F1      float64
}

// PhaseLockBand sets the peak search stride P and lock strength Beta for
// bins in [F0, F1). Beta 0 means fully locked, 1 independent.
type PhaseLockBand struct {
	P    int
	Beta float64
	F0   float64
	F1   float64
}

// Guidance is the per-channel decision bundle for one frame.
type Guidance struct {
	FFTBands       [MaxBands]FFTBand
	PhaseLockBands [4]PhaseLockBand
	Kick           Range
	PreKick        Range
	HighUnlocked   Range
	PhaseReset     Range
	ChannelLock    Range
}

// Input is everything UpdateGuidance looks at. Magnitudes are over the
// classification scale's bins.
type Input struct {
	Ratio      float64
	LastOuthop int

	Magnitudes     []float64
	PrevMagnitudes []float64
	NextMagnitudes []float64

	Segmentation     classify.Segmentation
	PrevSegmentation classify.Segmentation
	NextSegmentation classify.Segmentation

	MeanMagnitude float64
	UnityCount    int

	Realtime           bool
	LookAhead          bool
	TighterChannelLock bool
	ResetOnSilence     bool
}

// Parameters configures a Guide.
type Parameters struct {
	SampleRate       float64
	SingleWindowMode bool
}

// Guide holds configuration only; all per-frame state lives in the
// Guidance passed to UpdateGuidance.
type Guide struct {
	p   Parameters
	cfg Configuration
}

// New derives the scale configuration for p.
func New(p Parameters, log logger.Logger) *Guide {
	g := &Guide{p: p, cfg: newConfiguration(p.SampleRate, p.SingleWindowMode)}

	logging.OrDefault(log).Debugf(
		"guide: sample rate %v, scales %d (longest %d, classification %d, shortest %d)",
		p.SampleRate, g.cfg.BandCount, g.cfg.LongestFFTSize, g.cfg.ClassificationFFTSize, g.cfg.ShortestFFTSize,
	)

	return g
}

// Configuration returns the scale layout.
func (g *Guide) Configuration() *Configuration {
	return &g.cfg
}

// InitialGuidance returns the guidance used before the first frame.
func (g *Guide) InitialGuidance() Guidance {
	var out Guidance
	g.setBands(&out, defaultLower, defaultHigher, 1, 0)

	return out
}

// UpdateGuidance rewrites out for the next frame. The previous contents of
// out are read for band-boundary tracking and reset widening.
func (g *Guide) UpdateGuidance(in *Input, out *Guidance) {
	nyquist := g.p.SampleRate / 2
	previousReset := out.PhaseReset

	out.Kick = Range{}
	out.PreKick = Range{}
	out.HighUnlocked = Range{}
	out.PhaseReset = Range{}
	out.ChannelLock = Range{}

	if in.MeanMagnitude < silenceThreshold && in.ResetOnSilence {
		out.PhaseReset = Range{Present: true, F0: 0, F1: nyquist}
		if !g.p.SingleWindowMode {
			out.FFTBands[0] = FFTBand{FFTSize: g.cfg.LongestFFTSize, F0: 0, F1: 0}
			out.FFTBands[1] = FFTBand{FFTSize: g.cfg.ClassificationFFTSize, F0: 0, F1: nyquist}
			out.FFTBands[2] = FFTBand{FFTSize: g.cfg.ShortestFFTSize, F0: nyquist, F1: nyquist}
		}

		return
	}

	if in.UnityCount > 0 {
		g.unityReset(in, previousReset, out)
		return
	}

	out.ChannelLock = Range{Present: true, F0: 0, F1: channelLockTop}
	if in.TighterChannelLock {
		out.ChannelLock.F1 = nyquist
	}

	g.detectKicks(in, out)

	seg := &in.Segmentation
	next := &in.NextSegmentation

	if seg.ResidualAbove > seg.PercussiveAbove {
		out.HighUnlocked = Range{Present: true, F0: seg.PercussiveAbove, F1: seg.ResidualAbove}
	}

	if hasResetGap(seg) && !hasResetGap(&in.PrevSegmentation) {
		f0 := math.Min(seg.PercussiveAbove, next.PercussiveAbove)
		if f0 < resetLowSnap {
			f0 = 0
		}

		out.PhaseReset = Range{
			Present: true,
			F0:      f0,
			F1:      math.Max(seg.ResidualAbove, next.ResidualAbove),
		}
	}

	lower, higher := defaultLower, defaultHigher
	if !g.p.SingleWindowMode {
		lower = g.descendToValley(out.FFTBands[0].F1, in.Magnitudes)
		if lower < minLower || lower > maxLower {
			lower = defaultLower
		}

		higher = g.descendToValley(out.FFTBands[1].F1, in.Magnitudes)
		if higher < minHigher || higher > maxHigher {
			higher = defaultHigher
		}
	}

	g.setBands(out, lower, higher, in.Ratio, in.LastOuthop)

	if in.Ratio > longStretchRatio {
		factor := in.Ratio - 1
		out.ChannelLock.F1 /= factor

		floor := math.Min(nyquist, math.Max(longStretchMinimum, longStretchUnlock/factor))
		if out.HighUnlocked.Present {
			out.HighUnlocked.F0 = math.Min(out.HighUnlocked.F0, floor)
		} else {
			out.HighUnlocked = Range{Present: true, F0: floor}
		}

		out.HighUnlocked.F1 = nyquist
	}
}

func (g *Guide) unityReset(in *Input, previous Range, out *Guidance) {
	nyquist := g.p.SampleRate / 2

	if !in.Realtime {
		if in.UnityCount == 1 {
			out.PhaseReset = Range{Present: true, F0: 0, F1: nyquist}
		}

		return
	}

	f0, f1 := unityResetStart, nyquist
	if previous.Present {
		f0 = previous.F0 * unityResetShrink
		f1 = previous.F1 * unityResetGrow
	}

	if f0 < unityResetLowSnap {
		f0 = 0
	}

	if f1 > unityResetStart {
		f1 = nyquist
	}

	out.PhaseReset = Range{Present: true, F0: math.Min(f0, nyquist), F1: math.Min(f1, nyquist)}
}

func (g *Guide) detectKicks(in *Input, out *Guidance) {
	class := g.cfg.ClassificationFFTSize
	top := min(core.BinForFrequency(kickBandTop, class, g.p.SampleRate), class/2)

	here := lowEnergy(in.Magnitudes, top)
	there := lowEnergy(in.PrevMagnitudes, top)

	if here > kickMinEnergy && here > there*kickRiseRatio {
		out.Kick = Range{Present: true, F0: 0, F1: in.Segmentation.PercussiveBelow}
		return
	}

	if !in.LookAhead || in.NextMagnitudes == nil {
		return
	}

	ahead := lowEnergy(in.NextMagnitudes, top)
	if ahead > kickMinEnergy && ahead > here*kickRiseRatio {
		out.PreKick = Range{Present: true, F0: 0, F1: in.NextSegmentation.PercussiveBelow}
	}
}

// setBands writes FFT and phase-lock bands for the given boundaries.
func (g *Guide) setBands(out *Guidance, lower, higher, ratio float64, outhop int) {
	nyquist := g.p.SampleRate / 2

	// Low rates put the default boundaries above Nyquist.
	lower = math.Min(lower, nyquist)
	higher = math.Min(math.Max(higher, lower), nyquist)

	if g.p.SingleWindowMode {
		class := g.cfg.ClassificationFFTSize
		out.FFTBands[0] = FFTBand{FFTSize: class, F0: 0, F1: nyquist}
		out.FFTBands[1] = FFTBand{FFTSize: class, F0: nyquist, F1: nyquist}
		out.FFTBands[2] = FFTBand{FFTSize: class, F0: nyquist, F1: nyquist}
	} else {
		out.FFTBands[0] = FFTBand{FFTSize: g.cfg.LongestFFTSize, F0: 0, F1: lower}
		out.FFTBands[1] = FFTBand{FFTSize: g.cfg.ClassificationFFTSize, F0: lower, F1: higher}
		out.FFTBands[2] = FFTBand{FFTSize: g.cfg.ShortestFFTSize, F0: higher, F1: nyquist}
	}

	b := (2 + ratio) / 3
	mid := math.Min(math.Max(lower, 1600), higher)

	p3 := 2
	if outhop > 256 {
		p3 = 3
	}

	out.PhaseLockBands[0] = PhaseLockBand{P: 1, Beta: beta(300, b), F0: 0, F1: lower}
	out.PhaseLockBands[1] = PhaseLockBand{P: 2, Beta: beta(1600, b), F0: lower, F1: mid}
	out.PhaseLockBands[2] = PhaseLockBand{P: p3, Beta: beta(5000, b), F0: mid, F1: higher}
	out.PhaseLockBands[3] = PhaseLockBand{P: 4, Beta: beta(10000, b), F0: higher, F1: nyquist}
}

// descendToValley moves a boundary at most valleySearchBins bins toward a
// lower neighbouring magnitude on the classification scale.
func (g *Guide) descendToValley(f float64, mag []float64) float64 {
	class := g.cfg.ClassificationFFTSize
	n := len(mag)
	if n < 3 {
		return f
	}

	bin := core.ClampInt(core.BinForFrequency(f, class, g.p.SampleRate), 1, n-2)

	for i := 0; i < valleySearchBins; i++ {
		next := bin
		if bin > 1 && mag[bin-1] < mag[next] {
			next = bin - 1
		}

		if bin < n-2 && mag[bin+1] < mag[next] {
			next = bin + 1
		}

		if next == bin {
			break
		}

		bin = next
	}

	return core.FrequencyForBin(bin, class, g.p.SampleRate)
}

func beta(f, b float64) float64 {
	if f <= 10000 {
		return 1 + f*(b-1)/10000
	}

	return b
}

func hasResetGap(s *classify.Segmentation) bool {
	return s.ResidualAbove > s.PercussiveAbove+resetGap
}

func lowEnergy(mag []float64, top int) float64 {
	sum := 0.0
	for i := 1; i <= top && i < len(mag); i++ {
		sum += mag[i]
	}

	return sum
}
