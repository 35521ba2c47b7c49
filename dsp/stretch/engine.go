package stretch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/cwbudde/algo-stretch/dsp/core"
	"github.com/cwbudde/algo-stretch/dsp/resample"
	"github.com/cwbudde/algo-stretch/dsp/ringbuffer"
	"github.com/cwbudde/algo-stretch/dsp/spectrum"
	"github.com/cwbudde/algo-stretch/dsp/stretch/classify"
	"github.com/cwbudde/algo-stretch/dsp/stretch/guide"
	"github.com/cwbudde/algo-stretch/internal/logging"
)

const (
	defaultSampleRate = 48000.0
	minSampleRate     = 8000.0
	maxSampleRate     = 384000.0
)

type engineParams struct {
	sampleRate float64
	channels   int
	backend    spectrum.Backend
}

// engine runs the per-hop analysis, guidance, phase advance and
// resynthesis shared by Stretcher and LiveShifter. It is not safe for
// concurrent use apart from the atomic parameter cells.
type engine struct {
	log logger.Logger
	cfg config
	p   engineParams

	// pitchOnly makes the effective ratio the pitch scale alone.
	pitchOnly bool

	guide      *guide.Guide
	gcfg       *guide.Configuration
	scales     [guide.MaxBands]*scale
	scaleCount int
	classIndex int
	longest    int

	chans    []*channelData
	guidance []*guide.Guidance
	midSide  bool
	input    guide.Input

	hops       *hopSchedule
	unityCount int

	timeRatio    *atomicFloat
	pitchScale   *atomicFloat
	formantScale *atomicFloat

	resampler    *resample.Resampler
	resampling   bool
	resampled    [][]float64
	mixViews     [][]float64
	maxHopOutput int

	// dropPending pre-resampling samples are discarded before output.
	dropPending int
	// outputLimit caps emitted output; negative means unlimited.
	outputLimit int64
	emitted     int64
	growBuffers bool

	onGuidance func(channel int, g *guide.Guidance)
}

func newEngine(sampleRate float64, channels int, cfg config, pitchOnly bool) (*engine, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}

	log := logging.OrDefault(cfg.log)
	if cfg.logLevelSet {
		log = log.WithLevel(cfg.logLevel)
	}

	if err := cfg.sanitize(); err != nil {
		log.Warnf("stretch: %v", err)
	}

	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		log.Warnf("stretch: invalid sample rate %v, using %v", sampleRate, defaultSampleRate)
		sampleRate = defaultSampleRate
	} else if c := core.Clamp(sampleRate, minSampleRate, maxSampleRate); c != sampleRate {
		log.Warnf("stretch: sample rate %v out of range, using %v", sampleRate, c)
		sampleRate = c
	}

	e := &engine{
		log:          log,
		cfg:          cfg,
		p:            engineParams{sampleRate: sampleRate, channels: channels, backend: cfg.backend},
		pitchOnly:    pitchOnly,
		timeRatio:    newAtomicFloat(cfg.timeRatio),
		pitchScale:   newAtomicFloat(cfg.pitchScale),
		formantScale: newAtomicFloat(cfg.formantScale),
		outputLimit:  -1,
		growBuffers:  !cfg.realtime,
	}

	e.guide = guide.New(guide.Parameters{SampleRate: sampleRate, SingleWindowMode: cfg.singleWindow}, log)
	e.gcfg = e.guide.Configuration()
	e.scaleCount = e.gcfg.BandCount
	e.classIndex = e.gcfg.ClassificationIndex()
	e.longest = e.gcfg.LongestFFTSize

	for i := 0; i < e.scaleCount; i++ {
		s, err := newScale(i, e.gcfg.BandLimits[i], e.gcfg, e.p)
		if err != nil {
			return nil, err
		}

		e.scales[i] = s
	}

	if cfg.channelsTogether {
		if channels == 2 {
			e.midSide = true
		} else {
			log.Debugf("stretch: channels-together ignored for %d channels", channels)
		}
	}

	maxOuthop := e.longest / 2
	e.hops = newHopSchedule(maxOuthop)

	dynamism := resample.DynamismConstant
	if cfg.realtime {
		dynamism = resample.DynamismRatioOftenChanging
	}

	rs, err := resample.New(channels, maxOuthop,
		resample.WithQuality(cfg.resampleQuality),
		resample.WithDynamism(dynamism),
		resample.WithMinRatio(1/maxPitchScale),
	)
	if err != nil {
		return nil, fmt.Errorf("stretch: %w", err)
	}

	e.resampler = rs
	e.maxHopOutput = int(math.Ceil(float64(maxOuthop)/minPitchScale)) +
		int(math.Ceil(float64(rs.MaxLatency())/minPitchScale)) + 8

	e.buildChannels()
	e.reset()

	log.Debugf("stretch: %d channels at %v Hz, %d scales, longest %d, mid/side %v, realtime %v",
		channels, sampleRate, e.scaleCount, e.longest, e.midSide, cfg.realtime)

	return e, nil
}

func (e *engine) buildChannels() {
	classSize := e.gcfg.ClassificationFFTSize
	classBins := classSize/2 + 1

	e.chans = make([]*channelData, e.p.channels)
	e.guidance = make([]*guide.Guidance, e.p.channels)
	e.resampled = make([][]float64, e.p.channels)
	e.mixViews = make([][]float64, e.p.channels)

	for c := range e.chans {
		ch := &channelData{
			in:           ringbuffer.New(e.longest + maxInhop),
			out:          ringbuffer.New(e.maxHopOutput),
			windowSource: make([]float64, e.longest+maxInhop),
			classifier:   classify.NewBinClassifier(classify.DefaultClassifierParameters(classBins)),
			segmenter:    classify.NewBinSegmenter(classify.DefaultSegmenterParameters(classSize, e.p.sampleRate)),
			classes:      make([]classify.Class, classBins),
			readahead: readahead{
				timeDomain: make([]float64, classSize),
				real:       make([]float64, classBins),
				imag:       make([]float64, classBins),
				mag:        make([]float64, classBins),
			},
			mixdown: make([]float64, e.longest/2),
		}

		for i := 0; i < e.scaleCount; i++ {
			ch.scales[i] = newChannelScaleData(e.scales[i].fftSize, e.longest)
		}

		if e.cfg.formantPreserved {
			ch.formant = newFormant(classSize, e.p.sampleRate)
		}

		e.chans[c] = ch
		e.guidance[c] = &ch.guidance
		e.resampled[c] = make([]float64, e.maxHopOutput)
	}

	for i := 0; i < e.scaleCount; i++ {
		e.scales[i].bind(e.chans)
	}
}

// reset returns the engine to its post-construction state.
func (e *engine) reset() {
	e.hops.reset(e.ratio())
	e.unityCount = 0

	for i := 0; i < e.scaleCount; i++ {
		e.scales[i].advance.Reset()
	}

	initial := e.guide.InitialGuidance()
	for _, ch := range e.chans {
		ch.reset(initial)

		if ch.formant != nil {
			ch.formant.reset()
		}
	}

	e.resampler.Reset()
	e.resampling = e.cfg.realtime
	e.dropPending = 0
	e.outputLimit = -1
	e.emitted = 0
}

// ensureCapacity grows the ring buffers to at least the given sizes. It
// allocates and must not run on the audio path.
func (e *engine) ensureCapacity(in, out int) {
	for _, ch := range e.chans {
		if ch.in.Size() < in {
			ch.in = ch.in.Resized(in)
		}

		if ch.out.Size() < out {
			ch.out = ch.out.Resized(out)
		}
	}
}

// ratio is the effective stretch the hop schedule realises.
func (e *engine) ratio() float64 {
	if e.pitchOnly {
		return e.pitchScale.load()
	}

	return e.timeRatio.load() * e.pitchScale.load()
}

// required returns the input samples the next hop reads.
func (e *engine) required() int {
	if e.cfg.lookAhead {
		return e.longest + inhopForRatio(e.ratio())
	}

	return e.longest
}

func (e *engine) inputAvailable() int {
	n := e.chans[0].in.ReadSpace()
	for _, ch := range e.chans[1:] {
		n = min(n, ch.in.ReadSpace())
	}

	return n
}

func (e *engine) inputSpace() int {
	n := e.chans[0].in.WriteSpace()
	for _, ch := range e.chans[1:] {
		n = min(n, ch.in.WriteSpace())
	}

	return n
}

func (e *engine) outputAvailable() int {
	n := e.chans[0].out.ReadSpace()
	for _, ch := range e.chans[1:] {
		n = min(n, ch.out.ReadSpace())
	}

	return n
}

// outputCanTakeHop reports whether one more hop's output surely fits.
func (e *engine) outputCanTakeHop() bool {
	if e.growBuffers {
		return true
	}

	for _, ch := range e.chans {
		if ch.out.WriteSpace() < e.maxHopOutput {
			return false
		}
	}

	return true
}

// writeInput appends n samples per channel, growing the input buffers when
// allowed. It returns the count accepted.
func (e *engine) writeInput(in [][]float64, n int) int {
	if space := e.inputSpace(); space < n {
		if e.growBuffers {
			e.ensureCapacity(e.chans[0].in.Size()*2+n, 0)
		} else {
			e.log.Warnf("stretch: input buffer full, dropping %d samples", n-space)
			n = space
		}
	}

	for c, ch := range e.chans {
		ch.in.Write(in[c][:n])
	}

	return n
}

// writeInputZeros appends n silent samples per channel.
func (e *engine) writeInputZeros(n int) {
	if e.inputSpace() < n {
		e.ensureCapacity(e.chans[0].in.Size()+n, 0)
	}

	for _, ch := range e.chans {
		ch.in.WriteZeros(n)
	}
}

// processHop runs one analysis/synthesis hop. Input shortfall is treated
// as silence.
func (e *engine) processHop() {
	ratio := e.ratio()
	e.hops.plan(ratio)

	inhop, outhop := e.hops.inhop, e.hops.outhop

	need := e.longest
	if e.cfg.lookAhead {
		need += inhop
	}

	for _, ch := range e.chans {
		got := ch.in.Peek(ch.windowSource[:need])
		clear(ch.windowSource[got:need])
	}

	if e.midSide {
		encodeMidSide(e.chans[0].windowSource[:need], e.chans[1].windowSource[:need])
	}

	for _, ch := range e.chans {
		e.analyse(ch, inhop)
	}

	if ratio == 1 {
		e.unityCount++
	} else {
		e.unityCount = 0
	}

	for c, ch := range e.chans {
		e.updateGuidance(c, ch, ratio)
	}

	for i := 0; i < e.scaleCount; i++ {
		s := e.scales[i]
		s.advance.Advance(s.advanced, s.mags, s.phases, s.prevMags, e.gcfg, e.guidance,
			e.midSide, e.hops.prevInhop, e.hops.prevOuthop)
	}

	pitch := e.pitchScale.load()
	formantScale := e.formantScale.load()

	for _, ch := range e.chans {
		e.adjust(ch, pitch, formantScale)
		e.synthesise(ch, outhop)
	}

	if e.midSide {
		decodeMidSide(e.chans[0].mixdown[:outhop], e.chans[1].mixdown[:outhop])
	}

	for _, ch := range e.chans {
		ch.in.Skip(inhop)
	}

	e.hops.commit(ratio)
	e.emit(outhop, pitch)
}

func (e *engine) analyse(ch *channelData, inhop int) {
	for i := 0; i < e.scaleCount; i++ {
		s := e.scales[i]
		cs := ch.scales[i]

		s.analysis.CutInto(ch.windowSource[(e.longest-s.fftSize)/2:], cs.timeDomain)
		spectrum.FFTShift(cs.timeDomain)
		e.forward(s, cs.timeDomain, cs.real, cs.imag)
		spectrum.ToPolar(cs.mag, cs.phase, cs.real, cs.imag, s.polarFrom, s.polarCount)
	}

	if !e.cfg.lookAhead {
		return
	}

	s := e.scales[e.classIndex]
	ra := &ch.readahead

	s.analysis.CutInto(ch.windowSource[(e.longest-s.fftSize)/2+inhop:], ra.timeDomain)
	spectrum.FFTShift(ra.timeDomain)
	e.forward(s, ra.timeDomain, ra.real, ra.imag)
	spectrum.MagnitudeFromParts(ra.mag, ra.real, ra.imag)
}

func (e *engine) forward(s *scale, time, re, im []float64) {
	if err := s.fft.Forward(time, re, im); err != nil {
		e.log.Errorf("stretch: %v", err)
		clear(re)
		clear(im)
	}
}

func (e *engine) updateGuidance(c int, ch *channelData, ratio float64) {
	cs := ch.scales[e.classIndex]

	if e.cfg.lookAhead {
		ch.classifier.Classify(ch.readahead.mag, ch.classes)
		ch.prevSegmentation = ch.segmentation
		ch.segmentation = ch.nextSegmentation
		ch.nextSegmentation = ch.segmenter.Segment(ch.classes)
	} else {
		ch.classifier.Classify(cs.mag, ch.classes)
		ch.prevSegmentation = ch.segmentation
		ch.segmentation = ch.segmenter.Segment(ch.classes)
		ch.nextSegmentation = ch.segmentation
	}

	mean := 0.0
	for _, m := range cs.mag {
		mean += m
	}

	mean /= float64(len(cs.mag))

	e.input = guide.Input{
		Ratio:              ratio,
		LastOuthop:         e.hops.prevOuthop,
		Magnitudes:         cs.mag,
		PrevMagnitudes:     cs.prevMag,
		Segmentation:       ch.segmentation,
		PrevSegmentation:   ch.prevSegmentation,
		NextSegmentation:   ch.nextSegmentation,
		MeanMagnitude:      mean,
		UnityCount:         e.unityCount,
		Realtime:           e.cfg.realtime,
		LookAhead:          e.cfg.lookAhead,
		TighterChannelLock: e.cfg.tighterChannelLock,
		ResetOnSilence:     e.cfg.resetOnSilence,
	}

	if e.cfg.lookAhead {
		e.input.NextMagnitudes = ch.readahead.mag
	}

	e.guide.UpdateGuidance(&e.input, &ch.guidance)

	if e.onGuidance != nil {
		e.onGuidance(c, &ch.guidance)
	}
}

// formantActive reports whether the envelope has to be moved at all.
func (e *engine) formantActive(pitch, formantScale float64) bool {
	if !e.cfg.formantPreserved {
		return false
	}

	if formantScale == 0 {
		return pitch != 1
	}

	return formantScale != 1
}

// adjust rolls magnitude history, withholds or releases pre-onset energy on
// the longest scale and applies formant correction.
func (e *engine) adjust(ch *channelData, pitch, formantScale float64) {
	formant := e.formantActive(pitch, formantScale)
	if formant {
		cls := e.scales[e.classIndex]
		if err := ch.formant.analyse(cls.fft, ch.scales[e.classIndex].mag); err != nil {
			e.log.Errorf("stretch: formant analysis: %v", err)

			formant = false
		}
	}

	for i := 0; i < e.scaleCount; i++ {
		s := e.scales[i]
		cs := ch.scales[i]

		if i == 0 {
			preKick := ch.guidance.PreKick.Present

			top := 0
			if preKick {
				top = e.binFor(s, ch.guidance.PreKick.F1)
			}

			cs.rollMagnitudes(preKick, top)
		} else {
			copy(cs.prevMag, cs.mag)
		}

		if formant {
			ch.formant.adjust(cs.mag, s.fftSize, e.p.sampleRate, pitch, formantScale)
		}
	}
}

func (e *engine) binFor(s *scale, f float64) int {
	return core.ClampInt(core.BinForFrequency(f, s.fftSize, e.p.sampleRate), 0, s.binCount)
}

// synthesise resynthesises each scale's bands, overlap-adds them and moves
// outhop finished samples into the channel mixdown.
func (e *engine) synthesise(ch *channelData, outhop int) {
	nyquist := e.p.sampleRate / 2
	mix := ch.mixdown[:outhop]
	clear(mix)

	for i := 0; i < e.scaleCount; i++ {
		s := e.scales[i]
		cs := ch.scales[i]

		clear(cs.real)
		clear(cs.imag)

		gain := float64(outhop) / s.windowScaleFactor
		active := false

		for _, band := range ch.guidance.FFTBands {
			if band.FFTSize != s.fftSize || band.F1 <= band.F0 {
				continue
			}

			lo := e.binFor(s, band.F0)

			hi := e.binFor(s, band.F1)
			if band.F1 >= nyquist {
				hi = s.binCount
			}

			if hi > lo {
				spectrum.ToCartesian(cs.real, cs.imag, cs.mag, cs.advancedPhase, lo, hi-lo)
				vecmath.ScaleBlockInPlace(cs.real[lo:hi], gain)
				vecmath.ScaleBlockInPlace(cs.imag[lo:hi], gain)
			}

			active = active || hi > lo
		}

		if active {
			if err := s.fft.Inverse(cs.real, cs.imag, cs.timeDomain); err != nil {
				e.log.Errorf("stretch: %v", err)
				clear(cs.timeDomain)
			}

			spectrum.FFTShift(cs.timeDomain)

			sn := s.synthesis.Size()
			s.synthesis.CutAndAdd(cs.timeDomain[(s.fftSize-sn)/2:], cs.accumulator[(e.longest-sn)/2:])
		}

		acc := cs.accumulator
		for j := range mix {
			mix[j] += acc[j]
		}

		copy(acc, acc[outhop:])
		clear(acc[len(acc)-outhop:])
	}
}

// emit passes outhop mixed samples on to the output, dropping any pending
// start padding and resampling when needed.
func (e *engine) emit(outhop int, pitch float64) {
	start := 0
	if e.dropPending > 0 {
		start = min(outhop, e.dropPending)
		e.dropPending -= start
	}

	n := outhop - start
	if n == 0 {
		return
	}

	for c, ch := range e.chans {
		e.mixViews[c] = ch.mixdown[start:outhop]
	}

	if !e.resampling && pitch != 1 {
		e.log.Debugf("stretch: pitch scale %v, resampling output from now on", pitch)

		e.resampling = true
	}

	if !e.resampling {
		e.write(e.mixViews, n)

		return
	}

	space := len(e.resampled[0])
	for {
		got := e.resampler.Resample(e.resampled, space, e.mixViews, n, 1/pitch, false)
		e.write(e.resampled, got)

		n = 0

		if got < space {
			break
		}
	}
}

// flush drains the resampler at end of stream.
func (e *engine) flush() {
	if !e.resampling {
		return
	}

	space := len(e.resampled[0])
	ratio := 1 / e.pitchScale.load()

	for {
		got := e.resampler.Resample(e.resampled, space, nil, 0, ratio, true)
		if got == 0 {
			return
		}

		e.write(e.resampled, got)
	}
}

// write appends n samples per channel to the output buffers, honouring the
// output limit.
func (e *engine) write(src [][]float64, n int) {
	if e.outputLimit >= 0 {
		n = int(min(int64(n), e.outputLimit-e.emitted))
	}

	if n <= 0 {
		return
	}

	if e.growBuffers {
		for _, ch := range e.chans {
			if ch.out.WriteSpace() < n {
				ch.out = ch.out.Resized(ch.out.Size()*2 + n)
			}
		}
	}

	lost := 0
	for c, ch := range e.chans {
		lost = max(lost, n-ch.out.Write(src[c][:n]))
	}

	e.emitted += int64(n)

	if lost > 0 {
		e.log.Warnf("stretch: output buffer full, dropped %d samples", lost)
	}
}

// writeSilence appends n zero samples per channel, honouring the limit.
func (e *engine) writeSilence(n int) {
	if e.outputLimit >= 0 {
		n = int(min(int64(n), e.outputLimit-e.emitted))
	}

	if n <= 0 {
		return
	}

	for _, ch := range e.chans {
		if e.growBuffers && ch.out.WriteSpace() < n {
			ch.out = ch.out.Resized(ch.out.Size()*2 + n)
		}

		ch.out.WriteZeros(n)
	}

	e.emitted += int64(n)
}

// read moves up to len(dst[c]) samples per channel into dst.
func (e *engine) read(dst [][]float64, n int) int {
	n = min(n, e.outputAvailable())

	for c, ch := range e.chans {
		ch.out.Read(dst[c][:n])
	}

	return n
}
