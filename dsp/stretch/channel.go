package stretch

import (
	"github.com/cwbudde/algo-stretch/dsp/ringbuffer"
	"github.com/cwbudde/algo-stretch/dsp/stretch/classify"
	"github.com/cwbudde/algo-stretch/dsp/stretch/guide"
)

// channelScaleData holds one channel's buffers for one scale.
type channelScaleData struct {
	timeDomain    []float64
	real          []float64
	imag          []float64
	mag           []float64
	phase         []float64
	advancedPhase []float64
	prevMag       []float64

	// pendingKick holds magnitude withheld ahead of a detected onset,
	// valid below pendingTop.
	pendingKick []float64
	pendingTop  int

	// accumulator is the overlap-add buffer, as long as the longest frame.
	accumulator []float64
}

func newChannelScaleData(fftSize, longest int) *channelScaleData {
	bins := fftSize/2 + 1

	return &channelScaleData{
		timeDomain:    make([]float64, fftSize),
		real:          make([]float64, bins),
		imag:          make([]float64, bins),
		mag:           make([]float64, bins),
		phase:         make([]float64, bins),
		advancedPhase: make([]float64, bins),
		prevMag:       make([]float64, bins),
		pendingKick:   make([]float64, bins),
		accumulator:   make([]float64, longest),
	}
}

func (cs *channelScaleData) reset() {
	for _, b := range [][]float64{
		cs.timeDomain, cs.real, cs.imag, cs.mag, cs.phase,
		cs.advancedPhase, cs.prevMag, cs.pendingKick, cs.accumulator,
	} {
		clear(b)
	}

	cs.pendingTop = 0
}

// rollMagnitudes stores the analysed magnitudes as next frame's history.
// Ahead of an onset the rise below top is withheld from mag; otherwise
// anything withheld earlier is released.
func (cs *channelScaleData) rollMagnitudes(preKick bool, top int) {
	if !preKick {
		copy(cs.prevMag, cs.mag)

		for i := 0; i < cs.pendingTop; i++ {
			cs.mag[i] += cs.pendingKick[i]
			cs.pendingKick[i] = 0
		}

		cs.pendingTop = 0

		return
	}

	for i := 0; i < top; i++ {
		rise := cs.mag[i] - cs.prevMag[i]
		cs.prevMag[i] = cs.mag[i]

		if rise > 0 {
			cs.pendingKick[i] += rise
			cs.mag[i] -= rise
		}
	}

	copy(cs.prevMag[top:], cs.mag[top:])
	cs.pendingTop = max(cs.pendingTop, top)
}

// readahead is the classification frame one input hop ahead.
type readahead struct {
	timeDomain []float64
	real       []float64
	imag       []float64
	mag        []float64
}

// channelData holds everything owned by one channel.
type channelData struct {
	in  *ringbuffer.RingBuffer
	out *ringbuffer.RingBuffer

	// windowSource holds the longest frame plus one maximal input hop.
	windowSource []float64

	scales [guide.MaxBands]*channelScaleData

	classifier       classify.Classifier
	segmenter        classify.Segmenter
	classes          []classify.Class
	segmentation     classify.Segmentation
	prevSegmentation classify.Segmentation
	nextSegmentation classify.Segmentation

	readahead readahead
	guidance  guide.Guidance
	formant   *formant

	mixdown []float64
}

func (ch *channelData) reset(initial guide.Guidance) {
	ch.in.Reset()
	ch.out.Reset()
	clear(ch.windowSource)
	clear(ch.mixdown)

	for _, cs := range ch.scales {
		if cs != nil {
			cs.reset()
		}
	}

	ch.classifier.Reset()
	ch.segmenter.Reset()
	clear(ch.classes)

	ch.segmentation = classify.Segmentation{}
	ch.prevSegmentation = classify.Segmentation{}
	ch.nextSegmentation = classify.Segmentation{}

	clear(ch.readahead.timeDomain)
	clear(ch.readahead.mag)

	ch.guidance = initial
}
