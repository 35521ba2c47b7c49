package stretch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stretch/dsp/stretch/guide"
	"github.com/cwbudde/algo-stretch/internal/testutil"
)

// runOffline feeds a mono signal in blocks and collects every output sample.
func runOffline(t *testing.T, s *Stretcher, in []float64, block int) []float64 {
	t.Helper()

	var out []float64
	buf := make([]float64, 4096)

	if len(in) == 0 {
		s.Process(nil, true)
		return drain(s, out, buf)
	}

	for at := 0; at < len(in); at += block {
		end := min(len(in), at+block)
		s.Process([][]float64{in[at:end]}, end == len(in))
		out = drain(s, out, buf)
	}

	require.Equal(t, -1, s.Available(), "stretcher should report end of stream")

	return out
}

func drain(s *Stretcher, out, buf []float64) []float64 {
	for s.Available() > 0 {
		n := s.Retrieve([][]float64{buf})
		out = append(out, buf[:n]...)
	}

	return out
}

func TestSilenceStretchedTwiceResetsEveryFrame(t *testing.T) {
	const fs = 48000.0

	s, err := NewStretcher(fs, 1, WithTimeRatio(2))
	require.NoError(t, err)

	frames := 0
	s.e.onGuidance = func(_ int, g *guide.Guidance) {
		frames++
		assert.True(t, g.PhaseReset.Present)
		assert.Equal(t, 0.0, g.PhaseReset.F0)
		assert.Equal(t, fs/2, g.PhaseReset.F1)
	}

	out := runOffline(t, s, make([]float64, int(fs)), 1024)

	assert.Positive(t, frames)
	require.Len(t, out, 96000)

	for i, v := range out {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("sample %d = %g, want silence", i, v)
		}
	}
}

func TestOfflineOutputLength(t *testing.T) {
	in := testutil.DeterministicNoise(3, 0.3, 30000)

	tests := []struct {
		name  string
		ratio float64
		pitch float64
	}{
		{name: "unity", ratio: 1, pitch: 1},
		{name: "longer", ratio: 1.5, pitch: 1},
		{name: "shorter", ratio: 0.6, pitch: 1},
		{name: "pitch up", ratio: 1, pitch: 1.5},
		{name: "pitch down", ratio: 1.2, pitch: 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStretcher(44100, 1, WithTimeRatio(tt.ratio), WithPitchScale(tt.pitch))
			require.NoError(t, err)

			out := runOffline(t, s, in, 700)

			assert.Len(t, out, int(math.Round(float64(len(in))*tt.ratio)))
			assert.Equal(t, int64(len(out)), s.ExpectedOutputDuration())
			testutil.RequireFinite(t, out)
		})
	}
}

func TestOfflineUnityReproducesTone(t *testing.T) {
	const fs = 48000.0

	in := testutil.DeterministicSine(220, fs, 0.5, 48000)

	s, err := NewStretcher(fs, 1)
	require.NoError(t, err)

	out := runOffline(t, s, in, 1024)
	require.Len(t, out, len(in))

	// Edges lack overlapping frames; compare the steady state.
	lo, hi := 8192, len(in)-8192

	diff := make([]float64, hi-lo)
	for i := range diff {
		diff[i] = out[lo+i] - in[lo+i]
	}

	assert.Less(t, testutil.RMS(diff)/testutil.RMS(in[lo:hi]), 0.05)
}

func TestOfflineStretchKeepsFrequency(t *testing.T) {
	const fs = 44100.0

	in := testutil.DeterministicSine(440, fs, 0.5, 44100)

	for _, single := range []bool{false, true} {
		opts := []Option{WithTimeRatio(1.5)}
		if single {
			opts = append(opts, WithSingleWindow())
		}

		s, err := NewStretcher(fs, 1, opts...)
		require.NoError(t, err)

		out := runOffline(t, s, in, 1024)
		require.Len(t, out, 66150)

		f := testutil.DominantFrequency(out[16384:16384+32768], fs)
		assert.InDelta(t, 440, f, 3, "single window %v", single)
	}
}

func TestOfflinePitchScaleMovesFrequency(t *testing.T) {
	const fs = 44100.0

	in := testutil.DeterministicSine(300, fs, 0.5, 60000)

	s, err := NewStretcher(fs, 1, WithPitchScale(2))
	require.NoError(t, err)

	out := runOffline(t, s, in, 2048)
	require.Len(t, out, len(in))

	f := testutil.DominantFrequency(out[8192:8192+32768], fs)
	assert.InDelta(t, 600, f, 4)
}

func TestRealtimeUnityDelay(t *testing.T) {
	const fs = 48000.0

	s, err := NewStretcher(fs, 1, WithRealtime(), WithMaxProcessSize(512))
	require.NoError(t, err)

	pad := s.PreferredStartPad()
	delay := s.StartDelay()
	require.Equal(t, 2048, pad)
	require.Equal(t, pad, delay)

	tone := testutil.DeterministicSine(100, fs, 0.5, 48000)
	in := testutil.Concat(make([]float64, pad), tone)

	var out []float64
	buf := make([]float64, 4096)

	for at := 0; at+512 <= len(in); at += 512 {
		s.Process([][]float64{in[at : at+512]}, false)
		out = drain(s, out, buf)
	}

	require.Greater(t, len(out), delay+30000)

	ref := tone[8192:24576]
	lag := testutil.BestLag(ref, out, 8192+delay-64, 8192+delay+64)
	assert.InDelta(t, 8192+delay, lag, 2)

	got := out[8192+delay : 24576+delay]
	assert.InDelta(t, 1, testutil.RMS(got)/testutil.RMS(ref), 0.1)
}

func TestRealtimeDoesNotPadOrTrim(t *testing.T) {
	s, err := NewStretcher(48000, 1, WithRealtime())
	require.NoError(t, err)

	assert.Zero(t, s.InputConsumed())

	s.Process([][]float64{make([]float64, 1024)}, false)
	assert.Equal(t, s.e.longest+inhopForRatio(1)-1024, s.SamplesRequired())
	assert.Zero(t, s.OutputProduced())
}

func TestCountersTrackRatio(t *testing.T) {
	in := testutil.DeterministicNoise(11, 0.2, 40000)

	s, err := NewStretcher(48000, 1, WithTimeRatio(1.37))
	require.NoError(t, err)

	runOffline(t, s, in, 1000)

	consumed := s.InputConsumed()
	produced := s.OutputProduced()

	require.Positive(t, consumed)
	assert.InDelta(t, float64(consumed)*1.37, float64(produced), 1)
	// Output runs at least half a frame past the padded input.
	assert.GreaterOrEqual(t, produced, int64(math.Round(40000*1.37))+int64(s.pad()))
}

func TestMidSideKeepsIdenticalChannels(t *testing.T) {
	sig := testutil.DeterministicNoise(5, 0.3, 20000)
	other := append([]float64(nil), sig...)

	s, err := NewStretcher(44100, 2, WithChannelsTogether(), WithTimeRatio(1.25))
	require.NoError(t, err)
	require.True(t, s.e.midSide)

	var left, right []float64
	bl, br := make([]float64, 2048), make([]float64, 2048)

	for at := 0; at < len(sig); at += 1000 {
		end := min(len(sig), at+1000)
		s.Process([][]float64{sig[at:end], other[at:end]}, end == len(sig))

		for s.Available() > 0 {
			n := s.Retrieve([][]float64{bl, br})
			left = append(left, bl[:n]...)
			right = append(right, br[:n]...)
		}
	}

	require.Len(t, left, 25000)
	assert.Equal(t, left, right)
}

func TestChannelsTogetherIgnoredForMono(t *testing.T) {
	s, err := NewStretcher(44100, 1, WithChannelsTogether())
	require.NoError(t, err)
	assert.False(t, s.e.midSide)
}

func TestResetRepeatsOutput(t *testing.T) {
	in := testutil.DeterministicNoise(7, 0.4, 16000)

	s, err := NewStretcher(48000, 1, WithTimeRatio(0.8), WithPitchScale(1.2), WithFormantPreserved())
	require.NoError(t, err)

	first := runOffline(t, s, in, 512)

	s.Reset()
	second := runOffline(t, s, in, 512)

	testutil.RequireSliceNearlyEqual(t, second, first, 1e-12)
}

func TestStudySetsExpectedDuration(t *testing.T) {
	s, err := NewStretcher(48000, 1, WithTimeRatio(2))
	require.NoError(t, err)

	s.Study([][]float64{make([]float64, 3000)}, false)
	s.Study([][]float64{make([]float64, 1000)}, true)

	assert.Equal(t, modeStudying, s.mode)
	assert.Equal(t, int64(8000), s.ExpectedOutputDuration())
}

func TestContractViolationsAreIgnored(t *testing.T) {
	t.Run("study in realtime", func(t *testing.T) {
		s, err := NewStretcher(48000, 1, WithRealtime())
		require.NoError(t, err)

		s.Study([][]float64{make([]float64, 100)}, true)
		assert.Equal(t, modeJustCreated, s.mode)
		assert.Zero(t, s.ExpectedOutputDuration())
	})

	t.Run("study after process", func(t *testing.T) {
		s, err := NewStretcher(48000, 1)
		require.NoError(t, err)

		s.Process([][]float64{make([]float64, 100)}, false)
		s.Study([][]float64{make([]float64, 100)}, false)
		assert.Equal(t, modeProcessing, s.mode)
		assert.Zero(t, s.studied)
	})

	t.Run("channel mismatch", func(t *testing.T) {
		s, err := NewStretcher(48000, 2)
		require.NoError(t, err)

		s.Process([][]float64{make([]float64, 100)}, false)
		assert.Equal(t, modeJustCreated, s.mode)
		assert.Zero(t, s.received)
	})

	t.Run("process after final", func(t *testing.T) {
		s, err := NewStretcher(48000, 1)
		require.NoError(t, err)

		out := runOffline(t, s, make([]float64, 5000), 5000)
		require.Len(t, out, 5000)

		s.Process([][]float64{make([]float64, 100)}, true)
		assert.Equal(t, -1, s.Available())
		assert.Equal(t, int64(5000), s.received)
	})

	t.Run("retrieve channel mismatch", func(t *testing.T) {
		s, err := NewStretcher(48000, 1)
		require.NoError(t, err)

		assert.Zero(t, s.Retrieve([][]float64{make([]float64, 8), make([]float64, 8)}))
	})
}

func TestEmptyFinalProducesNothing(t *testing.T) {
	s, err := NewStretcher(48000, 1, WithTimeRatio(3))
	require.NoError(t, err)

	out := runOffline(t, s, nil, 1)
	assert.Empty(t, out)
	assert.Equal(t, -1, s.Available())
}

func TestNewStretcherRejectsNoChannels(t *testing.T) {
	_, err := NewStretcher(48000, 0)
	require.ErrorIs(t, err, ErrInvalidChannels)
}

func TestSampleRateIsSanitised(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 44100, want: 44100},
		{in: math.NaN(), want: 48000},
		{in: -1, want: 48000},
		{in: 1000, want: 8000},
		{in: 1e6, want: 384000},
	}

	for _, tt := range tests {
		s, err := NewStretcher(tt.in, 1)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.SampleRate())
	}
}

func TestSettersClamp(t *testing.T) {
	s, err := NewStretcher(48000, 1)
	require.NoError(t, err)

	s.SetTimeRatio(100)
	assert.Equal(t, maxTimeRatio, s.TimeRatio())

	s.SetTimeRatio(math.Inf(1))
	assert.Equal(t, 1.0, s.TimeRatio())

	s.SetPitchScale(0.1)
	assert.Equal(t, minPitchScale, s.PitchScale())

	s.SetFormantScale(0)
	assert.Zero(t, s.FormantScale())

	s.SetFormantScale(-2)
	assert.Zero(t, s.FormantScale())

	s.SetFormantScale(8)
	assert.Equal(t, maxPitchScale, s.FormantScale())
}

func TestSetMaxProcessSizeGrowsInput(t *testing.T) {
	s, err := NewStretcher(48000, 1, WithRealtime())
	require.NoError(t, err)

	before := s.e.chans[0].in.Size()

	s.SetMaxProcessSize(8192)
	assert.GreaterOrEqual(t, s.e.chans[0].in.Size(), before+8192-defaultMaxProcessSize)

	s.SetMaxProcessSize(16)
	assert.Equal(t, 8192, s.maxProcessSize)
}

func TestRealtimeProcessDoesNotAllocate(t *testing.T) {
	s, err := NewStretcher(48000, 1, WithRealtime(), WithPitchScale(1.3), WithMaxProcessSize(256))
	require.NoError(t, err)

	in := [][]float64{testutil.DeterministicNoise(1, 0.3, 256)}
	out := [][]float64{make([]float64, 4096)}

	step := func() {
		s.Process(in, false)
		for s.Available() > 0 {
			s.Retrieve(out)
		}
	}

	for range 64 {
		step()
	}

	allocs := testing.AllocsPerRun(32, step)
	assert.Zero(t, allocs)
}
