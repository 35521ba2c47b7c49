// Package stretch changes the duration and pitch of audio independently
// using a multi-resolution phase vocoder.
//
// Two front ends share one engine. [Stretcher] serves offline and buffered
// realtime use: feed input with Process, poll Available and collect output
// with Retrieve. [LiveShifter] changes pitch only and turns every fixed-size
// input block into an output block of the same size at a constant latency.
//
// Each analysis hop runs up to three FFT resolutions side by side. A
// [guide.Guide] decides per frame which resolution covers which frequencies
// and where phases are locked or reset, and a [phase.GuidedPhaseAdvance]
// per resolution reconstructs output phases from that guidance. Pitch
// changes beyond the hop schedule are realised by resampling the output.
package stretch
