// Package resample provides streaming, variable-ratio sample-rate conversion
// using a Kaiser-windowed sinc kernel.
//
// Quality modes:
//   - QualityFast: lower CPU, lower attenuation
//   - QualityBalanced: default mode
//   - QualityBest: higher attenuation and flatter passband
//
// Default quality/performance matrix:
//
//	mode            zero crossings   nominal stopband
//	QualityFast     8                ~55 dB
//	QualityBalanced 16               ~75 dB
//	QualityBest     32               ~90 dB
//
// The ratio is output rate over input rate and may change on every call.
// Output is aligned with the input: the first output sample corresponds to
// the first input sample. While a stream is open the resampler holds back
// Latency() input samples, which are flushed by a call with final set.
package resample
