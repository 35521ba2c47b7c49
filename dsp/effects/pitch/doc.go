// Package pitch provides one-shot pitch-shifting processors behind a
// common interface.
//
// Included processors:
//   - PhaseVocoderShifter: Multi-resolution phase vocoder built on
//     package stretch, with optional formant preservation.
//   - PitchProcessor: Shared interface for interchangeable shifters.
package pitch
