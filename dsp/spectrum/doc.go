// Package spectrum provides the real-input transform service used by the
// stretcher together with polar conversion and FFT-shift helpers.
//
// Two backends implement [Transform]: algo-fft (default) and gonum's
// dsp/fourier. Both produce N/2+1 bins from N real samples and use a
// normalised inverse, so Forward followed by Inverse reproduces the input.
package spectrum
