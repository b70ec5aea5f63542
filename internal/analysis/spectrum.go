// SPDX-License-Identifier: MIT
package analysis

import (
	"audioscope/pkg/bitint"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// WindowSize is the number of samples per analysis window (N). The spectrum of
// a window has WindowSize/2 bins.
const WindowSize = 1024

// SpectrumAnalyzer turns a complete window into a log-scaled magnitude
// spectrum. The FFT plan and work buffers are created once, so Analyze does not
// allocate and can run inside the audio callback.
//
// A SpectrumAnalyzer is not safe for concurrent use.
type SpectrumAnalyzer struct {
	size   int
	fft    *fourier.FFT
	input  []float64    // window widened to float64
	coeffs []complex128 // size/2+1 coefficients of the real FFT
}

// NewSpectrumAnalyzer plans a forward FFT of the given size, which must be a
// power of two of at least 2.
func NewSpectrumAnalyzer(size int) (*SpectrumAnalyzer, error) {
	if size < 2 || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("window size must be a power of 2 >= 2, got %d (next is %d)", size, bitint.NextPowerOfTwo(max(size, 2)))
	}
	return &SpectrumAnalyzer{
		size:   size,
		fft:    fourier.NewFFT(size),
		input:  make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}, nil
}

// Size returns the window length the analyzer was planned for.
func (a *SpectrumAnalyzer) Size() int { return a.size }

// Bins returns the number of spectrum values Analyze produces (Size/2).
func (a *SpectrumAnalyzer) Bins() int { return a.size / 2 }

// Analyze computes the spectrum of window into dst.
//
// Each bin k in [0, Size/2) is log10(|X[k]| + 1) * 10, where X is the
// unnormalised DFT of the window with no taper applied. Silence therefore
// maps to exactly 0. For real input the upper half of the DFT mirrors the
// lower half, so the real FFT's first Size/2 coefficients are the same values a
// full complex transform would give.
//
// window shorter than Size is zero padded; dst shorter than Size/2 receives
// only the leading bins.
func (a *SpectrumAnalyzer) Analyze(window, dst []float32) {
	for i := range a.input {
		if i < len(window) {
			a.input[i] = float64(window[i])
		} else {
			a.input[i] = 0
		}
	}

	a.fft.Coefficients(a.coeffs, a.input)

	n := min(len(dst), a.size/2)
	for k := range n {
		dst[k] = float32(math.Log10(cmplx.Abs(a.coeffs[k])+1.0) * 10.0)
	}
}

// Spectrum is Analyze into a newly allocated slice.
func (a *SpectrumAnalyzer) Spectrum(window []float32) []float32 {
	dst := make([]float32, a.size/2)
	a.Analyze(window, dst)
	return dst
}

// FrequencyForBin returns the centre frequency in Hz of bin k at the given
// sample rate, or 0 when k is outside [0, Size/2].
func (a *SpectrumAnalyzer) FrequencyForBin(k int, sampleRate float64) float64 {
	return BinFrequency(k, a.size, sampleRate)
}

// BinFrequency is k * sampleRate / size for k in [0, size/2].
func BinFrequency(k, size int, sampleRate float64) float64 {
	if size <= 0 || k < 0 || k > size/2 {
		return 0
	}
	return float64(k) * sampleRate / float64(size)
}
