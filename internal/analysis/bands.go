// SPDX-License-Identifier: MIT
package analysis

// Band is a named frequency range. HighHz of zero means "up to Nyquist".
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// BandLevel is the mean scaled spectrum value of the bins inside a Band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float32 `json:"level"`
}

// DefaultBands splits the audible range the way most meters do.
var DefaultBands = []Band{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000},
}

// GroupBands averages spectrum bins into bands. The spectrum is assumed to
// come from a window of windowSize samples at sampleRate. dst is reused when it
// has room for every band. Bands with no bins report 0.
func GroupBands(spectrum []float32, sampleRate float64, windowSize int, bands []Band, dst []BandLevel) []BandLevel {
	if cap(dst) < len(bands) {
		dst = make([]BandLevel, len(bands))
	}
	dst = dst[:len(bands)]

	nyquist := sampleRate / 2
	for i, band := range bands {
		high := band.HighHz
		if high <= 0 || high > nyquist {
			high = nyquist
		}

		var sum float32
		var count int
		for k, v := range spectrum {
			freq := BinFrequency(k, windowSize, sampleRate)
			if freq >= band.LowHz && freq < high {
				sum += v
				count++
			}
		}

		dst[i].Name = band.Name
		dst[i].Level = 0
		if count > 0 {
			dst[i].Level = sum / float32(count)
		}
	}
	return dst
}
