// SPDX-License-Identifier: MIT
package analysis

import (
	"audioscope/pkg/utils"
	"testing"
)

func TestGroupBandsSilence(t *testing.T) {
	spectrum := make([]float32, WindowSize/2)
	levels := GroupBands(spectrum, testSampleRate, WindowSize, DefaultBands, nil)

	if len(levels) != len(DefaultBands) {
		t.Fatalf("got %d levels, want %d", len(levels), len(DefaultBands))
	}
	for i, l := range levels {
		if l.Name != DefaultBands[i].Name {
			t.Errorf("level %d name = %q, want %q", i, l.Name, DefaultBands[i].Name)
		}
		if l.Level != 0 {
			t.Errorf("band %s = %f, want 0", l.Name, l.Level)
		}
	}
}

func TestGroupBandsFindsLoudestBand(t *testing.T) {
	a := newTestAnalyzer(t, WindowSize)
	spectrum := a.Spectrum(utils.GenerateSineWave(WindowSize, testSampleRate, 1000, 0.8))

	levels := GroupBands(spectrum, testSampleRate, WindowSize, DefaultBands, nil)

	loudest := 0
	for i := range levels {
		if levels[i].Level > levels[loudest].Level {
			loudest = i
		}
	}
	if levels[loudest].Name != "mid" {
		t.Errorf("loudest band = %s, want mid", levels[loudest].Name)
	}
}

func TestGroupBandsReusesDst(t *testing.T) {
	spectrum := make([]float32, WindowSize/2)
	dst := make([]BandLevel, len(DefaultBands))

	allocs := testing.AllocsPerRun(50, func() {
		dst = GroupBands(spectrum, testSampleRate, WindowSize, DefaultBands, dst)
	})
	if allocs > 0 {
		t.Errorf("GroupBands allocated %.1f times with a reusable dst", allocs)
	}
}

func TestGroupBandsEmptyBand(t *testing.T) {
	spectrum := make([]float32, 8)
	for i := range spectrum {
		spectrum[i] = 1
	}
	bands := []Band{{Name: "above-nyquist", LowHz: 30000, HighHz: 40000}}

	levels := GroupBands(spectrum, testSampleRate, 16, bands, nil)
	if levels[0].Level != 0 {
		t.Errorf("empty band level = %f, want 0", levels[0].Level)
	}
}
