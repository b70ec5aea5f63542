// SPDX-License-Identifier: MIT
package tui

import (
	"audioscope/internal/analysis"
	"audioscope/internal/audio"
	"audioscope/internal/snapshot"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultMeterWidth = 64
	minMeterWidth     = 16
	meterRows         = 12
)

// levels are the partial-block glyphs, from empty to full.
var levels = []rune(" ▁▂▃▄▅▆▇█")

// DriverStatus is the part of the capture driver the meter shows.
type DriverStatus interface {
	DeviceName() string
	State() audio.State
	Err() error
}

// MeterOptions configure a Meter.
type MeterOptions struct {
	Refresh    time.Duration // Redraw interval.
	SampleRate float64       // Used to label bands and the peak frequency.
	Bands      []analysis.Band
}

// Meter is the Bubble Tea model for the live spectrum display. Every refresh
// tick it copies the latest snapshot out of the store and redraws.
type Meter struct {
	store  *snapshot.Store
	status DriverStatus
	opts   MeterOptions
	full   float32 // Level drawn as a full bar.
	snap   snapshot.Snapshot
	bands  []analysis.BandLevel
	width  int
	state  audio.State
	err    error
}

type tickMsg time.Time

// NewMeter returns a meter reading from store. status may be nil.
func NewMeter(store *snapshot.Store, status DriverStatus, opts MeterOptions) *Meter {
	if opts.Refresh <= 0 {
		opts.Refresh = 50 * time.Millisecond
	}
	return &Meter{
		store:  store,
		status: status,
		opts:   opts,
		full:   FullScale(store.WindowSize()),
		width:  defaultMeterWidth,
	}
}

// FullScale is the scaled level of a full-scale sine in a window of n samples.
func FullScale(n int) float32 {
	return float32(10 * math.Log10(float64(n)/2+1))
}

func (m *Meter) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m *Meter) Init() tea.Cmd {
	m.refresh()
	return m.tick()
}

// Update implements tea.Model.
func (m *Meter) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width-2, minMeterWidth)

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// refresh copies the current snapshot and driver status.
func (m *Meter) refresh() {
	m.store.ReadInto(&m.snap)
	if len(m.opts.Bands) > 0 && m.opts.SampleRate > 0 {
		m.bands = analysis.GroupBands(m.snap.Spectrum, m.opts.SampleRate, len(m.snap.Waveform), m.opts.Bands, m.bands)
	}
	if m.status != nil {
		m.state = m.status.State()
		m.err = m.status.Err()
	}
}

// View implements tea.Model.
func (m *Meter) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("audioscope"))
	if m.status != nil {
		fmt.Fprintf(&sb, "  %s  [%s]", m.status.DeviceName(), m.state)
	}
	sb.WriteString("\n\n")

	if m.err != nil {
		sb.WriteString(warnStyle.Render("capture stopped, display frozen"))
		fmt.Fprintf(&sb, " %v\n\n", m.err)
	}

	for _, row := range SpectrumRows(m.snap.Spectrum, m.width, meterRows, m.full) {
		sb.WriteString(barStyle.Render(row))
		sb.WriteByte('\n')
	}
	sb.WriteString(waveStyle.Render(WaveformLine(m.snap.Waveform, m.width)))
	sb.WriteString("\n\n")

	if len(m.bands) > 0 {
		for i, b := range m.bands {
			if i > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%s %4.1f", b.Name, b.Level)
		}
		sb.WriteByte('\n')
	}

	peak, level := peakBin(m.snap.Spectrum)
	freq := analysis.BinFrequency(peak, len(m.snap.Waveform), m.opts.SampleRate)
	fmt.Fprintf(&sb, "windows %d  peak %.0f Hz (%.1f)\n\n", m.snap.Sequence, freq, level)
	sb.WriteString(infoStyle.Render(quitKey.Help().Key + ": " + quitKey.Help().Desc))
	return sb.String()
}

// SpectrumRows draws spectrum as rows of vertical bars, top row first. Columns
// are spaced logarithmically over bins 1..len(spectrum)-1 and each shows the
// loudest bin it covers.
func SpectrumRows(spectrum []float32, cols, rows int, full float32) []string {
	heights := make([]float64, cols)
	if len(spectrum) > 1 && full > 0 {
		edges := logEdges(len(spectrum), cols)
		for c := range cols {
			var peak float32
			for _, v := range spectrum[edges[c]:edges[c+1]] {
				peak = max(peak, v)
			}
			heights[c] = math.Min(float64(peak/full), 1) * float64(rows)
		}
	}

	out := make([]string, rows)
	line := make([]rune, cols)
	for r := range rows {
		floor := float64(rows - 1 - r)
		for c, h := range heights {
			fill := math.Max(0, math.Min(1, h-floor))
			line[c] = levels[int(math.Round(fill*float64(len(levels)-1)))]
		}
		out[r] = string(line)
	}
	return out
}

// logEdges returns cols+1 non-decreasing bin boundaries between 1 and bins.
// Columns past the last bin are empty.
func logEdges(bins, cols int) []int {
	edges := make([]int, cols+1)
	edges[0] = 1
	span := math.Log(float64(bins))
	for c := 1; c <= cols; c++ {
		e := int(math.Round(math.Exp(span * float64(c) / float64(cols))))
		edges[c] = min(max(e, edges[c-1]+1), bins)
	}
	return edges
}

// WaveformLine draws the peak amplitude of each slice of waveform as one row.
func WaveformLine(waveform []float32, cols int) string {
	line := make([]rune, cols)
	for c := range cols {
		start := c * len(waveform) / cols
		end := (c + 1) * len(waveform) / cols
		var peak float32
		for _, v := range waveform[start:end] {
			peak = max(peak, float32(math.Abs(float64(v))))
		}
		line[c] = levels[int(math.Round(float64(min(peak, 1))*float64(len(levels)-1)))]
	}
	return string(line)
}

func peakBin(spectrum []float32) (int, float32) {
	bin, level := 0, float32(0)
	for k, v := range spectrum {
		if v > level {
			bin, level = k, v
		}
	}
	return bin, level
}

// RunMeter runs the meter until the user quits or ctx is cancelled.
func RunMeter(ctx context.Context, m *Meter) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
