// SPDX-License-Identifier: MIT

// Package transport streams snapshots out of the process. A Broadcaster polls
// the snapshot store and hands each new Frame to a Transport.
package transport

import (
	"audioscope/internal/analysis"
	"audioscope/internal/snapshot"
	"time"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Frame is one published snapshot as sent to clients. It owns its slices, so
// a transport may queue it.
type Frame struct {
	Sequence   uint64               `json:"sequence"`
	Timestamp  int64                `json:"timestamp"` // Nanoseconds since epoch
	SampleRate float64              `json:"sampleRate"`
	Waveform   []float32            `json:"waveform"`
	Spectrum   []float32            `json:"spectrum"`
	Bands      []analysis.BandLevel `json:"bands,omitempty"`
}

// NewFrame builds a Frame from snap, taking ownership of its slices. Band
// levels are computed when bands is non-empty.
func NewFrame(snap snapshot.Snapshot, sampleRate float64, bands []analysis.Band, now time.Time) Frame {
	f := Frame{
		Sequence:   snap.Sequence,
		Timestamp:  now.UnixNano(),
		SampleRate: sampleRate,
		Waveform:   snap.Waveform,
		Spectrum:   snap.Spectrum,
	}
	if len(bands) > 0 {
		f.Bands = analysis.GroupBands(snap.Spectrum, sampleRate, len(snap.Waveform), bands, nil)
	}
	return f
}
