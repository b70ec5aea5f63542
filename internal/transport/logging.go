// SPDX-License-Identifier: MIT
package transport

import (
	"audioscope/internal/log"
	"sync/atomic"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of every frame at debug level.
type LoggingTransport struct {
	logger *log.Logger
	frames atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{logger: log.For("log-transport")}
	lt.logger.Infof("Using LoggingTransport")
	return lt
}

// Send logs the received data. Logging transport never fails to "send".
func (lt *LoggingTransport) Send(data any) error {
	lt.frames.Add(1)
	if !log.Enabled(log.LevelDebug) {
		return nil
	}

	switch v := data.(type) {
	case Frame:
		lt.logFrame(&v)
	case *Frame:
		lt.logFrame(v)
	default:
		lt.logger.Debugf("Received %T", data)
	}
	return nil
}

func (lt *LoggingTransport) logFrame(f *Frame) {
	peakBin, peak := 0, float32(0)
	for k, v := range f.Spectrum {
		if v > peak {
			peakBin, peak = k, v
		}
	}
	freq := 0.0
	if n := len(f.Waveform); n > 0 {
		freq = float64(peakBin) * f.SampleRate / float64(n)
	}
	lt.logger.Debugf("Frame %d: %d samples, peak bin %d (%.0f Hz) level %.2f",
		f.Sequence, len(f.Waveform), peakBin, freq, peak)
}

// Frames returns the number of frames received.
func (lt *LoggingTransport) Frames() uint64 { return lt.frames.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.logger.Debugf("Close called after %d frames", lt.frames.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
