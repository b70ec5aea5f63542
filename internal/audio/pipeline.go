// SPDX-License-Identifier: MIT
package audio

import (
	"audioscope/internal/analysis"
	"audioscope/internal/snapshot"
	"fmt"
	"sync/atomic"
)

// WindowSink receives a copy of every completed window after it has been
// published. Offer runs on the audio thread and must not block or allocate.
type WindowSink interface {
	Offer(window []float32)
}

// sample is every native type a capture callback can receive.
type sample interface {
	~float32 | ~int16 | ~uint16 | ~int32 | ~uint8
}

// pipeline is the per-buffer work done on the audio thread:
// normalize -> accumulate -> (on a full window) analyze -> publish.
// All buffers are allocated up front.
type pipeline struct {
	channels int
	acc      *analysis.FrameAccumulator
	analyzer *analysis.SpectrumAnalyzer
	spectrum []float32
	store    *snapshot.Store
	sink     WindowSink

	// halted is set when the stream has failed or is being stopped; buffers
	// that arrive afterwards are ignored so the last snapshot stays intact.
	halted atomic.Bool
}

func newPipeline(windowSize, channels int, store *snapshot.Store) (*pipeline, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if store.WindowSize() != windowSize {
		return nil, fmt.Errorf("snapshot store holds %d samples, pipeline window is %d", store.WindowSize(), windowSize)
	}

	analyzer, err := analysis.NewSpectrumAnalyzer(windowSize)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		channels: channels,
		analyzer: analyzer,
		spectrum: make([]float32, analyzer.Bins()),
		store:    store,
	}
	p.acc, err = analysis.NewFrameAccumulator(windowSize, p.complete)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// complete runs once per full window. The FFT happens before Publish so the
// store lock only covers the copy.
func (p *pipeline) complete(window []float32) {
	p.analyzer.Analyze(window, p.spectrum)
	p.store.Publish(window, p.spectrum)
	if p.sink != nil {
		p.sink.Offer(window)
	}
}

// callbackFor resolves the typed buffer callback for enc. The choice is made
// once, so the per-sample loop has no format branches.
func (p *pipeline) callbackFor(enc Encoding) (any, error) {
	switch enc {
	case EncodingFloat32:
		return bind(p, NormalizeFloat32), nil
	case EncodingInt16:
		return bind(p, NormalizeInt16), nil
	case EncodingUint16:
		return bind(p, NormalizeUint16), nil
	case EncodingInt32:
		return bind(p, NormalizeInt32), nil
	case EncodingUint8:
		return bind(p, NormalizeUint8), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized sample encoding %v", ErrStreamOpen, enc)
	}
}

// bind builds the callback for one native type. Interleaved buffers
// contribute only their first channel.
func bind[T sample](p *pipeline, normalize func(T) float32) func([]T) {
	return func(in []T) {
		if p.halted.Load() {
			return
		}
		for i := 0; i < len(in); i += p.channels {
			p.acc.Push(normalize(in[i]))
		}
	}
}
