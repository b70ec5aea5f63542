// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// WindowHandler receives each completed window. The slice is the
// accumulator's own storage and is overwritten by the next Push, so handlers
// must copy anything they keep.
type WindowHandler func(window []float32)

// FrameAccumulator collects normalized samples into a fixed-length window and
// calls its handler every time the window fills. Partially filled windows are
// never handed out.
//
// Push is meant for the single producer (the audio callback) and is not safe
// for concurrent use.
type FrameAccumulator struct {
	buf         []float32
	cursor      int
	completions uint64
	onComplete  WindowHandler
}

// NewFrameAccumulator returns an accumulator for windows of size samples.
func NewFrameAccumulator(size int, onComplete WindowHandler) (*FrameAccumulator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	return &FrameAccumulator{
		buf:        make([]float32, size),
		onComplete: onComplete,
	}, nil
}

// Push stores one sample. When the window is full the handler runs with the
// complete window and the cursor returns to zero.
func (a *FrameAccumulator) Push(sample float32) {
	a.buf[a.cursor] = sample
	a.cursor++
	if a.cursor < len(a.buf) {
		return
	}

	a.completions++
	if a.onComplete != nil {
		a.onComplete(a.buf)
	}
	a.cursor = 0
}

// PushAll pushes every sample in order; a long slice may complete several
// windows.
func (a *FrameAccumulator) PushAll(samples []float32) {
	for _, s := range samples {
		a.Push(s)
	}
}

// Reset drops the partial window.
func (a *FrameAccumulator) Reset() {
	a.cursor = 0
}

// Size returns the window length.
func (a *FrameAccumulator) Size() int { return len(a.buf) }

// Cursor returns the number of samples in the current partial window.
func (a *FrameAccumulator) Cursor() int { return a.cursor }

// Completions returns how many windows have completed since creation.
func (a *FrameAccumulator) Completions() uint64 { return a.completions }
