// SPDX-License-Identifier: MIT

/*
Package snapshot holds the latest (waveform, spectrum) pair produced by the
capture pipeline.

The audio callback is the only writer. Any number of readers (UI, network
publishers) copy the pair out at their own cadence. A single mutex guards both
slices as one unit, so a reader sees either the previous pair or the new one,
never half of each. The lock is only held while copying; the FFT runs before
Publish is called.
*/
package snapshot

import "sync"

// Snapshot is one consistent view of the store. Spectrum is always the
// spectrum of Waveform. Sequence counts publishes; zero means nothing has been
// published yet and both slices are all zeros.
type Snapshot struct {
	Waveform []float32
	Spectrum []float32
	Sequence uint64
}

// Store is the shared container between producer and consumers.
type Store struct {
	mu       sync.Mutex
	waveform []float32
	spectrum []float32
	sequence uint64
}

// NewStore returns a store whose initial snapshot is windowSize zeros and
// windowSize/2 zeros.
func NewStore(windowSize int) *Store {
	return &Store{
		waveform: make([]float32, windowSize),
		spectrum: make([]float32, windowSize/2),
	}
}

// Publish replaces the pair. Both slices are copied in, so callers may reuse
// their buffers immediately. Publish does not allocate.
func (s *Store) Publish(waveform, spectrum []float32) {
	s.mu.Lock()
	copy(s.waveform, waveform)
	copy(s.spectrum, spectrum)
	s.sequence++
	s.mu.Unlock()
}

// Read returns a copy of the current snapshot in freshly allocated slices.
func (s *Store) Read() Snapshot {
	var snap Snapshot
	s.ReadInto(&snap)
	return snap
}

// ReadInto copies the current snapshot into dst, reusing dst's slices when
// they already have the right length. It only allocates on the first call for
// a given dst.
func (s *Store) ReadInto(dst *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(dst.Waveform) != len(s.waveform) {
		dst.Waveform = make([]float32, len(s.waveform))
	}
	if len(dst.Spectrum) != len(s.spectrum) {
		dst.Spectrum = make([]float32, len(s.spectrum))
	}
	copy(dst.Waveform, s.waveform)
	copy(dst.Spectrum, s.spectrum)
	dst.Sequence = s.sequence
}

// Sequence returns the number of publishes so far.
func (s *Store) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// WindowSize returns the waveform length.
func (s *Store) WindowSize() int {
	return len(s.waveform)
}
