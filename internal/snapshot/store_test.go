// SPDX-License-Identifier: MIT
package snapshot

import (
	"sync"
	"testing"
)

const testWindowSize = 1024

func TestInitialSnapshotIsZero(t *testing.T) {
	store := NewStore(testWindowSize)
	snap := store.Read()

	if len(snap.Waveform) != testWindowSize {
		t.Errorf("waveform length = %d, want %d", len(snap.Waveform), testWindowSize)
	}
	if len(snap.Spectrum) != testWindowSize/2 {
		t.Errorf("spectrum length = %d, want %d", len(snap.Spectrum), testWindowSize/2)
	}
	if snap.Sequence != 0 {
		t.Errorf("sequence = %d, want 0", snap.Sequence)
	}
	for i, v := range snap.Waveform {
		if v != 0 {
			t.Fatalf("waveform[%d] = %f, want 0", i, v)
		}
	}
	for i, v := range snap.Spectrum {
		if v != 0 {
			t.Fatalf("spectrum[%d] = %f, want 0", i, v)
		}
	}
}

func TestPublishCopiesInput(t *testing.T) {
	store := NewStore(4)
	waveform := []float32{1, 2, 3, 4}
	spectrum := []float32{5, 6}

	store.Publish(waveform, spectrum)
	waveform[0] = 99
	spectrum[0] = 99

	snap := store.Read()
	if snap.Waveform[0] != 1 || snap.Spectrum[0] != 5 {
		t.Errorf("store aliased caller buffers: %+v", snap)
	}
	if snap.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", snap.Sequence)
	}
}

func TestReadReturnsIndependentCopy(t *testing.T) {
	store := NewStore(4)
	store.Publish([]float32{1, 1, 1, 1}, []float32{2, 2})

	snap := store.Read()
	snap.Waveform[0] = -1

	if store.Read().Waveform[0] != 1 {
		t.Error("modifying a read snapshot changed the store")
	}
}

func TestReadIntoReusesBuffers(t *testing.T) {
	store := NewStore(testWindowSize)
	var snap Snapshot
	store.ReadInto(&snap)

	waveform := make([]float32, testWindowSize)
	spectrum := make([]float32, testWindowSize/2)
	allocs := testing.AllocsPerRun(100, func() {
		store.Publish(waveform, spectrum)
		store.ReadInto(&snap)
	})
	if allocs > 0 {
		t.Errorf("Publish/ReadInto allocated %.1f times, want 0", allocs)
	}
}

// Every published pair is (v repeated, v repeated); a reader must never see
// two different values inside one snapshot.
func TestConcurrentReadersSeeConsistentPairs(t *testing.T) {
	store := NewStore(256)
	const publishes = 2000

	var wg sync.WaitGroup
	done := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var snap Snapshot
			for {
				select {
				case <-done:
					return
				default:
				}
				store.ReadInto(&snap)
				want := snap.Waveform[0]
				for _, v := range snap.Waveform {
					if v != want {
						t.Errorf("torn waveform: %f vs %f", v, want)
						return
					}
				}
				for _, v := range snap.Spectrum {
					if v != want {
						t.Errorf("spectrum %f does not match waveform %f", v, want)
						return
					}
				}
			}
		}()
	}

	waveform := make([]float32, 256)
	spectrum := make([]float32, 128)
	for i := 1; i <= publishes; i++ {
		for j := range waveform {
			waveform[j] = float32(i)
		}
		for j := range spectrum {
			spectrum[j] = float32(i)
		}
		store.Publish(waveform, spectrum)
	}
	close(done)
	wg.Wait()

	if store.Sequence() != publishes {
		t.Errorf("Sequence() = %d, want %d", store.Sequence(), publishes)
	}
}

func BenchmarkPublish(b *testing.B) {
	store := NewStore(testWindowSize)
	waveform := make([]float32, testWindowSize)
	spectrum := make([]float32, testWindowSize/2)

	b.ReportAllocs()
	for b.Loop() {
		store.Publish(waveform, spectrum)
	}
}
