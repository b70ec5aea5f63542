// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultRecorderQueue is the number of windows a Recorder buffers between
// the audio thread and the file writer.
const DefaultRecorderQueue = 16

// Recorder writes every completed window to a mono PCM WAV file. It is a
// WindowSink: Offer copies the window into a pre-allocated slot and returns
// immediately, and a writer goroutine does the encoding and file I/O. When the
// writer falls behind, windows are dropped and counted rather than blocking
// the audio thread.
type Recorder struct {
	path     string
	file     *os.File
	encoder  *wav.Encoder
	intBuf   *audio.IntBuffer
	scale    float64
	free     chan []float32
	full     chan []float32
	quit     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	once     sync.Once
	written  atomic.Uint64
	dropped  atomic.Uint64
	writeErr error // owned by the writer goroutine until wg.Wait returns
}

var _ WindowSink = (*Recorder)(nil)

// NewRecorder creates path and starts the writer goroutine. bitDepth must be
// 16, 24 or 32; queue <= 0 uses DefaultRecorderQueue.
func NewRecorder(path string, sampleRate float64, bitDepth, windowSize, queue int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d (want 16, 24 or 32)", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if queue <= 0 {
		queue = DefaultRecorderQueue
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, int(sampleRate), bitDepth, 1, 1),
		intBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  int(sampleRate),
			},
			Data:           make([]int, windowSize),
			SourceBitDepth: bitDepth,
		},
		scale: float64(int64(1)<<(bitDepth-1) - 1),
		free:  make(chan []float32, queue),
		full:  make(chan []float32, queue),
		quit:  make(chan struct{}),
	}
	for range queue {
		r.free <- make([]float32, windowSize)
	}

	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Offer queues a copy of window for writing. It never blocks.
func (r *Recorder) Offer(window []float32) {
	if r.closed.Load() {
		return
	}
	select {
	case buf := <-r.free:
		copy(buf, window)
		// full has room for every pooled buffer, so this cannot block.
		r.full <- buf
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case buf := <-r.full:
			r.write(buf)
			r.free <- buf
		case <-r.quit:
			for {
				select {
				case buf := <-r.full:
					r.write(buf)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(window []float32) {
	if r.writeErr != nil {
		return
	}
	data := r.intBuf.Data[:len(window)]
	for i, s := range window {
		data[i] = int(float64(s) * r.scale)
	}
	r.intBuf.Data = data
	if err := r.encoder.Write(r.intBuf); err != nil {
		r.writeErr = fmt.Errorf("write %s: %w", r.path, err)
		return
	}
	r.written.Add(1)
}

// Close drains queued windows, finalises the WAV header and closes the file.
// It reports the first write error, if any. Later calls return nil.
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.quit)
		r.wg.Wait()

		err = errors.Join(r.writeErr, r.encoder.Close(), r.file.Close())
	})
	return err
}

// Path returns the output file path.
func (r *Recorder) Path() string { return r.path }

// Written returns the number of windows encoded so far.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Dropped returns the number of windows discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
