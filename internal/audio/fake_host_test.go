// SPDX-License-Identifier: MIT
package audio

import (
	"slices"
	"sync"
	"testing"
	"time"
)

// fakeHost stands in for PortAudio. Buffers are delivered synchronously from
// the test goroutine, which plays the role of the audio thread.
type fakeHost struct {
	device    *fakeDevice
	err       error
	requested int
}

func (h *fakeHost) InputDevice(id int) (InputDevice, error) {
	h.requested = id
	if h.err != nil {
		return nil, h.err
	}
	return h.device, nil
}

type fakeDevice struct {
	name      string
	config    StreamConfig
	configErr error
	openErr   error
	startErr   error
	openDelay  time.Duration
	startDelay time.Duration

	mu      sync.Mutex
	opened  int
	streams []*fakeStream
}

func newFakeDevice(cfg StreamConfig) *fakeDevice {
	return &fakeDevice{name: "Fake Microphone", config: cfg}
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) DefaultConfig() (StreamConfig, error) {
	return d.config, d.configErr
}

func (d *fakeDevice) OpenStream(cfg StreamConfig, framesPerBuffer int, callback any, onError func(error)) (Stream, error) {
	if d.openDelay > 0 {
		time.Sleep(d.openDelay)
	}
	if d.openErr != nil {
		return nil, d.openErr
	}

	s := &fakeStream{callback: callback, onError: onError, startErr: d.startErr, startDelay: d.startDelay}
	d.mu.Lock()
	d.opened++
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *fakeDevice) lastStream(t *testing.T) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		t.Fatal("no stream was opened")
	}
	return d.streams[len(d.streams)-1]
}

type fakeStream struct {
	callback   any
	onError    func(error)
	startErr   error
	startDelay time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
	calls   []string
}

func (s *fakeStream) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeStream) Start() error {
	s.record("start")
	if s.startDelay > 0 {
		time.Sleep(s.startDelay)
	}
	defer s.record("start returned")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeStream) Stop() error {
	s.record("stop")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeStream) Close() error {
	s.record("close")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// callLog returns the Start, Stop and Close calls in the order they happened.
func (s *fakeStream) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func (s *fakeStream) status() (started, stopped, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped, s.closed
}

// deliver hands buf to the stream callback, failing the test if the driver
// registered a callback for a different sample type.
func deliver[T any](t *testing.T, s *fakeStream, buf []T) {
	t.Helper()
	cb, ok := s.callback.(func([]T))
	if !ok {
		t.Fatalf("callback is %T, cannot deliver %T", s.callback, buf)
	}
	cb(buf)
}

// deliverInChunks splits buf into hardware-sized buffers.
func deliverInChunks[T any](t *testing.T, s *fakeStream, buf []T, chunk int) {
	t.Helper()
	for start := 0; start < len(buf); start += chunk {
		end := min(start+chunk, len(buf))
		deliver(t, s, buf[start:end])
	}
}
