// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// DefaultStallTimeout is how long a started PortAudio stream may go without
// delivering a buffer before it is reported as failed.
const DefaultStallTimeout = 2 * time.Second

// PortAudioHost captures from PortAudio devices. PortAudio converts to the
// sample format implied by the callback's buffer type, so the host reports
// float32 as the default encoding and also accepts int16, int32 and uint8
// callbacks. It cannot deliver uint16.
//
// PortAudio has no stream error callback for device loss; the host watches for
// buffers that stop arriving instead.
type PortAudioHost struct {
	LowLatency   bool
	StallTimeout time.Duration // zero disables the watchdog
}

// NewPortAudioHost returns a host with the default stall timeout.
func NewPortAudioHost(lowLatency bool) *PortAudioHost {
	return &PortAudioHost{
		LowLatency:   lowLatency,
		StallTimeout: DefaultStallTimeout,
	}
}

// InputDevice implements Host.
func (h *PortAudioHost) InputDevice(id int) (InputDevice, error) {
	info, err := InputDeviceInfo(id)
	if err != nil {
		return nil, wrapAs(ErrNoInputDevice, err)
	}
	if info == nil {
		return nil, ErrNoInputDevice
	}
	return &paInputDevice{info: info, host: h}, nil
}

type paInputDevice struct {
	info *portaudio.DeviceInfo
	host *PortAudioHost
}

func (d *paInputDevice) Name() string { return d.info.Name }

// DefaultConfig captures the first channel at the device's default rate.
func (d *paInputDevice) DefaultConfig() (StreamConfig, error) {
	if d.info.MaxInputChannels < 1 {
		return StreamConfig{}, fmt.Errorf("%w: %s has no input channels", ErrUnsupportedConfig, d.info.Name)
	}
	if d.info.DefaultSampleRate <= 0 {
		return StreamConfig{}, fmt.Errorf("%w: %s reports no default sample rate", ErrUnsupportedConfig, d.info.Name)
	}
	return StreamConfig{
		SampleRate: d.info.DefaultSampleRate,
		Channels:   1,
		Encoding:   EncodingFloat32,
	}, nil
}

func (d *paInputDevice) OpenStream(cfg StreamConfig, framesPerBuffer int, callback any, onError func(error)) (Stream, error) {
	watchdog := newStallWatchdog(d.host.StallTimeout, onError)

	wrapped, err := withHeartbeat(callback, watchdog)
	if err != nil {
		return nil, err
	}

	latency := d.info.DefaultHighInputLatency
	if d.host.LowLatency {
		latency = d.info.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   d.info,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   nil,
			Channels: 0, // No output device
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := paLibOpenStream(params, wrapped)
	if err != nil {
		return nil, err
	}
	return &paStream{stream: stream, watchdog: watchdog}, nil
}

// withHeartbeat wraps a typed buffer callback so every delivered buffer resets
// the watchdog. Only the buffer types PortAudio can produce are accepted.
func withHeartbeat(callback any, w *stallWatchdog) (any, error) {
	switch cb := callback.(type) {
	case func([]float32):
		return heartbeat(cb, w), nil
	case func([]int16):
		return heartbeat(cb, w), nil
	case func([]int32):
		return heartbeat(cb, w), nil
	case func([]uint8):
		return heartbeat(cb, w), nil
	default:
		return nil, fmt.Errorf("portaudio cannot deliver %T buffers", callback)
	}
}

func heartbeat[T any](cb func([]T), w *stallWatchdog) func([]T) {
	return func(in []T) {
		w.Beat()
		cb(in)
	}
}

type paStream struct {
	stream   Stream
	watchdog *stallWatchdog
}

func (s *paStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.watchdog.Start()
	return nil
}

func (s *paStream) Stop() error {
	s.watchdog.Stop()
	return s.stream.Stop()
}

func (s *paStream) Close() error {
	s.watchdog.Stop()
	return s.stream.Close()
}

// stallWatchdog reports ErrDeviceStalled once if Beat is not called for
// longer than timeout after Start.
type stallWatchdog struct {
	timeout time.Duration
	onStall func(error)
	epoch   time.Time
	last    atomic.Int64 // nanoseconds since epoch of the latest Beat

	mu      sync.Mutex
	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
}

func newStallWatchdog(timeout time.Duration, onStall func(error)) *stallWatchdog {
	return &stallWatchdog{
		timeout: timeout,
		onStall: onStall,
		epoch:   time.Now(),
	}
}

// Beat records a delivered buffer. It is called on the audio thread and does
// not allocate.
func (w *stallWatchdog) Beat() {
	w.last.Store(int64(time.Since(w.epoch)))
}

func (w *stallWatchdog) Start() {
	if w.timeout <= 0 || w.onStall == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.quit = make(chan struct{})
	w.Beat()

	w.wg.Add(1)
	go w.run(w.quit)
}

func (w *stallWatchdog) run(quit <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			silent := time.Since(w.epoch) - time.Duration(w.last.Load())
			if silent > w.timeout {
				w.onStall(fmt.Errorf("%w: no buffers for %s", ErrDeviceStalled, silent.Round(time.Millisecond)))
				return
			}
		}
	}
}

// Stop ends the watchdog goroutine and waits for it. It must not be called
// from onStall.
func (w *stallWatchdog) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.quit)
	w.mu.Unlock()

	w.wg.Wait()
}
