// SPDX-License-Identifier: MIT
/*
Package audio captures live input and keeps a snapshot.Store filled with the
latest waveform window and its spectrum.

Thread Safety:
- The buffer callback runs on the host's audio thread and is the only writer
  of the snapshot store
- Buffers are pre-allocated at Configure time; the callback does not allocate
- Driver methods may be called from any goroutine; a mutex serialises state
  transitions but is never taken by the callback
*/
package audio

import (
	"audioscope/internal/analysis"
	"audioscope/internal/log"
	"audioscope/internal/snapshot"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultOpenTimeout bounds how long opening and starting a stream may take.
const DefaultOpenTimeout = 4 * time.Second

// State is the driver's lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateDeviceSelected
	StateStreamConfigured
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDeviceSelected:
		return "device selected"
	case StateStreamConfigured:
		return "stream configured"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configure a Driver. Zero values fall back to the defaults noted on
// each field.
type Options struct {
	DeviceID        int           // DefaultDeviceID for the host default
	FramesPerBuffer int           // 0 lets the host choose
	Encoding        Encoding      // EncodingUnknown keeps the device default
	OpenTimeout     time.Duration // 0 means DefaultOpenTimeout
	WindowSize      int           // 0 means analysis.WindowSize
}

// Driver owns one input device and its stream. It moves through
// Uninitialized -> DeviceSelected -> StreamConfigured -> Streaming -> Stopped
// exactly once; a stopped driver cannot be restarted.
type Driver struct {
	host   Host
	store  *snapshot.Store
	opts   Options
	logger *log.Logger

	mu     sync.Mutex
	state  State
	device InputDevice
	config StreamConfig
	pipe   *pipeline
	stream Stream
	err    error

	done     chan struct{}
	doneOnce sync.Once
}

// NewDriver returns an Uninitialized driver that will publish into store.
func NewDriver(host Host, store *snapshot.Store, opts Options) (*Driver, error) {
	if host == nil {
		return nil, errors.New("audio host is required")
	}
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if opts.WindowSize == 0 {
		opts.WindowSize = analysis.WindowSize
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}
	if store.WindowSize() != opts.WindowSize {
		return nil, fmt.Errorf("snapshot store window %d does not match driver window %d", store.WindowSize(), opts.WindowSize)
	}

	return &Driver{
		host:   host,
		store:  store,
		opts:   opts,
		logger: log.For("capture"),
		done:   make(chan struct{}),
	}, nil
}

// SelectDevice resolves the configured input device.
func (d *Driver) SelectDevice() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expectLocked(StateUninitialized); err != nil {
		return err
	}

	device, err := d.host.InputDevice(d.opts.DeviceID)
	if err == nil && device == nil {
		err = errors.New("host returned no device")
	}
	if err != nil {
		return d.failLocked(wrapAs(ErrNoInputDevice, err))
	}

	d.device = device
	d.setStateLocked(StateDeviceSelected)
	d.logger.Infof("Selected input device %q", device.Name())
	return nil
}

// Configure reads the device's default input configuration, applies the
// encoding override and builds the capture pipeline for it.
func (d *Driver) Configure() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expectLocked(StateDeviceSelected); err != nil {
		return err
	}

	cfg, err := d.device.DefaultConfig()
	if err != nil {
		return d.failLocked(wrapAs(ErrUnsupportedConfig, err))
	}
	if d.opts.Encoding != EncodingUnknown {
		cfg.Encoding = d.opts.Encoding
	}
	if err := cfg.Validate(); err != nil {
		return d.failLocked(wrapAs(ErrUnsupportedConfig, err))
	}

	pipe, err := newPipeline(d.opts.WindowSize, cfg.Channels, d.store)
	if err != nil {
		return d.failLocked(wrapAs(ErrUnsupportedConfig, err))
	}
	// Resolve the callback now so an unknown encoding fails before any
	// stream exists.
	if _, err := pipe.callbackFor(cfg.Encoding); err != nil {
		return d.failLocked(err)
	}

	d.config = cfg
	d.pipe = pipe
	d.setStateLocked(StateStreamConfigured)
	d.logger.Infof("Stream configured: %s, window %d", cfg, d.opts.WindowSize)
	return nil
}

// AttachSink adds a consumer of every completed window (for example a
// Recorder). It must be called between Configure and Start.
func (d *Driver) AttachSink(sink WindowSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expectLocked(StateStreamConfigured); err != nil {
		return err
	}
	d.pipe.sink = sink
	return nil
}

// Start opens the stream, registers the pipeline callback and starts capture.
// Both steps together are bounded by Options.OpenTimeout.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.expectLocked(StateStreamConfigured); err != nil {
		return err
	}

	callback, err := d.pipe.callbackFor(d.config.Encoding)
	if err != nil {
		return d.failLocked(err)
	}

	pipe := d.pipe
	onError := func(err error) { d.handleStreamError(pipe, err) }
	deadline := time.Now().Add(d.opts.OpenTimeout)

	stream, err := callWithTimeout(time.Until(deadline), func() (Stream, error) {
		return d.device.OpenStream(d.config, d.opts.FramesPerBuffer, callback, onError)
	}, func(late Stream, err error) {
		if err == nil {
			_ = late.Close()
		}
	})
	if err != nil {
		return d.failLocked(wrapAs(ErrStreamOpen, err))
	}
	d.stream = stream

	_, err = callWithTimeout(time.Until(deadline), func() (struct{}, error) {
		return struct{}{}, stream.Start()
	}, func(_ struct{}, startErr error) {
		if startErr == nil {
			_ = stream.Stop()
		}
		_ = stream.Close()
	})
	if err != nil {
		if errors.Is(err, errTimedOut) {
			// Start is still running; the late result releases the stream.
			d.stream = nil
		}
		return d.failLocked(wrapAs(ErrStreamStart, err))
	}

	d.setStateLocked(StateStreaming)
	d.logger.Infof("Capture started on %q", d.device.Name())
	return nil
}

// Open runs SelectDevice, Configure and Start. On failure the driver is
// Stopped and no stream is left open.
func (d *Driver) Open() error {
	if err := d.SelectDevice(); err != nil {
		return err
	}
	if err := d.Configure(); err != nil {
		return err
	}
	return d.Start()
}

// Stop ends capture and releases the stream. It is safe to call more than
// once and from any state; the last published snapshot is left in the store.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStopped {
		return nil
	}

	err := d.releaseLocked()
	d.setStateLocked(StateStopped)
	d.closeDone()
	d.logger.Infof("Capture stopped")
	return err
}

// Run opens the driver and blocks until ctx is cancelled or the stream fails.
// It returns the startup error, the runtime error, or nil after a clean stop.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.Open(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if err := d.Stop(); err != nil {
			return err
		}
		return nil
	case <-d.Done():
		return d.Err()
	}
}

// Done is closed when the driver reaches Stopped, whether by Stop, a startup
// failure, or a runtime error.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Err returns the error that stopped the driver, or nil.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Config returns the negotiated stream config; zero before Configure.
func (d *Driver) Config() StreamConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// DeviceName returns the selected device's name, or "" before SelectDevice.
func (d *Driver) DeviceName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return ""
	}
	return d.device.Name()
}

// handleStreamError is the host's error callback. It may run on the audio
// thread or while the driver holds its lock, so it only flags the pipeline and
// hands the teardown to a goroutine. Errors after Stop are ignored.
func (d *Driver) handleStreamError(pipe *pipeline, err error) {
	if pipe.halted.Swap(true) {
		return
	}
	go d.halt(wrapAs(ErrStreamRuntime, err))
}

func (d *Driver) halt(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStopped {
		return
	}

	d.logger.Errorf("%v; last snapshot kept, restart required", err)
	d.err = err
	if relErr := d.releaseLocked(); relErr != nil {
		d.logger.Warnf("Releasing failed stream: %v", relErr)
	}
	d.setStateLocked(StateStopped)
	d.closeDone()
}

// releaseLocked halts the pipeline and stops and closes the stream if one
// is open.
func (d *Driver) releaseLocked() error {
	if d.pipe != nil {
		d.pipe.halted.Store(true)
	}
	if d.stream == nil {
		return nil
	}

	stream := d.stream
	d.stream = nil

	var errs []error
	if d.state == StateStreaming {
		if err := stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
	}
	if err := stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	return errors.Join(errs...)
}

func (d *Driver) failLocked(err error) error {
	d.logger.Errorf("%v", err)
	if relErr := d.releaseLocked(); relErr != nil {
		d.logger.Warnf("Releasing stream after failure: %v", relErr)
	}
	d.err = err
	d.setStateLocked(StateStopped)
	d.closeDone()
	return err
}

func (d *Driver) expectLocked(want State) error {
	if d.state != want {
		return fmt.Errorf("%w: %s, expected %s", ErrInvalidState, d.state, want)
	}
	return nil
}

func (d *Driver) setStateLocked(s State) {
	d.logger.Debugf("State %s -> %s", d.state, s)
	d.state = s
}

func (d *Driver) closeDone() {
	d.doneOnce.Do(func() { close(d.done) })
}

var errTimedOut = errors.New("timed out")

// callWithTimeout runs fn and waits at most timeout for it. Host calls cannot
// be cancelled, so on timeout fn keeps running and its late result, success or
// failure, is passed to discard.
func callWithTimeout[T any](timeout time.Duration, fn func() (T, error), discard func(T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-timer.C:
		go func() {
			if r := <-ch; discard != nil {
				discard(r.val, r.err)
			}
		}()
		var zero T
		return zero, fmt.Errorf("%w after %s", errTimedOut, timeout)
	}
}
