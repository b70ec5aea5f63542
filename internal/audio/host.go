// SPDX-License-Identifier: MIT
package audio

import "fmt"

// DefaultDeviceID selects the host's default input device.
const DefaultDeviceID = -1

// StreamConfig is negotiated once from the device and fixed for the life of a
// stream.
type StreamConfig struct {
	SampleRate float64
	Channels   int
	Encoding   Encoding
}

// Validate checks the parts of the config every host needs. The encoding is
// checked separately when the driver resolves its callback.
func (c StreamConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", c.Channels)
	}
	return nil
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%.0f Hz, %d ch, %s", c.SampleRate, c.Channels, c.Encoding)
}

// Host is the audio subsystem the driver captures from.
type Host interface {
	// InputDevice returns the input device with the given ID, or the
	// default input device for DefaultDeviceID.
	InputDevice(id int) (InputDevice, error)
}

// InputDevice is one capture device.
type InputDevice interface {
	Name() string

	// DefaultConfig reports the device's preferred input configuration.
	DefaultConfig() (StreamConfig, error)

	// OpenStream opens (but does not start) a capture stream. callback is a
	// typed buffer function such as func([]float32) or func([]int16)
	// matching cfg.Encoding; it runs on the host's audio thread once per
	// hardware buffer. onError is called at most once, from any goroutine,
	// when the stream fails after it has started.
	OpenStream(cfg StreamConfig, framesPerBuffer int, callback any, onError func(error)) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}
