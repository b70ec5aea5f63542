// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

// Startup errors are returned by the Driver's transition methods and leave the
// driver Stopped. Runtime errors are reported through Driver.Err after Done is
// closed. All driver errors wrap one of these, so callers match with errors.Is.
var (
	ErrNoInputDevice     = errors.New("no input device available")
	ErrUnsupportedConfig = errors.New("device reports no usable input configuration")
	ErrStreamOpen        = errors.New("failed to open input stream")
	ErrStreamStart       = errors.New("failed to start input stream")
	ErrStreamRuntime     = errors.New("input stream failed")

	// ErrDeviceStalled is the cause reported by the PortAudio host when a
	// started stream stops delivering buffers, usually an unplugged device.
	ErrDeviceStalled = errors.New("device stopped delivering audio")

	// ErrInvalidState is returned when a transition is requested from the
	// wrong state.
	ErrInvalidState = errors.New("invalid driver state")
)

// wrapAs tags err with sentinel unless it already carries it.
func wrapAs(sentinel, err error) error {
	if err == nil || errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
