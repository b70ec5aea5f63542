// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults applied before the config file is read. Anything the file or the
// environment leaves unset keeps these values.
const (
	DefaultConfigFile      = "audioscope.yaml"
	DefaultLogLevel        = "info"
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultFramesPerBuffer = 0           // Let the host choose
	DefaultLowLatency      = false
	DefaultSampleFormat    = "auto" // Device default encoding
	DefaultOpenTimeout     = 4 * time.Second
	DefaultStallTimeout    = 2 * time.Second

	DefaultRecordingEnabled = false
	DefaultOutputFile       = "" // Auto-generated from the start time
	DefaultBitDepth         = 16

	DefaultWebSocketEnabled  = false
	DefaultWebSocketAddr     = "127.0.0.1:8080"
	DefaultWebSocketInterval = 33 * time.Millisecond // ~30Hz

	DefaultUDPEnabled       = false
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond

	DefaultUIEnabled       = true
	DefaultRefreshInterval = 50 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID        = -1   // -1 represents system default device
	MaxBufferFrames    = 8192 // Maximum frames per buffer
	MinRefreshInterval = 10 * time.Millisecond
)

// NewConfig returns a Config holding the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			SampleFormat:    DefaultSampleFormat,
			OpenTimeout:     DefaultOpenTimeout,
			StallTimeout:    DefaultStallTimeout,
		},
		Recording: RecordingConfig{
			Enabled:    DefaultRecordingEnabled,
			OutputFile: DefaultOutputFile,
			BitDepth:   DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				Enabled:  DefaultWebSocketEnabled,
				Addr:     DefaultWebSocketAddr,
				Interval: DefaultWebSocketInterval,
			},
			UDP: UDPConfig{
				Enabled:       DefaultUDPEnabled,
				TargetAddress: DefaultUDPTargetAddress,
				SendInterval:  DefaultUDPSendInterval,
			},
		},
		UI: UIConfig{
			Enabled:         DefaultUIEnabled,
			RefreshInterval: DefaultRefreshInterval,
		},
	}
}
