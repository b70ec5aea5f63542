// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"audioscope/internal/audio"
	"audioscope/internal/log"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Force debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture settings.
	Recording RecordingConfig `yaml:"recording"` // WAV recording of captured windows.
	Transport TransportConfig `yaml:"transport"` // Outbound snapshot streaming.
	UI        UIConfig        `yaml:"ui"`        // Terminal meter.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice     int           `yaml:"input_device"`      // PortAudio device index (-1 for default).
	FramesPerBuffer int           `yaml:"frames_per_buffer"` // Hardware buffer size hint (0 lets the host choose).
	LowLatency      bool          `yaml:"low_latency"`       // Request the device's low input latency.
	SampleFormat    string        `yaml:"sample_format"`     // "auto", "float32", "int16", "int32" or "uint8".
	OpenTimeout     time.Duration `yaml:"open_timeout"`      // Bound on opening and starting the stream.
	StallTimeout    time.Duration `yaml:"stall_timeout"`     // Silence before a started stream counts as failed (0 disables).
}

// RecordingConfig holds settings related to WAV recording.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Write every captured window to a WAV file.
	OutputFile string `yaml:"output_file"` // Output path; empty generates one from the start time.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24 or 32.
}

// TransportConfig holds settings related to sending snapshots over the network.
type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
	UDP       UDPConfig       `yaml:"udp"`
}

// WebSocketConfig configures the JSON frame server.
type WebSocketConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`     // Listen address, e.g. "127.0.0.1:8080".
	Interval time.Duration `yaml:"interval"` // Poll interval for new snapshots.
}

// UDPConfig configures the binary spectrum sender.
type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"` // Destination host:port, e.g. "127.0.0.1:9090".
	SendInterval  time.Duration `yaml:"send_interval"`  // Poll interval for new snapshots.
}

// UIConfig configures the terminal meter.
type UIConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for DefaultConfigFile in the working directory. If no file is found, it uses
// built-in defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	// Audio Validation
	if c.Audio.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice))
	}
	if c.Audio.FramesPerBuffer < 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be between 0 and %d, got %d", MaxBufferFrames, c.Audio.FramesPerBuffer))
	}
	if _, err := audio.ParseEncoding(c.Audio.SampleFormat); err != nil {
		errs = append(errs, fmt.Errorf("audio.sample_format: %w", err))
	}
	if c.Audio.OpenTimeout <= 0 {
		errs = append(errs, errors.New("audio.open_timeout must be positive"))
	}
	if c.Audio.StallTimeout < 0 {
		errs = append(errs, errors.New("audio.stall_timeout must not be negative"))
	}

	// Recording Validation
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			errs = append(errs, fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth))
		}
	}

	// Transport Validation
	if ws := c.Transport.WebSocket; ws.Enabled {
		if _, _, err := net.SplitHostPort(ws.Addr); err != nil {
			errs = append(errs, fmt.Errorf("transport.websocket.addr %q appears invalid: %w", ws.Addr, err))
		}
		if ws.Interval <= 0 {
			errs = append(errs, errors.New("transport.websocket.interval must be positive when the WebSocket server is enabled"))
		}
	}
	if udp := c.Transport.UDP; udp.Enabled {
		if udp.TargetAddress == "" {
			errs = append(errs, errors.New("transport.udp.target_address must be set when UDP is enabled"))
		} else if _, _, err := net.SplitHostPort(udp.TargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.udp.target_address %q appears invalid (missing port?)", udp.TargetAddress))
		}
		if udp.SendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp.send_interval must be positive when UDP is enabled"))
		}
	}

	// UI Validation
	if c.UI.Enabled && c.UI.RefreshInterval < MinRefreshInterval {
		errs = append(errs, fmt.Errorf("ui.refresh_interval must be at least %s", MinRefreshInterval))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides replaces file values with ENV_* variables. Values that
// fail to parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	logger := log.For("config")

	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Debugf("Overriding log_level from env: %s", val)
	}

	// ENV_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = id
			logger.Debugf("Overriding audio.input_device from env: %d", id)
		} else {
			logger.Warnf("Ignoring ENV_INPUT_DEVICE=%q: %v", val, err)
		}
	}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocket.Enabled = bVal
			logger.Debugf("Overriding transport.websocket.enabled from env: %v", bVal)
		} else {
			logger.Warnf("Ignoring ENV_WS_ENABLED=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the UDP transport.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDP.Enabled = bVal
			logger.Debugf("Overriding transport.udp.enabled from env: %v", bVal)
		} else {
			logger.Warnf("Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDP.TargetAddress = val
		logger.Debugf("Overriding transport.udp.target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDP.SendInterval = dur
			logger.Debugf("Overriding transport.udp.send_interval from env: %s", dur)
		} else {
			logger.Warnf("Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}
