// SPDX-License-Identifier: MIT
package cmd

import (
	"audioscope/internal/config"
	"audioscope/pkg/build"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Commands ParseArgs can select. An empty Command means cobra already
// handled the invocation (--help, --version) and there is nothing to run.
const (
	CommandRun  = "run"
	CommandList = "list"
)

// Invocation is the parsed command line: the command to run and the final
// configuration after flags have been applied over the config file.
type Invocation struct {
	Command    string
	Config     *config.Config
	PickDevice bool   // Choose the input device interactively before capture.
	LogFile    string // Where logs go while the meter owns the terminal.
}

// flagValues holds every flag; only the ones the user set are applied.
type flagValues struct {
	configPath      string
	device          int
	pick            bool
	framesPerBuffer int
	lowLatency      bool
	sampleFormat    string
	record          bool
	output          string
	bitDepth        int
	ws              bool
	wsAddr          string
	udp             bool
	udpTarget       string
	noTUI           bool
	verbose         bool
	logFile         string
}

// ParseArgs parses args (without the program name), loads the config file
// and applies the flags the user set on top of it.
func ParseArgs(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildInfo()
	inv := &Invocation{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.VersionString(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			inv.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Path to the YAML config file (default ./"+config.DefaultConfigFile+" if present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.BoolVarP(&flags.pick, "pick", "p", false,
		"Choose the input device from a list before capturing")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per hardware buffer (0 lets the host choose)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.StringVarP(&flags.sampleFormat, "sample-format", "f", config.DefaultSampleFormat,
		"Native sample format: auto, float32, int16, int32 or uint8")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", config.DefaultRecordingEnabled,
		"Record captured windows to a WAV file")
	pf.StringVarP(&flags.output, "output", "o", config.DefaultOutputFile,
		"Output file name, implies --record. Default is recording-DD-MM-YYYY-HHMMSS.wav")
	pf.IntVar(&flags.bitDepth, "bit-depth", config.DefaultBitDepth,
		"Recording bit depth: 16, 24 or 32")

	// Transport Configuration
	pf.BoolVar(&flags.ws, "ws", config.DefaultWebSocketEnabled,
		"Serve frames as JSON over WebSocket")
	pf.StringVar(&flags.wsAddr, "ws-addr", config.DefaultWebSocketAddr,
		"WebSocket listen address")
	pf.BoolVar(&flags.udp, "udp", config.DefaultUDPEnabled,
		"Send spectrum packets over UDP")
	pf.StringVar(&flags.udpTarget, "udp-target", config.DefaultUDPTargetAddress,
		"UDP destination host:port")

	// UI and Debug Configuration
	pf.BoolVar(&flags.noTUI, "no-tui", false,
		"Run headless without the terminal meter")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")
	pf.StringVar(&flags.logFile, "log-file", "",
		"Log file used while the meter is running (default in the temp directory)")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if inv.Command == "" {
		return inv, nil
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, &flags, func(name string) bool { return pf.Changed(name) })

	// Flags can produce combinations the file could not, so validate again.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Defaults
	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = DefaultRecordingName(time.Now())
	}

	inv.Config = cfg
	inv.PickDevice = flags.pick
	inv.LogFile = flags.logFile
	return inv, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cfg *config.Config, f *flagValues, changed func(string) bool) {
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("sample-format") {
		cfg.Audio.SampleFormat = f.sampleFormat
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
		cfg.Recording.Enabled = true
	}
	if changed("bit-depth") {
		cfg.Recording.BitDepth = f.bitDepth
	}
	if changed("ws") {
		cfg.Transport.WebSocket.Enabled = f.ws
	}
	if changed("ws-addr") {
		cfg.Transport.WebSocket.Addr = f.wsAddr
	}
	if changed("udp") {
		cfg.Transport.UDP.Enabled = f.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDP.TargetAddress = f.udpTarget
	}
	if changed("no-tui") {
		cfg.UI.Enabled = !f.noTUI
	}
	if f.verbose {
		cfg.Debug = true
	}
}

// DefaultRecordingName is the output file used when recording without -o.
func DefaultRecordingName(now time.Time) string {
	return "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
}
