// SPDX-License-Identifier: MIT
package main

import (
	"audioscope/cmd"
	"audioscope/internal/analysis"
	"audioscope/internal/audio"
	"audioscope/internal/config"
	"audioscope/internal/log"
	"audioscope/internal/snapshot"
	"audioscope/internal/transport"
	"audioscope/internal/transport/udp"
	"audioscope/internal/tui"
	"audioscope/pkg/build"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// main is the entry point for audioscope.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//   - Select, configure and start the capture stream; any failure here is
//     reported before the meter takes over the terminal
//
// 2. Concurrent Phase (Hot Path):
//   - The audio thread fills the snapshot store
//   - Broadcasters stream new snapshots to WebSocket and UDP clients
//   - The meter redraws from the store until the user quits
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop transports, capture and recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds have no ldflags; the defaults are fine.
	buildErr := build.Initialize()

	inv, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if inv.Command == "" {
		return // --help or --version
	}

	if inv.Config != nil {
		configureLogging(inv.Config)
	}
	if buildErr != nil {
		log.Debugf("Build info incomplete: %v", buildErr)
	}

	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer audio.Terminate()

	switch inv.Command {
	case cmd.CommandList:
		if err := audio.ListDevices(os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	case cmd.CommandRun:
		if err := run(inv); err != nil {
			audio.Terminate()
			log.Fatalf("%v", err)
		}
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

// session is everything run starts and must release.
type session struct {
	driver       *audio.Driver
	recorder     *audio.Recorder
	broadcasters []*transport.Broadcaster
	logFile      *os.File
	logPath      string
}

func run(inv *cmd.Invocation) error {
	cfg := inv.Config

	if inv.PickDevice {
		id, err := tui.PickDevice()
		if err != nil {
			return err
		}
		cfg.Audio.InputDevice = id
	}

	s := &session{}
	defer s.close()

	store := snapshot.NewStore(analysis.WindowSize)
	if err := s.startCapture(cfg, store); err != nil {
		return err
	}
	sampleRate := s.driver.Config().SampleRate

	if err := s.startTransports(cfg, store, sampleRate); err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-s.driver.Done():
			// With the meter up the last snapshot stays on screen.
			if cfg.UI.Enabled {
				return nil
			}
			return s.driver.Err()
		}
	})

	if cfg.UI.Enabled {
		if err := s.redirectLogs(inv.LogFile); err != nil {
			return err
		}
		g.Go(func() error {
			defer cancel()
			meter := tui.NewMeter(store, s.driver, tui.MeterOptions{
				Refresh:    cfg.UI.RefreshInterval,
				SampleRate: sampleRate,
				Bands:      analysis.DefaultBands,
			})
			return tui.RunMeter(gctx, meter)
		})
	} else {
		log.Infof("Capturing from %q, press Ctrl+C to stop", s.driver.DeviceName())
	}

	err := g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if closeErr := s.close(); closeErr != nil {
		log.Warnf("Shutdown: %v", closeErr)
	}
	if s.recorder != nil {
		fmt.Printf("\nRecording saved to: %s (%d windows, %d dropped)\n",
			s.recorder.Path(), s.recorder.Written(), s.recorder.Dropped())
	}
	if s.logPath != "" {
		fmt.Printf("Log written to: %s\n", s.logPath)
	}
	return err
}

// startCapture opens the input device and, if enabled, attaches the recorder
// before the stream starts.
func (s *session) startCapture(cfg *config.Config, store *snapshot.Store) error {
	enc, err := audio.ParseEncoding(cfg.Audio.SampleFormat)
	if err != nil {
		return err
	}

	host := audio.NewPortAudioHost(cfg.Audio.LowLatency)
	host.StallTimeout = cfg.Audio.StallTimeout

	s.driver, err = audio.NewDriver(host, store, audio.Options{
		DeviceID:        cfg.Audio.InputDevice,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		Encoding:        enc,
		OpenTimeout:     cfg.Audio.OpenTimeout,
		WindowSize:      analysis.WindowSize,
	})
	if err != nil {
		return err
	}

	if err := s.driver.SelectDevice(); err != nil {
		return err
	}
	if err := s.driver.Configure(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		s.recorder, err = audio.NewRecorder(cfg.Recording.OutputFile, s.driver.Config().SampleRate,
			cfg.Recording.BitDepth, analysis.WindowSize, audio.DefaultRecorderQueue)
		if err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
		if err := s.driver.AttachSink(s.recorder); err != nil {
			return err
		}
		log.Infof("Recording to %s", s.recorder.Path())
	}

	return s.driver.Start()
}

// startTransports creates a broadcaster for every enabled transport.
func (s *session) startTransports(cfg *config.Config, store *snapshot.Store, sampleRate float64) error {
	if ws := cfg.Transport.WebSocket; ws.Enabled {
		wst, err := transport.NewWebSocketTransport(ws.Addr)
		if err != nil {
			return err
		}
		if err := s.addBroadcaster(store, wst, transport.BroadcasterOptions{
			Name:       "websocket",
			Interval:   ws.Interval,
			SampleRate: sampleRate,
			Bands:      analysis.DefaultBands,
		}); err != nil {
			return err
		}
	}

	if u := cfg.Transport.UDP; u.Enabled {
		sender, err := udp.NewSender(u.TargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewPublisher(sender)
		if err != nil {
			sender.Close()
			return err
		}
		if err := s.addBroadcaster(store, pub, transport.BroadcasterOptions{
			Name:       "udp",
			Interval:   u.SendInterval,
			SampleRate: sampleRate,
		}); err != nil {
			return err
		}
	}

	// Headless debug runs get a frame summary in the log.
	if !cfg.UI.Enabled && log.Enabled(log.LevelDebug) {
		if err := s.addBroadcaster(store, transport.NewLoggingTransport(), transport.BroadcasterOptions{
			Name:       "frames",
			Interval:   cfg.UI.RefreshInterval,
			SampleRate: sampleRate,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) addBroadcaster(store *snapshot.Store, out transport.Transport, opts transport.BroadcasterOptions) error {
	b, err := transport.NewBroadcaster(store, out, opts)
	if err != nil {
		out.Close()
		return err
	}
	b.Start()
	s.broadcasters = append(s.broadcasters, b)
	return nil
}

// redirectLogs sends log output to a file while the meter owns the terminal.
func (s *session) redirectLogs(path string) error {
	if path == "" {
		path = filepath.Join(os.TempDir(), "audioscope.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.logFile = f
	s.logPath = path
	log.SetOutput(f)
	return nil
}

// close releases everything in reverse start order. It is safe to call more
// than once.
func (s *session) close() error {
	var errs []error
	for _, b := range s.broadcasters {
		errs = append(errs, b.Close())
	}
	s.broadcasters = nil

	if s.driver != nil {
		errs = append(errs, s.driver.Stop())
	}
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	if s.logFile != nil {
		log.SetOutput(os.Stderr)
		errs = append(errs, s.logFile.Close())
		s.logFile = nil
	}
	return errors.Join(errs...)
}
