// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// mockOpenStream captures what the host passes to PortAudio and returns a
// fakeStream in place of a real one.
func mockOpenStream(t *testing.T) (*portaudio.StreamParameters, *fakeStream) {
	t.Helper()

	orig := paLibOpenStream
	t.Cleanup(func() { paLibOpenStream = orig })

	var params portaudio.StreamParameters
	stream := &fakeStream{}
	paLibOpenStream = func(p portaudio.StreamParameters, callback any) (Stream, error) {
		params = p
		stream.callback = callback
		return stream, nil
	}
	return &params, stream
}

func TestPortAudioHostInputDevice(t *testing.T) {
	mockDevices(t, testDeviceTable())
	host := NewPortAudioHost(false)

	dev, err := host.InputDevice(DefaultDeviceID)
	if err != nil {
		t.Fatalf("InputDevice(default) error: %v", err)
	}
	if dev.Name() != "Built-in Microphone" {
		t.Errorf("Name() = %q", dev.Name())
	}

	cfg, err := dev.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig error: %v", err)
	}
	want := StreamConfig{SampleRate: 48000, Channels: 1, Encoding: EncodingFloat32}
	if cfg != want {
		t.Errorf("DefaultConfig() = %+v, want %+v", cfg, want)
	}

	if _, err := host.InputDevice(1); !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("output-only device: err = %v, want ErrNoInputDevice", err)
	}
}

func TestPortAudioHostNoDevices(t *testing.T) {
	mockDevices(t, nil)

	_, err := NewPortAudioHost(false).InputDevice(DefaultDeviceID)
	if !errors.Is(err, ErrNoInputDevice) {
		t.Errorf("err = %v, want ErrNoInputDevice", err)
	}
}

func TestPortAudioDefaultConfigUnsupported(t *testing.T) {
	dev := &paInputDevice{
		info: &portaudio.DeviceInfo{Name: "Broken", MaxInputChannels: 1},
		host: NewPortAudioHost(false),
	}
	if _, err := dev.DefaultConfig(); !errors.Is(err, ErrUnsupportedConfig) {
		t.Errorf("err = %v, want ErrUnsupportedConfig", err)
	}
}

func TestPortAudioOpenStreamParameters(t *testing.T) {
	mockDevices(t, testDeviceTable())

	for _, lowLatency := range []bool{false, true} {
		params, _ := mockOpenStream(t)
		host := &PortAudioHost{LowLatency: lowLatency}
		dev, err := host.InputDevice(0)
		if err != nil {
			t.Fatalf("InputDevice error: %v", err)
		}

		cfg := StreamConfig{SampleRate: 48000, Channels: 1, Encoding: EncodingFloat32}
		s, err := dev.OpenStream(cfg, 256, func([]float32) {}, func(error) {})
		if err != nil {
			t.Fatalf("OpenStream error: %v", err)
		}
		_ = s.Close()

		wantLatency := 12 * time.Millisecond
		if lowLatency {
			wantLatency = 3 * time.Millisecond
		}
		if params.Input.Latency != wantLatency {
			t.Errorf("lowLatency=%v: latency = %v, want %v", lowLatency, params.Input.Latency, wantLatency)
		}
		if params.Input.Channels != 1 || params.Output.Channels != 0 {
			t.Errorf("channels in=%d out=%d, want 1/0", params.Input.Channels, params.Output.Channels)
		}
		if params.SampleRate != 48000 || params.FramesPerBuffer != 256 {
			t.Errorf("rate=%f frames=%d", params.SampleRate, params.FramesPerBuffer)
		}
	}
}

func TestPortAudioCallbackTypes(t *testing.T) {
	mockDevices(t, testDeviceTable())
	cfg := StreamConfig{SampleRate: 48000, Channels: 1}

	tests := []struct {
		name     string
		callback any
		wantErr  bool
	}{
		{"float32", func([]float32) {}, false},
		{"int16", func([]int16) {}, false},
		{"int32", func([]int32) {}, false},
		{"uint8", func([]uint8) {}, false},
		{"uint16", func([]uint16) {}, true},
		{"not a callback", 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stream := mockOpenStream(t)
			dev, _ := (&PortAudioHost{}).InputDevice(0)

			_, err := dev.OpenStream(cfg, 0, tt.callback, func(error) {})
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStream error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && stream.callback != nil {
				t.Error("rejected callback reached PortAudio")
			}
		})
	}
}

func TestPortAudioCallbackStillDelivers(t *testing.T) {
	mockDevices(t, testDeviceTable())
	_, stream := mockOpenStream(t)
	dev, _ := (&PortAudioHost{}).InputDevice(0)

	var got []int16
	cfg := StreamConfig{SampleRate: 48000, Channels: 1, Encoding: EncodingInt16}
	if _, err := dev.OpenStream(cfg, 0, func(in []int16) { got = append(got, in...) }, nil); err != nil {
		t.Fatalf("OpenStream error: %v", err)
	}

	deliver(t, stream, []int16{1, 2, 3})
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("wrapped callback delivered %v", got)
	}
}

func TestStallWatchdogFires(t *testing.T) {
	errs := make(chan error, 1)
	w := newStallWatchdog(20*time.Millisecond, func(err error) { errs <- err })
	w.Start()
	defer w.Stop()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrDeviceStalled) {
			t.Errorf("err = %v, want ErrDeviceStalled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not report the stall")
	}
}

func TestStallWatchdogBeatKeepsAlive(t *testing.T) {
	errs := make(chan error, 1)
	w := newStallWatchdog(80*time.Millisecond, func(err error) { errs <- err })
	w.Start()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.Beat()
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	select {
	case err := <-errs:
		t.Fatalf("watchdog fired while buffers were arriving: %v", err)
	default:
	}
}

func TestStallWatchdogStopIdempotent(t *testing.T) {
	w := newStallWatchdog(time.Second, func(error) {})
	w.Stop()
	w.Start()
	w.Start()
	w.Stop()
	w.Stop()
}

func TestStallWatchdogDisabled(t *testing.T) {
	w := newStallWatchdog(0, func(error) { t.Error("disabled watchdog fired") })
	w.Start()
	time.Sleep(10 * time.Millisecond)
	w.Stop()
}

func TestPortAudioStreamStartsWatchdog(t *testing.T) {
	mockDevices(t, testDeviceTable())
	_, stream := mockOpenStream(t)

	host := &PortAudioHost{StallTimeout: 20 * time.Millisecond}
	dev, _ := host.InputDevice(0)

	errs := make(chan error, 1)
	cfg := StreamConfig{SampleRate: 48000, Channels: 1, Encoding: EncodingFloat32}
	s, err := dev.OpenStream(cfg, 0, func([]float32) {}, func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("OpenStream error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, ErrDeviceStalled) {
			t.Errorf("err = %v, want ErrDeviceStalled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stalled stream was not reported")
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
	if started, stopped, closed := stream.status(); !started || !stopped || !closed {
		t.Errorf("stream started=%v stopped=%v closed=%v", started, stopped, closed)
	}
}
