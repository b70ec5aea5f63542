// SPDX-License-Identifier: MIT
package transport

import (
	"audioscope/internal/snapshot"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	url := "ws://" + wst.Addr().String() + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if wst.Clients() == 0 {
		t.Fatal("server never registered the client")
	}
	return conn
}

func TestWebSocketTransportDeliversFrames(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport error: %v", err)
	}
	defer wst.Close()

	conn := dialTestServer(t, wst)

	store := snapshot.NewStore(testWindow)
	publishSine(t, store, 440)
	want := NewFrame(store.Read(), testSampleRate, nil, time.Now())
	if err := wst.Send(want); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}

	if got.Sequence != want.Sequence || got.Timestamp != want.Timestamp || got.SampleRate != want.SampleRate {
		t.Errorf("header = %d/%d/%f, want %d/%d/%f",
			got.Sequence, got.Timestamp, got.SampleRate, want.Sequence, want.Timestamp, want.SampleRate)
	}
	if len(got.Waveform) != testWindow || len(got.Spectrum) != testWindow/2 {
		t.Errorf("lengths %d/%d", len(got.Waveform), len(got.Spectrum))
	}
	for i := range got.Spectrum {
		if got.Spectrum[i] != want.Spectrum[i] {
			t.Fatalf("spectrum[%d] = %f, want %f", i, got.Spectrum[i], want.Spectrum[i])
		}
	}
}

func TestWebSocketTransportClientDisconnect(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dialTestServer(t, wst)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if wst.Clients() != 0 {
		t.Errorf("Clients() = %d after disconnect", wst.Clients())
	}
}

func TestWebSocketTransportSlowClientDoesNotBlockConnects(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	// A client that never reads: once the socket buffers fill, every write
	// to it blocks until wsWriteTimeout.
	slow := dialTestServer(t, wst)
	defer slow.Close()

	big := Frame{Waveform: make([]float32, 1<<18)}
	for i := range big.Waveform {
		big.Waveform[i] = 1.0 / 3
	}
	for range 32 {
		if err := wst.Send(big); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	fast := dialTestServer(t, wst)
	defer fast.Close()
	for wst.Clients() < 2 && time.Since(start) < wsWriteTimeout {
		time.Sleep(time.Millisecond)
	}
	if elapsed := time.Since(start); wst.Clients() < 2 || elapsed > wsWriteTimeout/2 {
		t.Errorf("second client registered after %s (clients %d), blocked behind a slow write", elapsed, wst.Clients())
	}
}

func TestWebSocketTransportSendWithoutClients(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	for range wsQueueSize * 4 {
		if err := wst.Send(Frame{}); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}
}

func TestWebSocketTransportClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	conn := dialTestServer(t, wst)

	if err := wst.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if err := wst.Send(Frame{}); err == nil {
		t.Error("Send after Close should fail")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client connection survived Close")
	}
}

func TestWebSocketTransportListenError(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	if other, err := NewWebSocketTransport(wst.Addr().String()); err == nil {
		other.Close()
		t.Error("expected an error for an address in use")
	}
}
