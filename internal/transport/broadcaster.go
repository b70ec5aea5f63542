// SPDX-License-Identifier: MIT
package transport

import (
	"audioscope/internal/analysis"
	"audioscope/internal/log"
	"audioscope/internal/snapshot"
	"errors"
	"sync"
	"time"
)

// Broadcaster periodically reads the snapshot store and sends every snapshot
// it has not sent before to a Transport. It runs in a separate goroutine
// managed by Start and Stop.
type Broadcaster struct {
	name       string
	store      *snapshot.Store
	out        Transport
	interval   time.Duration
	sampleRate float64
	bands      []analysis.Band
	now        func() time.Time
	logger     *log.Logger

	ticker   *time.Ticker   // Ticker that triggers a poll.
	doneChan chan struct{}  // Signals the broadcaster goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the broadcaster goroutine during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	lastSeq uint64 // Owned by the broadcaster goroutine.
	sent    uint64
	failed  uint64
	statsMu sync.Mutex
}

// BroadcasterOptions configure a Broadcaster.
type BroadcasterOptions struct {
	Name       string          // Used in log lines, e.g. "websocket".
	Interval   time.Duration   // Poll interval; <= 0 defaults to 33ms.
	SampleRate float64         // Rate of the captured stream, sent with every frame.
	Bands      []analysis.Band // Band grouping; nil sends no bands.
}

// NewBroadcaster creates and initializes a new Broadcaster.
func NewBroadcaster(store *snapshot.Store, out Transport, opts BroadcasterOptions) (*Broadcaster, error) {
	if store == nil {
		return nil, errors.New("broadcaster: snapshot store cannot be nil")
	}
	if out == nil {
		return nil, errors.New("broadcaster: transport cannot be nil")
	}
	if opts.Name == "" {
		opts.Name = "broadcaster"
	}

	logger := log.For(opts.Name)
	if opts.Interval <= 0 {
		opts.Interval = 33 * time.Millisecond // ~30Hz
		logger.Warnf("Invalid interval provided, defaulting to %s", opts.Interval)
	}

	return &Broadcaster{
		name:       opts.Name,
		store:      store,
		out:        out,
		interval:   opts.Interval,
		sampleRate: opts.SampleRate,
		bands:      opts.Bands,
		now:        time.Now,
		logger:     logger,
	}, nil
}

// Start begins the periodic broadcast. It is safe to call Start multiple
// times; subsequent calls are no-ops while running.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	if b.ticker != nil {
		b.mu.Unlock()
		b.logger.Warnf("Start called but already running")
		return
	}

	b.ticker = time.NewTicker(b.interval)
	b.doneChan = make(chan struct{})
	b.stopOnce = sync.Once{}

	ticker := b.ticker
	doneChan := b.doneChan
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.logger.Infof("Broadcasting every %s", b.interval)
		for {
			select {
			case <-ticker.C:
				b.Poll()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the broadcaster goroutine to terminate and waits for it to
// exit. It does not close the transport. It is safe to call Stop multiple
// times.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if b.ticker == nil {
		b.mu.Unlock()
		return
	}
	b.stopOnce.Do(func() {
		close(b.doneChan)
		b.ticker.Stop()
		b.ticker = nil
	})
	b.mu.Unlock()

	b.wg.Wait()
	sent, failed := b.Stats()
	b.logger.Infof("Stopped after %d frames (%d failed)", sent, failed)
}

// Close stops the broadcaster and closes its transport.
func (b *Broadcaster) Close() error {
	b.Stop()
	return b.out.Close()
}

// Poll sends the current snapshot if it is new. It reports whether a frame
// was sent. Start calls it on every tick; it must not be called concurrently
// with a running broadcaster.
func (b *Broadcaster) Poll() bool {
	if b.store.Sequence() == b.lastSeq {
		return false
	}

	snap := b.store.Read()
	b.lastSeq = snap.Sequence

	frame := NewFrame(snap, b.sampleRate, b.bands, b.now())
	err := b.out.Send(frame)

	b.statsMu.Lock()
	if err != nil {
		b.failed++
	} else {
		b.sent++
	}
	b.statsMu.Unlock()

	if err != nil {
		b.logger.Warnf("Sending frame %d: %v", frame.Sequence, err)
		return false
	}
	return true
}

// Stats returns the number of frames sent and the number the transport
// rejected.
func (b *Broadcaster) Stats() (sent, failed uint64) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.sent, b.failed
}
