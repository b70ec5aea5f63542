// SPDX-License-Identifier: MIT
package audio

import (
	"audioscope/internal/snapshot"
	"errors"
	"testing"
)

func TestNewPipelineValidation(t *testing.T) {
	store := snapshot.NewStore(testWindow)

	if _, err := newPipeline(testWindow, 0, store); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := newPipeline(512, 1, store); err == nil {
		t.Error("expected error for a window the store cannot hold")
	}
	if _, err := newPipeline(testWindow, 2, store); err != nil {
		t.Errorf("valid pipeline: %v", err)
	}
}

func TestPipelineCallbackTypes(t *testing.T) {
	p, err := newPipeline(testWindow, 1, snapshot.NewStore(testWindow))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		enc Encoding
		ok  func(any) bool
	}{
		{EncodingFloat32, func(cb any) bool { _, ok := cb.(func([]float32)); return ok }},
		{EncodingInt16, func(cb any) bool { _, ok := cb.(func([]int16)); return ok }},
		{EncodingUint16, func(cb any) bool { _, ok := cb.(func([]uint16)); return ok }},
		{EncodingInt32, func(cb any) bool { _, ok := cb.(func([]int32)); return ok }},
		{EncodingUint8, func(cb any) bool { _, ok := cb.(func([]uint8)); return ok }},
	}
	for _, tt := range tests {
		cb, err := p.callbackFor(tt.enc)
		if err != nil {
			t.Errorf("%s: %v", tt.enc, err)
			continue
		}
		if !tt.ok(cb) {
			t.Errorf("%s: callback has type %T", tt.enc, cb)
		}
	}

	if _, err := p.callbackFor(EncodingUnknown); !errors.Is(err, ErrStreamOpen) {
		t.Errorf("unknown encoding: err = %v, want ErrStreamOpen", err)
	}
}

func TestPipelineHaltedIgnoresBuffers(t *testing.T) {
	store := snapshot.NewStore(testWindow)
	p, err := newPipeline(testWindow, 1, store)
	if err != nil {
		t.Fatal(err)
	}
	cb, _ := p.callbackFor(EncodingInt16)
	push := cb.(func([]int16))

	push(make([]int16, testWindow))
	p.halted.Store(true)
	push(make([]int16, testWindow))

	if got := store.Sequence(); got != 1 {
		t.Errorf("sequence = %d, want 1", got)
	}
}

func TestPipelineStrideSkipsTrailingChannels(t *testing.T) {
	store := snapshot.NewStore(testWindow)
	p, err := newPipeline(testWindow, 3, store)
	if err != nil {
		t.Fatal(err)
	}
	cb, _ := p.callbackFor(EncodingFloat32)
	push := cb.(func([]float32))

	// A trailing partial frame still contributes its first sample.
	push(make([]float32, 3*(testWindow-1)+1))
	if got := store.Sequence(); got != 1 {
		t.Errorf("sequence = %d, want 1", got)
	}
}
