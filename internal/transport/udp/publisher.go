// SPDX-License-Identifier: MIT
package udp

import (
	"audioscope/internal/transport"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Snapshot sequence       |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Scaled spectrum         |
+-----------------------------------------------------------------------------+

Visual Layout:

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |        (int64)        |     Count     |      (N * float32)      |
|                   |                       |     (uint16)  |                         |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the fixed part of every packet.
const HeaderSize = 4 + 8 + 2

// Publisher packs the spectrum of every frame it is sent into the binary
// format above and writes it with a Sender. It implements transport.Transport.
type Publisher struct {
	sender *Sender

	mu           sync.Mutex
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewPublisher creates a Publisher that owns sender.
func NewPublisher(sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDP sender cannot be nil")
	}
	return &Publisher{
		sender:       sender,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send packs and sends a transport.Frame (or *transport.Frame).
func (p *Publisher) Send(data any) error {
	var frame *transport.Frame
	switch v := data.(type) {
	case transport.Frame:
		frame = &v
	case *transport.Frame:
		frame = v
	default:
		return fmt.Errorf("udp publisher cannot send %T", data)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := writePacket(p.packetBuffer, frame); err != nil {
		return err
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	logger.Debugf("Sent packet %d (%d bytes)", uint32(frame.Sequence), p.packetBuffer.Len())
	return nil
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	return p.sender.Close()
}

// writePacket resets buf and writes frame into it. The sequence number is
// truncated to 32 bits.
func writePacket(buf *bytes.Buffer, frame *transport.Frame) error {
	if len(frame.Spectrum) > math.MaxUint16 {
		return fmt.Errorf("spectrum of %d bins does not fit a packet", len(frame.Spectrum))
	}

	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, uint32(frame.Sequence))
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, frame.Timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(frame.Spectrum)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, frame.Spectrum)
	}
	if err != nil {
		return fmt.Errorf("packing frame %d: %w", frame.Sequence, err)
	}
	return nil
}

// Packet is a decoded UDP packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Magnitudes []float32
}

// DecodePacket parses a packet written by Publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("packet of %d bytes is shorter than the %d byte header", len(data), HeaderSize)
	}

	var pkt Packet
	pkt.Sequence = binary.BigEndian.Uint32(data[0:4])
	pkt.Timestamp = int64(binary.BigEndian.Uint64(data[4:12]))
	count := int(binary.BigEndian.Uint16(data[12:14]))

	if want := HeaderSize + 4*count; len(data) != want {
		return Packet{}, fmt.Errorf("packet has %d bytes, header promises %d", len(data), want)
	}

	pkt.Magnitudes = make([]float32, count)
	for i := range pkt.Magnitudes {
		off := HeaderSize + 4*i
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return pkt, nil
}

// Ensure Publisher satisfies the interface at compile time.
var _ transport.Transport = (*Publisher)(nil)
