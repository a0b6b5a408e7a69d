package replay

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/sensorfleet/pktreplay/internal/capture"
	"github.com/sensorfleet/pktreplay/internal/channel"
	"github.com/sensorfleet/pktreplay/internal/control"
)

// fakeSink records every frame it is asked to write, optionally dropping
// frames whose size exceeds a configured limit or failing outright.
type fakeSink struct {
	written  [][]byte
	maxSize  int
	failWith error
}

func (s *fakeSink) WriteRaw(buf []byte) (int, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	if s.maxSize > 0 && len(buf) > s.maxSize {
		return 0, nil // oversized frame, dropped rather than errored
	}
	s.written = append(s.written, buf)
	return len(buf), nil
}

func (s *fakeSink) Close() error { return nil }

func feedAndClose(tx *channel.Tx, packets ...capture.Packet) {
	for _, pkt := range packets {
		tx.WritePacket(pkt)
	}
	tx.CloseSend()
}

func TestWriterUpdatesStatsForEveryPacket(t *testing.T) {
	tx, rx := channel.New(8, 2, &control.Stop{})
	sink := &fakeSink{}
	w := &Writer{Sink: sink, Delayer: NoDelay{}}
	stats := NewStats()

	go feedAndClose(tx, capture.Packet{Data: []byte{1, 2, 3}}, capture.Packet{Data: []byte{4, 5}})

	if err := w.Run(rx, stats); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Packets != 2 {
		t.Fatalf("Packets = %d, want 2", stats.Packets)
	}
	if stats.Bytes != 5 {
		t.Fatalf("Bytes = %d, want 5", stats.Bytes)
	}
	if len(sink.written) != 2 {
		t.Fatalf("sink received %d frames, want 2", len(sink.written))
	}
}

func TestWriterCountsDroppedFramesAsInvalid(t *testing.T) {
	tx, rx := channel.New(8, 2, &control.Stop{})
	sink := &fakeSink{maxSize: 2}
	w := &Writer{Sink: sink, Delayer: NoDelay{}}
	stats := NewStats()

	go feedAndClose(tx,
		capture.Packet{Data: []byte{1}},
		capture.Packet{Data: []byte{1, 2, 3, 4}}, // oversized, dropped
	)

	if err := w.Run(rx, stats); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Packets != 1 || stats.Invalid != 1 {
		t.Fatalf("Packets=%d Invalid=%d, want 1 and 1", stats.Packets, stats.Invalid)
	}
}

func TestWriterAbortsOnSinkFailure(t *testing.T) {
	tx, rx := channel.New(8, 2, &control.Stop{})
	sink := &fakeSink{failWith: errors.New("device gone")}
	w := &Writer{Sink: sink, Delayer: NoDelay{}}
	stats := NewStats()

	go feedAndClose(tx, capture.Packet{Data: []byte{1}})

	if err := w.Run(rx, stats); err == nil {
		t.Fatal("expected Run to return the sink's error")
	}
}

func TestWriterClosesRxOnExit(t *testing.T) {
	tx, rx := channel.New(8, 2, &control.Stop{})
	sink := &fakeSink{}
	w := &Writer{Sink: sink, Delayer: NoDelay{}}
	stats := NewStats()

	go feedAndClose(tx, capture.Packet{Data: []byte{1}})
	if err := w.Run(rx, stats); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// rx.Close was called by Run's defer, so a producer that tries to
	// enqueue past teardown must observe the disconnected channel.
	if err := tx.WritePacket(capture.Packet{Data: []byte{2}}); err != channel.ErrSendFailed {
		t.Fatalf("WritePacket after writer exit = %v, want ErrSendFailed", err)
	}
}
