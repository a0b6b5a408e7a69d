package replay

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/capture"
	"github.com/sensorfleet/pktreplay/internal/channel"
	"github.com/sensorfleet/pktreplay/internal/control"
)

func nullLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// fakeSource is a canned, in-memory capture.Source used to drive drain
// without touching the real pcap-backed adapters.
type fakeSource struct {
	packets []capture.Packet
	pos     int
	closed  bool
}

func (f *fakeSource) Next() (capture.Packet, error) {
	if f.pos >= len(f.packets) {
		return capture.Packet{}, io.EOF
	}
	pkt := f.packets[f.pos]
	f.pos++
	return pkt, nil
}

func (f *fakeSource) Close() { f.closed = true }

func drainAll(t *testing.T, tx *channel.Tx, rx *channel.Rx, n int) []capture.Packet {
	t.Helper()
	got := make([]capture.Packet, 0, n)
	for i := 0; i < n; i++ {
		pkt, ok := rx.Next()
		if !ok {
			t.Fatalf("Next() ended early after %d packets, want %d", i, n)
		}
		got = append(got, pkt)
	}
	return got
}

func TestDrainSendsEveryPacketUntilEOF(t *testing.T) {
	src := &fakeSource{packets: []capture.Packet{{Data: []byte{1}}, {Data: []byte{2}}, {Data: []byte{3}}}}
	tx, rx := channel.New(8, 2, &control.Stop{})
	r := &Reader{Limit: unlimited}
	remaining := r.Limit

	done := make(chan error, 1)
	go func() { done <- r.drain(src, tx, &remaining, nullLogEntry()) }()

	got := drainAll(t, tx, rx, 3)
	if err := <-done; err != nil {
		t.Fatalf("drain: %v", err)
	}
	for i, pkt := range got {
		if pkt.Data[0] != byte(i+1) {
			t.Fatalf("packet %d: got %v", i, pkt.Data)
		}
	}
}

func TestDrainStopsAtCountLimit(t *testing.T) {
	src := &fakeSource{packets: []capture.Packet{{Data: []byte{1}}, {Data: []byte{2}}, {Data: []byte{3}}}}
	tx, rx := channel.New(8, 2, &control.Stop{})
	r := &Reader{Limit: 2}
	remaining := r.Limit

	done := make(chan error, 1)
	go func() { done <- r.drain(src, tx, &remaining, nullLogEntry()) }()

	got := drainAll(t, tx, rx, 2)
	if err := <-done; err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	if src.pos != 2 {
		t.Fatalf("source advanced %d times, want exactly 2 (no over-read past the limit)", src.pos)
	}
}

func TestDrainPropagatesSendFailure(t *testing.T) {
	src := &fakeSource{packets: []capture.Packet{{Data: []byte{1}}, {Data: []byte{2}}}}
	tx, rx := channel.New(4, 2, &control.Stop{})
	rx.Close() // torn down before the reader ever gets to write

	r := &Reader{Limit: unlimited}
	remaining := r.Limit
	if err := r.drain(src, tx, &remaining, nullLogEntry()); err == nil {
		t.Fatal("expected drain to propagate the channel send failure")
	}
}
