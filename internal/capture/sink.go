package capture

import (
	"os"
	"strings"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// Sink is the Go rendering of §6's write_raw contract: it accepts a raw
// frame and reports how many bytes it accepted. Returning (0, nil) means
// the frame was deliberately dropped (for example, it exceeded the
// interface MTU) and is not an error.
type Sink interface {
	WriteRaw(buf []byte) (int, error)
	Close() error
}

// NullSink discards every frame, mirroring the original's /dev/null
// backed sink. It is the default output when no --output interface is
// given.
type NullSink struct {
	f *os.File
}

// OpenNullSink opens /dev/null for writing.
func OpenNullSink() (*NullSink, error) {
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open null sink")
	}
	return &NullSink{f: f}, nil
}

// WriteRaw writes buf to /dev/null, which always accepts the full write.
func (s *NullSink) WriteRaw(buf []byte) (int, error) {
	n, err := s.f.Write(buf)
	if err != nil {
		return n, errors.Wrap(err, "null sink write")
	}
	return n, nil
}

// Close closes the underlying file.
func (s *NullSink) Close() error {
	return s.f.Close()
}

// InterfaceSink injects raw frames onto a live interface via libpcap.
type InterfaceSink struct {
	handle *pcap.Handle
}

// OpenInterfaceSink opens name for packet injection.
func OpenInterfaceSink(name string) (*InterfaceSink, error) {
	// A long timeout is irrelevant for an inactive (write-only) handle,
	// but pcap.OpenLive requires one; promiscuous mode is likewise moot
	// for injection and left on to match the original's behavior of
	// opening the same kind of handle for read and write.
	handle, err := pcap.OpenLive(name, snaplen, livePromisc, 30*time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "open output interface %s", name)
	}
	return &InterfaceSink{handle: handle}, nil
}

// WriteRaw injects buf onto the interface. A frame the kernel or NIC
// driver rejects for being oversized is reported as an intentional drop
// (0, nil) rather than an error, per §9's invalid-packet-tolerance
// design note; any other failure is a fatal OutputWriteError.
func (s *InterfaceSink) WriteRaw(buf []byte) (int, error) {
	if err := s.handle.WritePacketData(buf); err != nil {
		if isOversizedFrame(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "interface sink write")
	}
	return len(buf), nil
}

// Close closes the underlying pcap handle.
func (s *InterfaceSink) Close() error {
	s.handle.Close()
	return nil
}

// isOversizedFrame reports whether err is the platform's way of saying a
// frame was too large to send (EMSGSIZE on most platforms, surfaced by
// libpcap as a generic send error whose text names the condition).
func isOversizedFrame(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message too long") || strings.Contains(msg, "msgsize") || strings.Contains(msg, "too long")
}
