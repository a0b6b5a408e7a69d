package capture

import (
	"io"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/control"
)

const (
	snaplen     = 65535
	livePromisc = true
	// pollTimeout bounds how long ReadPacketData may block on a live
	// handle before returning pcap.NextErrorTimeoutExpired, which is the
	// point at which the stop flag is re-checked.
	pollTimeout = 100 * time.Millisecond
)

// FileSource reads a finite, once-through sequence of packets from a pcap
// capture file.
type FileSource struct {
	path   string
	handle *pcap.Handle
}

// OpenFile opens path as an offline capture file.
func OpenFile(path string) (*FileSource, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture file %s", path)
	}
	return &FileSource{path: path, handle: handle}, nil
}

// Next returns the next packet in the file. A read error is treated as
// end of file: it is logged and surfaced as io.EOF rather than through a
// distinct error value, matching the file-iterator contract (§4.6): end
// of file, or any read error, ends the iterator.
func (f *FileSource) Next() (Packet, error) {
	data, ci, err := f.handle.ReadPacketData()
	if err != nil {
		if err != io.EOF {
			logrus.WithFields(logrus.Fields{
				"component": "capture.file",
				"path":      f.path,
				"err":       err,
			}).Warn("read error, treating as end of file")
		}
		return Packet{}, io.EOF
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	return Packet{Data: owned, When: ci.Timestamp}, nil
}

// Close releases the underlying pcap handle.
func (f *FileSource) Close() {
	f.handle.Close()
}

// LiveSource is a potentially infinite sequence of packets polled from a
// live interface.
type LiveSource struct {
	name   string
	handle *pcap.Handle
	stop   *control.Stop
}

// OpenInterface opens name for live capture. stop is polled by Next
// between unsuccessful reads, per the live-iterator contract (§4.6).
func OpenInterface(name string, stop *control.Stop) (*LiveSource, error) {
	handle, err := pcap.OpenLive(name, snaplen, livePromisc, pollTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "open interface %s", name)
	}
	return &LiveSource{name: name, handle: handle, stop: stop}, nil
}

// Next blocks until a packet is available, the poll times out (in which
// case it loops and re-checks stop), or a hard read error occurs (in
// which case it yields end of stream).
func (l *LiveSource) Next() (Packet, error) {
	for {
		if l.stop != nil && l.stop.IsSet() {
			return Packet{}, io.EOF
		}
		data, ci, err := l.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "capture.live",
				"interface": l.name,
				"err":       err,
			}).Warn("read error, ending capture")
			return Packet{}, io.EOF
		}
		owned := make([]byte, len(data))
		copy(owned, data)
		return Packet{Data: owned, When: ci.Timestamp}, nil
	}
}

// Close releases the underlying pcap handle.
func (l *LiveSource) Close() {
	l.handle.Close()
}
