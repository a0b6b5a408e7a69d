package replay

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/capture"
	"github.com/sensorfleet/pktreplay/internal/channel"
	"github.com/sensorfleet/pktreplay/internal/control"
)

// InputKind selects which concrete Source a Method opens.
type InputKind int

const (
	// InputFile reads from an offline capture file.
	InputFile InputKind = iota
	// InputInterface reads from a live interface.
	InputInterface
)

// Method names the input to read packets from: exactly one of a capture
// file path or a live interface name.
type Method struct {
	Kind  InputKind
	Value string
}

// unlimited marks a Reader with no packet count ceiling.
const unlimited = -1

// Reader drives an input source and pushes its packets through a
// channel.Tx, honoring a packet count limit, a looping flag, and
// cooperative termination (§4.2).
type Reader struct {
	Method   Method
	LoopFile bool
	// Limit is the maximum number of packets to read across the entire
	// run (including all loop iterations), or unlimited.
	Limit int64
}

// NewReader returns a Reader with no count limit. Use the Limit field
// directly to impose one.
func NewReader(method Method, loopFile bool) *Reader {
	return &Reader{Method: method, LoopFile: loopFile, Limit: unlimited}
}

// Run opens method repeatedly (once per loop iteration when LoopFile is
// set) and writes every packet it yields to tx, until the input is
// exhausted, the limit is reached, or stop is observed. tx is closed on
// every return path, disconnecting the channel and signalling end of
// stream to the writer.
func (r *Reader) Run(tx *channel.Tx, stop *control.Stop) error {
	defer tx.CloseSend()

	log := logrus.WithField("component", "reader")
	opened := false
	remaining := r.Limit

	for {
		src, err := r.open(stop)
		if err != nil {
			if r.LoopFile && opened {
				log.WithError(err).Info("looping and input unavailable, treating as end of stream")
				break
			}
			return errors.Wrap(err, "reader: open input")
		}
		opened = true

		sendErr := r.drain(src, tx, &remaining, log)
		src.Close()
		if sendErr != nil {
			return sendErr
		}

		if remaining == 0 {
			break
		}
		if !r.LoopFile || stop.IsSet() {
			break
		}
		log.Info("input iteration complete, looping")
	}

	log.Trace("reader terminated")
	return nil
}

func (r *Reader) open(stop *control.Stop) (capture.Source, error) {
	switch r.Method.Kind {
	case InputFile:
		return capture.OpenFile(r.Method.Value)
	case InputInterface:
		return capture.OpenInterface(r.Method.Value, stop)
	default:
		return nil, errors.New("reader: unknown input method")
	}
}

// drain reads packets from src until it is exhausted or remaining hits
// zero, writing each one to tx. A channel send failure is returned
// immediately and ends the task.
func (r *Reader) drain(src capture.Source, tx *channel.Tx, remaining *int64, log *logrus.Entry) error {
	for {
		if *remaining == 0 {
			return nil
		}
		pkt, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Source.Next is contractually EOF-or-nil; treat anything
			// else defensively as end of stream rather than propagate
			// an undocumented error type.
			log.WithError(err).Warn("unexpected source error, ending iteration")
			return nil
		}

		if err := tx.WritePacket(pkt); err != nil {
			return errors.Wrap(err, "reader: channel send failed")
		}
		if *remaining > 0 {
			*remaining--
		}
	}
}
