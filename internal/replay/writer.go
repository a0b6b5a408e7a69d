package replay

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/capture"
	"github.com/sensorfleet/pktreplay/internal/channel"
)

// Writer dequeues packets, applies a Delayer, calls the output sink, and
// updates Stats (§4.3).
type Writer struct {
	Sink    capture.Sink
	Delayer Delayer
}

// Run drains rx until end of stream or a fatal sink error, updating stats
// in place; it returns the sink error, or nil. The channel mutex is never held across sleep or the
// sink call: Rx.Next releases it before returning.
func (w *Writer) Run(rx *channel.Rx, stats *Stats) error {
	defer rx.Close()

	log := logrus.WithField("component", "writer")
	stats.Reset()
	w.Delayer.Init()

	for {
		pkt, ok := rx.Next()
		if !ok {
			break
		}

		if wait, shouldWait := w.Delayer.WaitTimeFor(pkt); shouldWait {
			time.Sleep(wait)
		}

		n, err := w.Sink.WriteRaw(pkt.Data)
		if err != nil {
			log.WithError(err).Error("unable to write packet, aborting writer loop")
			return errors.Wrap(err, "writer: output write failed")
		}
		stats.Update(n)
	}

	log.Trace("writer terminated")
	return nil
}
