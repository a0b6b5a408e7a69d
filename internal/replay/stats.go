package replay

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Stats accumulates the writer's running counters and, when configured
// with a reporting interval, pushes formatted summaries onto a report
// channel for a printer goroutine to consume. It is owned exclusively by
// the writer goroutine and needs no internal locking.
type Stats struct {
	Packets uint64
	Invalid uint64
	Bytes   uint64

	start      time.Time
	lastReport time.Time

	interval time.Duration
	reportCh chan<- string
}

// NewStats returns a Stats with no periodic reporting.
func NewStats() *Stats {
	now := time.Now()
	return &Stats{start: now, lastReport: now}
}

// NewPeriodicStats returns a Stats that pushes a summary line onto the
// returned channel every time interval has elapsed since the last
// report. The channel is intended to be drained by a printer goroutine
// and is closed by the caller once the writer session ends.
func NewPeriodicStats(interval time.Duration) (*Stats, <-chan string) {
	ch := make(chan string, 64)
	now := time.Now()
	return &Stats{start: now, lastReport: now, interval: interval, reportCh: ch}, ch
}

// CloseReports closes the periodic report channel, letting the printer
// goroutine draining it terminate. It is a no-op when no reporting
// interval was configured.
func (s *Stats) CloseReports() {
	if s.reportCh != nil {
		close(s.reportCh)
	}
}

// Reset zeroes all counters and restarts the elapsed-time clock. It is
// called once at the start of each writer session.
func (s *Stats) Reset() {
	s.Packets = 0
	s.Invalid = 0
	s.Bytes = 0
	now := time.Now()
	s.start = now
	s.lastReport = now
}

// Update records the outcome of one write attempt: n is the number of
// bytes the sink reported accepting. n == 0 means the sink deliberately
// dropped the frame, which counts against Invalid rather than Packets;
// Bytes always advances by n (zero, in the dropped case).
func (s *Stats) Update(n int) {
	if n == 0 {
		s.Invalid++
	} else {
		s.Packets++
	}
	s.Bytes += uint64(n)

	if s.reportCh == nil {
		return
	}
	now := time.Now()
	if now.Sub(s.lastReport) < s.interval {
		return
	}
	line := s.summaryAt(now)
	select {
	case s.reportCh <- line:
	default:
		logrus.WithField("component", "stats").Warn("periodic report dropped, receiver not keeping up")
	}
	s.lastReport = now
}

// Summary formats the current counters against the time elapsed since
// the last Reset.
func (s *Stats) Summary() string {
	return s.summaryAt(time.Now())
}

func (s *Stats) summaryAt(now time.Time) string {
	elapsed := now.Sub(s.start)
	elapsedSec := elapsed.Seconds()
	pps := float64(s.Packets) / elapsedSec
	bps := float64(s.Bytes) * 8 / elapsedSec
	mbps := float64(s.Bytes) / (1024 * 1024) / elapsedSec

	phrase := fmt.Sprintf("%d packets", s.Packets)
	if s.Invalid != 0 {
		phrase = fmt.Sprintf("%d packets (%d not sent)", s.Packets, s.Invalid)
	}

	return fmt.Sprintf(
		"%s, %d bytes in %dms / %.3fpps, %.3fbps (%.3f MBps)",
		phrase, s.Bytes, elapsed.Milliseconds(), pps, bps, mbps,
	)
}
