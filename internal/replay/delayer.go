package replay

import (
	"time"

	"github.com/sensorfleet/pktreplay/internal/capture"
)

// Delayer is a rate-shaping strategy: given the next packet, it reports
// how long the writer should sleep before writing it. Exactly one variant
// is active per pipeline (§4.4); it is never swapped mid-run.
type Delayer interface {
	// Init resets any state the delayer keeps, at the start of a writer
	// session.
	Init()
	// WaitTimeFor returns the duration to sleep before writing pkt, or
	// zero and ok=false to write immediately.
	WaitTimeFor(pkt capture.Packet) (d time.Duration, ok bool)
}

// NoDelay selects full-speed replay: every packet is written as soon as
// it is dequeued.
type NoDelay struct{}

// Init is a no-op; NoDelay is stateless.
func (NoDelay) Init() {}

// WaitTimeFor always returns no wait.
func (NoDelay) WaitTimeFor(capture.Packet) (time.Duration, bool) { return 0, false }

// PacketRateDelay replays packets with their original inter-arrival
// timing, read from each packet's capture timestamp.
type PacketRateDelay struct {
	last    time.Time
	hasLast bool
}

// Init clears any previously recorded timestamp.
func (d *PacketRateDelay) Init() {
	d.hasLast = false
}

// WaitTimeFor returns the first packet's arrival with no wait; for every
// later packet it returns pkt.When - last.When when that is non-negative.
// Capture timestamps are monotonic-by-capture but not guaranteed
// monotonic on the wall clock: a backward jump is treated as no wait
// rather than falling back to a monotonic clock (§9.1).
func (d *PacketRateDelay) WaitTimeFor(pkt capture.Packet) (time.Duration, bool) {
	defer func() {
		d.last = pkt.When
		d.hasLast = true
	}()
	if !d.hasLast {
		return 0, false
	}
	gap := pkt.When.Sub(d.last)
	if gap < 0 {
		return 0, false
	}
	return gap, gap > 0
}

// PpsDelay paces packets at a constant target rate in packets per second.
type PpsDelay struct {
	pps     uint32
	start   time.Time
	emitted uint64
}

// NewPpsDelay returns a delayer targeting pps packets per second. pps
// must be at least 1.
func NewPpsDelay(pps uint32) *PpsDelay {
	return &PpsDelay{pps: pps}
}

// Init records the session start instant.
func (d *PpsDelay) Init() {
	d.start = time.Now()
	d.emitted = 0
}

// WaitTimeFor schedules the k-th packet (k>=1) at start + k*1s/pps; the
// first packet (k=0) never waits. Arithmetic is done in microseconds to
// match the original's integer scheduling, accepting small per-packet
// drift.
func (d *PpsDelay) WaitTimeFor(capture.Packet) (time.Duration, bool) {
	if d.emitted == 0 {
		d.emitted++
		return 0, false
	}
	elapsed := time.Since(d.start)
	scheduledUs := (d.emitted * 1_000_000) / uint64(d.pps)
	scheduled := time.Duration(scheduledUs) * time.Microsecond
	d.emitted++
	if scheduled > elapsed {
		return scheduled - elapsed, true
	}
	return 0, false
}

// BpsDelay paces packets at a constant target rate in bits per second.
type BpsDelay struct {
	bps      uint64
	start    time.Time
	bitsSent uint64
}

// NewBpsDelay returns a delayer targeting bps bits per second. bps must
// be at least 1.
func NewBpsDelay(bps uint64) *BpsDelay {
	return &BpsDelay{bps: bps}
}

// Init records the session start instant and zeroes the bit counter.
func (d *BpsDelay) Init() {
	d.start = time.Now()
	d.bitsSent = 0
}

// WaitTimeFor accounts for bits already sent BEFORE the current packet:
// the first packet never waits, and each later packet pays the debt of
// everything already transmitted.
func (d *BpsDelay) WaitTimeFor(pkt capture.Packet) (time.Duration, bool) {
	estimatedUs := (d.bitsSent * 1_000_000) / d.bps
	estimated := time.Duration(estimatedUs) * time.Microsecond
	elapsed := time.Since(d.start)
	d.bitsSent += 8 * uint64(len(pkt.Data))
	if estimated > elapsed {
		return estimated - elapsed, true
	}
	return 0, false
}
