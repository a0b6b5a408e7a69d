// The MIT License (MIT)
//
// Copyright (c) 2024 pktreplay contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package channel implements the bounded, watermarked handoff between the
// packet reader and the packet writer.
package channel

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/capture"
	"github.com/sensorfleet/pktreplay/internal/control"
)

// ErrSendFailed is returned by Tx.WritePacket when the consumer side has
// already been torn down.
var ErrSendFailed = errors.New("channel: send on disconnected receiver")

// context is the mutex-guarded state shared between Tx and Rx: the packet
// count and the paused flag, plus the condition variable producers wait on.
type context struct {
	mu     sync.Mutex
	cond   *sync.Cond
	packets uint64
	paused  bool
	closed  bool
}

// Tx is the producer half of the channel. Exactly one goroutine, the
// reader task, may call WritePacket.
type Tx struct {
	ch  chan capture.Packet
	ctx *context
	hi  uint64
}

// Rx is the consumer half of the channel. Exactly one goroutine, the
// writer task, may call Next or range over Packets.
type Rx struct {
	ch   chan capture.Packet
	ctx  *context
	lo   uint64
	stop *control.Stop
}

// New creates a bounded channel allowing hi packets to be queued before the
// producer is paused, and lo packets before it is resumed. lo must be
// strictly less than hi and hi must be at least 1. stop is consulted by
// Rx.Next so the consumer can yield end-of-stream promptly on
// cancellation, without draining whatever remains buffered.
func New(hi, lo uint64, stop *control.Stop) (*Tx, *Rx) {
	if hi < 1 {
		panic("channel: hi must be >= 1")
	}
	if lo >= hi {
		panic("channel: lo must be < hi")
	}
	ctx := &context{}
	ctx.cond = sync.NewCond(&ctx.mu)
	ch := make(chan capture.Packet, 1<<16)
	return &Tx{ch: ch, ctx: ctx, hi: hi}, &Rx{ch: ch, ctx: ctx, lo: lo, stop: stop}
}

// WritePacket enqueues pkt, blocking while the channel is paused. It is the
// sole producer suspension point.
func (t *Tx) WritePacket(pkt capture.Packet) error {
	t.ctx.mu.Lock()
	if t.ctx.closed {
		t.ctx.mu.Unlock()
		return ErrSendFailed
	}
	if t.ctx.packets >= t.hi {
		t.ctx.paused = true
	}
	for t.ctx.paused && !t.ctx.closed {
		logrus.WithField("component", "channel").Trace("packet reader paused")
		t.ctx.cond.Wait()
	}
	if t.ctx.closed {
		t.ctx.mu.Unlock()
		return ErrSendFailed
	}
	// Count the packet before sending it, so the consumer (which
	// decrements after receiving) can never dequeue an uncounted packet.
	t.ctx.packets++
	logrus.WithField("component", "channel").WithField("packets", t.ctx.packets).Trace("tx complete")
	t.ctx.mu.Unlock()

	t.ch <- pkt
	return nil
}

// Next blocks for the next packet. ok is false when the producer has called
// CloseSend and the underlying queue has been drained, or the shared stop
// flag is observed set. Next does not consult the teardown done by Close.
func (r *Rx) Next() (pkt capture.Packet, ok bool) {
	if r.stop != nil && r.stop.IsSet() {
		return capture.Packet{}, false
	}

	pkt, ok = <-r.ch
	if !ok {
		return capture.Packet{}, false
	}

	r.ctx.mu.Lock()
	if r.ctx.packets > 0 {
		r.ctx.packets--
	}
	// Resume when packets has dropped below lo, with the lo=0 edge case
	// read as "the queue just went empty" rather than the literal
	// (and unsatisfiable for an unsigned counter) packets < 0 — see
	// DESIGN.md for why this diverges from a literal reading of lo=0.
	resumed := r.ctx.packets < r.lo || (r.lo == 0 && r.ctx.packets == 0)
	if r.ctx.paused && resumed {
		r.ctx.paused = false
		logrus.WithField("component", "channel").Trace("waking packet reader")
		r.ctx.cond.Signal()
	}
	logrus.WithField("component", "channel").WithField("packets", r.ctx.packets).Trace("rx complete")
	r.ctx.mu.Unlock()
	return pkt, true
}

// Close tears down the consumer side: it unblocks any producer currently
// waiting on the condition variable and marks the channel disconnected so
// a subsequent WritePacket returns ErrSendFailed instead of hanging.
func (r *Rx) Close() {
	r.ctx.mu.Lock()
	r.ctx.packets = 0
	r.ctx.paused = false
	r.ctx.closed = true
	r.ctx.cond.Broadcast()
	r.ctx.mu.Unlock()
}

// CloseSend closes the producer side, signalling end-of-stream to the
// consumer's next Next call. The reader task calls this on exit.
func (t *Tx) CloseSend() {
	close(t.ch)
}

// Depth reports the number of packets currently buffered and committed but
// not yet yielded to the consumer. It is intended for tests and metrics,
// not for control flow.
func (r *Rx) Depth() uint64 {
	r.ctx.mu.Lock()
	defer r.ctx.mu.Unlock()
	return r.ctx.packets
}
