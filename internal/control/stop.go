// Package control holds the single piece of state shared by every
// goroutine in a replay pipeline: the cooperative stop flag.
package control

import "sync/atomic"

// Stop is a shared, atomically-observed termination flag. It is set by
// signal handlers or by a fatal pipeline error, and is read with relaxed
// ordering by the reader task, the writer task, and the channel's
// consumer side; the system only requires eventual observation of a Set
// call, not causal ordering with any particular packet.
type Stop struct {
	flag uint32
}

// Set requests termination. Safe to call from any goroutine, any number
// of times.
func (s *Stop) Set() {
	atomic.StoreUint32(&s.flag, 1)
}

// IsSet reports whether termination has been requested.
func (s *Stop) IsSet() bool {
	return atomic.LoadUint32(&s.flag) == 1
}
