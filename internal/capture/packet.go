// Package capture binds the replay engine's opaque input-iterator and
// output-sink contracts to concrete adapters built on gopacket/pcap.
package capture

import "time"

// Packet is a timestamped, owned link-layer frame. It is created once by
// a Source, moved through the channel exactly once, and consumed by the
// writer; it is never cloned and never retained past the write call.
type Packet struct {
	Data []byte
	When time.Time
}

// Source is a blocking iterator of Packet, the common shape of both the
// file-backed and the live-interface-backed adapters (§4.6). Next
// returns io.EOF to signal end of stream; it never returns any other
// error, matching the external-collaborator contract the core relies on.
type Source interface {
	Next() (Packet, error)
	Close()
}
