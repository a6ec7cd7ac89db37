// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import "code.hybscloud.com/atomix"

// stateFlags is the event header's state bitset.
type stateFlags uint32

const (
	flagAlive stateFlags = 1 << iota
	flagTriviallyDestructible
	flagService
)

// Header is the fixed part of every event: type id, bucket accounting,
// state flags, and the routing pair (dest, source).
type Header struct {
	ID          EventID
	BucketCount uint16
	Dest        ActorID
	Source      ActorID
	flags       stateFlags
}

// Alive reports the state.alive flag.
func (h Header) Alive() bool { return h.flags&flagAlive != 0 }

// TriviallyDestructible reports whether the payload needs no Release call.
func (h Header) TriviallyDestructible() bool { return h.flags&flagTriviallyDestructible != 0 }

// IsService reports whether this event carries ServiceEvent routing fields.
func (h Header) IsService() bool { return h.flags&flagService != 0 }

// Destructible is implemented by event payloads that own a resource (a
// pooled buffer, an open handle, a dynamic container backed by non-GC
// state). vcore guarantees Release is invoked exactly once across the
// event's life — delivered, overflow-dropped, or destroyed at shutdown.
type Destructible interface {
	// Release runs exactly once when the event is consumed or dropped.
	Release()
}

// record is the internal envelope carried by mailbox shards and pipes: a
// Header plus the boxed payload pointer. vcore stores one record per ring
// slot rather than laying payloads out byte-for-byte across BucketCount
// buckets (see cacheline.go) — the GC owns record/payload memory, so
// atomic enqueue of a k-bucket event is trivially true: publishing a
// record is a single pointer store.
type record struct {
	hdr     Header
	payload any

	// service-event-only fields (valid iff hdr.IsService()).
	forward        ActorID
	serviceEventID EventID

	// refs counts outstanding fan-out copies sharing this payload. Set only
	// when a Destructible payload is broadcast to more than one core: every
	// per-core record copy shares the pointer, and only the last release —
	// whichever core it lands on — runs the destructor. Nil for everything
	// else.
	refs *atomix.Int64
}

// destructible reports whether payload implements Destructible.
func (r *record) destructible() (Destructible, bool) {
	d, ok := r.payload.(Destructible)
	return d, ok
}

// release invokes the payload's destructor exactly once, if it has one.
// For fan-out copies (refs != nil) the destructor runs only on the final
// release across all sharing cores.
func (r *record) release() {
	if r == nil || r.hdr.TriviallyDestructible() {
		return
	}
	d, ok := r.destructible()
	if !ok {
		return
	}
	if r.refs != nil && r.refs.Add(-1) > 0 {
		return
	}
	d.Release()
}

// received is the service-event round trip's own-inverse operation: it
// swaps dest<->forward and id<->serviceEventID so the same record travels
// back to the requester under a different type tag.
func (r *record) received() {
	r.hdr.Dest, r.forward = r.forward, r.hdr.Dest
	r.hdr.ID, r.serviceEventID = r.serviceEventID, r.hdr.ID
}

// KillEvent is delivered to an actor to request it kill itself; every actor
// has an implicit handler for it.
type KillEvent struct{}

// SignalEvent is broadcast by the Engine when a registered OS signal
// fires; only actors that opt in via RegisterEvent receive it.
type SignalEvent struct {
	Signum int
}

// RequireReply is a RegisterProvides[T] actor's reply payload to
// Require[T], carrying the id of the actor that matched.
type RequireReply struct {
	Matched ActorID
}
