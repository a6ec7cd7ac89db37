// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// buildRecord allocates the record for one Push/Send/Broadcast call.
func buildRecord[T any](source ActorID, dest ActorID, payload T) *record {
	id := eventID[T]()
	_, destructible := any(&payload).(Destructible)
	return &record{
		hdr: Header{
			ID:          id,
			BucketCount: bucketsFor(unsafe.Sizeof(payload)),
			Dest:        dest,
			Source:      source,
			flags:       flagsFor(!destructible),
		},
		payload: &payload,
	}
}

func flagsFor(trivial bool) stateFlags {
	f := flagAlive
	if trivial {
		f |= flagTriviallyDestructible
	}
	return f
}

// Push buffers an event of type T addressed to dest in a's core's outbound
// Pipe and returns the buffered payload, which the caller may keep
// mutating until its handler returns — the event is flushed no earlier
// than the end of the current tick. Push is always buffer-only, including
// same-core destinations, so ordering relative to other buffered sends
// from a is preserved. Returns nil if the event was rejected as oversized.
func Push[T any](a *Actor, dest ActorID, payload T) *T {
	rec := buildRecord(a.aid, dest, payload)
	if eventExceedsRingCapacity(rec) {
		a.vc.rejectOversized(rec)
		return nil
	}
	publish(a.vc, dest, rec)
	return rec.payload.(*T)
}

// Send attempts best-effort-immediate delivery of an event of type T to
// dest. A same-core destination is dispatched inline, synchronously,
// before Send returns. A cross-core destination bypasses the Pipe buffer
// entirely and attempts one direct Mailbox enqueue; ErrWouldBlock means
// the destination shard is momentarily full and the caller may retry or
// fall back to Push. A broadcast destination (including one on a's own
// core) is buffered exactly as Push would buffer it.
func Send[T any](a *Actor, dest ActorID, payload T) error {
	rec := buildRecord(a.aid, dest, payload)
	if eventExceedsRingCapacity(rec) {
		return a.vc.rejectOversized(rec)
	}
	if dest.IsBroadcast() {
		publish(a.vc, dest, rec)
		return nil
	}
	core := dest.Core()
	if core == a.vc.id {
		a.vc.dispatch(rec)
		return nil
	}
	peer, ok := a.vc.peers[core]
	if !ok {
		return engineMisusef("send to core %d: no such active core", core)
	}
	err := a.vc.pipeFor(core).trySend(rec, func(r *record) error {
		return peer.enqueue(a.vc.id, r)
	})
	if IsWouldBlock(err) {
		a.vc.metrics.observeQueueFull()
	}
	return err
}

// publish hands rec to the buffered outbound path: a single destination
// core's Pipe, or every active core's Pipe when dest is a broadcast id
// whose core component is BroadcastCore.
func publish(vc *VirtualCore, dest ActorID, rec *record) {
	if dest.Core() != BroadcastCore {
		vc.pipeFor(dest.Core()).pushCopy(rec)
		return
	}
	if n := len(vc.allCores); n > 1 && !rec.hdr.TriviallyDestructible() {
		// Every per-core copy shares the payload; the destructor must run
		// on the last release only, whichever core that lands on.
		refs := &atomix.Int64{}
		refs.Add(int64(n))
		rec.refs = refs
	}
	for i, core := range vc.allCores {
		r := rec
		if i > 0 {
			cp := *rec
			r = &cp
		}
		r.hdr.Dest = BroadcastTo(core)
		vc.pipeFor(core).pushCopy(r)
	}
}

// Broadcast buffers an event of type T addressed to every actor on every
// active core, implemented as one per-core broadcast record rather than a
// single cross-core sentinel so each core's dispatch loop only ever needs
// to recognize its own IsBroadcast destinations.
func Broadcast[T any](a *Actor, payload T) {
	rec := buildRecord(a.aid, BroadcastAll, payload)
	if eventExceedsRingCapacity(rec) {
		a.vc.rejectOversized(rec)
		return
	}
	publish(a.vc, BroadcastAll, rec)
}

// Reply buffers an event of type T addressed back to the Source of the
// event a is currently handling. Calling Reply outside a handler
// (a.current == nil) is a programming error and panics: reply and forward
// only make sense while servicing an event.
func Reply[T any](a *Actor, payload T) {
	if a.current == nil {
		panic("vcore: Reply called outside a handler")
	}
	Push(a, a.current.hdr.Source, payload)
}

// Forward re-addresses the event a is currently handling to dest and
// re-buffers the same record without a fresh allocation. Source is left
// untouched — the next recipient's handler observes the same Source the
// original sender set, no matter how many hops the event takes. The
// record's destructor is not run by the current dispatch — ownership
// passes to dest — and Forward may only be called once per handler
// invocation.
func Forward(a *Actor, dest ActorID) {
	if a.current == nil {
		panic("vcore: Forward called outside a handler")
	}
	if a.currentForwarded {
		panic("vcore: Forward called more than once for the same event")
	}
	if a.current.hdr.Dest.IsBroadcast() {
		panic("vcore: cannot Forward a broadcast delivery")
	}
	rec := a.current
	rec.hdr.Dest = dest
	a.currentForwarded = true
	a.vc.pipeFor(dest.Core()).pushCopy(rec)
}

// AddReferencedActor constructs child as a new actor on a's own core and
// runs its OnInit immediately: on success the child's assigned ActorID is
// returned and recorded in a's referenced list; on failure (OnInit false,
// id space exhausted) the child is discarded, the fault is recorded on the
// Engine, and NotFound is returned. The child is owned by the core's table
// like any other actor — independently reapable, not tied to a's lifetime.
// Must be called from a's own core: OnInit, a handler, or OnCallback.
func AddReferencedActor[A ActorImpl](a *Actor, name string, child A) (ActorID, error) {
	vc := a.vc
	serial, err := vc.allocSerial()
	if err != nil {
		vc.engine.recordFault(err)
		return NotFound, err
	}
	id := NewActorID(vc.id, serial)
	if err := vc.addActor(id, child, name); err != nil {
		vc.freeSerials = append(vc.freeSerials, serial)
		vc.engine.recordFault(err)
		return NotFound, err
	}
	a.referencedActors = append(a.referencedActors, id)
	return id, nil
}

// ReferencedActors returns the ids of every child a successfully created
// through AddReferencedActor.
func (a *Actor) ReferencedActors() []ActorID {
	return a.referencedActors
}

// serviceReply is the marker type whose EventID tags the return leg of a
// service-event round trip for request payload T. The payload itself never
// changes Go type — only the header's id field does, which is exactly what
// lets the requester register a distinct handler for "my request,
// answered" versus any other inbound T.
type serviceReply[T any] struct{}

// PushService buffers a request/response service event addressed to dest:
// the record carries a secondary forward id (the requester) and a
// secondary event id (the reply tag), so the service can send the same
// allocation back with ReplyService and the requester's
// RegisterServiceReply handler — not its plain RegisterEvent handler —
// receives it. Returns the buffered payload for further mutation, or nil
// if rejected as oversized.
func PushService[T any](a *Actor, dest ActorID, payload T) *T {
	rec := buildRecord(a.aid, dest, payload)
	if eventExceedsRingCapacity(rec) {
		a.vc.rejectOversized(rec)
		return nil
	}
	rec.hdr.flags |= flagService
	rec.forward = a.aid
	rec.serviceEventID = eventID[serviceReply[T]]()
	publish(a.vc, dest, rec)
	return rec.payload.(*T)
}

// RegisterServiceReply installs fn as a's handler for the return leg of
// PushService[T] round trips. The payload delivered to fn is the very
// allocation a originally pushed, possibly mutated by the service. Call
// from OnInit.
func RegisterServiceReply[T any](a *Actor, fn func(*T)) {
	a.rt.register(eventID[serviceReply[T]](), func(rec *record) {
		fn(rec.payload.(*T))
	})
}

// ReplyService routes the service event a is currently handling back to
// its requester by performing the received() header swap (dest<->forward,
// id<->reply id) and re-buffering the same record; the payload, including
// any mutation the service made, rides back untouched. Ownership transfers
// with the record, so the current dispatch does not release it.
func ReplyService(a *Actor) {
	rec := a.current
	if rec == nil {
		panic("vcore: ReplyService called outside a handler")
	}
	if !rec.hdr.IsService() {
		panic("vcore: ReplyService on an event that is not a ServiceEvent")
	}
	if a.currentForwarded {
		panic("vcore: event already forwarded or replied")
	}
	if rec.hdr.Dest.IsBroadcast() {
		panic("vcore: cannot ReplyService on a broadcast delivery")
	}
	rec.received()
	a.currentForwarded = true
	a.vc.pipeFor(rec.hdr.Dest.Core()).pushCopy(rec)
}

// requireProbe is the event type Require[T] broadcasts; its only field is
// the requirer's id, and T itself is identified through its EventID, since
// distinct T produce distinct, non-colliding EventIDs (id.go's
// eventTypeRegistry).
type requireProbe[T any] struct {
	Requirer ActorID
}

// Require broadcasts a discovery probe for actors of kind T: any actor
// that previously called RegisterProvides[T] replies with a RequireReply
// naming itself. Replies are not deduplicated by the runtime — a requirer
// expecting exactly one match is responsible for that itself.
func Require[T any](a *Actor) {
	Broadcast(a, requireProbe[T]{Requirer: a.aid})
}

// RegisterProvides marks a as an implementation of T discoverable via
// Require[T]: the actor replies to any requireProbe[T] with its own
// ActorID. Call from OnInit.
func RegisterProvides[T any](a *Actor) {
	RegisterEvent(a, func(p *requireProbe[T]) {
		Reply(a, RequireReply{Matched: a.aid})
	})
}

// PipeHandle is a chainable builder over one destination, for the
// `To(a, dest)` then push/send style. It is a thin convenience wrapper:
// each PushVia/SendVia call still goes through the same buffered/immediate
// paths as Push and Send.
type PipeHandle struct {
	a    *Actor
	dest ActorID
}

// To begins a chain targeting dest.
func To(a *Actor, dest ActorID) PipeHandle {
	return PipeHandle{a: a, dest: dest}
}

// PushVia buffers payload to the handle's destination (see the
// package-level Push).
func PushVia[T any](h PipeHandle, payload T) {
	Push(h.a, h.dest, payload)
}

// SendVia attempts best-effort-immediate delivery of payload to the
// handle's destination (see the package-level Send).
func SendVia[T any](h PipeHandle, payload T) error {
	return Send(h.a, h.dest, payload)
}
