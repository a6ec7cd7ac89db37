// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import "code.hybscloud.com/atomix"

// Initializer is implemented by every user actor type. OnInit runs once,
// on the actor's host core, before it can receive any event. Returning
// false aborts the actor: it is never added, and if this happens during
// engine startup the whole engine aborts.
type Initializer interface {
	OnInit() bool
}

// Callbacker is an optional interface: actors that implement it and call
// RegisterCallback receive OnCallback once per VirtualCore tick.
type Callbacker interface {
	OnCallback()
}

// Actor is the base every user actor type embeds. It carries identity, the
// per-actor dispatch table, and the host-core back-reference the package-
// level Push/Send/Reply/Forward/Broadcast/Kill functions operate through.
type Actor struct {
	aid       ActorID
	vc        *VirtualCore
	rt        *router
	aliveFlag atomix.Bool

	// impl is the concrete user type this Actor is embedded in, set by
	// VirtualCore.addActor before OnInit runs — RegisterCallback needs it
	// (to type-assert Callbacker) at a point before the actor is admitted
	// to vc.actors, so it cannot look itself up there yet.
	impl ActorImpl

	// current is the record presently being dispatched to this actor, set
	// and cleared by VirtualCore around each handler call; Reply and
	// Forward read it to learn the inbound event's Source/Header without
	// requiring handlers to thread it through explicitly.
	current          *record
	currentForwarded bool
	referencedActors []ActorID
}

// ID returns the actor's ActorID.
func (a *Actor) ID() ActorID { return a.aid }

// Time returns the host core's monotonic clock, sampled once per tick.
func (a *Actor) Time() uint64 { return a.vc.clock.LoadAcquire() }

// IsAlive reports whether Kill has not yet been called on this actor.
func (a *Actor) IsAlive() bool { return a.aliveFlag.Load() }

// Core returns the CoreID this actor is permanently bound to.
func (a *Actor) Core() CoreID { return a.vc.id }

// Kill marks the actor dead; the VirtualCore reaps it at the end of the
// current tick, after the event presently being handled (if any) finishes.
// Only the actor's own core ever calls Kill, so a plain load-then-store
// suffices; IsAlive may be read from other goroutines, which is why the
// flag is atomic at all.
func (a *Actor) Kill() {
	if !a.aliveFlag.Load() {
		return
	}
	a.aliveFlag.Store(false)
	a.vc.scheduleReap(a.aid)
}

func newActorBase(id ActorID, vc *VirtualCore) Actor {
	a := Actor{aid: id, vc: vc, rt: newRouter(defaultFallback)}
	a.aliveFlag.Store(true)
	return a
}

func defaultFallback(rec *record) {
	// Overwritten per-actor in bindDefaults once the owning VirtualCore
	// (and its logger) is known; this placeholder only guards against a
	// record routed before bindDefaults runs. The dispatching VirtualCore
	// releases rec after route returns, so nothing is released here.
}

// bindDefaults installs the handlers every actor receives implicitly: the
// "log and drop" fallback for events with no registered handler, and the
// KillEvent handler that kills the actor. A user actor may overwrite the
// KillEvent registration in its own OnInit.
func bindDefaults(a *Actor, name string) {
	registerEvent[KillEvent](a.rt, func(*KillEvent) { a.Kill() })
	a.rt.fallback = func(rec *record) {
		a.vc.logger.Warn().
			Uint16("core", uint16(a.vc.id)).
			Str("actor", name).
			Uint16("event_id", uint16(rec.hdr.ID)).
			Msg("unknown event dropped")
		a.vc.metrics.observeDropped(a.vc.id, "unknown_event")
	}
}

// RegisterEvent installs fn as a's handler for T. Call from OnInit.
func RegisterEvent[T any](a *Actor, fn func(*T)) {
	registerEvent[T](a.rt, fn)
}

// RegisterCallback enrolls a for a per-tick OnCallback notification.
// a's concrete type must implement Callbacker; if it
// doesn't, RegisterCallback is a silent no-op (mirrors RegisterEvent's
// "register for what you actually handle" contract — there is nothing
// useful to enforce at compile time here since a is untyped at this
// point).
func RegisterCallback(a *Actor) {
	cb, ok := a.impl.(Callbacker)
	if !ok {
		return
	}
	if _, registered := a.vc.callbackSet[a.aid]; registered {
		return
	}
	a.vc.callbackSet[a.aid] = cb
	a.vc.callbackOrder = append(a.vc.callbackOrder, a.aid)
}

// UnregisterCallback deregisters a; effective from the next tick.
func UnregisterCallback(a *Actor) {
	delete(a.vc.callbackSet, a.aid)
	a.vc.callbackOrder = filterOrder(a.vc.callbackOrder, map[ActorID]bool{a.aid: true})
}

// CurrentSource returns the Source of the event a is presently handling,
// without the handler having to thread the header through explicitly.
// Panics if called outside a handler, matching Reply/Forward's
// precondition.
func (a *Actor) CurrentSource() ActorID {
	if a.current == nil {
		panic("vcore: CurrentSource called outside a handler")
	}
	return a.current.hdr.Source
}

// ServiceTag is a reserved, well-known low ActorID serial
// (`[1, ServiceReserved)`) identifying a ServiceActor kind. Define one
// const per service kind in the package that owns the service.
type ServiceTag uint16

// ServiceID returns the ActorID of the ServiceActor for tag on core,
// without any table search: the id is a pure formula over reserved
// serials, valid once (and only once) that (core, tag) ServiceActor has
// been added.
func ServiceID(core CoreID, tag ServiceTag) ActorID {
	return NewActorID(core, uint16(tag))
}
