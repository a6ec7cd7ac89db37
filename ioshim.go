// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import "time"

// IOCollaborator lets a VirtualCore integrate an external event source
// (a poller, a timer wheel, a network listener) into its run loop without
// vcore depending on any particular I/O backend: vcore exposes only the
// hook, never a concrete reactor.
type IOCollaborator interface {
	// Tick runs once per VirtualCore iteration, before callbacks and
	// inbound dispatch. Events it raises into ctx are buffered in the
	// outbound pipes ahead of anything the callback and drain phases push
	// in the same tick, and are flushed at the end of that tick.
	Tick(ctx IOContext, now uint64)
}

// IOContext is the handle an [IOCollaborator] uses to enqueue events from
// outside the actor model proper. It is deliberately narrower than
// [Actor]: an I/O collaborator has no ActorID of its own, only a host
// core, so it can push into any pipe but cannot Reply/Forward/Kill.
type IOContext struct {
	vc *VirtualCore
}

// PushIO buffers an event of type T addressed to dest, sourced from
// [NotFound] (the I/O collaborator has no actor identity), exactly like the
// package-level Push an actor handler would call. It is a free function,
// not a method on [IOContext], because Go methods cannot take their own
// type parameters.
func PushIO[T any](c IOContext, dest ActorID, payload T) {
	rec := buildRecord(NotFound, dest, payload)
	if eventExceedsRingCapacity(rec) {
		c.vc.rejectOversized(rec)
		return
	}
	publish(c.vc, dest, rec)
}

// Now returns the host core's clock for this tick, matching [Actor.Time].
func (c IOContext) Now() uint64 { return c.vc.clock.LoadAcquire() }

// SchedulerTag is the well-known ServiceActor id for SchedulerService on
// every core that hosts one.
const SchedulerTag ServiceTag = 1

// ScheduleAfter requests that SchedulerService deliver a TimerFired to the
// requester after Delay has elapsed, measured against the host core's
// clock (Actor.Time). Send or Push it to ServiceID(core, SchedulerTag).
type ScheduleAfter struct {
	Delay time.Duration
	Token uint64
}

// TimerFired is delivered back to the original requester once its
// ScheduleAfter deadline is reached.
type TimerFired struct {
	Token uint64
}

type pendingTimer struct {
	deadline uint64
	dest     ActorID
	token    uint64
}

// SchedulerService is the default deferred-delivery timer: a ServiceActor
// that tracks outstanding ScheduleAfter requests and fires TimerFired once
// each deadline passes, checked once per OnCallback tick. A plain slice
// scanned per tick is enough — timers are few and the scan is cheap
// relative to a tick.
type SchedulerService struct {
	Actor
	timers []pendingTimer
}

// OnInit registers the ScheduleAfter handler and enrolls the service for
// per-tick callbacks.
func (s *SchedulerService) OnInit() bool {
	RegisterEvent(&s.Actor, s.onScheduleAfter)
	RegisterCallback(&s.Actor)
	return true
}

func (s *SchedulerService) onScheduleAfter(req *ScheduleAfter) {
	s.timers = append(s.timers, pendingTimer{
		deadline: s.Time() + uint64(req.Delay),
		dest:     s.current.hdr.Source,
		token:    req.Token,
	})
}

// OnCallback fires every timer whose deadline has passed and compacts the
// remainder; called once per tick by the owning VirtualCore.
func (s *SchedulerService) OnCallback() {
	if len(s.timers) == 0 {
		return
	}
	now := s.Time()
	remaining := s.timers[:0]
	for _, t := range s.timers {
		if now >= t.deadline {
			Push(&s.Actor, t.dest, TimerFired{Token: t.token})
			continue
		}
		remaining = append(remaining, t)
	}
	s.timers = remaining
}
