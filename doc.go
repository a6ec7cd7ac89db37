// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vcore is a sharded, lock-free actor runtime.
//
// A process built on vcore runs one VirtualCore per configured CoreId, each
// on its own OS thread, each single-threaded from the perspective of the
// actors it hosts. Actors never share state directly; they exchange typed
// events through per-destination Pipes that flush into the destination
// core's Mailbox once per tick.
//
// # Quick Start
//
//	eng := vcore.NewEngine([]vcore.CoreID{0, 1}, vcore.NewConfig())
//	pongID, _ := eng.AddActor(1, "pong", func() vcore.ActorImpl { return &PongActor{} })
//	eng.AddActor(0, "ping", func() vcore.ActorImpl { return &PingActor{pong: pongID} })
//	eng.Start(false) // calling goroutine becomes the last core
//	eng.Join()
//	if eng.HasError() {
//	    ...
//	}
//
// # Actors
//
// An actor embeds [Actor], registers handlers for the event types it
// understands in OnInit, and reacts to them on its own core:
//
//	type PingActor struct {
//	    vcore.Actor
//	    pong vcore.ActorID
//	}
//
//	func (a *PingActor) OnInit() bool {
//	    vcore.RegisterEvent(&a.Actor, a.onTiny)
//	    vcore.Push(&a.Actor, a.pong, Tiny{TTL: 16})
//	    return true
//	}
//
//	func (a *PingActor) onTiny(e *Tiny) {
//	    if e.TTL == 0 {
//	        a.Kill()
//	        return
//	    }
//	    e.TTL--
//	    vcore.Reply(&a.Actor, *e)
//	}
//
// # Ordering
//
// Events from the same source actor to the same destination actor arrive in
// FIFO order, both within one tick and across ticks.
// Different sources interleave with no cross-source global order.
//
// # Event bucket accounting
//
// Every event header carries a BucketCount, the number of fixed-size
// CacheLine-equivalent units ([BucketSize]) its payload would occupy in a
// manually-laid-out ring. vcore stores events as boxed Go values (the
// garbage collector, not placement-new, owns their memory), but Push/Send/
// Broadcast still reject an event whose BucketCount exceeds the guaranteed
// per-source ring-capacity floor before it is ever buffered: Send returns
// ErrEngineMisuse, and every rejection records that fault on the Engine.
// That boundary is checked against the guaranteed floor,
// not against whatever slot count a particular Engine's
// Config.WithMailboxCapacity happens to be tuned to — a smaller
// configured mailbox can still legitimately run out of room (ErrWouldBlock,
// retried next tick), which is a different, transient condition.
//
// # Dependencies
//
// vcore uses [code.hybscloud.com/atomix] for its atomic cross-goroutine
// fields (shard cursors, a core's clock and state, actor alive flags,
// broadcast refcounts; the startup barrier, pending-add queue and fault
// list are guarded by sync.Mutex instead), [code.hybscloud.com/spin] for
// the run loop's low-latency backoff between iterations, and
// [code.hybscloud.com/iox] for the WouldBlock error.
package vcore
