// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"github.com/rs/zerolog"
)

// coreState is a VirtualCore's lifecycle state machine:
// Constructed -> Initializing -> Running -> Draining -> Exited.
type coreState uint64

const (
	coreConstructed coreState = iota
	coreInitializing
	coreRunning
	coreDraining
	coreExited
)

// ActorImpl is what every user actor type must satisfy: Base gives the
// runtime access to the embedded Actor (available for free via Go's method
// promotion, since every actor embeds Actor), Initializer's OnInit gates
// whether the actor is ever admitted.
type ActorImpl interface {
	Initializer
	Base() *Actor
}

// Base returns a itself, giving the runtime access to the embedded Actor
// through any user type that embeds it, across package boundaries.
func (a *Actor) Base() *Actor { return a }

// init (re)initializes the embedded Actor in place. Only called once, by
// VirtualCore.addActor, before OnInit runs.
func (a *Actor) init(id ActorID, vc *VirtualCore) { *a = newActorBase(id, vc) }

// VirtualCore is one shard of the engine: a single-threaded run loop owning
// a fixed set of actors, an inbound Mailbox, and one outbound Pipe per
// destination core.
type VirtualCore struct {
	id      CoreID
	cfg     *Config
	logger  zerolog.Logger
	metrics *metricsSet
	clock   atomix.Uint64

	allCores []CoreID
	mailbox  *Mailbox
	peers    map[CoreID]*Mailbox
	pipes    map[CoreID]*Pipe
	io       IOCollaborator

	actors      map[ActorID]ActorImpl
	actorOrder  []ActorID // stable fan-out order, admission order
	nextSerial  uint32
	freeSerials []uint16 // serials reclaimed by reap, reused before nextSerial advances

	callbackSet   map[ActorID]Callbacker
	callbackOrder []ActorID // stable invocation order, registration order
	toReap        []ActorID

	pendingMu sync.Mutex
	pending   []pendingActor

	sigQueue chan int

	state atomix.Uint64

	// faulted is set by invoke's panic recovery; the run loop observes it
	// at the end of the tick, triggers the engine-wide stop, and exits.
	// Core goroutine only, so a plain bool.
	faulted bool

	engine *Engine
	tick   time.Duration
}

func newVirtualCore(id CoreID, eng *Engine) *VirtualCore {
	vc := &VirtualCore{
		id:          id,
		cfg:         eng.cfg,
		logger:      eng.cfg.logger.With().Uint16("core", uint16(id)).Logger(),
		metrics:     eng.metrics,
		allCores:    eng.coreIDs,
		peers:       make(map[CoreID]*Mailbox, len(eng.coreIDs)),
		pipes:       make(map[CoreID]*Pipe, len(eng.coreIDs)),
		actors:      make(map[ActorID]ActorImpl),
		callbackSet: make(map[ActorID]Callbacker),
		sigQueue:    make(chan int, 4),
		engine:      eng,
		nextSerial:  uint32(ServiceReserved),
		tick:        time.Millisecond,
	}
	vc.mailbox = newMailbox(id, eng.coreIDs, eng.cfg.mailboxCapacity)
	for _, c := range eng.coreIDs {
		vc.pipes[c] = newPipe(c, eng.cfg.pipeInitialCap)
	}
	if eng.cfg.ioFactory != nil {
		vc.io = eng.cfg.ioFactory(id)
	}
	vc.state.StoreRelease(uint64(coreConstructed))
	return vc
}

// tickIO invokes the external I/O collaborator, if one is attached; it may
// enqueue into this core's outbound pipes. A nil collaborator (the
// default) makes this a no-op.
func (vc *VirtualCore) tickIO() {
	if vc.io == nil {
		return
	}
	vc.io.Tick(IOContext{vc: vc}, vc.clock.LoadAcquire())
}

// pipeFor returns the outbound Pipe toward core, allocating none on demand
// (every active core's Pipe is created up front in newVirtualCore).
func (vc *VirtualCore) pipeFor(core CoreID) *Pipe {
	if p, ok := vc.pipes[core]; ok {
		return p
	}
	return vc.pipes[vc.id]
}

// allocSerial hands out the next ordinary (non-service) serial id on this
// core. Serial 0xffff is never handed out — it is the broadcast sentinel —
// so exhaustion is reported as a deterministic misuse error, not a panic.
// Callers serialize access: before Start through the Engine's mutex, after
// Start on the core's own goroutine.
func (vc *VirtualCore) allocSerial() (uint16, error) {
	if n := len(vc.freeSerials); n > 0 {
		s := vc.freeSerials[n-1]
		vc.freeSerials = vc.freeSerials[:n-1]
		return s, nil
	}
	s := vc.nextSerial
	if s >= uint32(broadcastSerial) {
		return 0, engineMisusef("core %d exhausted its actor id space", vc.id)
	}
	vc.nextSerial++
	return uint16(s), nil
}

// addActor constructs id's Actor base, runs OnInit, and — only if OnInit
// returns true — admits it to the core's actor table. name is used for
// diagnostics (the fallback "log and drop" handler).
func (vc *VirtualCore) addActor(id ActorID, impl ActorImpl, name string) error {
	if _, exists := vc.actors[id]; exists {
		return engineMisusef("actor %s already exists on core %d", id, vc.id)
	}
	base := impl.Base()
	base.init(id, vc)
	base.impl = impl
	bindDefaults(base, name)
	if !impl.OnInit() {
		base.aliveFlag.Store(false)
		return initFailedf("actor %s (%s) OnInit returned false", id, name)
	}
	vc.actors[id] = impl
	vc.actorOrder = append(vc.actorOrder, id)
	vc.metrics.setActorsAlive(vc.id, len(vc.actors))
	return nil
}

func (vc *VirtualCore) scheduleReap(id ActorID) {
	vc.toReap = append(vc.toReap, id)
}

// rejectOversized records and reports an event too large to ever fit the
// guaranteed ring capacity: the send fails immediately as EngineMisuse,
// and rec is released here so its payload destructor still runs exactly
// once even though the event is never delivered.
func (vc *VirtualCore) rejectOversized(rec *record) error {
	err := engineMisusef("event %d: bucket_count %d exceeds ring capacity %d", rec.hdr.ID, rec.hdr.BucketCount, defaultMailboxCapacity)
	vc.logger.Error().Err(err).Msg("oversized event rejected")
	vc.engine.recordFault(err)
	rec.release()
	return err
}

// filterOrder removes every id in dead from order in place, preserving the
// relative order of survivors — the same in-place filtering idiom
// VirtualCore.toReap itself uses for accumulation.
func filterOrder(order []ActorID, dead map[ActorID]bool) []ActorID {
	kept := order[:0]
	for _, id := range order {
		if !dead[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// drainPending processes every AddActor/AddService call made while this
// core was already running (Engine.addActor's post-Start path), admitting
// each on this goroutine where the actor table — and the serial id
// allocator — may safely be touched. A pending request with the NotFound
// sentinel id gets an ordinary serial allocated here; AddService requests
// arrive with their reserved id already fixed.
func (vc *VirtualCore) drainPending() {
	vc.pendingMu.Lock()
	batch := vc.pending
	vc.pending = nil
	vc.pendingMu.Unlock()
	for _, p := range batch {
		id := p.id
		if id == NotFound {
			serial, err := vc.allocSerial()
			if err != nil {
				p.result <- addResult{id: NotFound, err: err}
				continue
			}
			id = NewActorID(vc.id, serial)
		}
		p.result <- addResult{id: id, err: vc.addActor(id, p.impl, p.name)}
	}
}

// injectSignal queues signum for delivery as a broadcast SignalEvent on
// this core's next tick. Safe to call from any
// goroutine; never blocks (the queue is sized generously and signals are
// rare).
func (vc *VirtualCore) injectSignal(signum int) {
	select {
	case vc.sigQueue <- signum:
	default:
	}
}

// drainSignals dispatches every queued signal as a local broadcast,
// entirely on vc's own goroutine.
func (vc *VirtualCore) drainSignals() {
	for {
		select {
		case signum := <-vc.sigQueue:
			rec := &record{hdr: Header{
				ID:     eventID[SignalEvent](),
				Dest:   BroadcastTo(vc.id),
				Source: NotFound,
				flags:  flagAlive | flagTriviallyDestructible,
			}, payload: &SignalEvent{Signum: signum}}
			vc.dispatch(rec)
		default:
			return
		}
	}
}

// reap removes every actor Kill'ed during the tick just finished; reaping
// happens after dispatch, never mid-handler.
func (vc *VirtualCore) reap() {
	if len(vc.toReap) == 0 {
		return
	}
	dead := make(map[ActorID]bool, len(vc.toReap))
	for _, id := range vc.toReap {
		dead[id] = true
		delete(vc.actors, id)
		delete(vc.callbackSet, id)
		if !id.IsService() {
			vc.freeSerials = append(vc.freeSerials, id.Serial())
		}
	}
	vc.actorOrder = filterOrder(vc.actorOrder, dead)
	vc.callbackOrder = filterOrder(vc.callbackOrder, dead)
	vc.toReap = vc.toReap[:0]
	vc.metrics.setActorsAlive(vc.id, len(vc.actors))
}

// deliverLocal is the enqueue function bound to this core's own pipe
// (vc.pipes[vc.id]): pushing to oneself always succeeds by dispatching
// immediately, since there is no ring to be full — same-core traffic
// bypasses the Mailbox.
func (vc *VirtualCore) deliverLocal(rec *record) error {
	vc.dispatch(rec)
	return nil
}

// dispatch routes one record to its destination actor(s) and guarantees
// the payload destructor (if any) runs exactly once, recovering from a
// handler panic into ErrHandlerPanic and disabling the offending actor.
func (vc *VirtualCore) dispatch(rec *record) {
	if rec.hdr.Dest.IsBroadcast() {
		vc.broadcastLocal(rec)
		return
	}
	impl, ok := vc.actors[rec.hdr.Dest]
	if !ok || !impl.Base().IsAlive() {
		// An actor Kill'ed earlier this tick is still in the table until
		// reap, but no handler may run on it after the killing event —
		// both cases drop identically.
		vc.logger.Warn().
			Str("dest", rec.hdr.Dest.String()).
			Uint16("event_id", uint16(rec.hdr.ID)).
			Msg("dead destination")
		vc.metrics.observeDropped(vc.id, "dead_destination")
		rec.release()
		return
	}
	vc.deliverTo(impl.Base(), rec)
}

// broadcastLocal fans rec out to every actor currently hosted on this
// core, in stable admission order, giving each a fresh logical delivery;
// broadcast payloads must be safe to read concurrently across handlers
// within the same tick, so only the base record is released, once, after
// the last recipient.
func (vc *VirtualCore) broadcastLocal(rec *record) {
	if len(vc.actorOrder) == 0 {
		rec.release()
		return
	}
	for _, id := range vc.actorOrder {
		impl, ok := vc.actors[id]
		if !ok {
			continue
		}
		base := impl.Base()
		if !base.IsAlive() {
			continue
		}
		prev, prevForwarded := base.current, base.currentForwarded
		base.current, base.currentForwarded = rec, false
		vc.invoke(base, rec)
		base.current, base.currentForwarded = prev, prevForwarded
	}
	rec.release()
}

// deliverTo invokes one actor's router for rec, setting up the Reply/
// Forward context (Actor.current) around the call. The previous context is
// saved and restored so an inline same-core Send from inside a handler
// does not clobber the outer event's Reply/Forward state.
func (vc *VirtualCore) deliverTo(base *Actor, rec *record) {
	prev, prevForwarded := base.current, base.currentForwarded
	base.current, base.currentForwarded = rec, false
	vc.invoke(base, rec)
	forwarded := base.currentForwarded
	base.current, base.currentForwarded = prev, prevForwarded
	if !forwarded {
		rec.release()
	}
}

// invoke calls the actor's router, recovering a panicking handler into
// ErrHandlerPanic: the offending actor is dropped and the host core marks
// itself faulted so its run loop exits at the end of this tick, while the
// other cores drain and exit via the engine-wide stop.
func (vc *VirtualCore) invoke(base *Actor, rec *record) {
	defer func() {
		if r := recover(); r != nil {
			err := handlerPanicf("actor %s: %v\n%s", base.aid, r, debug.Stack())
			vc.logger.Error().Err(err).Msg("handler panic")
			vc.engine.recordFault(err)
			base.aliveFlag.Store(false)
			vc.scheduleReap(base.aid)
			vc.faulted = true
		}
	}()
	base.rt.route(rec)
}

// flushOutbound hands every Pipe's buffered records to their destination:
// same-core pipes dispatch inline via deliverLocal; cross-core pipes
// enqueue into the peer's Mailbox shard dedicated to vc.id.
func (vc *VirtualCore) flushOutbound() {
	for core, p := range vc.pipes {
		if core == vc.id {
			p.flush(vc.deliverLocal)
			continue
		}
		peer, ok := vc.peers[core]
		if !ok {
			continue
		}
		p.flush(func(rec *record) error {
			err := peer.enqueue(vc.id, rec)
			if IsWouldBlock(err) {
				vc.metrics.observeQueueFull()
			}
			return err
		})
	}
}

// drainInbound dispatches every record published to this core's Mailbox
// since the previous tick.
func (vc *VirtualCore) drainInbound() {
	vc.mailbox.drain(vc.dispatch)
	vc.metrics.setMailboxDepth(vc.id, vc.mailbox.depth())
}

// runCallbacks invokes OnCallback on every actor currently registered for
// it, in stable registration order.
func (vc *VirtualCore) runCallbacks() {
	for _, id := range vc.callbackOrder {
		cb, ok := vc.callbackSet[id]
		if !ok {
			continue
		}
		cb.OnCallback()
	}
}

// run is the VirtualCore's single-threaded loop: sample the clock, tick
// the external I/O collaborator (if any), run callbacks, drain+dispatch
// inbound, reap killed actors, flush outbound, then check for shutdown.
// barrier is the engine-wide startup gate: every core must finish
// adding/initializing its actors before any core begins ticking.
func (vc *VirtualCore) run(barrier *startBarrier, stop <-chan struct{}) {
	vc.state.StoreRelease(uint64(coreInitializing))
	if vc.cfg.cpuPinning {
		runtime.LockOSThread()
		if err := pinToCore(vc.id); err != nil {
			vc.logger.Warn().Err(err).Msg("cpu pinning failed")
		}
	}
	barrier.arrive()
	barrier.wait()
	vc.state.StoreRelease(uint64(coreRunning))

	backoff := spin.Wait{}
	for {
		select {
		case <-stop:
			vc.state.StoreRelease(uint64(coreDraining))
			vc.drain()
			vc.state.StoreRelease(uint64(coreExited))
			vc.logger.Debug().Str("state", vc.stateString()).Msg("core exited")
			return
		default:
		}

		vc.clock.StoreRelease(uint64(time.Now().UnixNano()))
		vc.drainPending()
		vc.drainSignals()
		vc.tickIO()
		vc.runCallbacks()
		vc.drainInbound()
		vc.reap()
		vc.flushOutbound()

		if vc.faulted {
			// A handler panicked this tick: this core exits its loop
			// without a drain pass; the engine-wide stop makes the other
			// cores complete drain and exit. Local resources are still
			// released in dependency order.
			vc.engine.Stop()
			vc.teardown()
			vc.state.StoreRelease(uint64(coreExited))
			return
		}

		if vc.cfg.lowLatency {
			backoff.Once()
		} else {
			time.Sleep(vc.tick)
		}
	}
}

// drain runs a final signal/inbound/outbound pass and releases every actor
// and pending Pipe record, so Destructible payloads are never silently
// leaked at shutdown. drainSignals runs first so a SignalEvent queued just
// before Stop (which races the run loop's top-of-iteration `case <-stop:`
// check) is still broadcast at least once before this core exits.
func (vc *VirtualCore) drain() {
	vc.drainSignals()
	vc.drainInbound()
	vc.flushOutbound()
	vc.reap()
	vc.teardown()
}

// teardown releases everything this core still owns, in dependency order:
// buffered pipe records first (their destructors run here), then the actor
// tables. It dispatches nothing. Inbound mailbox records a peer flushed
// after this core stopped draining are swept by Engine.Join.
func (vc *VirtualCore) teardown() {
	for _, p := range vc.pipes {
		p.drop()
	}
	for _, id := range vc.actorOrder {
		delete(vc.actors, id)
	}
	vc.actorOrder = nil
	vc.callbackOrder = nil
	vc.metrics.setActorsAlive(vc.id, 0)
}

func (vc *VirtualCore) stateString() string {
	switch coreState(vc.state.LoadAcquire()) {
	case coreConstructed:
		return "constructed"
	case coreInitializing:
		return "initializing"
	case coreRunning:
		return "running"
	case coreDraining:
		return "draining"
	case coreExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", vc.state.LoadAcquire())
	}
}
