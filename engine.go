// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// startBarrier is the engine-wide startup gate: every
// VirtualCore must finish constructing and initializing its pre-start
// actors before any core begins ticking.
type startBarrier struct {
	total int
	mu    sync.Mutex
	count int
	done  chan struct{}
}

func newStartBarrier(n int) *startBarrier {
	return &startBarrier{total: n, done: make(chan struct{})}
}

func (b *startBarrier) arrive() {
	b.mu.Lock()
	b.count++
	reached := b.count == b.total
	b.mu.Unlock()
	if reached {
		close(b.done)
	}
}

func (b *startBarrier) wait() { <-b.done }

// pendingActor is one AddActor call made after Start, queued for the
// destination core's own goroutine to process at the top of its next tick
// (the actor table is owned exclusively by its VirtualCore's goroutine;
// see VirtualCore.drainPending). id is NotFound for ordinary
// actors — the core allocates the serial itself — and a fixed reserved id
// for AddService.
type pendingActor struct {
	id     ActorID
	impl   ActorImpl
	name   string
	result chan addResult
}

// addResult is what a queued pendingActor resolves to.
type addResult struct {
	id  ActorID
	err error
}

// Engine is the top-level controller: it owns the fixed set of
// VirtualCores, the pre-run actor placement API, and start/stop/join
// orchestration.
type Engine struct {
	cfg     *Config
	coreIDs []CoreID
	cores   map[CoreID]*VirtualCore
	metrics *metricsSet

	barrier *startBarrier
	stopCh  chan struct{}
	wg      sync.WaitGroup

	errMu sync.Mutex
	errs  []error

	started bool
	mu      sync.Mutex

	sigCh chan os.Signal
}

// NewEngine constructs an Engine over the given CoreIDs, which must be
// distinct; cfg may be nil for defaults.
func NewEngine(coreIDs []CoreID, cfg *Config) *Engine {
	if cfg == nil {
		cfg = NewConfig()
	}
	ids := append([]CoreID(nil), coreIDs...)
	eng := &Engine{
		cfg:     cfg,
		coreIDs: ids,
		cores:   make(map[CoreID]*VirtualCore, len(ids)),
		metrics: newMetricsSet(cfg.registerer),
		stopCh:  make(chan struct{}),
	}
	for _, id := range ids {
		eng.cores[id] = newVirtualCore(id, eng)
	}
	for _, vc := range eng.cores {
		for id, peer := range eng.cores {
			if id != vc.id {
				vc.peers[id] = peer.mailbox
			}
		}
	}
	return eng
}

// core returns the VirtualCore for id, or nil if id is not one of the
// engine's active cores.
func (e *Engine) core(id CoreID) *VirtualCore { return e.cores[id] }

// Core returns a handle for fluent actor placement on one core.
func (e *Engine) Core(id CoreID) CoreHandle { return CoreHandle{eng: e, id: id} }

// CoreHandle names one core of an Engine for fluent addition.
type CoreHandle struct {
	eng *Engine
	id  CoreID
}

// Builder starts a fluent actor-addition chain on the handle's core.
func (h CoreHandle) Builder() *ActorBuilder {
	return &ActorBuilder{eng: h.eng, core: h.id}
}

// ActorBuilder collects AddActor calls against one core and the ids they
// were assigned. The first failure sticks; later Add calls become no-ops
// so a chain reads cleanly without per-call error plumbing.
type ActorBuilder struct {
	eng  *Engine
	core CoreID
	ids  []ActorID
	err  error
}

// Add places one actor on the builder's core, recording its assigned id.
func (b *ActorBuilder) Add(name string, factory func() ActorImpl) *ActorBuilder {
	if b.err != nil {
		return b
	}
	id, err := b.eng.AddActor(b.core, name, factory)
	if err != nil {
		b.err = err
		return b
	}
	b.ids = append(b.ids, id)
	return b
}

// IDs returns every id the chain collected and the first error, if any.
func (b *ActorBuilder) IDs() ([]ActorID, error) { return b.ids, b.err }

// AddActor constructs an actor on core from factory, admits it if OnInit
// returns true, and returns its assigned ActorID. Before Start this runs
// synchronously on the calling goroutine (the core hasn't started its loop
// yet, so there is no concurrent owner); after Start it is handed to that
// core's own goroutine and this call blocks until it's processed at the
// top of the core's next tick.
func (e *Engine) AddActor(core CoreID, name string, factory func() ActorImpl) (ActorID, error) {
	vc := e.cores[core]
	if vc == nil {
		err := engineMisusef("AddActor: core %d is not active", core)
		e.recordFault(err)
		return NotFound, err
	}
	return e.addActor(vc, NotFound, name, factory)
}

// AddService constructs a ServiceActor on core at tag's well-known id.
// AddService on a (core, tag) pair already occupied is a misuse error. The
// service's id needs no return value — it is the pure formula
// ServiceID(core, tag).
func (e *Engine) AddService(core CoreID, tag ServiceTag, name string, factory func() ActorImpl) error {
	vc := e.cores[core]
	if vc == nil {
		err := engineMisusef("AddService: core %d is not active", core)
		e.recordFault(err)
		return err
	}
	id := ServiceID(core, tag)
	if !id.IsService() {
		err := engineMisusef("AddService: tag %d is outside the reserved service range", tag)
		e.recordFault(err)
		return err
	}
	_, err := e.addActor(vc, id, name, factory)
	return err
}

func (e *Engine) addActor(vc *VirtualCore, id ActorID, name string, factory func() ActorImpl) (ActorID, error) {
	e.mu.Lock()
	if !e.started {
		// Pre-start path: the core goroutine does not exist yet, so the
		// engine mutex is what serializes concurrent adders against the
		// core's tables and serial allocator.
		var err error
		if id == NotFound {
			var serial uint16
			serial, err = vc.allocSerial()
			id = NewActorID(vc.id, serial)
		}
		if err == nil {
			err = vc.addActor(id, factory(), name)
		}
		e.mu.Unlock()
		if err != nil {
			e.recordFault(err)
			return NotFound, err
		}
		return id, nil
	}
	e.mu.Unlock()

	result := make(chan addResult, 1)
	vc.pendingMu.Lock()
	vc.pending = append(vc.pending, pendingActor{id: id, impl: factory(), name: name, result: result})
	vc.pendingMu.Unlock()
	select {
	case r := <-result:
		if r.err != nil {
			e.recordFault(r.err)
			return NotFound, r.err
		}
		return r.id, nil
	case <-e.stopCh:
		// The destination core is draining or gone and will never process
		// the request; surface it synchronously as a fail-to-register.
		err := engineMisusef("add actor on core %d: engine is stopping", vc.id)
		e.recordFault(err)
		return NotFound, err
	}
}

// Start launches every VirtualCore's run loop. If async is false, the
// calling goroutine itself becomes the last core's loop (useful for tools
// that don't want N+1 threads for N cores); Start then returns only
// when that core exits. If async is true, Start spawns every core
// (including the last) as its own goroutine and returns immediately.
func (e *Engine) Start(async bool) {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	if e.HasError() {
		// A pre-start fault (an actor's OnInit returned false) aborts
		// startup: no core ever ticks, no handler ever runs, and
		// everything actors buffered during OnInit is released.
		e.Stop()
		for _, id := range e.coreIDs {
			e.cores[id].teardown()
		}
		return
	}

	e.barrier = newStartBarrier(len(e.coreIDs))
	e.installSignalHandler()

	n := len(e.coreIDs)
	for i, id := range e.coreIDs {
		vc := e.cores[id]
		last := i == n-1
		if !async && last {
			e.wg.Add(1)
			defer e.wg.Done()
			vc.run(e.barrier, e.stopCh)
			continue
		}
		e.wg.Add(1)
		go func(vc *VirtualCore) {
			defer e.wg.Done()
			vc.run(e.barrier, e.stopCh)
		}(vc)
	}
}

// Stop signals every VirtualCore to drain and exit.
// It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	if e.sigCh != nil {
		signal.Stop(e.sigCh)
		close(e.sigCh)
		e.sigCh = nil
	}
}

// Join blocks until every VirtualCore has exited, then sweeps every
// mailbox once: a record a peer flushed after its destination core had
// already stopped draining still gets its payload destructor run exactly
// once (mailboxes are released last, after actor tables and pipes).
func (e *Engine) Join() {
	e.wg.Wait()
	for _, id := range e.coreIDs {
		e.cores[id].mailbox.drain(func(rec *record) { rec.release() })
	}
}

// HasError reports whether any actor's OnInit failed, any handler
// panicked, or any other structural fault was recorded since the engine
// was built.
func (e *Engine) HasError() bool {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return len(e.errs) > 0
}

// Errors returns every structural fault recorded so far, in the order
// they occurred.
func (e *Engine) Errors() []error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return append([]error(nil), e.errs...)
}

func (e *Engine) recordFault(err error) {
	e.errMu.Lock()
	e.errs = append(e.errs, err)
	e.errMu.Unlock()
}

// installSignalHandler wires SIGINT/SIGABRT to a broadcast SignalEvent on
// every core. Receipt does not by itself stop the engine — an unhandled
// signal leaves the engine running —
// so this goroutine keeps ranging over e.sigCh, translating every
// signal it sees until Stop closes the channel. An actor that wants the
// process to actually exit on signal registers a SignalEvent handler and
// calls Stop (or Kill itself) from there.
func (e *Engine) installSignalHandler() {
	e.sigCh = make(chan os.Signal, 2)
	signal.Notify(e.sigCh, os.Interrupt, syscall.SIGABRT)
	go func() {
		for sig := range e.sigCh {
			signum := 0
			if s, ok := sig.(syscall.Signal); ok {
				signum = int(s)
			}
			for _, vc := range e.cores {
				vc.injectSignal(signum)
			}
		}
	}()
}
