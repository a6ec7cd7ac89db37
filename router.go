// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

// router is one actor's EventID -> handler dispatch table. Registration
// installs a trampoline that recovers the typed payload pointer from the
// record and invokes the actor's typed handler; lookup at dispatch time is
// one map access, no virtual dispatch or type switch in the hot path.
//
// The four routing topologies — one actor/one type, one actor/many types,
// one type fanned across many actors, and the general many-to-many case —
// all reduce to this one structure:
//
//   - A single actor's router covers the single-handler cases directly: a
//     map from however many EventIDs the actor registered down to its
//     handlers.
//   - The multi-handler cases are what the VirtualCore gets by composing
//     many actors' per-actor routers: "look up the destination actor, then
//     its router", and for broadcast "walk every actor in a snapshot of
//     the table, then each one's router" (see core.go's dispatch and
//     broadcastLocal). A single generalized table would duplicate state
//     the actor table already holds (which actors exist) for no benefit,
//     since per-actor dispatch is already O(1).
type router struct {
	handlers map[EventID]func(*record)
	fallback func(*record)
}

func newRouter(fallback func(*record)) *router {
	return &router{handlers: make(map[EventID]func(*record)), fallback: fallback}
}

// register installs fn as the handler for EventID id, overwriting any prior
// registration for that id (an actor registering twice for the same type
// simply replaces its own handler).
func (r *router) register(id EventID, fn func(*record)) {
	r.handlers[id] = fn
}

// route dispatches rec to its handler, or the fallback if none is
// registered. The caller (VirtualCore.dispatch) is responsible for
// releasing rec's payload destructor after route returns: consuming a
// destructible payload is mandatory, and ownership decisions (forwarded
// vs. handled in place) live above the router.
func (r *router) route(rec *record) {
	if fn, ok := r.handlers[rec.hdr.ID]; ok {
		fn(rec)
		return
	}
	r.fallback(rec)
}

// registerEvent installs a typed handler for T on an actor's router. It is
// the implementation behind the package-level generic RegisterEvent.
func registerEvent[T any](rt *router, fn func(*T)) {
	id := eventID[T]()
	rt.register(id, func(rec *record) {
		fn(rec.payload.(*T))
	})
}
