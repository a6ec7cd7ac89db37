// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"fmt"
	"reflect"
	"sync"
)

// CoreID identifies one physical VirtualCore. The set of active CoreIDs is
// fixed at engine construction.
type CoreID uint16

// BroadcastCore is the reserved CoreID meaning "every active core" when used
// as the core component of a broadcast ActorID.
const BroadcastCore CoreID = 0xffff

// ActorID names an actor: the 16-bit CoreID of its host core and a 16-bit
// service-or-serial id, unique while the actor is alive.
type ActorID uint32

// NotFound is the sentinel ActorID referring to no actor.
const NotFound ActorID = 0

// broadcastSerial is the low-16 all-ones sentinel: "every actor on the
// destination core(s)".
const broadcastSerial uint16 = 0xffff

// ServiceReserved is the first non-service serial id; serial ids
// `[1, ServiceReserved)` are well-known ServiceActor ids, ids
// `>= ServiceReserved` are allocated per core for ordinary actors.
const ServiceReserved uint16 = 10_000

// NewActorID packs a core id and a serial/service id into one ActorID.
func NewActorID(core CoreID, serial uint16) ActorID {
	return ActorID(uint32(core)<<16 | uint32(serial))
}

// BroadcastTo returns the ActorID that addresses every actor on core.
func BroadcastTo(core CoreID) ActorID {
	return NewActorID(core, broadcastSerial)
}

// BroadcastAll is the ActorID addressing every actor on every active core.
var BroadcastAll = NewActorID(BroadcastCore, broadcastSerial)

// Core returns the CoreID component.
func (id ActorID) Core() CoreID { return CoreID(id >> 16) }

// Serial returns the service-or-serial component.
func (id ActorID) Serial() uint16 { return uint16(id) }

// IsBroadcast reports whether id addresses every actor on its core (or, if
// Core() == BroadcastCore, every actor on every core).
func (id ActorID) IsBroadcast() bool { return id.Serial() == broadcastSerial }

// IsService reports whether id names a well-known ServiceActor id.
func (id ActorID) IsService() bool {
	s := id.Serial()
	return s >= 1 && s < ServiceReserved
}

// Valid reports whether id is anything other than the NotFound sentinel.
func (id ActorID) Valid() bool { return id != NotFound }

func (id ActorID) String() string {
	if id == NotFound {
		return "actor(not-found)"
	}
	if id.IsBroadcast() {
		if id.Core() == BroadcastCore {
			return "actor(broadcast-all)"
		}
		return fmt.Sprintf("actor(broadcast@%d)", id.Core())
	}
	return fmt.Sprintf("actor(%d.%d)", id.Core(), id.Serial())
}

// EventID is a 16-bit monotonic type tag derived from an event payload
// type. Two distinct payload types never collide within a process.
type EventID uint16

// eventTypeRegistry assigns a stable EventID to each payload type the
// first time it is seen, in registration order. Go has no portable way to
// derive a small stable integer from a generic instantiation (no
// address-of-a-template trick), so the mapping is a reflect.Type-keyed
// registry instead — deterministic for a given sequence of RegisterEvent
// calls within one run, never persisted or compared across processes.
type eventTypeRegistry struct {
	mu   sync.Mutex
	ids  map[reflect.Type]EventID
	next uint32
}

var registry = &eventTypeRegistry{ids: make(map[reflect.Type]EventID)}

// eventID returns the stable EventID for T, assigning one on first use.
func eventID[T any]() EventID {
	var zero T
	t := reflect.TypeOf(zero)
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if id, ok := registry.ids[t]; ok {
		return id
	}
	registry.next++
	if registry.next > 0xffff {
		panic("vcore: more than 65535 distinct event types registered")
	}
	id := EventID(registry.next)
	registry.ids[t] = id
	return id
}

func (id EventID) String() string { return fmt.Sprintf("event#%d", uint16(id)) }
