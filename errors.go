// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a shard/pipe operation cannot proceed
// immediately: the destination shard is full on enqueue. It is a
// control-flow signal: the buffered path (Pipe flush) recovers from it
// silently by retrying next tick, while Send returns it to its caller.
// Alias of [iox.ErrWouldBlock].
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err is, or wraps, ErrWouldBlock.
func IsWouldBlock(err error) bool { return iox.IsWouldBlock(err) }

// Structural error taxonomy. Unlike a full queue these are never retried
// silently: they propagate to the Engine and are visible through HasError
// after Join.
var (
	// ErrInitFailed: an actor's OnInit returned false, or a referenced actor
	// could not be constructed.
	ErrInitFailed = errors.New("vcore: actor init failed")

	// ErrHandlerPanic: an actor handler panicked; the host core recovered it,
	// dropped the actor, and set the engine fault flag.
	ErrHandlerPanic = errors.New("vcore: actor handler panicked")

	// ErrEngineMisuse: e.g. AddActor on an inactive core or while the
	// engine is stopping, a core's actor id space exhausted, or an event
	// whose bucket count exceeds the guaranteed ring capacity.
	ErrEngineMisuse = errors.New("vcore: engine misuse")
)

// initFailedf wraps ErrInitFailed with actor/core context.
func initFailedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInitFailed, fmt.Sprintf(format, args...))
}

// handlerPanicf wraps ErrHandlerPanic with actor/core/recover context.
func handlerPanicf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrHandlerPanic, fmt.Sprintf(format, args...))
}

// engineMisusef wraps ErrEngineMisuse with call-site context.
func engineMisusef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEngineMisuse, fmt.Sprintf(format, args...))
}
