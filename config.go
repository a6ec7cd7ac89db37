// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Config configures an Engine and the VirtualCores it constructs: chain
// the With* methods, then pass the result to NewEngine. There is no CLI,
// environment variable, or on-disk form — Config is pure in-process data.
type Config struct {
	mailboxCapacity int
	pipeInitialCap  int
	lowLatency      bool
	cpuPinning      bool
	logger          zerolog.Logger
	registerer      prometheus.Registerer
	ioFactory       func(CoreID) IOCollaborator
}

// defaultMailboxCapacity is the guaranteed per-source ring capacity:
// (u16 max + 1) / bucket size, times 4. One boxed event occupies one shard
// slot regardless of its accounted BucketCount (see cacheline.go).
const defaultMailboxCapacity = (0xffff + 1) / BucketSize * 4

// NewConfig returns a Config with the defaults: the guaranteed mailbox
// capacity floor, "friendly" (non-spinning) drain mode, no CPU pinning, a
// no-op logger, and no metrics registry.
func NewConfig() *Config {
	return &Config{
		mailboxCapacity: defaultMailboxCapacity,
		pipeInitialCap:  256,
		logger:          zerolog.Nop(),
	}
}

// WithMailboxCapacity overrides the per-producer-shard capacity (in event
// slots). Panics if capacity < 2.
func (c *Config) WithMailboxCapacity(capacity int) *Config {
	if capacity < 2 {
		panic("vcore: mailbox capacity must be >= 2")
	}
	c.mailboxCapacity = roundToPow2(capacity)
	return c
}

// WithPipeInitialCapacity sets the initial backing capacity of each outbound
// Pipe (it grows on demand; this only avoids early reallocation).
func (c *Config) WithPipeInitialCapacity(capacity int) *Config {
	if capacity < 1 {
		panic("vcore: pipe initial capacity must be >= 1")
	}
	c.pipeInitialCap = capacity
	return c
}

// WithLowLatency selects spin-wait backoff (code.hybscloud.com/spin)
// between run-loop iterations instead of sleeping: lower delivery latency,
// a busier core.
func (c *Config) WithLowLatency(enabled bool) *Config {
	c.lowLatency = enabled
	return c
}

// WithCPUPinning requests that each VirtualCore's OS thread be pinned to
// its CoreID before the startup barrier (linux only, a no-op elsewhere).
// Pinning failure is logged, not fatal.
func (c *Config) WithCPUPinning(enabled bool) *Config {
	c.cpuPinning = enabled
	return c
}

// WithLogger attaches a zerolog.Logger used for runtime diagnostics
// (unknown events, dead destinations, oversized events, handler panics,
// CPU-pinning failures). Init failures are not logged; they are reported
// through the returned error and Engine.Errors. Defaults to zerolog.Nop().
func (c *Config) WithLogger(l zerolog.Logger) *Config {
	c.logger = l
	return c
}

// WithMetrics attaches a prometheus.Registerer the Engine registers its
// counters/gauges against. Nil (the default) disables metrics entirely.
func (c *Config) WithMetrics(reg prometheus.Registerer) *Config {
	c.registerer = reg
	return c
}

// WithIOCollaborator attaches the external I/O hook: factory is called
// once per active CoreID when the Engine constructs that core's
// VirtualCore, and the returned [IOCollaborator]'s Tick runs once per loop
// iteration. Nil (the default) skips the external-tick phase entirely.
func (c *Config) WithIOCollaborator(factory func(CoreID) IOCollaborator) *Config {
	c.ioFactory = factory
	return c
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
