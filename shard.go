// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import "code.hybscloud.com/atomix"

// shard is one producer core's lane into a destination core's Mailbox: a
// Lamport SPSC ring with cached head/tail cursors, carrying *record.
// Because exactly one producer core ever writes into a given shard and
// exactly one consumer core (the shard's owner) ever reads it, the
// single-producer/single-consumer algorithm applies without modification —
// each producer's reservation cursor *is* its own ring, so there is
// nothing to arbitrate between producers and no CAS/FAA contention is
// possible between them.
//
// Atomicity of a multi-bucket event (readers never observe a torn event)
// is automatic: a shard slot holds one *record pointer, and the pointer is
// only published (StoreRelease) after the record is fully built.
type shard struct {
	_          pad
	head       atomix.Uint64 // consumer (owner core) reads from here
	_          pad
	cachedTail uint64 // consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // producer writes here
	_          pad
	cachedHead uint64 // producer's cached view of head
	_          pad
	buffer     []*record
	mask       uint64
}

func newShard(capacity int) *shard {
	n := uint64(roundToPow2(capacity))
	return &shard{
		buffer: make([]*record, n),
		mask:   n - 1,
	}
}

// enqueue publishes rec (producer side only). Returns ErrWouldBlock if the
// shard is full — the caller (Pipe.flush) retains the record and retries
// next tick.
func (s *shard) enqueue(rec *record) error {
	tail := s.tail.LoadRelaxed()
	if tail-s.cachedHead > s.mask {
		s.cachedHead = s.head.LoadAcquire()
		if tail-s.cachedHead > s.mask {
			return ErrWouldBlock
		}
	}
	s.buffer[tail&s.mask] = rec
	s.tail.StoreRelease(tail + 1)
	return nil
}

// drain invokes visit for every record published since the last drain, in
// FIFO order, and is safe to call repeatedly. Consumer side only.
func (s *shard) drain(visit func(*record)) {
	for {
		head := s.head.LoadRelaxed()
		if head >= s.cachedTail {
			s.cachedTail = s.tail.LoadAcquire()
			if head >= s.cachedTail {
				return
			}
		}
		rec := s.buffer[head&s.mask]
		s.buffer[head&s.mask] = nil
		s.head.StoreRelease(head + 1)
		visit(rec)
	}
}

// cap returns the shard's slot capacity.
func (s *shard) cap() int { return int(s.mask + 1) }

// len returns a point-in-time estimate of published-but-undrained records.
// Consumer side only; read-only and approximate under concurrent producer
// activity, which is fine for a metrics gauge.
func (s *shard) len() int {
	tail := s.tail.LoadAcquire()
	head := s.head.LoadRelaxed()
	return int(tail - head)
}
