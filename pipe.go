// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

// Pipe is one VirtualCore's outbound accumulator toward one destination
// core: a single-threaded append-only buffer owned by the producing core.
// Only the owning core's goroutine ever touches it, so unlike Mailbox's
// shards it needs no atomics at all; it is a plain FIFO slice.
type Pipe struct {
	dest    CoreID
	pending []*record
	offset  int // index of the first not-yet-flushed record
}

func newPipe(dest CoreID, initialCap int) *Pipe {
	return &Pipe{dest: dest, pending: make([]*record, 0, initialCap)}
}

// pushCopy appends an already-built record (reply/forward paths) without a
// fresh allocation.
func (p *Pipe) pushCopy(rec *record) {
	p.pending = append(p.pending, rec)
}

// flush attempts to hand every buffered record to enqueue (the destination
// Mailbox's enqueue, or a direct-dispatch callback for the same-core pipe)
// as a single logical block. On the first failure it stops and keeps the
// remainder, including the failed record, for the next tick. Records
// appended while the flush runs (a same-core handler it dispatched pushing
// back into this pipe) are not sent by this call and are kept for the next
// flush. It reports whether the pipe is now fully drained.
func (p *Pipe) flush(enqueue func(*record) error) (drained bool) {
	n := len(p.pending)
	i := p.offset
	for ; i < n; i++ {
		if err := enqueue(p.pending[i]); err != nil {
			break
		}
	}
	p.offset = i
	if p.offset == len(p.pending) {
		p.pending = p.pending[:0]
		p.offset = 0
		return true
	}
	// Compact so a long-blocked pipe doesn't grow its backlog slice forever.
	remaining := p.pending[p.offset:]
	p.pending = append(p.pending[:0], remaining...)
	p.offset = 0
	return false
}

// trySend bypasses the buffer and attempts one direct enqueue. It never
// touches p.pending and never invokes the caller's record's destructor on
// failure: it is a separate, smaller write attempt, independent of the
// buffered backlog, so the backlog is neither retried nor reordered here.
func (p *Pipe) trySend(rec *record, enqueue func(*record) error) error {
	return enqueue(rec)
}

// drop releases every buffered record's destructor exactly once, used when
// the Pipe is torn down with the owning VirtualCore.
func (p *Pipe) drop() {
	for _, rec := range p.pending[p.offset:] {
		rec.release()
	}
	p.pending = p.pending[:0]
	p.offset = 0
}
