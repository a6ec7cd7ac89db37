// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

// Mailbox is one VirtualCore's inbound multi-producer/single-consumer ring,
// sharded by producer core. Every other active core gets its own [shard];
// enqueueing from core==self never happens — same-core traffic bypasses
// the Mailbox entirely and is dispatched directly by the VirtualCore (see
// core.go).
type Mailbox struct {
	owner  CoreID
	shards map[CoreID]*shard
	order  []CoreID // stable drain order, registration order
}

func newMailbox(owner CoreID, producers []CoreID, capacity int) *Mailbox {
	mb := &Mailbox{owner: owner, shards: make(map[CoreID]*shard, len(producers))}
	for _, p := range producers {
		if p == owner {
			continue
		}
		mb.shards[p] = newShard(capacity)
		mb.order = append(mb.order, p)
	}
	return mb
}

// enqueue publishes rec into the shard dedicated to producer. Returns
// ErrWouldBlock if that shard is full.
func (mb *Mailbox) enqueue(producer CoreID, rec *record) error {
	s, ok := mb.shards[producer]
	if !ok {
		return engineMisusef("mailbox on core %d has no shard for producer core %d", mb.owner, producer)
	}
	return s.enqueue(rec)
}

// drain visits every record published since the last drain across all
// producer shards, one shard at a time in registration order, emptying
// each shard (including records its producer publishes while it is being
// drained) before moving on to the next. Each shard preserves its own
// producer's order independently; there is no promise of interleaving
// order across producers.
func (mb *Mailbox) drain(visit func(*record)) {
	for _, core := range mb.order {
		mb.shards[core].drain(visit)
	}
}

// depth sums every shard's currently-published-but-undrained record count;
// used only for the vcore_mailbox_depth gauge.
func (mb *Mailbox) depth() int {
	n := 0
	for _, core := range mb.order {
		n += mb.shards[core].len()
	}
	return n
}
