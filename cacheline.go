// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

// pad is cache line padding to prevent false sharing. Every hot atomic
// field that is written by one goroutine and read by another (shard
// head/tail, a VirtualCore's clock and state) is bracketed by one of these
// so it does not share a cache line with its neighbor.
type pad [64]byte

// BucketSize is the cache-line-sized unit all event accounting is
// expressed in. vcore stores events as boxed Go values rather than raw
// bytes in a manually laid out ring, so BucketSize is not a memory-layout
// constraint here — it is the unit BucketCount and the mailbox capacity
// floor are measured in, which keeps size limits and overflow behavior
// independent of how any particular payload is laid out in memory.
const BucketSize = 64

// bucketsFor returns the number of BucketSize-sized units a payload of the
// given size occupies, header share included; every event is accounted as
// a whole number of buckets.
func bucketsFor(payloadSize uintptr) uint16 {
	n := (uintptr(headerBuckets)*BucketSize + payloadSize + BucketSize - 1) / BucketSize
	if n == 0 {
		n = 1
	}
	if n > 0xffff {
		n = 0xffff
	}
	return uint16(n)
}

// headerBuckets is how many BucketSize units the fixed Header occupies in
// the accounting model; the header is small enough to share a bucket with
// the start of the payload, so this is 0 and folded into the
// payload-derived count via bucketsFor's rounding.
const headerBuckets = 0

// eventExceedsRingCapacity reports whether a record's BucketCount could
// never fit the guaranteed per-source ring capacity, no matter how empty
// the ring is. The check runs against defaultMailboxCapacity rather than a
// particular Engine's Config.WithMailboxCapacity, since that knob only
// resizes how many record slots a shard holds, not the structural ceiling
// on how large a single event may be: a deliberately small configured
// mailbox must still accept normal-sized events and only ever return the
// transient ErrWouldBlock, never ErrEngineMisuse.
func eventExceedsRingCapacity(rec *record) bool {
	return int(rec.hdr.BucketCount) > defaultMailboxCapacity
}
