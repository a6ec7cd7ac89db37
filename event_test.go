// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import "testing"

func TestActorIDPacking(t *testing.T) {
	id := NewActorID(3, 10_042)
	if id.Core() != 3 {
		t.Fatalf("core: got %d, want 3", id.Core())
	}
	if id.Serial() != 10_042 {
		t.Fatalf("serial: got %d, want 10042", id.Serial())
	}
	if !id.Valid() || id.IsBroadcast() || id.IsService() {
		t.Fatalf("classification wrong for %s", id)
	}
}

func TestActorIDClassification(t *testing.T) {
	for _, tc := range []struct {
		id        ActorID
		valid     bool
		broadcast bool
		service   bool
	}{
		{NotFound, false, false, false},
		{NewActorID(0, 1), true, false, true},
		{NewActorID(0, ServiceReserved - 1), true, false, true},
		{NewActorID(0, ServiceReserved), true, false, false},
		{BroadcastTo(2), true, true, false},
		{BroadcastAll, true, true, false},
	} {
		if got := tc.id.Valid(); got != tc.valid {
			t.Errorf("%s Valid: got %v, want %v", tc.id, got, tc.valid)
		}
		if got := tc.id.IsBroadcast(); got != tc.broadcast {
			t.Errorf("%s IsBroadcast: got %v, want %v", tc.id, got, tc.broadcast)
		}
		if got := tc.id.IsService(); got != tc.service {
			t.Errorf("%s IsService: got %v, want %v", tc.id, got, tc.service)
		}
	}
}

func TestEventIDDistinctPerType(t *testing.T) {
	type alpha struct{ X int }
	type beta struct{ X int }

	a1 := eventID[alpha]()
	b := eventID[beta]()
	a2 := eventID[alpha]()

	if a1 != a2 {
		t.Fatalf("eventID not stable: %d vs %d", a1, a2)
	}
	if a1 == b {
		t.Fatalf("distinct types collided on id %d", a1)
	}
}

func TestServiceEventReceivedSelfInverse(t *testing.T) {
	rec := &record{
		hdr: Header{
			ID:     7,
			Dest:   NewActorID(1, 10_000),
			Source: NewActorID(0, 10_001),
			flags:  flagAlive | flagService,
		},
		forward:        NewActorID(0, 10_001),
		serviceEventID: 9,
	}
	orig := *rec

	rec.received()
	if rec.hdr.Dest != orig.forward || rec.forward != orig.hdr.Dest {
		t.Fatalf("received did not swap dest<->forward: %+v", rec.hdr)
	}
	if rec.hdr.ID != orig.serviceEventID || rec.serviceEventID != orig.hdr.ID {
		t.Fatalf("received did not swap id<->serviceEventID: %+v", rec.hdr)
	}
	if rec.hdr.Source != orig.hdr.Source {
		t.Fatalf("received must not touch source: got %s, want %s", rec.hdr.Source, orig.hdr.Source)
	}

	rec.received()
	if rec.hdr != orig.hdr || rec.forward != orig.forward || rec.serviceEventID != orig.serviceEventID {
		t.Fatalf("received is not its own inverse: %+v vs %+v", rec.hdr, orig.hdr)
	}
}

func TestBucketsFor(t *testing.T) {
	for _, tc := range []struct {
		size uintptr
		want uint16
	}{
		{0, 1},
		{1, 1},
		{BucketSize, 1},
		{BucketSize + 1, 2},
		{4 * BucketSize, 4},
	} {
		if got := bucketsFor(tc.size); got != tc.want {
			t.Errorf("bucketsFor(%d): got %d, want %d", tc.size, got, tc.want)
		}
	}
}

type countingPayload struct {
	released *int
}

func (c *countingPayload) Release() { *c.released++ }

func TestRecordReleaseRunsOnceForDestructible(t *testing.T) {
	released := 0
	rec := &record{
		hdr:     Header{flags: flagAlive},
		payload: &countingPayload{released: &released},
	}
	rec.release()
	if released != 1 {
		t.Fatalf("release: got %d destructor runs, want 1", released)
	}

	trivial := &record{
		hdr:     Header{flags: flagAlive | flagTriviallyDestructible},
		payload: &countingPayload{released: &released},
	}
	trivial.release()
	if released != 1 {
		t.Fatalf("trivially destructible payload must not be released, got %d", released)
	}
}

func TestRoundToPow2(t *testing.T) {
	for _, tc := range []struct{ in, want int }{
		{0, 2}, {1, 2}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {1023, 1024}, {1024, 1024},
	} {
		if got := roundToPow2(tc.in); got != tc.want {
			t.Errorf("roundToPow2(%d): got %d, want %d", tc.in, got, tc.want)
		}
	}
}
