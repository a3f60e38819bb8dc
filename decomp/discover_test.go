package decomp

import (
	"testing"

	"github.com/edensim/eden/model"
)

// TestDiscoverSymmetricTwoRankExchange drives both ranks' Discover calls
// sequentially rather than concurrently: FakeCommunicator.ISend delivers
// into the destination's inbox synchronously, so running rank 0 first
// guarantees its message is already waiting when rank 1 calls Discover.
func TestDiscoverSymmetricTwoRankExchange(t *testing.T) {
	comms := NewFakeCommunicators(2)

	needs0 := map[int]*RecvList{
		1: {Peer: 1, VPeer: []RecvEntry{{
			Point:      model.PointOnCell{Population: "pop", CellInstance: 1, Segment: 0, FractionAlong: 0.5},
			LocalEntry: 0,
		}}},
	}
	needs1 := map[int]*RecvList{}

	sendLists0, err := Discover(comms[0], needs0)
	if err != nil {
		t.Fatalf("rank 0 Discover: %v", err)
	}
	if len(sendLists0) != 0 {
		t.Errorf("rank 0 should have no send lists, got %d", len(sendLists0))
	}

	sendLists1, err := Discover(comms[1], needs1)
	if err != nil {
		t.Fatalf("rank 1 Discover: %v", err)
	}
	sl, ok := sendLists1[0]
	if !ok {
		t.Fatalf("rank 1 should have a send list for rank 0")
	}
	if len(sl.VPeer) != 1 {
		t.Errorf("rank 1's send list to rank 0 should have 1 VPeer entry, got %d", len(sl.VPeer))
	}
	if sl.VPeer[0].Population != "pop" || sl.VPeer[0].CellInstance != 1 {
		t.Errorf("decoded point mismatch: %+v", sl.VPeer[0])
	}
}

func TestDiscoverNoNeedsCompletesImmediately(t *testing.T) {
	comms := NewFakeCommunicators(3)
	for i, c := range comms {
		sl, err := Discover(c, map[int]*RecvList{})
		if err != nil {
			t.Fatalf("rank %d Discover: %v", i, err)
		}
		if len(sl) != 0 {
			t.Errorf("rank %d expected no send lists, got %d", i, len(sl))
		}
	}
}
