package decomp

import (
	"testing"

	"github.com/edensim/eden/model"
)

func TestEncodeDecodeRecvListRoundTrip(t *testing.T) {
	rl := &RecvList{
		Peer: 3,
		VPeer: []RecvEntry{
			{Point: model.PointOnCell{Population: "exc", CellInstance: 5, Segment: 2, FractionAlong: 0.25}, LocalEntry: 0},
		},
		DAW: []RecvEntry{
			{Point: model.PointOnCell{Population: "exc", CellInstance: 5, Segment: 0, FractionAlong: 1}, LocalEntry: 1},
		},
		Spikes: nil,
	}

	data := EncodeRecvList(rl)
	sl, err := DecodeRecvListAsSendList(3, data)
	if err != nil {
		t.Fatalf("DecodeRecvListAsSendList: %v", err)
	}
	if len(sl.VPeer) != 1 || len(sl.DAW) != 1 || len(sl.Spikes) != 0 {
		t.Fatalf("section lengths wrong: %+v", sl)
	}
	if sl.VPeer[0] != rl.VPeer[0].Point {
		t.Errorf("VPeer point mismatch: got %+v, want %+v", sl.VPeer[0], rl.VPeer[0].Point)
	}
	if sl.DAW[0] != rl.DAW[0].Point {
		t.Errorf("DAW point mismatch: got %+v, want %+v", sl.DAW[0], rl.DAW[0].Point)
	}
}

func TestDecodeRecvListRejectsTruncatedMessage(t *testing.T) {
	_, err := DecodeRecvListAsSendList(0, []byte("1 0 0\n"))
	if err == nil {
		t.Errorf("expected error decoding truncated message")
	}
}
