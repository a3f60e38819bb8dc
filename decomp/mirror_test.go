package decomp

import (
	"testing"

	"github.com/edensim/eden/packedref"
	"github.com/edensim/eden/tables"
)

func TestMirrorBuffersAllocatesSizedTables(t *testing.T) {
	tabs := tables.New()
	tabs.BeginWorkItem() // a preceding work item, as instantiation would have produced

	needs := map[int]*RecvList{
		1: {Peer: 1, VPeer: make([]RecvEntry, 2), DAW: make([]RecvEntry, 1)},
	}
	sendLists := map[int]*SendList{
		2: {Peer: 2},
	}

	m := MirrorBuffers(tabs, needs, sendLists)

	vTable, ok := m.ValueMirrorTable[1]
	if !ok {
		t.Fatalf("expected a value mirror table for peer 1")
	}
	if len(tabs.StateF32[vTable]) != 3 {
		t.Errorf("value mirror table has %d entries, want 3", len(tabs.StateF32[vTable]))
	}

	sTable, ok := m.SpikeMirrorTable[2]
	if !ok {
		t.Fatalf("expected a spike mirror table for peer 2")
	}
	if len(tabs.StateI64[sTable]) != 0 {
		t.Errorf("spike mirror table has %d entries, want 0", len(tabs.StateI64[sTable]))
	}

	ref := m.ValueMirrorRef(1, 0)
	decoded := packedref.Decode(ref)
	if decoded.Table != int64(vTable) || decoded.Entry != 0 {
		t.Errorf("ValueMirrorRef(1, 0) decoded to %+v", decoded)
	}
}
