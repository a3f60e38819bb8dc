package decomp

import (
	"github.com/edensim/eden/packedref"
	"github.com/edensim/eden/tables"
)

// Mirrors holds the per-peer mirror tables MirrorBuffers allocates: one
// state_f32 "value mirror" per peer we receive from (sized
// |vpeer refs| + |daw refs|), and one state_i64 "spike mirror" per peer we
// send to (sized |spike sources|).
type Mirrors struct {
	ValueMirrorTable map[int]int // peer rank -> state_f32 table index
	SpikeMirrorTable map[int]int // peer rank -> state_i64 table index

	// ValueMirrorSlot records which slot within the peer's value mirror
	// each recv entry landed in, in the order VPeer then DAW were appended.
	ValueMirrorSlot map[int][]int
	SpikeMirrorSlot map[int][]int
}

// MirrorBuffers allocates this rank's mirror tables inside a dedicated
// synthetic work item (so existing Set bookkeeping needs no special case
// for process-global tables), then returns the packed references the
// caller rewrites every recv-list placeholder entry to point at.
//
// needs is this rank's own RecvLists (keyed by peer); sendLists is what
// Discover returned (keyed by peer this rank must serve).
func MirrorBuffers(tabs *tables.Set, needs map[int]*RecvList, sendLists map[int]*SendList) *Mirrors {
	handle := tabs.BeginWorkItem()

	m := &Mirrors{
		ValueMirrorTable: make(map[int]int),
		SpikeMirrorTable: make(map[int]int),
		ValueMirrorSlot:  make(map[int][]int),
		SpikeMirrorSlot:  make(map[int][]int),
	}

	for peer, rl := range needs {
		table := tabs.AppendTableStateF32(handle)
		m.ValueMirrorTable[peer] = table
		n := len(rl.VPeer) + len(rl.DAW)
		slots := make([]int, n)
		for i := 0; i < n; i++ {
			slots[i] = tabs.PushF32(tables.FamilyStateF32, table, 0)
		}
		m.ValueMirrorSlot[peer] = slots
	}

	for peer, sl := range sendLists {
		table := tabs.AppendTableStateI64(handle)
		m.SpikeMirrorTable[peer] = table
		n := len(sl.Spikes)
		slots := make([]int, n)
		for i := 0; i < n; i++ {
			slots[i] = tabs.PushI64(tables.FamilyStateI64, table, 0)
		}
		m.SpikeMirrorSlot[peer] = slots
	}

	return m
}

// ValueMirrorRef returns the packed reference a placeholder table entry
// should be rewritten to for the i'th VPeer-then-DAW recv entry from peer.
func (m *Mirrors) ValueMirrorRef(peer int, i int) packedref.Packed {
	table := m.ValueMirrorTable[peer]
	slot := m.ValueMirrorSlot[peer][i]
	return packedref.Encode(int64(table), int64(slot))
}

// SpikeMirrorRef returns the packed reference a pre-synaptic compartment's
// spike-recipient table appends for peer's i'th outgoing spike source.
func (m *Mirrors) SpikeMirrorRef(peer int, i int) packedref.Packed {
	table := m.SpikeMirrorTable[peer]
	slot := m.SpikeMirrorSlot[peer][i]
	return packedref.Encode(int64(table), int64(slot))
}
