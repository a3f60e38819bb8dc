package instantiate

import (
	"fmt"

	"github.com/edensim/eden/decomp"
	"github.com/edensim/eden/edenerr"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/tables"
)

// spikeSendTarget names which cell type's own per-peer spike-mirror slice,
// and which position within it, one wire-order Spikes entry of a SendList
// resolves to — the send-side counterpart of VPeerTarget.
type spikeSendTarget struct {
	CellType string
	Index    int
}

// spikeSendTargets classifies every point in sl.Spikes by the cell type
// that owns it, in order, the same way VPeerWriteTargets classifies
// incoming VPeer entries: two points of the same cell type get
// consecutive indices, matching the slot decomp.MirrorBuffers would
// assign that cell type's own SpikeMirrorTable if it were sized from this
// same subsequence.
func (in *Instantiator) spikeSendTargets(sl *decomp.SendList) ([]spikeSendTarget, error) {
	out := make([]spikeSendTarget, len(sl.Spikes))
	seen := map[string]int{}
	for i, point := range sl.Spikes {
		gid, err := in.gidOf(point)
		if err != nil {
			return nil, err
		}
		inst := &in.instances[gid]
		if !inst.local {
			return nil, fmt.Errorf("%w: send list names point %s this rank does not own", edenerr.InternalInvariant, point)
		}
		ct := inst.Pop.CellType
		out[i] = spikeSendTarget{CellType: ct, Index: seen[ct]}
		seen[ct]++
	}
	return out, nil
}

// SpikeSendTarget is the exported counterpart of spikeSendTarget, naming
// which cell type's own spike-mirror table and slot one SendList.Spikes
// entry resolves to, once ResolveSpikeSendTargets has wired the packed
// reference that makes the generated kernel populate it.
type SpikeSendTarget struct {
	CellType string
	Index    int
}

// SpikeSendTargets exposes spikeSendTargets to the engine's Send phase,
// which must read the spike flag for each sl.Spikes entry out of the
// right per-cell-type mirror table and slot, in sl.Spikes order, to build
// the sparse spike-index payload decomp.EncodeStepMessage expects.
func (in *Instantiator) SpikeSendTargets(sl *decomp.SendList) ([]SpikeSendTarget, error) {
	out, err := in.spikeSendTargets(sl)
	if err != nil {
		return nil, err
	}
	res := make([]SpikeSendTarget, len(out))
	for i, t := range out {
		res[i] = SpikeSendTarget{CellType: t.CellType, Index: t.Index}
	}
	return res, nil
}

// ResolveSpikeSendTargets must be called once, after decomp.Discover has
// produced this rank's sendLists and decomp.MirrorBuffers has built
// mirrorsByCellType (each cell type's Mirrors sized against the same,
// possibly cell-type-mixed, sendLists — so every cell type's
// SpikeMirrorTable is at least as large as the highest per-cell-type
// index any SendList entry resolves to). For every peer this rank must
// serve, it resolves each local point in sl.Spikes back to the
// compartment that sources it and appends a packed SpikeMirrorRef into
// that compartment's spike-recipient table, so a local spike — detected
// and OR'd by the generated kernel exactly like a same-rank recipient —
// automatically lands in the right outgoing mirror slot. This is the
// send-side half of "append mirror entries into the pre-synaptic
// compartment's spike-recipient tables" (spec.md §4.5); the receive-side
// half is ApplyMirrors (VPeer) and SpikeTarget (incoming spikes).
func (in *Instantiator) ResolveSpikeSendTargets(sendLists map[int]*decomp.SendList, mirrorsByCellType map[string]*decomp.Mirrors) error {
	for peer, sl := range sendLists {
		targets, err := in.spikeSendTargets(sl)
		if err != nil {
			return err
		}
		for i, point := range sl.Spikes {
			gid, _ := in.gidOf(point)
			inst := &in.instances[gid]
			recTbl, ok := inst.Sig.SpikeRecipientsTable[point.Segment]
			if !ok {
				return fmt.Errorf("%w: send list point %s is not a spike source", edenerr.ModelMalformed, point)
			}
			mirrors := mirrorsByCellType[inst.Pop.CellType]
			ref := mirrors.SpikeMirrorRef(peer, targets[i].Index)
			absTbl := globalTable(inst, sig.TableConstI64, recTbl)
			inst.tabs.PushI64(tables.FamilyConstI64, absTbl, int64(ref))
		}
	}
	return nil
}

// Wired bundles everything the Domain Decomposer & Message Planner
// produces for one rank once instantiation and discovery have both run:
// the send lists every peer expects this rank to serve, one Mirrors value
// per cell type (VPeer and spike mirror tables, scoped to that cell
// type's own Set so a generated kernel's packed references stay valid),
// and a dedicated DAW-only Mirrors used purely by the Trajectory Logger.
type Wired struct {
	SendLists map[int]*decomp.SendList
	Mirrors   map[string]*decomp.Mirrors
	DAWMirror *decomp.Mirrors
	DAWSet    *tables.Set
}

// DAWValue reads peer's slot'th mirrored data-writer value, as resolved
// by Instantiator.DAWMirrorSlot.
func (w *Wired) DAWValue(peer, slot int) float32 {
	table := w.DAWMirror.ValueMirrorTable[peer]
	return w.DAWSet.StateF32[table][slot]
}

// SetDAWValue overwrites peer's slot'th mirrored data-writer value; the
// Recv phase calls this once per incoming DAW lane each step.
func (w *Wired) SetDAWValue(peer, slot int, v float32) {
	table := w.DAWMirror.ValueMirrorTable[peer]
	w.DAWSet.StateF32[table][slot] = v
}

// ValueMirror returns the full mirrored-value slice for peer, so a reader
// can index it by slot without learning the underlying table number.
func (w *Wired) ValueMirror(peer int) []float32 {
	table, ok := w.DAWMirror.ValueMirrorTable[peer]
	if !ok {
		return nil
	}
	return w.DAWSet.StateF32[table]
}

// Wire runs the full post-instantiation cross-rank resolution pipeline:
// recv-list discovery, per-cell-type mirror allocation, placeholder
// rewriting, and spike-recipient mirror wiring. Call it after in.Run, and
// call in.Finalize only afterward (ApplyMirrors and
// ResolveSpikeSendTargets both still need to append/rewrite table rows).
func Wire(in *Instantiator, comm decomp.Communicator) (*Wired, error) {
	sendLists, err := decomp.Discover(comm, in.RecvLists)
	if err != nil {
		return nil, fmt.Errorf("instantiate: recv-list discovery: %w", err)
	}

	mirrorsByCellType := make(map[string]*decomp.Mirrors, len(in.Sets))
	for cellType, s := range in.Sets {
		mirrorsByCellType[cellType] = decomp.MirrorBuffers(s, in.CellTypeRecvLists(cellType), sendLists)
	}
	in.ApplyMirrors(mirrorsByCellType)
	if err := in.ResolveSpikeSendTargets(sendLists, mirrorsByCellType); err != nil {
		return nil, err
	}

	dawSet := tables.New()
	dawMirror := decomp.MirrorBuffers(dawSet, in.DAWRecvLists(), nil)
	dawSet.Finalize()

	return &Wired{SendLists: sendLists, Mirrors: mirrorsByCellType, DAWMirror: dawMirror, DAWSet: dawSet}, nil
}
