// Package instantiate walks a resolved model's populations, projections,
// inputs, and data writers and applies each cell type's Work Item
// Signature to a single shared tables.Set: one work item per population
// member, its scalar constants/state copied from the signature's prototype
// vectors, its RNG seed mixed in per instance, and its synapse/gap-junction/
// input tables grown one row per network edge that targets it. Every cell
// type's instances share the same Set — there is one flat table arena per
// rank, not one per cell type — so a packed reference built while resolving
// one instance's projection stays valid when a different cell type's work
// item dereferences it.
//
// Table and scalar indices a Work Item Signature hands out (sig.TableSlot
// indices, ScalarAllocator indices) are local to that signature: the n'th
// table a cell type's kernel declared in a family, not a position in the
// shared tables.Set. Appending that signature's declared tables to the
// Set, once per work item and in declared order, turns a local index k
// into the global index TableXIndex[workItem]+k — the same arithmetic the
// Kernel Emitter's generated code performs against its work-offset
// parameters. A scalar voltage reference is resolved the same way, via the
// reserved GlobalStateTabref alias Set.Finalize produces — one alias for
// the whole rank, shared by every cell type — so gap-junction peers and
// data-writer columns can address a compartment's voltage with the same
// packed (table, entry) scheme as a synapse table row, regardless of which
// cell type owns the compartment.
package instantiate

import (
	"fmt"
	"math"
	"sort"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/decomp"
	"github.com/edensim/eden/edenerr"
	"github.com/edensim/eden/kernel"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/packedref"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/tables"
)

// CellSignatures maps a cell type name to its compiled Work Item Signature.
// Callers build this by running kernel.Emit once per cell type the model
// references before constructing an Instantiator.
type CellSignatures map[string]*sig.WorkItemSignature

// instance records one population member's home: which cell type/signature
// it was built from, and — when this rank owns it — the table set, work
// item index, and handle needed to resolve its local table indices into
// global ones.
type instance struct {
	Pop      *model.Population
	CellType *model.CellType
	Sig      *sig.WorkItemSignature

	local   bool
	workIdx int
	tabs    *tables.Set
	handle  tables.WorkItemHandle
}

// placeholder records where a cross-rank reference's zero-valued
// placeholder row lives, so ApplyMirrors can find and overwrite it once
// discovery has assigned it a mirror table slot.
type placeholder struct {
	cellType string
	point    model.PointOnCell
	table    int // global table index within the shared Set: const_i64 for a VPeer placeholder, state_i64 for a spike trigger row
	row      int // entry index within that table
}

// Instantiator applies a model's cell-type signatures to one shared
// tables.Set for the whole rank, splitting network edges into
// locally-resolved packed references and cross-rank placeholders recorded
// for the Domain Decomposer.
type Instantiator struct {
	Model *model.Model
	Sigs  CellSignatures
	Cfg   *config.SimulatorConfig

	Rank, RankCount int

	// Set is the single shared tables.Set every cell type's instances on
	// this rank are built into, left un-Finalized until Finalize is called.
	// The original implementation keeps one flat RawTables arena regardless
	// of how many cell types a model declares (see
	// original_source/eden/RawTables.h and backends/cpu/CpuBackend.h, which
	// pass the same global table-pointer arrays to every work item no
	// matter its cell type); a packed (table, entry) reference built while
	// resolving one instance's projection must resolve correctly when a
	// *different* cell type's work item dereferences it — a gap junction or
	// chemical synapse connecting two distinct cell types, as both
	// cmd/edenrun scenarios that exercise these synapse kinds do — so every
	// cell type shares this one arena rather than each getting its own.
	Set *tables.Set

	// Sets indexes Set under every cell type name this rank populated, so
	// per-cell-type callers (CellTypeRecvLists, ApplyMirrors, Wire's
	// per-cell-type Mirrors allocation) can keep addressing "this cell
	// type's own table set" without needing to know it is the same
	// underlying object as every other cell type's.
	Sets map[string]*tables.Set

	// workItemCellType records, for each work item index in Set (in
	// creation order), which cell type's compiled kernel the engine must
	// invoke for it — information a one-Set-per-cell-type split used to
	// carry implicitly via which map entry a Set came from.
	workItemCellType []string

	instances []instance // GID-indexed
	popOffset map[string]int

	// RecvLists accumulates, per peer rank, the cross-rank references this
	// rank's local instances need — built while Run walks projections and
	// data writers, and handed to decomp.Discover by the caller once
	// instantiation completes.
	RecvLists map[int]*decomp.RecvList

	// vPeerPlaceholders is grouped by cell type then peer purely for
	// Mirrors bookkeeping: decomp.MirrorBuffers allocates one Mirrors value
	// per cell type, each sized to that cell type's own recv-list needs, so
	// each (cellType, peer) bucket's own slice position is what
	// decomp.Mirrors.ValueMirrorRef's index argument must line up with —
	// even though every cell type's placeholder table rows ultimately live
	// in the same shared Set.
	vPeerPlaceholders map[string]map[int][]placeholder

	// spikePlaceholders parallels each peer's RecvList.Spikes slice
	// index-for-index: where the postsynaptic trigger row that a remote
	// presynaptic spike should be OR'd into actually lives. Unlike VPeer,
	// this is never resolved through a packed reference inside generated
	// kernel code — the engine's Recv phase writes the incoming flag
	// straight into that (cellType, table, row), so no per-cell-type
	// Mirrors indirection is needed here.
	spikePlaceholders map[int][]placeholder

	// vPeerOrder parallels RecvLists[peer].VPeer index-for-index, recording
	// which cell type's own placeholder each wire-order position belongs
	// to, so the engine's Recv phase can route an incoming value to the
	// right per-cell-type mirror table via VPeerWriteTargets.
	vPeerOrder map[int][]string
}

// New returns an Instantiator ready to populate m's cell types across
// rankCount ranks, building only the work items rank owns.
func New(m *model.Model, sigs CellSignatures, cfg *config.SimulatorConfig, rank, rankCount int) *Instantiator {
	return &Instantiator{
		Model:             m,
		Sigs:              sigs,
		Cfg:               cfg,
		Rank:              rank,
		RankCount:         rankCount,
		Set:               tables.New(),
		Sets:              map[string]*tables.Set{},
		popOffset:         map[string]int{},
		RecvLists:         map[int]*decomp.RecvList{},
		vPeerPlaceholders: map[string]map[int][]placeholder{},
		spikePlaceholders: map[int][]placeholder{},
		vPeerOrder:        map[int][]string{},
	}
}

func (in *Instantiator) totalNeurons() int {
	total := 0
	for _, p := range in.Model.Populations {
		in.popOffset[p.Name] = total
		total += p.Size
	}
	return total
}

// setFor returns the single shared Set every cell type builds its work
// items into, recording cellType as one of its names so CellTypeRecvLists,
// ApplyMirrors, and Wire can keep addressing it by cell type.
func (in *Instantiator) setFor(cellType string) *tables.Set {
	in.Sets[cellType] = in.Set
	return in.Set
}

// NumWorkItems returns the number of work items this rank built across
// every cell type, in Set's creation order. Synthetic work items that
// decomp.MirrorBuffers later appends to Set are not counted.
func (in *Instantiator) NumWorkItems() int {
	return len(in.workItemCellType)
}

// WorkItemCellType returns the cell type name whose compiled kernel must
// be invoked for Set's idx'th work item.
func (in *Instantiator) WorkItemCellType(idx int) string {
	return in.workItemCellType[idx]
}

// Run assigns a global ID to every population member, builds a local work
// item (with signature prototype values copied in and the RNG seed mixed)
// for every instance this rank owns, then resolves every projection, input,
// and data-writer reference: locally when both endpoints are owned by this
// rank, or as a recv-list placeholder when the reference crosses ranks.
// Call Finalize afterward, once every table has been appended to.
func (in *Instantiator) Run() error {
	total := in.totalNeurons()
	ranges := decomp.Partition(total, in.RankCount)
	mine := ranges[in.Rank]

	in.instances = make([]instance, total)
	gid := 0
	for pi := range in.Model.Populations {
		pop := &in.Model.Populations[pi]
		ct := in.Model.PopulationCellType(pop)
		sg, ok := in.Sigs[pop.CellType]
		if !ok {
			return fmt.Errorf("%w: population %q references cell type %q with no compiled signature",
				edenerr.ModelMalformed, pop.Name, pop.CellType)
		}
		for i := 0; i < pop.Size; i++ {
			inst := instance{Pop: pop, CellType: ct, Sig: sg}
			if mine.Contains(gid) {
				if err := in.buildInstance(&inst, gid); err != nil {
					return fmt.Errorf("instantiate: gid %d: %w", gid, err)
				}
			}
			in.instances[gid] = inst
			gid++
		}
	}

	for _, proj := range in.Model.Projections {
		if err := in.resolveProjection(proj); err != nil {
			return err
		}
	}
	for _, input := range in.Model.Inputs {
		if err := in.resolveInput(input); err != nil {
			return err
		}
	}
	for _, dw := range in.Model.DataWriters {
		for _, col := range dw.Columns {
			if err := in.resolveDataWriterColumn(col); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildInstance opens a work item in this cell type's table set and copies
// the signature's prototype constants/state into it verbatim, overwriting
// only the RNG seed slot with this instance's mixed value.
func (in *Instantiator) buildInstance(inst *instance, gid int) error {
	sg := inst.Sig
	s := in.setFor(inst.Pop.CellType)
	h := s.BeginWorkItem()

	firstConst := len(s.GlobalConstants)
	for i, v := range sg.ConstProto {
		got := s.AppendScalarConstant(h, v)
		if got != firstConst+i {
			return fmt.Errorf("%w: scalar constant layout drifted from signature order", edenerr.InternalInvariant)
		}
	}
	s.GlobalConstants[firstConst+sg.RNGSeedConst] = MixSeed(in.Cfg.RngSeed, int64(gid))

	for _, v := range sg.StateProto {
		s.AppendScalarState(h, v)
	}
	for range sg.ConstF32Tables {
		s.AppendTableConstantF32(h)
	}
	for range sg.ConstI64Tables {
		s.AppendTableConstantI64(h)
	}
	for range sg.StateF32Tables {
		s.AppendTableStateF32(h)
	}
	for range sg.StateI64Tables {
		s.AppendTableStateI64(h)
	}

	inst.local = true
	inst.tabs = s
	inst.handle = h
	inst.workIdx = s.NumWorkItems() - 1
	in.workItemCellType = append(in.workItemCellType, inst.Pop.CellType)
	return nil
}

// gidOf resolves a PointOnCell's population/instance addressing into a
// global ID.
func (in *Instantiator) gidOf(p model.PointOnCell) (int, error) {
	pop := in.Model.Population(p.Population)
	if p.CellInstance < 0 || p.CellInstance >= pop.Size {
		return 0, fmt.Errorf("%w: %s instance %d out of range [0,%d)", edenerr.ModelMalformed, p.Population, p.CellInstance, pop.Size)
	}
	return in.popOffset[p.Population] + p.CellInstance, nil
}

func (in *Instantiator) rankOf(gid int) int {
	return decomp.RankOf(gid, len(in.instances), in.RankCount)
}

// voltageRef returns the global (table, entry) pair addressing compartment
// seg's voltage on an instance this rank owns.
func (in *Instantiator) voltageRef(inst *instance, seg int) (packedref.Packed, error) {
	if !inst.local {
		return 0, fmt.Errorf("%w: voltage ref requested for an instance this rank does not own", edenerr.InternalInvariant)
	}
	localState, ok := inst.Sig.CompartmentVState[seg]
	if !ok {
		return 0, fmt.Errorf("%w: cell type %q has no compartment %d", edenerr.ModelMalformed, inst.CellType.Name, seg)
	}
	s := inst.tabs
	globalEntry := s.StateF32Index[inst.workIdx] + int64(localState)
	return packedref.Encode(int64(s.GlobalStateTabref), globalEntry), nil
}

// globalTable turns a signature-local table index into its global
// tables.Set index for a specific local instance's work item.
func globalTable(inst *instance, family sig.TableFamily, localIdx int) int {
	s := inst.tabs
	switch family {
	case sig.TableConstF32:
		return int(s.TableConstF32Index[inst.workIdx]) + localIdx
	case sig.TableConstI64:
		return int(s.TableConstI64Index[inst.workIdx]) + localIdx
	case sig.TableStateF32:
		return int(s.TableStateF32Index[inst.workIdx]) + localIdx
	default:
		return int(s.TableStateI64Index[inst.workIdx]) + localIdx
	}
}

// resolveProjection grows the postsynaptic endpoint's synapse row (weight,
// delay, and — for a chemical synapse — conductance/trigger/next-spike
// state) and wires the presynaptic compartment's recipient list to it, or
// to a cross-rank recv-list placeholder when the two endpoints are on
// different ranks.
func (in *Instantiator) resolveProjection(proj model.Projection) error {
	preGID, err := in.gidOf(proj.Pre)
	if err != nil {
		return err
	}
	postGID, err := in.gidOf(proj.Post)
	if err != nil {
		return err
	}
	synType, ok := in.Model.SynapseTypes[proj.Synapse]
	if !ok {
		return fmt.Errorf("%w: projection references unknown synapse type %q", edenerr.ModelMalformed, proj.Synapse)
	}
	if synType.Kind == model.SynapseGapJunction {
		weight, err := evalConstExpr(proj.WeightExpr)
		if err != nil {
			return fmt.Errorf("%w: gap junction weight: %v", edenerr.ModelMalformed, err)
		}
		return in.resolveGapJunction(proj, preGID, postGID, float32(weight))
	}

	post := &in.instances[postGID]
	if !post.local {
		// Post lives elsewhere: the rank owning it resolves this same
		// projection on its own pass and grows its own synapse row;
		// there's nothing for this rank to push for the postsynaptic half.
		return nil
	}

	weight, err := evalConstExpr(proj.WeightExpr)
	if err != nil {
		return fmt.Errorf("%w: projection weight: %v", edenerr.ModelMalformed, err)
	}
	delay, err := evalConstExpr(proj.DelayExpr)
	if err != nil {
		return fmt.Errorf("%w: projection delay: %v", edenerr.ModelMalformed, err)
	}

	decayTau, err := constDecayTau(synType.DecayTauExpr)
	if err != nil {
		return fmt.Errorf("%w: synapse type %q decay tau: %v", edenerr.ModelMalformed, proj.Synapse, err)
	}

	st := post.Sig.ChemicalSynapse
	wtbl := globalTable(post, sig.TableConstF32, st.WeightTable)
	post.tabs.PushF32(tables.FamilyConstF32, wtbl, float32(weight))
	dtbl := globalTable(post, sig.TableConstF32, st.DelayTable)
	post.tabs.PushF32(tables.FamilyConstF32, dtbl, float32(delay))
	tautbl := globalTable(post, sig.TableConstF32, st.DecayTauTable)
	post.tabs.PushF32(tables.FamilyConstF32, tautbl, decayTau)
	gtbl := globalTable(post, sig.TableStateF32, st.GState)
	post.tabs.PushF32(tables.FamilyStateF32, gtbl, 0)
	trigtbl := globalTable(post, sig.TableStateI64, st.TriggerTable)
	post.tabs.PushI64(tables.FamilyStateI64, trigtbl, 0)
	nexttbl := globalTable(post, sig.TableStateI64, st.NextSpikeTable)
	post.tabs.PushI64(tables.FamilyStateI64, nexttbl, kernel.SynapseNotArmed)
	triggerRow := int64(len(post.tabs.StateI64[trigtbl]) - 1)

	if in.rankOf(preGID) == in.Rank {
		pre := &in.instances[preGID]
		compID := proj.Pre.Segment
		recTbl, ok := pre.Sig.SpikeRecipientsTable[compID]
		if !ok {
			return fmt.Errorf("%w: compartment %d of %q is not a spike source", edenerr.ModelMalformed, compID, pre.CellType.Name)
		}
		absTbl := globalTable(pre, sig.TableConstI64, recTbl)
		ref := packedref.Encode(int64(trigtbl), triggerRow)
		pre.tabs.PushI64(tables.FamilyConstI64, absTbl, int64(ref))
	} else {
		// The recv-list entry names Pre (the remote spike source this
		// rank's new synapse row now listens to); the engine copies
		// incoming spike-mirror values straight into the just-pushed
		// trigger row each step, keyed by this entry's position in the
		// peer's Spikes list.
		in.recordSpikeRecv(in.rankOf(preGID), proj.Pre, placeholder{cellType: post.Pop.CellType, table: trigtbl, row: int(triggerRow)})
	}
	return nil
}

// resolveGapJunction wires one direction of a symmetric peer-voltage
// coupling: the Post side's gap table grows a weight row paired with a
// peer-voltage reference resolved to Pre's voltage, locally or via a
// cross-rank placeholder.
func (in *Instantiator) resolveGapJunction(proj model.Projection, preGID, postGID int, weight float32) error {
	post := &in.instances[postGID]
	if !post.local {
		return nil
	}
	gap := post.Sig.GapJunction
	wtbl := globalTable(post, sig.TableConstF32, gap.WeightTable)
	post.tabs.PushF32(tables.FamilyConstF32, wtbl, weight)
	ptbl := globalTable(post, sig.TableConstI64, gap.PeerVTable)

	if in.rankOf(preGID) == in.Rank {
		pre := &in.instances[preGID]
		ref, err := in.voltageRef(pre, proj.Pre.Segment)
		if err != nil {
			return err
		}
		post.tabs.PushI64(tables.FamilyConstI64, ptbl, int64(ref))
	} else {
		row := post.tabs.PushI64(tables.FamilyConstI64, ptbl, 0)
		in.recordVPeerRecv(in.rankOf(preGID), proj.Pre, placeholder{cellType: post.Pop.CellType, point: proj.Pre, table: ptbl, row: row})
	}
	return nil
}

func (in *Instantiator) recvListFor(peer int) *decomp.RecvList {
	rl, ok := in.RecvLists[peer]
	if !ok {
		rl = &decomp.RecvList{Peer: peer}
		in.RecvLists[peer] = rl
	}
	return rl
}

func (in *Instantiator) recordVPeerRecv(peer int, point model.PointOnCell, ph placeholder) {
	rl := in.recvListFor(peer)
	rl.VPeer = append(rl.VPeer, decomp.RecvEntry{Point: point})
	in.vPeerOrder[peer] = append(in.vPeerOrder[peer], ph.cellType)
	byPeer, ok := in.vPeerPlaceholders[ph.cellType]
	if !ok {
		byPeer = map[int][]placeholder{}
		in.vPeerPlaceholders[ph.cellType] = byPeer
	}
	byPeer[peer] = append(byPeer[peer], ph)
}

// VPeerTarget names which cell type's own per-peer mirror slice, and
// which position within it, one wire-order VPeer entry resolves to.
type VPeerTarget struct {
	CellType string
	Index    int
}

// VPeerWriteTargets returns, in the same order as RecvLists[peer].VPeer,
// which cell type and index within that cell type's own
// vPeerPlaceholders[cellType][peer] slice (the same order
// decomp.MirrorBuffers assigns mirror slots in, since both are built by
// iterating CellTypeRecvLists(cellType)[peer] start to finish) each
// incoming value belongs to. The engine's Recv phase uses this to route
// an incoming float straight into the right per-cell-type mirror table
// without re-deriving cell-type membership from the point itself.
func (in *Instantiator) VPeerWriteTargets(peer int) []VPeerTarget {
	order := in.vPeerOrder[peer]
	out := make([]VPeerTarget, len(order))
	seen := map[string]int{}
	for i, ct := range order {
		out[i] = VPeerTarget{CellType: ct, Index: seen[ct]}
		seen[ct]++
	}
	return out
}

// CellTypeRecvLists returns, for cellType, the VPeer-only recv lists (keyed
// by peer) that rank's own gap-junction placeholders for that cell type
// need mirrored — the subset decomp.MirrorBuffers should be called with
// when allocating that cell type's own tables.Set's mirror tables. Spikes
// and DAW entries are deliberately excluded: neither is addressed through a
// packed reference resolved inside this cell type's generated kernel, so
// neither needs a table slot reserved in its Set.
func (in *Instantiator) CellTypeRecvLists(cellType string) map[int]*decomp.RecvList {
	out := map[int]*decomp.RecvList{}
	for peer, phs := range in.vPeerPlaceholders[cellType] {
		rl := &decomp.RecvList{Peer: peer}
		for _, ph := range phs {
			rl.VPeer = append(rl.VPeer, decomp.RecvEntry{Point: ph.point})
		}
		out[peer] = rl
	}
	return out
}

func (in *Instantiator) recordSpikeRecv(peer int, point model.PointOnCell, ph placeholder) {
	rl := in.recvListFor(peer)
	rl.Spikes = append(rl.Spikes, decomp.RecvEntry{Point: point})
	in.spikePlaceholders[peer] = append(in.spikePlaceholders[peer], ph)
}

// SpikeTarget returns the (cellType, table, row) that peer's i'th incoming
// spike-mirror entry should be OR'd into: the postsynaptic trigger row
// resolveProjection reserved when it recorded this cross-rank spike source
// as a recv-list placeholder.
func (in *Instantiator) SpikeTarget(peer, i int) (cellType string, table, row int) {
	ph := in.spikePlaceholders[peer][i]
	return ph.cellType, ph.table, ph.row
}

// LocalVoltage resolves point — which must be owned by this rank — to the
// cell type, table-set-global state_f32 table index, and row addressing its
// voltage, the same (table, row) pair a packed reference would carry. The
// Send phase uses this to read the current value of every local point a
// peer has asked to be kept informed of.
func (in *Instantiator) LocalVoltage(point model.PointOnCell) (cellType string, table, row int, err error) {
	gid, err := in.gidOf(point)
	if err != nil {
		return "", 0, 0, err
	}
	inst := &in.instances[gid]
	if !inst.local {
		return "", 0, 0, fmt.Errorf("%w: LocalVoltage called for a point this rank does not own", edenerr.InternalInvariant)
	}
	localState, ok := inst.Sig.CompartmentVState[point.Segment]
	if !ok {
		return "", 0, 0, fmt.Errorf("%w: compartment %d not found on %q", edenerr.ModelMalformed, point.Segment, inst.CellType.Name)
	}
	s := inst.tabs
	return inst.Pop.CellType, s.GlobalStateTabref, int(s.StateF32Index[inst.workIdx]) + localState, nil
}

// recordDAWRecv registers a remote data-writer column; the Trajectory
// Logger resolves it directly against decomp.Mirrors when it opens,
// rather than through a table placeholder the way VPeer/Spikes entries
// are, since a logged column is read-only and never addressed from
// generated kernel code.
func (in *Instantiator) recordDAWRecv(peer int, point model.PointOnCell) {
	rl := in.recvListFor(peer)
	rl.DAW = append(rl.DAW, decomp.RecvEntry{Point: point})
}

// resolveInput applies one external drive to its target compartment. Pulse
// inputs grow the target compartment's parallel (amplitude, start,
// duration) tables, the same pattern a synapse uses for (weight, delay).
// Spike-list inputs sort their spike times and push them, plus a trailing
// +Inf sentinel, into the target compartment's spike-list-times table.
// Arbitrary LEMS-component inputs are accepted and validated here but not
// lowered into generated kernel code — see DESIGN.md.
func (in *Instantiator) resolveInput(input model.Input) error {
	gid, err := in.gidOf(input.Target)
	if err != nil {
		return err
	}
	inst := &in.instances[gid]
	if !inst.local {
		return nil
	}
	switch input.Kind {
	case model.InputPulse:
		if _, ok := inst.Sig.CompartmentVState[input.Target.Segment]; !ok {
			return fmt.Errorf("%w: input target compartment %d not found on %q", edenerr.ModelMalformed, input.Target.Segment, inst.CellType.Name)
		}
		amp, err := evalConstExpr(input.PulseAmplitudeExpr)
		if err != nil {
			return fmt.Errorf("%w: pulse amplitude: %v", edenerr.ModelMalformed, err)
		}
		tbl, err := in.compartmentPulseTables(inst, input.Target.Segment)
		if err != nil {
			return err
		}
		inst.tabs.PushF32(tables.FamilyConstF32, tbl[0], float32(amp))
		inst.tabs.PushF32(tables.FamilyConstF32, tbl[1], float32(input.PulseStart))
		inst.tabs.PushF32(tables.FamilyConstF32, tbl[2], float32(input.PulseDuration))
	case model.InputSpikeList:
		if len(input.SpikeTimes) == 0 {
			return fmt.Errorf("%w: spike-list input has no spike times", edenerr.ModelMalformed)
		}
		sorted := append([]float64(nil), input.SpikeTimes...)
		sort.Float64s(sorted)
		for _, t := range sorted {
			if math.IsNaN(t) {
				return fmt.Errorf("%w: spike-list input contains NaN", edenerr.ModelMalformed)
			}
		}
		tbl, err := in.compartmentSpikeListTable(inst, input.Target.Segment)
		if err != nil {
			return err
		}
		for _, t := range sorted {
			inst.tabs.PushF32(tables.FamilyConstF32, tbl, float32(t))
		}
		// Trailing sentinel genSpikeListInput's window test never matches,
		// so the kernel never needs to know where the real entries end.
		inst.tabs.PushF32(tables.FamilyConstF32, tbl, float32(math.Inf(1)))
	case model.InputComponent:
		if input.ComponentType == "" {
			return fmt.Errorf("%w: component input has no component type", edenerr.ModelMalformed)
		}
	}
	return nil
}

// compartmentConstF32Stride is the number of const_f32 tables planCompartments
// allocates per compartment, in order: pulse amplitude, pulse start, pulse
// duration, spike-list times. compartmentConstI64Stride is the number of
// const_i64 tables per compartment: the spike recipients table. Both must
// track kernel.planCompartments's allocation order exactly, since the
// Instantiator has no other way to recover per-compartment table identity
// from the flat tables.Set the Kernel Emitter built.
const (
	compartmentConstF32Stride = 4
	compartmentConstI64Stride = 1
)

// compartmentIndex returns segID's position among its cell type's declared
// compartments, the basis for every by-position table lookup below.
func compartmentIndex(ct *model.CellType, segID int) (int, error) {
	for i, c := range ct.Compartments {
		if c.ID == segID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: compartment %d not found on %q", edenerr.ModelMalformed, segID, ct.Name)
}

// compartmentPulseTables looks up the (amplitude, start, duration) global
// table triple the Kernel Emitter reserved for segID, by position: these are
// the first three of the compartmentConstF32Stride const_f32 tables the
// Kernel Emitter allocates for every compartment, in compartment declaration
// order.
func (in *Instantiator) compartmentPulseTables(inst *instance, segID int) ([3]int, error) {
	i, err := compartmentIndex(inst.CellType, segID)
	if err != nil {
		return [3]int{}, err
	}
	base := i * compartmentConstF32Stride
	return [3]int{
		globalTable(inst, sig.TableConstF32, base),
		globalTable(inst, sig.TableConstF32, base+1),
		globalTable(inst, sig.TableConstF32, base+2),
	}, nil
}

// compartmentSpikeListTable looks up the spike-list-times const_f32 table
// the Kernel Emitter reserved for segID: the fourth and last of that
// compartment's const_f32 tables.
func (in *Instantiator) compartmentSpikeListTable(inst *instance, segID int) (int, error) {
	i, err := compartmentIndex(inst.CellType, segID)
	if err != nil {
		return 0, err
	}
	base := i*compartmentConstF32Stride + 3
	return globalTable(inst, sig.TableConstF32, base), nil
}

// resolveDataWriterColumn validates that a logged point resolves to a real
// compartment; the Trajectory Logger re-resolves the same point against
// the finalized tables.Set to read values, so this pass exists only to
// fail fast on a dangling reference (invariant I-Ref) before the engine
// starts stepping, and to register a recv-list placeholder when the
// logged point is owned by a different rank than rank 0 (which writes the
// trajectory files).
func (in *Instantiator) resolveDataWriterColumn(col model.DataWriterColumn) error {
	gid, err := in.gidOf(col.Target)
	if err != nil {
		return err
	}
	inst := &in.instances[gid]
	if !inst.CellType.IsPointNeuron() {
		if _, ok := inst.compartmentExists(col.Target.Segment); !ok {
			return fmt.Errorf("%w: data writer column %q targets unknown compartment %d", edenerr.ModelMalformed, col.ColumnID, col.Target.Segment)
		}
	}
	// Rank 0 owns every trajectory log file; a column targeting a neuron
	// owned by another rank needs that value mirrored to rank 0 each step.
	const logWriterRank = 0
	if in.rankOf(gid) != logWriterRank && in.Rank == logWriterRank {
		in.recordDAWRecv(in.rankOf(gid), col.Target)
	}
	return nil
}

// DAWMirrorSlot resolves point — which must have been recorded as a
// remote data-writer recv entry by resolveDataWriterColumn — to the peer
// it is mirrored from and its position within that peer's RecvList.DAW,
// which the Trajectory Logger's own dedicated DAW mirror table (built by
// the same decomp.MirrorBuffers machinery, scoped to DAW-only recv lists
// since a logged column is never addressed from generated kernel code and
// so needs no home inside any cell type's own Set) lays out in the same
// order.
func (in *Instantiator) DAWMirrorSlot(point model.PointOnCell) (peer, slot int, err error) {
	for p, rl := range in.RecvLists {
		for i, e := range rl.DAW {
			if e.Point == point {
				return p, i, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: point %s not recorded as a remote data-writer recv entry", edenerr.InternalInvariant, point)
}

// DAWRecvLists returns, per peer, a RecvList containing only this rank's
// DAW entries (VPeer/Spikes empty), for sizing the dedicated DAW-only
// value mirror via decomp.MirrorBuffers.
func (in *Instantiator) DAWRecvLists() map[int]*decomp.RecvList {
	out := map[int]*decomp.RecvList{}
	for peer, rl := range in.RecvLists {
		if len(rl.DAW) == 0 {
			continue
		}
		out[peer] = &decomp.RecvList{Peer: peer, DAW: rl.DAW}
	}
	return out
}

func (inst *instance) compartmentExists(segID int) (*model.Compartment, bool) {
	for i := range inst.CellType.Compartments {
		if inst.CellType.Compartments[i].ID == segID {
			return &inst.CellType.Compartments[i], true
		}
	}
	return nil, false
}

// Finalize calls tables.Set.Finalize on the shared table set, fixing its
// global-scalar aliases. Call it once, after Run and after every cross-rank
// reference has been resolved or placeholder-recorded.
func (in *Instantiator) Finalize() {
	in.Set.Finalize()
}

// ApplyMirrors rewrites every cross-rank VPeer placeholder this rank
// recorded to point at the mirror table slot decomp.MirrorBuffers
// allocated for it, given one Mirrors value per cell type (built by
// calling decomp.MirrorBuffers against that cell type's own tables.Set
// with CellTypeRecvLists(cellType) as the needs map — see the engine's
// setup code). Spikes entries are left alone entirely: the engine's Recv
// phase copies incoming spike-mirror values directly into those trigger
// rows each step rather than resolving them through a packed reference.
// DAW entries carry no table placeholder to rewrite at all — the
// Trajectory Logger resolves them against a Mirrors value directly.
func (in *Instantiator) ApplyMirrors(mirrorsByCellType map[string]*decomp.Mirrors) {
	for cellType, byPeer := range in.vPeerPlaceholders {
		mirrors := mirrorsByCellType[cellType]
		s := in.Sets[cellType]
		for peer, phs := range byPeer {
			for i, ph := range phs {
				ref := mirrors.ValueMirrorRef(peer, i)
				s.ConstI64[ph.table][ph.row] = int64(ref)
			}
		}
	}
}
