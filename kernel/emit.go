package kernel

import (
	"fmt"
	"strings"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/edenerr"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/units"
)

// signature is the fixed `doit` parameter list every generated kernel
// exposes (spec's IterationCallback contract), one restrict-qualified
// argument per table family plus time/dt/step.
const signature = `void doit(
    double time, double dt,
    const float* restrict const_f32_scalar_base, long const_f32_work_offset,
    const long* restrict const_f32_table_sizes, float* const* restrict const_f32_table_ptrs, const long* restrict const_f32_table_work_offset,
    const long* restrict const_i64_table_sizes, long* const* restrict const_i64_table_ptrs, const long* restrict const_i64_table_work_offset,
    const long* restrict state_f32_table_sizes, float* const* restrict state_f32_now_ptrs, float* const* restrict state_f32_next_ptrs, const long* restrict state_f32_table_work_offset,
    const long* restrict state_i64_table_sizes, long* const* restrict state_i64_now_ptrs, long* const* restrict state_i64_next_ptrs, const long* restrict state_i64_table_work_offset,
    const float* restrict state_f32_scalar_now, float* restrict state_f32_scalar_next, long state_f32_scalar_work_offset,
    long step)`

// Emit produces the complete C source for cellType's kernel: channel
// distributions, synapse/gap-junction aggregation, the cable solver, and
// spike sending, assembled around the fixed doit signature. sg receives
// the scalar/table slot allocations this emission performs — callers pass
// a freshly constructed sig.New(cellType) and read back the populated
// signature afterward (e.g. to size per-instance table prototypes during
// instantiation).
func Emit(cellType string, sg *sig.WorkItemSignature, ct *model.CellType, sys *units.System, cfg *config.SimulatorConfig) (*Source, error) {
	if ct == nil {
		return nil, fmt.Errorf("kernel: nil cell type for %q", cellType)
	}
	sc := sg.Scalars()
	tabs := sg.Tables()

	sg.RNGSeedConst = sc.Constant()

	compPlans, err := planCompartments(sc, tabs, ct.Compartments)
	if err != nil {
		return nil, fmt.Errorf("%w: cell type %q: %v", edenerr.ModelMalformed, cellType, err)
	}
	sg.CompartmentVState = make(map[int]int, len(compPlans))
	for id, p := range compPlans {
		sg.CompartmentVState[id] = p.VState
	}

	channelsByComp := map[int][]*channelPlan{}
	for _, dist := range ct.Channels {
		cp, err := planChannel(sc, dist)
		if err != nil {
			return nil, fmt.Errorf("%w: cell type %q: %v", edenerr.ModelMalformed, cellType, err)
		}
		channelsByComp[dist.CompartmentID] = append(channelsByComp[dist.CompartmentID], cp)
	}

	var synPlans []*synapsePlan
	// One synapse/gap-junction slot family is reserved per cell type here;
	// the Instantiator grows each table's rows per projection instance.
	chemPlan := planSynapse(tabs, model.Projection{Synapse: "chemical"}, model.SynapseChemical)
	gapPlan := planSynapse(tabs, model.Projection{Synapse: "gap"}, model.SynapseGapJunction)
	synPlans = append(synPlans, chemPlan, gapPlan)
	sg.ChemicalSynapse = sig.SynapseTables{
		WeightTable: chemPlan.WeightTable, DelayTable: chemPlan.DelayTable,
		GState: chemPlan.GState, TriggerTable: chemPlan.TriggerTable,
		NextSpikeTable: chemPlan.NextSpikeTable, PeerVTable: -1,
		DecayTauTable: chemPlan.DecayTauTable,
	}
	sg.GapJunction = sig.SynapseTables{
		WeightTable: gapPlan.WeightTable, DelayTable: gapPlan.DelayTable,
		GState: -1, TriggerTable: -1, NextSpikeTable: -1, PeerVTable: gapPlan.PeerVTable,
		DecayTauTable: -1,
	}

	var spikePlans []*spikeSourcePlan
	for _, compID := range ct.SpikeSourceCompartments {
		spikePlans = append(spikePlans, planSpikeSource(compID))
	}
	// Every compartment gets a recipients table (compPlans allocates one
	// unconditionally), so a spike-list input can drive a projection from
	// a compartment that was never declared a threshold-crossing spike
	// source.
	sg.SpikeRecipientsTable = make(map[int]int, len(compPlans))
	for id, p := range compPlans {
		sg.SpikeRecipientsTable[id] = p.RecipientsTable
	}

	order, parent := sig.BackwardEulerOrder(ct.Compartments)
	if ct.IsPointNeuron() {
		order, parent = nil, nil
	}

	var grouping sig.CompartmentGrouping
	if !ct.IsPointNeuron() {
		ids := make([]int, len(ct.Compartments))
		bodies := make(map[int]string, len(ct.Compartments))
		for i, c := range ct.Compartments {
			ids[i] = c.ID
			bodies[c.ID] = genCompartmentLocal(compPlans[c.ID], channelsByComp[c.ID], sys)
		}
		grouping = sig.BuildCompartmentGrouping(ids, bodies)
	}
	sg.Grouping = grouping
	sg.ElimOrder = order
	sg.ParentList = parent

	var b strings.Builder
	b.WriteString("/* generated kernel: do not edit */\n")
	b.WriteString("#include <math.h>\n")
	b.WriteString(atomicOrHelper)
	b.WriteString("\n")
	b.WriteString(signature)
	b.WriteString(" {\n")
	fmt.Fprintf(&b, "    int initial_state = (step <= 0);\n")
	b.WriteString("    double i_syn_aggregate = 0.0;\n")

	switch grouping.Kind {
	case sig.Grouped:
		for gi, g := range grouping.Groups {
			b.WriteString(genCompartmentGroup(gi, g))
		}
	default:
		for _, c := range ct.Compartments {
			b.WriteString(genCompartmentLocal(compPlans[c.ID], channelsByComp[c.ID], sys))
		}
	}

	// Every synapse/gap-junction table a cell type declares is global to
	// the cell type rather than scoped to one compartment (resolveProjection
	// never reads proj.Post.Segment), so i_syn_aggregate's only sane target
	// is the root compartment — the soma for a multi-compartment cell, the
	// cell's one compartment for a point neuron. genGapJunctionAggregate's
	// peer coupling needs that same compartment's voltage as v_now, but the
	// per-compartment loop above scopes its own v_now to each compartment's
	// own block; re-declare it here, at the scope the aggregate code and the
	// i_syn_aggregate application below share.
	var root *compartmentPlan
	for _, c := range ct.Compartments {
		if c.IsRoot() {
			root = compPlans[c.ID]
			break
		}
	}
	if root != nil {
		fmt.Fprintf(&b, "    double v_now = %s;\n", vNowExpr(root))
	}

	b.WriteString(genSynapseAggregate(synPlans))
	b.WriteString(genGapJunctionAggregate(synPlans))

	if root != nil {
		fmt.Fprintf(&b, "    %s += (dt / %s) * i_syn_aggregate;\n", vNextExpr(root), capExpr(root))
	}

	if !ct.IsPointNeuron() {
		solver := cfg.CableSolver
		b.WriteString(genCableSolve(ct, order, parent, compPlans, solver))
	}

	for _, sp := range spikePlans {
		cp := compPlans[sp.CompartmentID]
		threshold := fmt.Sprintf("%.17g", ct.SpikeThreshold)
		b.WriteString(genSpikeSend(cp, threshold))
	}

	b.WriteString("}\n")

	return &Source{
		CellType: cellType,
		FileBase: fileBase(cellType),
		C:        b.String(),
	}, nil
}
