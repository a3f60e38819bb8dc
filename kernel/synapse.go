package kernel

import (
	"fmt"
	"strings"

	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
)

// SynapseNotArmed is the NextSpikeTable sentinel meaning "no delivery
// currently scheduled". Instances start in this state (instantiate.go
// pushes it as the initial state) so the first-ever presynaptic spike is
// recognized as a fresh rising edge rather than an already-due delivery.
const SynapseNotArmed int64 = -1

// synapseNotArmedLiteral is SynapseNotArmed spelled as a C long literal,
// used by the generated delay-line comparisons.
var synapseNotArmedLiteral = fmt.Sprintf("%dL", SynapseNotArmed)

// synapsePlan records one projection endpoint's allocated table rows: a
// parallel (weight, delay) pair in const_f32, a conductance state column in
// state_f32, and (for chemical synapses) a trigger/next-spike-time pair in
// state_i64.
type synapsePlan struct {
	Proj model.Projection

	WeightTable, DelayTable int // const_f32
	GState                  int // state_f32: postsynaptic conductance
	TriggerTable            int // state_i64: spike-pending flag, one entry per instance
	NextSpikeTable          int // state_i64: next permissible delivery time (fixed-point), one entry per instance
	PeerVTable              int // const_i64: packed ref to presynaptic/postsynaptic peer voltage, when needed
	DecayTauTable           int // const_f32: chemical synapse only, postsynaptic conductance decay time constant
}

// planSynapse allocates the tables one projection instance needs.
func planSynapse(tabs sig.TableAllocator, proj model.Projection, kind model.SynapseKind) *synapsePlan {
	sp := &synapsePlan{
		Proj:        proj,
		WeightTable: tabs.ConstF32("weight"),
		DelayTable:  tabs.ConstF32("delay"),
		GState:      -1,
		TriggerTable: -1,
		NextSpikeTable: -1,
		PeerVTable:  -1,
		DecayTauTable: -1,
	}
	switch kind {
	case model.SynapseChemical:
		sp.GState = tabs.StateF32("syn_g")
		sp.TriggerTable = tabs.StateI64("syn_trigger")
		sp.NextSpikeTable = tabs.StateI64("syn_next_spike")
		sp.DecayTauTable = tabs.ConstF32("syn_decay_tau")
	case model.SynapseGapJunction:
		sp.PeerVTable = tabs.ConstI64("gap_peer_v")
	}
	return sp
}

// genSynapseAggregate emits the aggregate synaptic current loop: for every
// instance of a chemical synapse table, accumulate its contribution to
// I_syn_aggregate, and run the delay-line spike-delivery/trigger-clear
// logic that makes at-most-one-delivery safe.
func genSynapseAggregate(plans []*synapsePlan) string {
	var b strings.Builder
	for _, sp := range plans {
		if sp.Proj.Synapse == "" {
			continue
		}
		n := fmt.Sprintf("const_f32_table_sizes[%d]", sp.WeightTable)
		b.WriteString("    for (long si = 0; si < " + n + "; si++) {\n")
		fmt.Fprintf(&b, "        long w_off = const_f32_table_work_offset[%d];\n", sp.WeightTable)
		fmt.Fprintf(&b, "        float w = const_f32_table_ptrs[%d][w_off + si];\n", sp.WeightTable)
		fmt.Fprintf(&b, "        float delay = const_f32_table_ptrs[%d][w_off + si];\n", sp.DelayTable)

		if sp.GState >= 0 {
			fmt.Fprintf(&b, "        long g_off = state_f32_table_work_offset[%d];\n", sp.GState)
			fmt.Fprintf(&b, "        float g_now = state_f32_now_ptrs[%d][g_off + si];\n", sp.GState)
			fmt.Fprintf(&b, "        long trig_off = state_i64_table_work_offset[%d];\n", sp.TriggerTable)
			fmt.Fprintf(&b, "        long spike = state_i64_now_ptrs[%d][trig_off + si];\n", sp.TriggerTable)
			fmt.Fprintf(&b, "        long next_off = state_i64_table_work_offset[%d];\n", sp.NextSpikeTable)
			fmt.Fprintf(&b, "        long next_spike_time = state_i64_now_ptrs[%d][next_off + si];\n", sp.NextSpikeTable)
			fmt.Fprintf(&b, "        long tau_off = const_f32_table_work_offset[%d];\n", sp.DecayTauTable)
			fmt.Fprintf(&b, "        float tau = const_f32_table_ptrs[%d][tau_off + si];\n", sp.DecayTauTable)
			b.WriteString("        float g_next = g_now;\n")
			fmt.Fprintf(&b, "        long new_next_spike_time = next_spike_time;\n")
			b.WriteString("        if (next_spike_time != " + synapseNotArmedLiteral + " && time >= (double)next_spike_time) {\n")
			b.WriteString("            /* due: this is the delivery rising edge, scheduled by an earlier spike */\n")
			b.WriteString("            g_next = g_now + w;\n")
			b.WriteString("            new_next_spike_time = " + synapseNotArmedLiteral + ";\n")
			b.WriteString("        } else if (spike && next_spike_time == " + synapseNotArmedLiteral + ") {\n")
			b.WriteString("            /* fresh spike, nothing already pending: arm the delay line */\n")
			b.WriteString("            new_next_spike_time = (long)(time + delay);\n")
			b.WriteString("        }\n")
			b.WriteString("        /* consumer clears the trigger in the same step it reads it, whether it armed, \n")
			b.WriteString("           delivered, or (a spike arriving while a delivery is already pending) dropped it */\n")
			fmt.Fprintf(&b, "        state_i64_next_ptrs[%d][next_off + si] = new_next_spike_time;\n", sp.NextSpikeTable)
			fmt.Fprintf(&b, "        state_i64_next_ptrs[%d][trig_off + si] = 0;\n", sp.TriggerTable)
			b.WriteString("        g_next -= (dt / tau) * g_next; /* decay toward zero with time constant tau */\n")
			fmt.Fprintf(&b, "        state_f32_next_ptrs[%d][g_off + si] = g_next;\n", sp.GState)
			b.WriteString("        i_syn_aggregate += g_next * w;\n")
		}
		b.WriteString("    }\n")
	}
	return b.String()
}

// genGapJunctionAggregate emits direct peer-voltage coupling for gap
// junction endpoints: no delay line, the peer's voltage is read straight
// out of the local (or MPI mirror) value table every step.
func genGapJunctionAggregate(plans []*synapsePlan) string {
	var b strings.Builder
	for _, sp := range plans {
		if sp.PeerVTable < 0 {
			continue
		}
		n := fmt.Sprintf("const_i64_table_sizes[%d]", sp.PeerVTable)
		b.WriteString("    for (long gi = 0; gi < " + n + "; gi++) {\n")
		fmt.Fprintf(&b, "        long go = const_i64_table_work_offset[%d];\n", sp.PeerVTable)
		fmt.Fprintf(&b, "        long peer_ref = const_i64_table_ptrs[%d][go + gi];\n", sp.PeerVTable)
		fmt.Fprintf(&b, "        long w_off = const_f32_table_work_offset[%d];\n", sp.WeightTable)
		fmt.Fprintf(&b, "        float r = const_f32_table_ptrs[%d][w_off + gi];\n", sp.WeightTable)
		b.WriteString("        double v_peer = eden_resolve_f32(peer_ref, state_f32_now_ptrs);\n")
		b.WriteString("        i_syn_aggregate += (v_peer - v_now) / r;\n")
		b.WriteString("    }\n")
	}
	return b.String()
}
