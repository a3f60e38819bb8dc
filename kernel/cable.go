package kernel

import (
	"fmt"
	"strings"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/units"
)

// vNowExpr and vNextExpr render the C expressions addressing a
// compartment's now/next voltage scalar.
func vNowExpr(plan *compartmentPlan) string {
	return fmt.Sprintf("state_f32_scalar_now[state_f32_scalar_work_offset + %d]", plan.VState)
}
func vNextExpr(plan *compartmentPlan) string {
	return fmt.Sprintf("state_f32_scalar_next[state_f32_scalar_work_offset + %d]", plan.VState)
}
func capExpr(plan *compartmentPlan) string {
	return fmt.Sprintf("const_f32_scalar_base[const_f32_work_offset + %d]", plan.CapConst)
}
func axialResExpr(plan *compartmentPlan) string {
	return fmt.Sprintf("const_f32_scalar_base[const_f32_work_offset + %d]", plan.AxialConst)
}

// genCompartmentLocal emits one compartment's channel-current accumulation
// and its local (non-axial) voltage update: V_next = V + dt/C * I_internal.
// Axial coupling is applied afterward by genCableSolve.
func genCompartmentLocal(plan *compartmentPlan, channels []*channelPlan, sys *units.System) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    {\n")
	fmt.Fprintf(&b, "        double v_now = %s;\n", vNowExpr(plan))
	fmt.Fprintf(&b, "        double i_internal = 0.0;\n")
	for _, cp := range channels {
		b.WriteString(indent(genChannel(cp, sys), "    "))
	}
	b.WriteString(genPulseInputs(plan))
	fmt.Fprintf(&b, "        %s = v_now + (dt / %s) * i_internal;\n", vNextExpr(plan), capExpr(plan))
	b.WriteString(indent(genSpikeListInput(plan), "    "))
	fmt.Fprintf(&b, "    }\n")
	return b.String()
}

// genCompartmentGroup emits one sig.CompartmentGroup's body inside a loop
// over a per-group member-index table, per spec.md §4.2's GROUPED strategy:
// the group's members share byte-identical generated bodies (that is what
// put them in the same group), so running the shared body once per member
// listed in the table computes exactly what running each member's own body
// inline would have, without repeating the C text per member.
func genCompartmentGroup(groupIdx int, g sig.CompartmentGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    {\n")
	fmt.Fprintf(&b, "        static const long group%d_members[%d] = {", groupIdx, len(g.Members))
	for i, id := range g.Members {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%d", id)
	}
	b.WriteString("};\n")
	fmt.Fprintf(&b, "        for (long gi = 0; gi < %d; gi++) {\n", len(g.Members))
	fmt.Fprintf(&b, "            long group_member_compartment = group%d_members[gi];\n", groupIdx)
	b.WriteString("            (void)group_member_compartment;\n")
	b.WriteString(indent(g.Body, "    "))
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	return b.String()
}

// genPulseInputs emits the summation of every pulse current injected on one
// compartment: amplitude while time falls within [start, start+duration).
func genPulseInputs(plan *compartmentPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "        for (long pi = 0; pi < const_f32_table_sizes[%d]; pi++) {\n", plan.PulseAmpTable)
	fmt.Fprintf(&b, "            long po = const_f32_table_work_offset[%d];\n", plan.PulseAmpTable)
	fmt.Fprintf(&b, "            float amp = const_f32_table_ptrs[%d][po + pi];\n", plan.PulseAmpTable)
	fmt.Fprintf(&b, "            float start = const_f32_table_ptrs[%d][const_f32_table_work_offset[%d] + pi];\n", plan.PulseStartTable, plan.PulseStartTable)
	fmt.Fprintf(&b, "            float dur = const_f32_table_ptrs[%d][const_f32_table_work_offset[%d] + pi];\n", plan.PulseDurTable, plan.PulseDurTable)
	b.WriteString("            if (time >= (double)start && time < (double)(start + dur)) {\n")
	b.WriteString("                i_internal += amp;\n")
	b.WriteString("            }\n")
	b.WriteString("        }\n")
	return b.String()
}

// genCableSolveForwardEuler emits the forward-Euler axial coupling pass:
// for every non-root compartment, add the axial current exchanged with its
// parent to both compartments' next voltages.
func genCableSolveForwardEuler(comps []model.Compartment, plans map[int]*compartmentPlan) string {
	var b strings.Builder
	b.WriteString("    /* forward-Euler axial coupling */\n")
	for _, c := range comps {
		if c.IsRoot() {
			continue
		}
		p := plans[c.ID]
		parent := plans[c.ParentID]
		fmt.Fprintf(&b, "    {\n")
		fmt.Fprintf(&b, "        double i_axial = (%s - %s) / %s;\n", vNowExpr(parent), vNowExpr(p), axialResExpr(p))
		fmt.Fprintf(&b, "        %s += (dt / %s) * i_axial;\n", vNextExpr(p), capExpr(p))
		fmt.Fprintf(&b, "        %s -= (dt / %s) * i_axial;\n", vNextExpr(parent), capExpr(parent))
		fmt.Fprintf(&b, "    }\n")
	}
	return b.String()
}

// genCableSolveBackwardEuler emits the three-pass Thomas-like sweep over
// the precomputed elimination order: build diagonal D[i] = 1 + dt/(R_i
// C_i), forward-eliminate each non-root into its parent, then
// back-substitute from the root outward. Declares its own local D[] array
// sized to the compartment count.
func genCableSolveBackwardEuler(order []int, parent map[int]int, plans map[int]*compartmentPlan) string {
	var b strings.Builder
	n := len(order)
	b.WriteString("    /* backward-Euler axial sweep */\n")
	fmt.Fprintf(&b, "    {\n        double d[%d];\n", n)

	idxOf := map[int]int{}
	for i, id := range order {
		idxOf[id] = i
	}

	for _, id := range order {
		p := plans[id]
		fmt.Fprintf(&b, "        d[%d] = 1.0 + dt / (%s * %s);\n", idxOf[id], axialOrOne(p), capExpr(p))
	}
	for _, id := range order {
		par := parent[id]
		if par == -1 {
			continue
		}
		p := plans[id]
		pp := plans[par]
		fmt.Fprintf(&b, "        %s += (dt / (%s * d[%d])) * %s;\n", vNextExpr(pp), capExpr(p), idxOf[id], vNextExpr(p))
	}
	for i := n - 1; i >= 0; i-- {
		id := order[i]
		p := plans[id]
		fmt.Fprintf(&b, "        %s /= d[%d];\n", vNextExpr(p), idxOf[id])
	}
	b.WriteString("    }\n")
	return b.String()
}

func axialOrOne(p *compartmentPlan) string {
	if p.AxialConst < 0 {
		return "1.0"
	}
	return axialResExpr(p)
}

// genCableSolve dispatches to the configured solver (auto resolves to
// backward Euler, the default per spec).
func genCableSolve(ct *model.CellType, order []int, parent map[int]int, plans map[int]*compartmentPlan, solver config.CableSolver) string {
	if ct.IsPointNeuron() {
		return ""
	}
	switch solver {
	case config.CableSolverForwardEuler:
		return genCableSolveForwardEuler(ct.Compartments, plans)
	default:
		return genCableSolveBackwardEuler(order, parent, plans)
	}
}
