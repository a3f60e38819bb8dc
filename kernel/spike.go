package kernel

import (
	"fmt"
	"strings"
)

// spikeSourcePlan marks one compartment as a threshold-crossing spike
// source; the packed-reference recipient table it delivers into lives on
// the compartment's own compartmentPlan (RecipientsTable), shared with any
// spike-list input targeting the same compartment, since both are just
// different ways a compartment decides "I spiked this step."
type spikeSourcePlan struct {
	CompartmentID int
}

func planSpikeSource(compartmentID int) *spikeSourcePlan {
	return &spikeSourcePlan{CompartmentID: compartmentID}
}

// genSpikeSend emits the threshold-crossing check and atomic-OR spike
// delivery for one spike-sourcing compartment: when V crosses
// V_threshold upward between now and next, every recipient packed
// reference has its trigger entry atomically OR'd with 1, tolerating
// concurrent writes from other presynaptic work items targeting the same
// word.
func genSpikeSend(cplan *compartmentPlan, thresholdExpr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    if (%s < (%s) && (%s) <= %s) {\n", vNowExpr(cplan), thresholdExpr, thresholdExpr, vNextExpr(cplan))
	fmt.Fprintf(&b, "        long rn = const_i64_table_sizes[%d];\n", cplan.RecipientsTable)
	fmt.Fprintf(&b, "        long ro = const_i64_table_work_offset[%d];\n", cplan.RecipientsTable)
	b.WriteString("        for (long ri = 0; ri < rn; ri++) {\n")
	fmt.Fprintf(&b, "            long ref = const_i64_table_ptrs[%d][ro + ri];\n", cplan.RecipientsTable)
	b.WriteString("            eden_atomic_or_trigger(ref, state_i64_next_ptrs, state_i64_table_work_offset);\n")
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	return b.String()
}

// genSpikeListInput emits the scheduled-delivery check for one
// compartment's spike-list input: every recorded spike time (including
// the Instantiator's trailing +Inf sentinel, which simply never matches)
// is tested against the current step's [time, time+dt) window, the same
// one-shot test genPulseInputs uses for pulse onset, and a match delivers
// through the compartment's recipient table exactly like a threshold
// crossing.
func genSpikeListInput(cplan *compartmentPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    {\n")
	fmt.Fprintf(&b, "        long sln = const_f32_table_sizes[%d];\n", cplan.SpikeListTimesTable)
	fmt.Fprintf(&b, "        long slo = const_f32_table_work_offset[%d];\n", cplan.SpikeListTimesTable)
	b.WriteString("        for (long si = 0; si < sln; si++) {\n")
	fmt.Fprintf(&b, "            float t = const_f32_table_ptrs[%d][slo + si];\n", cplan.SpikeListTimesTable)
	b.WriteString("            if (time >= (double)t && time < (double)t + dt) {\n")
	fmt.Fprintf(&b, "                long rn = const_i64_table_sizes[%d];\n", cplan.RecipientsTable)
	fmt.Fprintf(&b, "                long ro = const_i64_table_work_offset[%d];\n", cplan.RecipientsTable)
	b.WriteString("                for (long ri = 0; ri < rn; ri++) {\n")
	fmt.Fprintf(&b, "                    long ref = const_i64_table_ptrs[%d][ro + ri];\n", cplan.RecipientsTable)
	b.WriteString("                    eden_atomic_or_trigger(ref, state_i64_next_ptrs, state_i64_table_work_offset);\n")
	b.WriteString("                }\n")
	b.WriteString("            }\n")
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	return b.String()
}

// atomicOrHelper is the C11 `<stdatomic.h>`-based helper every generated
// file carries to resolve a packed (table, entry) reference against the
// next-state i64 pointer arrays and atomically OR 1 into it. Portable C11
// atomics are used rather than an OpenMP pragma because the compute phase
// here is dispatched across a goroutine pool, not OpenMP threads.
const atomicOrHelper = `
#include <stdatomic.h>

static inline void eden_atomic_or_trigger(long packed_ref, long* const* restrict state_i64_next_ptrs, const long* restrict state_i64_table_work_offset) {
    long table = packed_ref >> 24;
    long entry = packed_ref & 0xFFFFFF;
    long off = state_i64_table_work_offset[table];
    _Atomic long *slot = (_Atomic long *)&state_i64_next_ptrs[table][off + entry];
    atomic_fetch_or_explicit(slot, 1L, memory_order_relaxed);
}

static inline double eden_resolve_f32(long packed_ref, float* const* restrict state_f32_table_ptrs) {
    long table = packed_ref >> 24;
    long entry = packed_ref & 0xFFFFFF;
    return (double)state_f32_table_ptrs[table][entry];
}
`
