package kernel

import (
	"fmt"
	"strings"

	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/units"
)

// compartmentPlan records where one compartment's voltage lives once the
// signature allocator has assigned it a scalar state slot.
type compartmentPlan struct {
	ID         int
	VState     int // scalar state index holding V
	CapConst   int // scalar constant index holding capacitance
	AxialConst int // scalar constant index holding axial resistance to parent (-1 for root)

	// PulseAmpTable/PulseStartTable/PulseDurTable are three parallel
	// const_f32 tables, one row per InputPulse the Instantiator attaches to
	// this compartment: amplitude, onset time, and duration.
	PulseAmpTable   int
	PulseStartTable int
	PulseDurTable   int

	// SpikeListTimesTable is a const_f32 table the Instantiator fills with
	// one InputSpikeList's sorted spike times plus a trailing +Inf
	// sentinel. Every entry is compared against the current step's
	// [time, time+dt) window rather than tracked with a cursor, the same
	// one-shot window test genPulseInputs uses for pulse onset — the +Inf
	// sentinel never falls in any finite window, so it costs nothing but
	// never needs special-casing. Allocated for every compartment
	// regardless of whether a spike-list input ever targets it, the same
	// way the pulse tables above are.
	SpikeListTimesTable int

	// RecipientsTable is the const_i64 packed-reference table every
	// spike this compartment originates (threshold crossing or a
	// scheduled spike-list entry) delivers into, atomically OR'd per
	// §4.3.5. Allocated for every compartment so a spike-list input can
	// drive a projection without the compartment also being declared a
	// threshold-crossing spike source.
	RecipientsTable int
}

// planCompartments allocates one scalar state slot per compartment voltage,
// one scalar constant slot per capacitance/axial-resistance value, and the
// parallel pulse-input and spike-list tables every compartment carries
// (empty until the Instantiator pushes rows), evaluating each
// compartment's constant LEMS expressions into the signature's prototype
// vectors so the Instantiator can copy them verbatim into every instance
// of this cell type.
func planCompartments(sc sig.ScalarAllocator, tabs sig.TableAllocator, comps []model.Compartment) (map[int]*compartmentPlan, error) {
	plans := make(map[int]*compartmentPlan, len(comps))
	for _, c := range comps {
		v0, err := constProtoValue(c.InitialVExpr)
		if err != nil {
			return nil, fmt.Errorf("compartment %d initial voltage: %w", c.ID, err)
		}
		cap, err := constProtoValue(c.CapacitanceExpr)
		if err != nil {
			return nil, fmt.Errorf("compartment %d capacitance: %w", c.ID, err)
		}
		p := &compartmentPlan{
			ID:                  c.ID,
			VState:              sc.StateProto(v0),
			CapConst:            sc.ConstantProto(cap),
			AxialConst:          -1,
			PulseAmpTable:       tabs.ConstF32("pulse_amplitude"),
			PulseStartTable:     tabs.ConstF32("pulse_start"),
			PulseDurTable:       tabs.ConstF32("pulse_duration"),
			SpikeListTimesTable: tabs.ConstF32("spike_list_times"),
			RecipientsTable:     tabs.ConstI64("spike_recipients"),
		}
		if !c.IsRoot() {
			axial, err := constProtoValue(c.AxialResExpr)
			if err != nil {
				return nil, fmt.Errorf("compartment %d axial resistance: %w", c.ID, err)
			}
			p.AxialConst = sc.ConstantProto(axial)
		}
		plans[c.ID] = p
	}
	return plans, nil
}

// constProtoValue evaluates a closed-arithmetic LEMS constant expression,
// already expressed in the engine's native units by the upstream model
// resolver, into a float32 prototype value, defaulting to 0 for an unset
// expression.
func constProtoValue(expr string) (float32, error) {
	return constProtoValueDefault(expr, 0)
}

// constProtoValueDefault is constProtoValue with a caller-chosen default for
// an unset expression (e.g. 1.0 for a Q10 factor, where 0 would silently
// zero out every gate update).
func constProtoValueDefault(expr string, def float32) (float32, error) {
	if strings.TrimSpace(expr) == "" {
		return def, nil
	}
	v, err := units.EvalConstExpr(expr)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// gatePlan records a gate's allocated scalar state slot(s) (its probability
// q, or the kinetic-scheme's per-state occupancies) and constant slot
// (q10), plus the compile-time lowered expressions used to update it each
// step.
type gatePlan struct {
	Gate     model.Gate
	QState   int // HH gate only; -1 for a kinetic-scheme gate
	Q10Const int

	// KineticStates maps every kinetic-scheme state name except
	// Gate.States[0] to its allocated scalar state index. States[0] is the
	// scheme's collapsed state: rather than integrating it directly, it is
	// recomputed every step as 1 minus the sum of the others, so that
	// rounding drift in the explicit states' flux balance cannot push the
	// total occupancy away from 1 (the spec's "probability mass divergence
	// collapses to state 0" rule).
	KineticStates map[string]int
	// OpenState names which kinetic-scheme state's occupancy gates the
	// channel; defaults to the last declared state when the model leaves
	// it unset.
	OpenState string
}

// channelPlan records one channel distribution's allocated slots.
type channelPlan struct {
	Dist          model.ChannelDistribution
	GBarConst     int
	ReversalConst int // used only for ReversalFixed / ReversalPopulation
	Gates         []gatePlan
}

func planChannel(sc sig.ScalarAllocator, dist model.ChannelDistribution) (*channelPlan, error) {
	gbar, err := constProtoValue(dist.GBarExpr)
	if err != nil {
		return nil, fmt.Errorf("channel %s gbar: %w", dist.Name, err)
	}
	cp := &channelPlan{Dist: dist, GBarConst: sc.ConstantProto(gbar), ReversalConst: -1}
	if dist.Reversal == model.ReversalFixed || dist.Reversal == model.ReversalPopulation {
		rev, err := constProtoValue(dist.ReversalExpr)
		if err != nil {
			return nil, fmt.Errorf("channel %s reversal: %w", dist.Name, err)
		}
		cp.ReversalConst = sc.ConstantProto(rev)
	}
	for _, g := range dist.Gates {
		q10, err := constProtoValueDefault(g.Q10Expr, 1.0)
		if err != nil {
			return nil, fmt.Errorf("channel %s gate %s q10: %w", dist.Name, g.Name, err)
		}
		gp := gatePlan{Gate: g, QState: -1, Q10Const: sc.ConstantProto(q10)}
		if g.Kind == model.GateKinetic {
			if len(g.States) < 2 {
				return nil, fmt.Errorf("channel %s gate %s: kinetic scheme needs at least two states", dist.Name, g.Name)
			}
			gp.KineticStates = make(map[string]int, len(g.States)-1)
			for _, name := range g.States[1:] {
				// Every explicit state starts at 0 occupancy; the
				// collapsed state (computed, not integrated) therefore
				// starts at 1, matching the same "settle over the
				// initialization steps" convention as HH gates.
				gp.KineticStates[name] = sc.StateProto(0)
			}
			gp.OpenState = g.OpenState
			if gp.OpenState == "" {
				gp.OpenState = g.States[len(g.States)-1]
			}
		} else {
			// Gate open probability starts at 0 and settles toward its
			// voltage-dependent steady state over the three initialization
			// steps (spec's "initialization by re-execution").
			gp.QState = sc.StateProto(0)
		}
		cp.Gates = append(cp.Gates, gp)
	}
	return cp, nil
}

// genChannel emits the C statements computing one channel distribution's
// contribution to a compartment's internal current, appending to bodies for
// the owning compartment.
func genChannel(cp *channelPlan, sys *units.System) string {
	var b strings.Builder
	gbar := fmt.Sprintf("const_f32_scalar_base[const_f32_work_offset + %d]", cp.GBarConst)
	vVar := "v_now"

	// revExpr is the driving-force term for every reversal-potential kind
	// except GHK/GHK2: those compute a current density directly from the
	// GHK flux equation (ghkCurrent below) rather than an Erev-V ohmic
	// term, since the GHK equation's voltage dependence is nonlinear.
	var revExpr string
	switch cp.Dist.Reversal {
	case model.ReversalFixed, model.ReversalPopulation:
		revExpr = fmt.Sprintf("const_f32_scalar_base[const_f32_work_offset + %d]", cp.ReversalConst)
	case model.ReversalNernst, model.ReversalNernstCa2:
		revExpr = lowerExpr(sys, cp.Dist.ReversalExpr, sys.Native(units.Voltage))
	}

	openProb := "1.0"
	for i, gp := range cp.Gates {
		q10 := fmt.Sprintf("const_f32_scalar_base[const_f32_work_offset + %d]", gp.Q10Const)

		var gateTerm string
		if gp.Gate.Kind == model.GateKinetic {
			gateTerm = genKineticGate(&b, gp, q10, sys)
		} else {
			qNow := fmt.Sprintf("state_f32_scalar_now[state_f32_scalar_work_offset + %d]", gp.QState)
			qNext := fmt.Sprintf("state_f32_scalar_next[state_f32_scalar_work_offset + %d]", gp.QState)

			var tau, inf string
			if gp.Gate.TauExpr != "" || gp.Gate.InfExpr != "" {
				tau = lowerExpr(sys, gp.Gate.TauExpr, sys.Native(units.Time))
				inf = lowerExpr(sys, gp.Gate.InfExpr, units.Unit{Dim: units.Dimensionless, ToSIFactor: 1})
			} else {
				alpha := lowerExpr(sys, gp.Gate.AlphaExpr, units.Unit{Dim: units.Dimensionless, ToSIFactor: 1})
				beta := lowerExpr(sys, gp.Gate.BetaExpr, units.Unit{Dim: units.Dimensionless, ToSIFactor: 1})
				tau = fmt.Sprintf("1.0 / (%s + %s)", alpha, beta)
				inf = fmt.Sprintf("(%s) / (%s + %s)", alpha, alpha, beta)
			}

			fmt.Fprintf(&b, "    /* gate %s */\n", gp.Gate.Name)
			fmt.Fprintf(&b, "    %s = %s + dt * (((%s) - %s) / (%s)) * %s;\n", qNext, qNow, inf, qNow, tau, q10)

			gateTerm = qNow
			if gp.Gate.Power > 1 {
				terms := make([]string, gp.Gate.Power)
				for k := range terms {
					terms[k] = qNow
				}
				gateTerm = strings.Join(terms, " * ")
			}
		}
		if i == 0 {
			openProb = gateTerm
		} else {
			openProb = openProb + " * " + gateTerm
		}
	}

	switch cp.Dist.Reversal {
	case model.ReversalGHK, model.ReversalGHK2:
		ghkCurrent := lowerExpr(sys, cp.Dist.CurrentExpr, sys.Native(units.Current))
		fmt.Fprintf(&b, "    i_internal += (%s) * (%s) * (%s);\n", gbar, openProb, ghkCurrent)
	default:
		fmt.Fprintf(&b, "    i_internal += (%s) * (%s) * ((%s) - %s);\n", gbar, openProb, revExpr, vVar)
	}
	return b.String()
}

// genKineticGate emits a kinetic-scheme gate's flux-balance update: every
// explicit state integrates forward Euler against its net inflow minus
// outflow rate times its own occupancy, and the collapsed state
// (Gate.States[0]) is recomputed each step as the complement of the
// others rather than integrated, so rounding error in the explicit states
// cannot drift total occupancy away from 1. Returns the C expression for
// the gate's open-probability contribution.
func genKineticGate(b *strings.Builder, gp gatePlan, q10 string, sys *units.System) string {
	states := gp.Gate.States
	collapsed := states[0]
	collapsedVar := "q_" + sanitizeIdent(collapsed) + "_now"

	nowVar := func(name string) string {
		if name == collapsed {
			return collapsedVar
		}
		return fmt.Sprintf("state_f32_scalar_now[state_f32_scalar_work_offset + %d]", gp.KineticStates[name])
	}

	fmt.Fprintf(b, "    /* gate %s kinetic */\n", gp.Gate.Name)
	var others []string
	for _, name := range states[1:] {
		others = append(others, nowVar(name))
	}
	fmt.Fprintf(b, "    float %s = 1.0f - (%s);\n", collapsedVar, strings.Join(others, " + "))

	rateDim := units.Unit{Dim: units.Dimensionless, ToSIFactor: 1}
	for _, name := range states[1:] {
		qNow := nowVar(name)
		qNext := fmt.Sprintf("state_f32_scalar_next[state_f32_scalar_work_offset + %d]", gp.KineticStates[name])

		var influx, outRates []string
		for _, t := range gp.Gate.Transitions {
			rate := lowerExpr(sys, t.RateExpr, rateDim)
			if t.To == name {
				influx = append(influx, fmt.Sprintf("(%s) * (%s)", rate, nowVar(t.From)))
			}
			if t.From == name {
				outRates = append(outRates, fmt.Sprintf("(%s)", rate))
			}
		}
		fluxIn := "0.0"
		if len(influx) > 0 {
			fluxIn = strings.Join(influx, " + ")
		}
		outRate := "0.0"
		if len(outRates) > 0 {
			outRate = strings.Join(outRates, " + ")
		}
		fmt.Fprintf(b, "    %s = %s + dt * ((%s) - (%s) * %s) * %s;\n", qNext, qNow, fluxIn, outRate, qNow, q10)
	}

	openVar := nowVar(gp.OpenState)
	if gp.Gate.Power > 1 {
		terms := make([]string, gp.Gate.Power)
		for k := range terms {
			terms[k] = openVar
		}
		return strings.Join(terms, " * ")
	}
	return openVar
}
