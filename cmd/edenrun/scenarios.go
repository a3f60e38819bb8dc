// Scenarios builds the four worked end-to-end models spec.md §8 describes
// numerically (single passive compartment, two-cell gap junction, an
// Hodgkin-Huxley spiking soma, and a delayed chemical synapse), each built
// directly as a resolved model.Model rather than parsed from NeuroML/LEMS
// text — the parser is an external collaborator per spec.md §1, out of
// scope for this harness.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/edensim/eden/model"
)

// passiveCellType returns a single-compartment leaky cell type: one
// compartment carrying exactly one fixed-reversal channel, the building
// block every scenario here that doesn't need spiking or an explicit
// multi-gate channel reuses.
func passiveCellType(name string, capNF, gLeakUS, eLeakMV, v0MV float64) *model.CellType {
	return &model.CellType{
		Name: name,
		Compartments: []model.Compartment{{
			ID: 0, ParentID: -1,
			Length: 20, Diameter: 20,
			CapacitanceExpr: fmt.Sprintf("%g", capNF),
			InitialVExpr:    fmt.Sprintf("%g", v0MV),
		}},
		Channels: []model.ChannelDistribution{{
			Name: "Leak", CompartmentID: 0, ChannelType: "leak",
			GBarExpr: fmt.Sprintf("%g", gLeakUS),
			Reversal: model.ReversalFixed, ReversalExpr: fmt.Sprintf("%g", eLeakMV),
		}},
	}
}

func somaPoint(pop string) model.PointOnCell {
	return model.PointOnCell{Population: pop, CellInstance: 0, Segment: 0, FractionAlong: 0.5}
}

func vColumn(id string, p model.PointOnCell) model.DataWriterColumn {
	return model.DataWriterColumn{ColumnID: id, Target: p, UnitName: "mV"}
}

// scenarioPassivePulse is spec.md §8 scenario 1: one passive compartment,
// C=1nF, a single leak channel g=0.1uS/E=-70mV, V0=-70mV, driven by a
// 0.1nA/50ms current pulse starting at 10ms. Expect V to approach -69mV
// with a 10ms time constant.
func scenarioPassivePulse(workDir string) *model.Model {
	ct := passiveCellType("PassiveSoma", 1, 0.1, -70, -70)
	point := somaPoint("Soma")
	return &model.Model{
		CellTypes:   map[string]*model.CellType{ct.Name: ct},
		Populations: []model.Population{{Name: "Soma", CellType: ct.Name, Size: 1}},
		Inputs: []model.Input{{
			Target: point, Kind: model.InputPulse,
			PulseAmplitudeExpr: "0.1", PulseStart: 10, PulseDuration: 50,
		}},
		DataWriters: []model.DataWriter{{
			ID: "v", Path: filepath.Join(workDir, "passive_pulse_v.dat"),
			Columns: []model.DataWriterColumn{vColumn("V", point)},
		}},
		SimulationSeed: 1, Dt: 0.01, TFinal: 100,
		SynapseTypes: map[string]*model.SynapseType{},
	}
}

// scenarioGapJunction is spec.md §8 scenario 2: two identical passive
// cells (same parameters as scenarioPassivePulse), CellA held near -50mV
// by a continuous 2nA injection (I/g = 2/0.1 = 20mV above the -70mV rest
// potential), CellB at rest, coupled by a single linear gap junction
// G=0.05uS (instantiated as the reciprocal resistance, 20 MOhm, per the
// kernel's Ohm's-law gap-junction convention — see DESIGN.md).
func scenarioGapJunction(workDir string) *model.Model {
	ctA := passiveCellType("GapCellA", 1, 0.1, -70, -70)
	ctB := passiveCellType("GapCellB", 1, 0.1, -70, -70)
	pointA := somaPoint("CellA")
	pointB := somaPoint("CellB")
	const gapResistanceMOhm = "20" // 1 / (G=0.05 uS)
	return &model.Model{
		CellTypes: map[string]*model.CellType{ctA.Name: ctA, ctB.Name: ctB},
		Populations: []model.Population{
			{Name: "CellA", CellType: ctA.Name, Size: 1},
			{Name: "CellB", CellType: ctB.Name, Size: 1},
		},
		Inputs: []model.Input{{
			Target: pointA, Kind: model.InputPulse,
			PulseAmplitudeExpr: "2", PulseStart: 0, PulseDuration: 1000,
		}},
		Projections: []model.Projection{
			{Pre: pointA, Post: pointB, Synapse: "GapJ", WeightExpr: gapResistanceMOhm},
			{Pre: pointB, Post: pointA, Synapse: "GapJ", WeightExpr: gapResistanceMOhm},
		},
		SynapseTypes: map[string]*model.SynapseType{
			"GapJ": {Name: "GapJ", Kind: model.SynapseGapJunction},
		},
		DataWriters: []model.DataWriter{{
			ID: "v", Path: filepath.Join(workDir, "gap_junction_v.dat"),
			Columns: []model.DataWriterColumn{vColumn("VA", pointA), vColumn("VB", pointB)},
		}},
		SimulationSeed: 1, Dt: 0.01, TFinal: 200,
	}
}

// hhGate builds a classical Hodgkin-Huxley alpha/beta gate (mV, 1/ms),
// written directly against the generated kernel's "v_now" variable per
// the kernel emitter's gate-expression contract.
func hhGate(name string, power int, alpha, beta string) model.Gate {
	return model.Gate{Name: name, Kind: model.GateHH, Power: power, AlphaExpr: alpha, BetaExpr: beta}
}

// scenarioHHSpiking is spec.md §8 scenario 3: a classical Hodgkin-Huxley
// soma (Na/K/leak conductances, standard gating kinetics) injected with a
// 0.2nA step, expected to fire repetitively.
func scenarioHHSpiking(workDir string) *model.Model {
	ct := &model.CellType{
		Name: "HHSoma",
		Compartments: []model.Compartment{{
			ID: 0, ParentID: -1, Length: 20, Diameter: 20,
			CapacitanceExpr: "1", InitialVExpr: "-65",
		}},
		Channels: []model.ChannelDistribution{
			{
				Name: "NaChan", CompartmentID: 0, ChannelType: "na",
				GBarExpr: "20", Reversal: model.ReversalFixed, ReversalExpr: "50",
				Gates: []model.Gate{
					hhGate("m", 3,
						"0.1*(v_now+40.0)/(1.0-exp(-(v_now+40.0)/10.0))",
						"4.0*exp(-(v_now+65.0)/18.0)"),
					hhGate("h", 1,
						"0.07*exp(-(v_now+65.0)/20.0)",
						"1.0/(1.0+exp(-(v_now+35.0)/10.0))"),
				},
			},
			{
				Name: "KChan", CompartmentID: 0, ChannelType: "k",
				GBarExpr: "6", Reversal: model.ReversalFixed, ReversalExpr: "-77",
				Gates: []model.Gate{
					hhGate("n", 4,
						"0.01*(v_now+55.0)/(1.0-exp(-(v_now+55.0)/10.0))",
						"0.125*exp(-(v_now+65.0)/80.0)"),
				},
			},
			{
				Name: "Leak", CompartmentID: 0, ChannelType: "leak",
				GBarExpr: "0.05", Reversal: model.ReversalFixed, ReversalExpr: "-54.3",
			},
		},
		SpikeThreshold:          -20,
		SpikeSourceCompartments: []int{0},
	}
	point := somaPoint("HHCell")
	return &model.Model{
		CellTypes:   map[string]*model.CellType{ct.Name: ct},
		Populations: []model.Population{{Name: "HHCell", CellType: ct.Name, Size: 1}},
		Inputs: []model.Input{{
			Target: point, Kind: model.InputPulse,
			PulseAmplitudeExpr: "0.2", PulseStart: 10, PulseDuration: 100,
		}},
		DataWriters: []model.DataWriter{{
			ID: "v", Path: filepath.Join(workDir, "hh_spiking_v.dat"),
			Columns: []model.DataWriterColumn{vColumn("V", point)},
		}},
		SimulationSeed: 1, Dt: 0.01, TFinal: 150,
		SynapseTypes: map[string]*model.SynapseType{},
	}
}

// scenarioChemicalSynapse is spec.md §8 scenario 4: a spiking presynaptic
// source firing at 10/20/30ms, driven directly by an InputSpikeList rather
// than a pulse crossing a threshold, through an exponential synapse:
// gbase=0.001uS, tau=2ms, delay=2ms.
func scenarioChemicalSynapse(workDir string) *model.Model {
	pre := &model.CellType{
		Name: "SpikeSource",
		Compartments: []model.Compartment{{
			ID: 0, ParentID: -1, Length: 10, Diameter: 10,
			CapacitanceExpr: "0.1", InitialVExpr: "-70",
		}},
		Channels: []model.ChannelDistribution{{
			Name: "Leak", CompartmentID: 0, ChannelType: "leak",
			GBarExpr: "0.01", Reversal: model.ReversalFixed, ReversalExpr: "-70",
		}},
		SpikeThreshold:          -50,
		SpikeSourceCompartments: []int{0},
	}
	post := passiveCellType("PostCell", 1, 0.1, -70, -70)

	prePoint := somaPoint("Pre")
	postPoint := somaPoint("Post")

	inputs := []model.Input{{
		Target: prePoint, Kind: model.InputSpikeList,
		SpikeTimes: []float64{10, 20, 30},
	}}

	return &model.Model{
		CellTypes: map[string]*model.CellType{pre.Name: pre, post.Name: post},
		Populations: []model.Population{
			{Name: "Pre", CellType: pre.Name, Size: 1},
			{Name: "Post", CellType: post.Name, Size: 1},
		},
		Inputs: inputs,
		Projections: []model.Projection{
			{Pre: prePoint, Post: postPoint, Synapse: "ExcSyn", WeightExpr: "0.001", DelayExpr: "2"},
		},
		SynapseTypes: map[string]*model.SynapseType{
			"ExcSyn": {Name: "ExcSyn", Kind: model.SynapseChemical, DecayTauExpr: "2", ReversalExpr: "0", DelayDefault: 2},
		},
		DataWriters: []model.DataWriter{{
			ID: "v", Path: filepath.Join(workDir, "chemical_synapse_v.dat"),
			Columns: []model.DataWriterColumn{vColumn("VPre", prePoint), vColumn("VPost", postPoint)},
		}},
		SimulationSeed: 1, Dt: 0.01, TFinal: 50,
	}
}

// scenarios maps every recognized -scenario name to its builder.
var scenarios = map[string]func(workDir string) *model.Model{
	"passive_pulse":    scenarioPassivePulse,
	"gap_junction":     scenarioGapJunction,
	"hh_spiking":       scenarioHHSpiking,
	"chemical_synapse": scenarioChemicalSynapse,
}

func buildScenario(name, workDir string) (*model.Model, error) {
	b, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("edenrun: unknown scenario %q", name)
	}
	return b(workDir), nil
}
