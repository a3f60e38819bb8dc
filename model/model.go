// Package model holds the resolved NeuroML/LEMS model that the Signature
// Builder, Kernel Emitter, and Instantiator consume: cell types built from
// compartments and channel distributions, and the network-level populations,
// projections, inputs, and data writers that connect instances of them.
package model

import "fmt"

// ReversalKind names how a channel distribution's reversal potential is
// computed.
type ReversalKind int

const (
	ReversalFixed ReversalKind = iota
	ReversalNernst
	ReversalNernstCa2
	ReversalGHK
	ReversalGHK2
	ReversalPopulation
)

func (k ReversalKind) String() string {
	switch k {
	case ReversalFixed:
		return "fixed"
	case ReversalNernst:
		return "nernst"
	case ReversalNernstCa2:
		return "nernst_ca2"
	case ReversalGHK:
		return "ghk"
	case ReversalGHK2:
		return "ghk2"
	case ReversalPopulation:
		return "population"
	default:
		return "unknown"
	}
}

// GateKind distinguishes an HH-style tau/inf gate from a kinetic-scheme
// multi-state gate.
type GateKind int

const (
	GateHH GateKind = iota
	GateKinetic
)

// Gate is one gating variable of a channel distribution.
type Gate struct {
	Name  string
	Kind  GateKind
	Power int // exponent the gate's open probability is raised to

	// HH gate: either Tau/Inf are given directly, or Alpha/Beta expressions
	// are given and tau = 1/(alpha+beta), inf = alpha/(alpha+beta).
	TauExpr   string
	InfExpr   string
	AlphaExpr string
	BetaExpr  string
	Q10Expr   string

	// Kinetic scheme gate: explicit state names and the instantaneous
	// transition rate expression between ordered pairs of them. OpenState
	// names which state's occupancy contributes to the channel's open
	// probability.
	States      []string
	Transitions []KineticTransition
	OpenState   string
}

// KineticTransition is one directed rate between two named states of a
// kinetic-scheme gate.
type KineticTransition struct {
	From, To string
	RateExpr string
}

// ChannelDistribution is one ion channel placed on one compartment of a
// cell type, with its maximal conductance density and reversal potential
// rule.
type ChannelDistribution struct {
	Name          string
	CompartmentID int
	ChannelType   string
	GBarExpr      string
	Reversal      ReversalKind
	// ReversalExpr is a pre-resolved LEMS expression for the distribution's
	// reversal potential, already written against the generated kernel's
	// voltage variable: a literal for Fixed/Population, the resolved
	// Nernst equation for Nernst/NernstCa2. Unused for GHK/GHK2, whose
	// current comes from CurrentExpr instead of an Erev-based ohmic term.
	ReversalExpr string
	IonSpecies   string // used when Reversal is Nernst/NernstCa2/GHK/GHK2
	// CurrentExpr is the pre-resolved Goldman-Hodgkin-Katz current-density
	// expression (permeability and concentration terms folded in,
	// expressed in the kernel's voltage variable), used only when Reversal
	// is GHK or GHK2: the GHK flux equation is nonlinear in voltage and
	// does not reduce to gbar*(Erev-V).
	CurrentExpr string
	Gates       []Gate
}

// Compartment is one cylindrical segment of a multi-compartment cell's
// morphology.
type Compartment struct {
	ID              int
	ParentID        int // -1 for the root (somatic) compartment
	Length          float64
	Diameter        float64
	CapacitanceExpr string
	AxialResExpr    string
	InitialVExpr    string // resting membrane voltage; defaults to "0" if empty
}

// IsRoot reports whether this compartment has no parent.
func (c Compartment) IsRoot() bool { return c.ParentID < 0 }

// SynapseKind distinguishes a chemical synapse (delay-line spike delivery,
// postsynaptic conductance waveform) from an electrical gap junction
// (direct peer-voltage coupling, no spike delay).
type SynapseKind int

const (
	SynapseChemical SynapseKind = iota
	SynapseGapJunction
)

// SynapseType is a reusable synaptic mechanism definition referenced by
// projections.
type SynapseType struct {
	Name          string
	Kind          SynapseKind
	RiseTauExpr   string
	DecayTauExpr  string
	ReversalExpr  string
	DelayDefault  float64
	GapConductExpr string
}

// CellType is one compiled unit: either a physical multi-compartment cell
// (more than one entry in Compartments) or a point neuron (at most one
// compartment, conventionally ID 0).
type CellType struct {
	Name          string
	Compartments  []Compartment
	Channels      []ChannelDistribution
	SpikeThreshold float64
	// SpikeSourceCompartments lists which compartment IDs can originate a
	// projection (their membrane voltage is compared to SpikeThreshold).
	SpikeSourceCompartments []int
}

// Compartment looks up a compartment by id, or panics — a malformed model
// reference here is a construction-time programming error, not a runtime
// condition callers are expected to recover from.
func (c *CellType) Compartment(id int) *Compartment {
	for i := range c.Compartments {
		if c.Compartments[i].ID == id {
			return &c.Compartments[i]
		}
	}
	panic(fmt.Sprintf("model: cell type %q has no compartment %d", c.Name, id))
}

// IsPointNeuron reports whether this cell type has no cable structure.
func (c *CellType) IsPointNeuron() bool { return len(c.Compartments) <= 1 }

// PointOnCell addresses a point on a membrane for synapses, gap junctions,
// and logging: a population, the cell instance within it, the segment
// (compartment) within the cell, and the fractional position along that
// segment.
type PointOnCell struct {
	Population    string
	CellInstance  int
	Segment       int
	FractionAlong float64
}

func (p PointOnCell) String() string {
	return fmt.Sprintf("%s[%d]/%d@%.3f", p.Population, p.CellInstance, p.Segment, p.FractionAlong)
}

// Population is a homogeneous group of Size instances of CellType.
type Population struct {
	Name     string
	CellType string
	Size     int
}

// InputKind distinguishes the supported external-input waveforms.
type InputKind int

const (
	InputPulse InputKind = iota
	InputSpikeList
	InputComponent
)

// Input is one external drive applied to a point on a cell.
type Input struct {
	Target PointOnCell
	Kind   InputKind

	// InputPulse
	PulseAmplitudeExpr string
	PulseStart         float64
	PulseDuration      float64

	// InputSpikeList: explicit spike times, terminated implicitly by a
	// +Inf sentinel appended at instantiation time.
	SpikeTimes []float64

	// InputComponent: an arbitrary LEMS component instance's parameter
	// values, keyed by parameter name.
	ComponentType   string
	ComponentParams map[string]float64
}

// Projection connects one presynaptic point to one postsynaptic point
// through a named synapse type.
type Projection struct {
	Pre, Post  PointOnCell
	Synapse    string
	WeightExpr string
	DelayExpr  string
}

// DataWriterColumn is one logged quantity: the point it reads and the unit
// the log file reports it in.
type DataWriterColumn struct {
	ColumnID string
	Target   PointOnCell
	UnitName string
}

// DataWriter is one trajectory logger: an output path and its columns.
type DataWriter struct {
	ID      string
	Path    string
	Columns []DataWriterColumn
}

// Model is the fully resolved network: cell type definitions plus the
// populations, projections, inputs, and data writers built from them.
type Model struct {
	CellTypes   map[string]*CellType
	Populations []Population
	Projections []Projection
	Inputs      []Input
	DataWriters []DataWriter

	SimulationSeed int64
	Dt             float64
	TFinal         float64
	SynapseTypes   map[string]*SynapseType
}

// PopulationCellType looks up a population's cell type definition, or panics.
func (m *Model) PopulationCellType(pop *Population) *CellType {
	ct, ok := m.CellTypes[pop.CellType]
	if !ok {
		panic(fmt.Sprintf("model: population %q references unknown cell type %q", pop.Name, pop.CellType))
	}
	return ct
}

// Population looks up a population by name, or panics.
func (m *Model) Population(name string) *Population {
	for i := range m.Populations {
		if m.Populations[i].Name == name {
			return &m.Populations[i]
		}
	}
	panic(fmt.Sprintf("model: no population named %q", name))
}
