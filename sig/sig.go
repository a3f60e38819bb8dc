// Package sig builds the per-cell-type Work Item Signature: an abstract
// layout describing how many scalar constants and scalar state values a
// cell type needs, which const/state tables it needs in each of the four
// families, how its compartments are grouped for code generation, and the
// elimination order its cable solver sweeps in. A signature carries no
// instance data — the Instantiator applies it to real tables once per
// population member.
package sig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/edensim/eden/model"
)

// TableSlot is one table allocated within a signature, identified by a
// human-readable name for diagnostics and the order it was allocated in
// (which becomes its table index once the Instantiator opens a work item).
type TableSlot struct {
	Name  string
	Index int
}

// WorkItemSignature is the abstract per-cell-type layout: how many scalar
// constants/state entries the cell needs, and which tables it needs in
// each of the four families.
type WorkItemSignature struct {
	CellType string

	NumScalarConstants int
	NumScalarState     int

	// RNGSeedConst is the scalar constant index holding this work item's
	// mixed RNG seed, allocated once per signature so the Instantiator
	// always knows where to write it regardless of what else the cell
	// type's kernel allocates.
	RNGSeedConst int

	ConstF32Tables []TableSlot
	ConstI64Tables []TableSlot
	StateF32Tables []TableSlot
	StateI64Tables []TableSlot

	RandomCalls int

	Grouping   CompartmentGrouping
	ElimOrder  []int
	ParentList map[int]int

	// ConstProto/StateProto hold the per-cell-type prototype numeric value
	// for each allocated scalar constant/state slot, as evaluated and
	// unit-converted by the Kernel Emitter while it walks the cell type's
	// compartments and channel distributions. Every instance of this cell
	// type starts from an identical copy of these vectors; the Instantiator
	// overwrites only RNGSeedConst per instance.
	ConstProto []float32
	StateProto []float32

	// CompartmentVState maps a compartment id to the scalar state index
	// holding its voltage, so the Instantiator can resolve a PointOnCell
	// into a packed reference for gap-junction peer coupling and trajectory
	// logging.
	CompartmentVState map[int]int

	// SpikeRecipientsTable maps every compartment id to the const_i64 table
	// the Kernel Emitter reserved for its recipient packed-reference list;
	// the Instantiator and Domain Decomposer append one entry per
	// downstream synapse or outgoing MPI mirror. Populated for every
	// compartment, not just ones declared a threshold-crossing spike
	// source, since a spike-list input can drive a projection from any of
	// them.
	SpikeRecipientsTable map[int]int

	// ChemicalSynapse and GapJunction record the table slots the Kernel
	// Emitter reserved for this cell type's one chemical-synapse and one
	// gap-junction endpoint family, so the Instantiator knows where to push
	// per-projection-instance rows.
	ChemicalSynapse SynapseTables
	GapJunction     SynapseTables
}

// SynapseTables names the table slots one synapse-endpoint family occupies.
// A field holding -1 means that family's kind does not use it (a gap
// junction has no GState/TriggerTable/NextSpikeTable; a chemical synapse
// has no PeerVTable).
type SynapseTables struct {
	WeightTable    int
	DelayTable     int
	GState         int
	TriggerTable   int
	NextSpikeTable int
	PeerVTable     int
	DecayTauTable  int // const_f32, chemical synapse only: postsynaptic conductance decay time constant
}

// New returns an empty signature for the named cell type.
func New(cellType string) *WorkItemSignature {
	return &WorkItemSignature{CellType: cellType, ParentList: map[int]int{}}
}

// ScalarAllocator hands out scalar constant/state slots. It is a thin
// builder over a signature — per-cell-type, reused across every instance
// of that type — not over a tables.Set directly.
type ScalarAllocator struct {
	sig *WorkItemSignature
}

// Scalars returns the scalar allocator for sig.
func (s *WorkItemSignature) Scalars() ScalarAllocator {
	return ScalarAllocator{sig: s}
}

// Constant allocates one scalar constant slot and returns its index within
// the work item's constants slice.
func (a ScalarAllocator) Constant() int {
	idx := a.sig.NumScalarConstants
	a.sig.NumScalarConstants++
	return idx
}

// State allocates one scalar state slot and returns its index within the
// work item's state slice.
func (a ScalarAllocator) State() int {
	idx := a.sig.NumScalarState
	a.sig.NumScalarState++
	return idx
}

// setConstProto grows ConstProto as needed and records idx's prototype
// value.
func (s *WorkItemSignature) setConstProto(idx int, v float32) {
	for len(s.ConstProto) <= idx {
		s.ConstProto = append(s.ConstProto, 0)
	}
	s.ConstProto[idx] = v
}

// setStateProto grows StateProto as needed and records idx's prototype
// value.
func (s *WorkItemSignature) setStateProto(idx int, v float32) {
	for len(s.StateProto) <= idx {
		s.StateProto = append(s.StateProto, 0)
	}
	s.StateProto[idx] = v
}

// ConstantProto allocates a scalar constant slot the same way Constant
// does, and additionally records its prototype numeric value (already
// converted to native units by the caller) so the Instantiator can copy it
// into every instance of this cell type without re-deriving it.
func (a ScalarAllocator) ConstantProto(v float32) int {
	idx := a.Constant()
	a.sig.setConstProto(idx, v)
	return idx
}

// StateProto allocates a scalar state slot and records its prototype
// initial value, the state-side counterpart to ConstantProto.
func (a ScalarAllocator) StateProto(v float32) int {
	idx := a.State()
	a.sig.setStateProto(idx, v)
	return idx
}

// TableFamily names which of the four table families a TableAllocator call
// targets.
type TableFamily int

const (
	TableConstF32 TableFamily = iota
	TableConstI64
	TableStateF32
	TableStateI64
)

// TableAllocator hands out tables within a signature, one per call to the
// matching method. Used for per-synapse, per-input, per-ion-channel
// distribution state — anything that can occur more than once per cell.
type TableAllocator struct {
	sig *WorkItemSignature
}

// Tables returns the table allocator for sig.
func (s *WorkItemSignature) Tables() TableAllocator {
	return TableAllocator{sig: s}
}

func (a TableAllocator) alloc(family TableFamily, name string) int {
	switch family {
	case TableConstF32:
		idx := len(a.sig.ConstF32Tables)
		a.sig.ConstF32Tables = append(a.sig.ConstF32Tables, TableSlot{Name: name, Index: idx})
		return idx
	case TableConstI64:
		idx := len(a.sig.ConstI64Tables)
		a.sig.ConstI64Tables = append(a.sig.ConstI64Tables, TableSlot{Name: name, Index: idx})
		return idx
	case TableStateF32:
		idx := len(a.sig.StateF32Tables)
		a.sig.StateF32Tables = append(a.sig.StateF32Tables, TableSlot{Name: name, Index: idx})
		return idx
	case TableStateI64:
		idx := len(a.sig.StateI64Tables)
		a.sig.StateI64Tables = append(a.sig.StateI64Tables, TableSlot{Name: name, Index: idx})
		return idx
	default:
		panic("sig: unknown TableFamily")
	}
}

// ConstF32 allocates a new const_f32 table, named for diagnostics.
func (a TableAllocator) ConstF32(name string) int { return a.alloc(TableConstF32, name) }

// ConstI64 allocates a new const_i64 table.
func (a TableAllocator) ConstI64(name string) int { return a.alloc(TableConstI64, name) }

// StateF32 allocates a new state_f32 table.
func (a TableAllocator) StateF32(name string) int { return a.alloc(TableStateF32, name) }

// StateI64 allocates a new state_i64 table.
func (a TableAllocator) StateI64(name string) int { return a.alloc(TableStateI64, name) }

// GroupingKind distinguishes the two compartment code-generation
// strategies the Builder may choose between.
type GroupingKind int

const (
	Flat GroupingKind = iota
	Grouped
)

// flatThreshold is the compartment count below which compartments are
// emitted inline rather than grouped and looped over.
const flatThreshold = 10

// CompartmentGroup is one set of compartments whose generated bodies are
// byte-identical, executed via a loop over Members rather than repeated
// inline code.
type CompartmentGroup struct {
	Body    string
	Members []int
}

// CompartmentGrouping is the Builder's decision for how a cell type's
// compartments are emitted: FLAT (inline, no loop) or GROUPED (deduplicated
// by generated-body content hash, looped).
type CompartmentGrouping struct {
	Kind   GroupingKind
	Groups []CompartmentGroup
}

// BuildCompartmentGrouping decides FLAT vs GROUPED for a cell type with the
// given number of compartments, and — when GROUPED — groups compartments by
// the content hash of their generated body text. bodies maps compartment id
// to its generated source fragment; every compartment id must have an
// entry.
func BuildCompartmentGrouping(compartmentIDs []int, bodies map[int]string) CompartmentGrouping {
	if len(compartmentIDs) < flatThreshold {
		return CompartmentGrouping{Kind: Flat}
	}

	byHash := map[string]*CompartmentGroup{}
	var order []string
	for _, id := range compartmentIDs {
		body, ok := bodies[id]
		if !ok {
			panic(fmt.Sprintf("sig: no generated body recorded for compartment %d", id))
		}
		h := contentHash(body)
		g, exists := byHash[h]
		if !exists {
			g = &CompartmentGroup{Body: body}
			byHash[h] = g
			order = append(order, h)
		}
		g.Members = append(g.Members, id)
	}

	groups := make([]CompartmentGroup, 0, len(order))
	for _, h := range order {
		groups = append(groups, *byHash[h])
	}
	return CompartmentGrouping{Kind: Grouped, Groups: groups}
}

// contentHash returns a hex content hash of body, used purely to dedupe
// identical generated fragments — not a security digest.
func contentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// BackwardEulerOrder computes the DFS post-order elimination order and
// parent map over a cell type's compartment adjacency tree, used by the
// cable solver's Thomas-like sweep: every non-root compartment is
// forward-eliminated into its parent in order, then the solution is
// back-substituted from the root outward.
func BackwardEulerOrder(compartments []model.Compartment) (order []int, parent map[int]int) {
	children := map[int][]int{}
	parent = map[int]int{}
	var root = -1
	for _, c := range compartments {
		parent[c.ID] = c.ParentID
		if c.IsRoot() {
			if root != -1 {
				panic("sig: cell type has more than one root compartment")
			}
			root = c.ID
		} else {
			children[c.ParentID] = append(children[c.ParentID], c.ID)
		}
	}
	if root == -1 {
		panic("sig: cell type has no root compartment")
	}
	for _, kids := range children {
		sort.Ints(kids)
	}

	order = make([]int, 0, len(compartments))
	var visit func(id int)
	visit = func(id int) {
		for _, child := range children[id] {
			visit(child)
		}
		order = append(order, id)
	}
	visit(root)
	return order, parent
}
