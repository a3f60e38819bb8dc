// Package tables implements the flat data plane shared by every compiled
// cell type: four table families (const_f32, const_i64, state_f32,
// state_i64), two singular flat scalar vectors aliased into the table
// families, and the six per-work-item index vectors recording each work
// item's slice offsets.
package tables

import "fmt"

// F32Table and I64Table are one variable-length table belonging to the
// const_f32/const_i64/state_f32/state_i64 families.
type F32Table []float32
type I64Table []int64

// WorkItemHandle identifies the work item currently being appended to.
// Obtained from BeginWorkItem and passed to every Append* call for that
// work item; using a handle from an earlier work item is a programming
// error and panics.
type WorkItemHandle struct {
	set *Set
	idx int
}

// Set is the append-only construction side of the flat data plane, used by
// the Instantiator (applying each cell type's signature layout and
// populating per-instance values). Once construction completes, Finalize()
// produces the reserved global-scalar table aliases and the Set is ready
// for the engine's double buffer to be built over it for iteration.
type Set struct {
	GlobalConstants    []float32
	GlobalInitialState []float32

	ConstF32 []F32Table
	ConstI64 []I64Table
	StateF32 []F32Table
	StateI64 []I64Table

	ConstF32Index      []int64
	StateF32Index      []int64
	TableConstF32Index []int64
	TableConstI64Index []int64
	TableStateF32Index []int64
	TableStateI64Index []int64

	GlobalConstTabref int
	GlobalStateTabref int

	curWorkItem int
	open        bool
	finalized   bool
}

// New returns an empty table set. GlobalConstTabref/GlobalStateTabref are
// unset (-1) until Finalize is called.
func New() *Set {
	return &Set{GlobalConstTabref: -1, GlobalStateTabref: -1}
}

// BeginWorkItem closes out the previous work item's slice (if any) and
// opens a new one, recording its starting offsets into all six index
// vectors. It must be called once per work item, in work-item-index order.
func (s *Set) BeginWorkItem() WorkItemHandle {
	if s.finalized {
		panic("tables: BeginWorkItem called after Finalize")
	}
	s.ConstF32Index = append(s.ConstF32Index, int64(len(s.GlobalConstants)))
	s.StateF32Index = append(s.StateF32Index, int64(len(s.GlobalInitialState)))
	s.TableConstF32Index = append(s.TableConstF32Index, int64(len(s.ConstF32)))
	s.TableConstI64Index = append(s.TableConstI64Index, int64(len(s.ConstI64)))
	s.TableStateF32Index = append(s.TableStateF32Index, int64(len(s.StateF32)))
	s.TableStateI64Index = append(s.TableStateI64Index, int64(len(s.StateI64)))
	s.curWorkItem = len(s.ConstF32Index) - 1
	s.open = true
	return WorkItemHandle{set: s, idx: s.curWorkItem}
}

func (s *Set) checkHandle(w WorkItemHandle) {
	if w.set != s {
		panic("tables: work item handle belongs to a different Set")
	}
	if !s.open || w.idx != s.curWorkItem {
		panic("tables: cannot append to a work item whose slice is already closed")
	}
}

// AppendScalarConstant appends a value to the flat constants vector within
// the current work item's slice and returns its scalar index.
func (s *Set) AppendScalarConstant(w WorkItemHandle, v float32) int {
	s.checkHandle(w)
	idx := len(s.GlobalConstants)
	s.GlobalConstants = append(s.GlobalConstants, v)
	return idx
}

// AppendScalarState appends an initial value to the flat state vector
// within the current work item's slice and returns its scalar index.
func (s *Set) AppendScalarState(w WorkItemHandle, initial float32) int {
	s.checkHandle(w)
	idx := len(s.GlobalInitialState)
	s.GlobalInitialState = append(s.GlobalInitialState, initial)
	return idx
}

// AppendTableConstantF32 allocates a new, initially-empty const_f32 table
// within the current work item's slice and returns its table index.
func (s *Set) AppendTableConstantF32(w WorkItemHandle) int {
	s.checkHandle(w)
	idx := len(s.ConstF32)
	s.ConstF32 = append(s.ConstF32, F32Table{})
	return idx
}

// AppendTableConstantI64 allocates a new const_i64 table.
func (s *Set) AppendTableConstantI64(w WorkItemHandle) int {
	s.checkHandle(w)
	idx := len(s.ConstI64)
	s.ConstI64 = append(s.ConstI64, I64Table{})
	return idx
}

// AppendTableStateF32 allocates a new state_f32 table.
func (s *Set) AppendTableStateF32(w WorkItemHandle) int {
	s.checkHandle(w)
	idx := len(s.StateF32)
	s.StateF32 = append(s.StateF32, F32Table{})
	return idx
}

// AppendTableStateI64 allocates a new state_i64 table.
func (s *Set) AppendTableStateI64(w WorkItemHandle) int {
	s.checkHandle(w)
	idx := len(s.StateI64)
	s.StateI64 = append(s.StateI64, I64Table{})
	return idx
}

// PushF32 grows a const_f32 or state_f32 table by one entry, returning the
// new entry's index within that table. family selects which family table
// belongs to.
type F32Family int

const (
	FamilyConstF32 F32Family = iota
	FamilyStateF32
)

func (s *Set) PushF32(family F32Family, table int, v float32) int {
	tbl := s.f32Table(family, table)
	*tbl = append(*tbl, v)
	return len(*tbl) - 1
}

func (s *Set) f32Table(family F32Family, table int) *F32Table {
	switch family {
	case FamilyConstF32:
		if table < 0 || table >= len(s.ConstF32) {
			panic(fmt.Sprintf("tables: const_f32 table index %d out of range (%d tables)", table, len(s.ConstF32)))
		}
		return &s.ConstF32[table]
	case FamilyStateF32:
		if table < 0 || table >= len(s.StateF32) {
			panic(fmt.Sprintf("tables: state_f32 table index %d out of range (%d tables)", table, len(s.StateF32)))
		}
		return &s.StateF32[table]
	default:
		panic("tables: unknown F32Family")
	}
}

type I64Family int

const (
	FamilyConstI64 I64Family = iota
	FamilyStateI64
)

// PushI64 grows a const_i64 or state_i64 table by one entry, returning the
// new entry's index within that table.
func (s *Set) PushI64(family I64Family, table int, v int64) int {
	tbl := s.i64Table(family, table)
	*tbl = append(*tbl, v)
	return len(*tbl) - 1
}

func (s *Set) i64Table(family I64Family, table int) *I64Table {
	switch family {
	case FamilyConstI64:
		if table < 0 || table >= len(s.ConstI64) {
			panic(fmt.Sprintf("tables: const_i64 table index %d out of range (%d tables)", table, len(s.ConstI64)))
		}
		return &s.ConstI64[table]
	case FamilyStateI64:
		if table < 0 || table >= len(s.StateI64) {
			panic(fmt.Sprintf("tables: state_i64 table index %d out of range (%d tables)", table, len(s.StateI64)))
		}
		return &s.StateI64[table]
	default:
		panic("tables: unknown I64Family")
	}
}

// CheckParallel enforces that parallel table families (e.g. the "weight"
// and "delay" tables of the same synapse population) always have equal
// length.
func (s *Set) CheckParallel(tables ...int) error {
	if len(tables) < 2 {
		return nil
	}
	first := len(s.ConstF32[tables[0]])
	for _, t := range tables[1:] {
		if len(s.ConstF32[t]) != first {
			return fmt.Errorf("tables: parallel table length mismatch: table %d has %d entries, table %d has %d",
				tables[0], first, t, len(s.ConstF32[t]))
		}
	}
	return nil
}

// Finalize allocates the reserved global_const_tabref / global_state_tabref
// table slots aliasing GlobalConstants / GlobalInitialState into the
// const_f32 / state_f32 families, as RawTables does. It must be called
// exactly once, after every work item's slice has been appended, and before
// the engine builds its double buffer over the Set for iteration.
func (s *Set) Finalize() {
	if s.finalized {
		return
	}
	s.GlobalConstTabref = len(s.ConstF32)
	s.ConstF32 = append(s.ConstF32, F32Table(s.GlobalConstants))
	s.GlobalStateTabref = len(s.StateF32)
	s.StateF32 = append(s.StateF32, F32Table(s.GlobalInitialState))
	s.finalized = true
}

// NumWorkItems returns the number of work items appended so far.
func (s *Set) NumWorkItems() int {
	return len(s.ConstF32Index)
}
