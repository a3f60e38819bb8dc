package engine

import (
	"unsafe"

	"github.com/edensim/eden/kernel"
	"github.com/edensim/eden/tables"
)

// doubleBuffer holds the "next" counterpart to the rank's shared table set: a
// fresh copy of every state_f32/state_i64 table plus the flat scalar state
// vector, so a Compute pass can read "now" while writing "next" without
// racing a sibling work item, and Swap can flip the roles in O(1) per
// table by exchanging slice headers.
type doubleBuffer struct {
	scalarNow, scalarNext []float32

	stateF32Now, stateF32Next []tables.F32Table
	stateI64Now, stateI64Next []tables.I64Table
}

// newDoubleBuffer must only be called after s.Finalize(), since it aliases
// s.GlobalStateTabref's slot directly onto the flat scalar now/next buffers
// rather than copying it independently: a gap junction's locally-resolved
// peer-voltage reference names that same table index expecting it to track
// live voltage, exactly like the scalar pointers doit receives separately.
func newDoubleBuffer(s *tables.Set) *doubleBuffer {
	d := &doubleBuffer{
		scalarNow:  append([]float32(nil), s.GlobalInitialState...),
		scalarNext: append([]float32(nil), s.GlobalInitialState...),
	}
	d.stateF32Now = make([]tables.F32Table, len(s.StateF32))
	d.stateF32Next = make([]tables.F32Table, len(s.StateF32))
	for i, t := range s.StateF32 {
		if i == s.GlobalStateTabref {
			d.stateF32Now[i] = tables.F32Table(d.scalarNow)
			d.stateF32Next[i] = tables.F32Table(d.scalarNext)
			continue
		}
		d.stateF32Now[i] = append(tables.F32Table(nil), t...)
		d.stateF32Next[i] = append(tables.F32Table(nil), t...)
	}
	d.stateI64Now = make([]tables.I64Table, len(s.StateI64))
	d.stateI64Next = make([]tables.I64Table, len(s.StateI64))
	for i, t := range s.StateI64 {
		d.stateI64Now[i] = append(tables.I64Table(nil), t...)
		d.stateI64Next[i] = append(tables.I64Table(nil), t...)
	}
	return d
}

func (d *doubleBuffer) swap() {
	d.scalarNow, d.scalarNext = d.scalarNext, d.scalarNow
	d.stateF32Now, d.stateF32Next = d.stateF32Next, d.stateF32Now
	d.stateI64Now, d.stateI64Next = d.stateI64Next, d.stateI64Now
	// "next" starts each step as a copy of the new "now": most state
	// families are updated unconditionally every step, but a few (e.g. a
	// synapse trigger flag with nothing pending) only ever get rewritten
	// along one branch and must otherwise carry forward unchanged.
	copy(d.scalarNext, d.scalarNow)
	for i := range d.stateF32Next {
		copy(d.stateF32Next[i], d.stateF32Now[i])
	}
	for i := range d.stateI64Next {
		copy(d.stateI64Next[i], d.stateI64Now[i])
	}
}

// callDoit marshals one work item's scalar offset and the rank's full
// shared table set into loaded's fixed doit parameters and invokes it.
//
// Every table-family pointer/size array passed is the *entire* shared Set,
// not a slice scoped to this one work item: a packed reference one
// instance's kernel call produces (e.g. a presynaptic compartment's
// recipient list entry, or a gap junction's peer-voltage reference) names a
// table index that may belong to a *different* work item — of the same
// cell type or, since every cell type shares this one Set, of a different
// cell type entirely. resolveProjection/resolveGapJunction compute those
// references as global indices into the whole Set
// (tables.Set.TableXIndex[workItem] + local slot), and
// eden_resolve_f32/eden_atomic_or_trigger index straight into whatever
// pointer array this call received with no per-work-item rebasing, so
// every loaded kernel — whichever cell type it was compiled for — must
// always be called with this same, whole-Set array. table_work_offset
// arrays are accordingly always zero: each table is its own independently
// allocated slice, not a row range within a shared backing array, so there
// is no further offset to add once the pointer already names the right
// table.
func callDoit(s *tables.Set, buf *doubleBuffer, loaded *kernel.Loaded, idx int, time, dt float64, step int64) {
	constF32Sizes, constF32Ptrs := sizesOfF32(s.ConstF32), ptrsOfF32(s.ConstF32)
	constI64Sizes, constI64Ptrs := sizesOfI64(s.ConstI64), ptrsOfI64(s.ConstI64)
	stateF32Sizes := sizesOfF32(buf.stateF32Now)
	stateF32NowPtrs, stateF32NextPtrs := ptrsOfF32(buf.stateF32Now), ptrsOfF32(buf.stateF32Next)
	stateI64Sizes := sizesOfI64(buf.stateI64Now)
	stateI64NowPtrs, stateI64NextPtrs := ptrsOfI64(buf.stateI64Now), ptrsOfI64(buf.stateI64Next)

	n := maxInt(maxInt(len(s.ConstF32), len(s.ConstI64)), maxInt(len(buf.stateF32Now), len(buf.stateI64Now)))
	zeroOffsets := make([]int64, n)

	loaded.Call(
		time, dt,
		ptrF32(s.GlobalConstants), s.ConstF32Index[idx],
		ptrI64Sizes(constF32Sizes), ptrPtrsF32(constF32Ptrs), ptrI64Sizes(zeroOffsets[:len(constF32Ptrs)]),
		ptrI64Sizes(constI64Sizes), ptrPtrsI64(constI64Ptrs), ptrI64Sizes(zeroOffsets[:len(constI64Ptrs)]),
		ptrI64Sizes(stateF32Sizes), ptrPtrsF32(stateF32NowPtrs), ptrPtrsF32(stateF32NextPtrs), ptrI64Sizes(zeroOffsets[:len(stateF32NowPtrs)]),
		ptrI64Sizes(stateI64Sizes), ptrPtrsI64(stateI64NowPtrs), ptrPtrsI64(stateI64NextPtrs), ptrI64Sizes(zeroOffsets[:len(stateI64NowPtrs)]),
		ptrF32(buf.scalarNow), ptrF32(buf.scalarNext), s.StateF32Index[idx],
		step,
	)
}

func sizesOfF32(ts []tables.F32Table) []int64 {
	out := make([]int64, len(ts))
	for i, t := range ts {
		out[i] = int64(len(t))
	}
	return out
}

func sizesOfI64(ts []tables.I64Table) []int64 {
	out := make([]int64, len(ts))
	for i, t := range ts {
		out[i] = int64(len(t))
	}
	return out
}

func ptrsOfF32(ts []tables.F32Table) []*float32 {
	out := make([]*float32, len(ts))
	for i, t := range ts {
		if len(t) == 0 {
			continue
		}
		out[i] = &t[0]
	}
	return out
}

func ptrsOfI64(ts []tables.I64Table) []*int64 {
	out := make([]*int64, len(ts))
	for i, t := range ts {
		if len(t) == 0 {
			continue
		}
		out[i] = &t[0]
	}
	return out
}

func ptrF32(s []float32) *float32 {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}

func ptrI64Sizes(s []int64) *int64 {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}

func ptrPtrsF32(s []*float32) **float32 {
	if len(s) == 0 {
		return nil
	}
	return (**float32)(unsafe.Pointer(&s[0]))
}

func ptrPtrsI64(s []*int64) **int64 {
	if len(s) == 0 {
		return nil
	}
	return (**int64)(unsafe.Pointer(&s[0]))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
