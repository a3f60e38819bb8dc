package sig

import (
	"testing"

	"github.com/edensim/eden/model"
)

func TestScalarAllocatorAssignsSequentialIndices(t *testing.T) {
	s := New("pyramidal")
	scalars := s.Scalars()
	if got := scalars.Constant(); got != 0 {
		t.Errorf("first Constant() = %d, want 0", got)
	}
	if got := scalars.Constant(); got != 1 {
		t.Errorf("second Constant() = %d, want 1", got)
	}
	if got := scalars.State(); got != 0 {
		t.Errorf("first State() = %d, want 0", got)
	}
	if s.NumScalarConstants != 2 || s.NumScalarState != 1 {
		t.Errorf("sig counts = (%d,%d), want (2,1)", s.NumScalarConstants, s.NumScalarState)
	}
}

func TestTableAllocatorAssignsPerFamilyIndices(t *testing.T) {
	s := New("pyramidal")
	tabs := s.Tables()
	w := tabs.ConstF32("weight")
	d := tabs.ConstF32("delay")
	trig := tabs.StateI64("trigger")

	if w != 0 || d != 1 {
		t.Errorf("ConstF32 indices = (%d,%d), want (0,1)", w, d)
	}
	if trig != 0 {
		t.Errorf("StateI64 index = %d, want 0", trig)
	}
	if len(s.ConstF32Tables) != 2 || len(s.StateI64Tables) != 1 {
		t.Errorf("table counts = (%d,%d), want (2,1)", len(s.ConstF32Tables), len(s.StateI64Tables))
	}
}

func TestCompartmentGroupingBelowThresholdIsFlat(t *testing.T) {
	ids := []int{0, 1, 2}
	g := BuildCompartmentGrouping(ids, nil)
	if g.Kind != Flat {
		t.Errorf("grouping kind = %v, want Flat", g.Kind)
	}
}

func TestCompartmentGroupingAboveThresholdGroupsByBody(t *testing.T) {
	ids := make([]int, 12)
	bodies := map[int]string{}
	for i := range ids {
		ids[i] = i
		if i%2 == 0 {
			bodies[i] = "body-even"
		} else {
			bodies[i] = "body-odd"
		}
	}
	g := BuildCompartmentGrouping(ids, bodies)
	if g.Kind != Grouped {
		t.Fatalf("grouping kind = %v, want Grouped", g.Kind)
	}
	if len(g.Groups) != 2 {
		t.Fatalf("len(Groups) = %d, want 2", len(g.Groups))
	}
	total := 0
	for _, grp := range g.Groups {
		total += len(grp.Members)
	}
	if total != 12 {
		t.Errorf("total grouped members = %d, want 12", total)
	}
}

func TestCompartmentGroupingPanicsOnMissingBody(t *testing.T) {
	ids := make([]int, 10)
	for i := range ids {
		ids[i] = i
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing body")
		}
	}()
	BuildCompartmentGrouping(ids, map[int]string{})
}

func TestBackwardEulerOrderIsPostOrder(t *testing.T) {
	comps := []model.Compartment{
		{ID: 0, ParentID: -1},
		{ID: 1, ParentID: 0},
		{ID: 2, ParentID: 0},
		{ID: 3, ParentID: 1},
	}
	order, parent := BackwardEulerOrder(comps)

	if len(order) != 4 {
		t.Fatalf("len(order) = %d, want 4", len(order))
	}
	if order[len(order)-1] != 0 {
		t.Errorf("root should be last in post-order, got order = %v", order)
	}
	pos := map[int]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos[3] >= pos[1] {
		t.Errorf("child 3 must precede its parent 1 in post-order: %v", order)
	}
	if pos[1] >= pos[0] || pos[2] >= pos[0] {
		t.Errorf("children of root must precede root in post-order: %v", order)
	}
	if parent[3] != 1 || parent[1] != 0 || parent[0] != -1 {
		t.Errorf("parent map = %v, unexpected", parent)
	}
}

func TestBackwardEulerOrderPanicsWithoutRoot(t *testing.T) {
	comps := []model.Compartment{
		{ID: 0, ParentID: 1},
		{ID: 1, ParentID: 0},
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for cycle with no root")
		}
	}()
	BackwardEulerOrder(comps)
}
