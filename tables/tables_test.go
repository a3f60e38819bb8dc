package tables

import "testing"

func TestBeginWorkItemRecordsOffsets(t *testing.T) {
	s := New()
	w0 := s.BeginWorkItem()
	s.AppendScalarConstant(w0, 1.0)
	s.AppendScalarConstant(w0, 2.0)
	t0 := s.AppendTableConstantF32(w0)
	s.PushF32(FamilyConstF32, t0, 10)
	s.PushF32(FamilyConstF32, t0, 20)

	w1 := s.BeginWorkItem()
	s.AppendScalarConstant(w1, 3.0)

	if got := s.ConstF32Index[0]; got != 0 {
		t.Errorf("work item 0 const offset = %d, want 0", got)
	}
	if got := s.ConstF32Index[1]; got != 2 {
		t.Errorf("work item 1 const offset = %d, want 2", got)
	}
	if got := s.TableConstF32Index[1]; got != 1 {
		t.Errorf("work item 1 table offset = %d, want 1", got)
	}
	if len(s.GlobalConstants) != 3 {
		t.Errorf("len(GlobalConstants) = %d, want 3", len(s.GlobalConstants))
	}
}

func TestAppendToClosedWorkItemPanics(t *testing.T) {
	s := New()
	w0 := s.BeginWorkItem()
	s.BeginWorkItem()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic appending to a closed work item")
		}
	}()
	s.AppendScalarConstant(w0, 1.0)
}

func TestAppendFromOtherSetPanics(t *testing.T) {
	s1 := New()
	s2 := New()
	w := s1.BeginWorkItem()
	s2.BeginWorkItem()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic using a handle from a different Set")
		}
	}()
	s2.AppendScalarConstant(w, 1.0)
}

func TestPushF32OutOfRangeTablePanics(t *testing.T) {
	s := New()
	s.BeginWorkItem()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range table index")
		}
	}()
	s.PushF32(FamilyConstF32, 7, 1.0)
}

func TestCheckParallelDetectsMismatch(t *testing.T) {
	s := New()
	w := s.BeginWorkItem()
	weights := s.AppendTableConstantF32(w)
	delays := s.AppendTableConstantF32(w)
	s.PushF32(FamilyConstF32, weights, 1.0)
	s.PushF32(FamilyConstF32, weights, 2.0)
	s.PushF32(FamilyConstF32, delays, 1.0)

	if err := s.CheckParallel(weights, delays); err == nil {
		t.Fatalf("expected mismatch error, got nil")
	}

	s.PushF32(FamilyConstF32, delays, 2.0)
	if err := s.CheckParallel(weights, delays); err != nil {
		t.Fatalf("expected no error after lengths match, got %v", err)
	}
}

func TestFinalizeAliasesGlobalScalars(t *testing.T) {
	s := New()
	w := s.BeginWorkItem()
	s.AppendScalarConstant(w, 42.0)
	s.AppendScalarState(w, 1.5)
	before := len(s.ConstF32)

	s.Finalize()

	if s.GlobalConstTabref != before {
		t.Errorf("GlobalConstTabref = %d, want %d", s.GlobalConstTabref, before)
	}
	if got := s.ConstF32[s.GlobalConstTabref]; len(got) != 1 || got[0] != 42.0 {
		t.Errorf("aliased const table = %v, want [42]", got)
	}
	if got := s.StateF32[s.GlobalStateTabref]; len(got) != 1 || got[0] != 1.5 {
		t.Errorf("aliased state table = %v, want [1.5]", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling BeginWorkItem after Finalize")
		}
	}()
	s.BeginWorkItem()
}

func TestNumWorkItems(t *testing.T) {
	s := New()
	if s.NumWorkItems() != 0 {
		t.Fatalf("NumWorkItems() = %d, want 0", s.NumWorkItems())
	}
	s.BeginWorkItem()
	s.BeginWorkItem()
	if s.NumWorkItems() != 2 {
		t.Fatalf("NumWorkItems() = %d, want 2", s.NumWorkItems())
	}
}
