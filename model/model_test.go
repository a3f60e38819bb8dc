package model

import "testing"

func TestCellTypeCompartmentLookup(t *testing.T) {
	ct := &CellType{
		Name: "pyramidal",
		Compartments: []Compartment{
			{ID: 0, ParentID: -1},
			{ID: 1, ParentID: 0},
		},
	}
	c := ct.Compartment(1)
	if c.ParentID != 0 {
		t.Errorf("Compartment(1).ParentID = %d, want 0", c.ParentID)
	}
	if !ct.Compartments[0].IsRoot() {
		t.Errorf("compartment 0 should be root")
	}
	if ct.IsPointNeuron() {
		t.Errorf("two-compartment cell should not be a point neuron")
	}
}

func TestCellTypeCompartmentLookupPanicsOnUnknown(t *testing.T) {
	ct := &CellType{Name: "x"}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown compartment id")
		}
	}()
	ct.Compartment(99)
}

func TestSingleCompartmentCellIsPointNeuron(t *testing.T) {
	ct := &CellType{Name: "iaf", Compartments: []Compartment{{ID: 0, ParentID: -1}}}
	if !ct.IsPointNeuron() {
		t.Errorf("single-compartment cell should be a point neuron")
	}
}

func TestModelPopulationAndCellTypeLookup(t *testing.T) {
	m := &Model{
		CellTypes: map[string]*CellType{
			"pyr": {Name: "pyr"},
		},
		Populations: []Population{
			{Name: "L5", CellType: "pyr", Size: 10},
		},
	}
	p := m.Population("L5")
	if p.Size != 10 {
		t.Errorf("Population(L5).Size = %d, want 10", p.Size)
	}
	ct := m.PopulationCellType(p)
	if ct.Name != "pyr" {
		t.Errorf("PopulationCellType = %q, want pyr", ct.Name)
	}
}

func TestModelPopulationCellTypeLookupPanicsOnUnknown(t *testing.T) {
	m := &Model{CellTypes: map[string]*CellType{}}
	pop := &Population{Name: "bad", CellType: "missing"}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown cell type")
		}
	}()
	m.PopulationCellType(pop)
}

func TestPointOnCellString(t *testing.T) {
	p := PointOnCell{Population: "L5", CellInstance: 3, Segment: 2, FractionAlong: 0.5}
	want := "L5[3]/2@0.500"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
