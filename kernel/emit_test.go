package kernel

import (
	"strings"
	"testing"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/units"
)

func twoCompartmentCellType() *model.CellType {
	return &model.CellType{
		Name: "pyramidal",
		Compartments: []model.Compartment{
			{ID: 0, ParentID: -1, CapacitanceExpr: "1.0", AxialResExpr: "0"},
			{ID: 1, ParentID: 0, CapacitanceExpr: "0.5", AxialResExpr: "10.0"},
		},
		Channels: []model.ChannelDistribution{
			{
				Name: "na", CompartmentID: 0, ChannelType: "naChan",
				GBarExpr: "120.0", Reversal: model.ReversalFixed, ReversalExpr: "50.0",
			},
		},
		SpikeThreshold:          0.0,
		SpikeSourceCompartments: []int{0},
	}
}

func TestEmitProducesFixedSignatureAndNoNextReads(t *testing.T) {
	ct := twoCompartmentCellType()
	sg := sig.New(ct.Name)
	sys := units.Default()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("config.Defaults(): %v", err)
	}

	src, err := Emit(ct.Name, sg, ct, sys, cfg)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	if !strings.Contains(src.C, "void doit(") {
		t.Errorf("generated source missing doit signature")
	}
	if !strings.Contains(src.C, "restrict") {
		t.Errorf("generated source missing restrict qualifiers")
	}
	if !strings.Contains(src.C, "eden_atomic_or_trigger") {
		t.Errorf("generated source missing atomic trigger helper")
	}
	if strings.Count(src.C, "state_f32_next_ptrs[") == 0 {
		t.Errorf("generated source never writes to next state")
	}

	// The kernel must never read state_f32_next_ptrs/state_i64_next_ptrs
	// as an rvalue before writing it in the same statement; spot check
	// there's no bare read pattern like "= state_f32_next_ptrs".
	for _, line := range strings.Split(src.C, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "double") && strings.Contains(trimmed, "state_f32_next_ptrs") {
			t.Errorf("line reads from next state: %q", trimmed)
		}
	}
}

func TestEmitSkipsCableSolveForPointNeuron(t *testing.T) {
	ct := &model.CellType{
		Name:         "iaf",
		Compartments: []model.Compartment{{ID: 0, ParentID: -1}},
	}
	sg := sig.New(ct.Name)
	sys := units.Default()
	cfg, _ := config.Defaults()

	src, err := Emit(ct.Name, sg, ct, sys, cfg)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if strings.Contains(src.C, "backward-Euler axial sweep") {
		t.Errorf("point neuron should not emit a cable solver pass")
	}
	if sg.ElimOrder != nil {
		t.Errorf("point neuron should not populate an elimination order")
	}
}

func TestEmitGroupedCompartmentsAboveThreshold(t *testing.T) {
	comps := make([]model.Compartment, 12)
	comps[0] = model.Compartment{ID: 0, ParentID: -1, CapacitanceExpr: "1.0"}
	for i := 1; i < 12; i++ {
		comps[i] = model.Compartment{ID: i, ParentID: i - 1, CapacitanceExpr: "1.0", AxialResExpr: "10.0"}
	}
	ct := &model.CellType{Name: "cable12", Compartments: comps}
	sg := sig.New(ct.Name)
	sys := units.Default()
	cfg, _ := config.Defaults()

	_, err := Emit(ct.Name, sg, ct, sys, cfg)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if sg.Grouping.Kind != sig.Grouped {
		t.Errorf("12-compartment cell should use GROUPED layout, got %v", sg.Grouping.Kind)
	}
}

func TestEmitKineticGateComputesCollapsedState(t *testing.T) {
	ct := &model.CellType{
		Name: "kcaChan",
		Compartments: []model.Compartment{
			{ID: 0, ParentID: -1, CapacitanceExpr: "1.0"},
		},
		Channels: []model.ChannelDistribution{
			{
				Name: "kca", CompartmentID: 0, ChannelType: "kcaChan",
				GBarExpr: "36.0", Reversal: model.ReversalFixed, ReversalExpr: "-77.0",
				Gates: []model.Gate{
					{
						Name: "n", Kind: model.GateKinetic, Power: 1,
						States: []string{"C", "O"},
						Transitions: []model.KineticTransition{
							{From: "C", To: "O", RateExpr: "0.1"},
							{From: "O", To: "C", RateExpr: "0.05"},
						},
						OpenState: "O",
					},
				},
			},
		},
	}
	sg := sig.New(ct.Name)
	sys := units.Default()
	cfg, _ := config.Defaults()

	src, err := Emit(ct.Name, sg, ct, sys, cfg)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if !strings.Contains(src.C, "1.0f - (") {
		t.Errorf("kinetic gate should recompute its collapsed state from the others, got:\n%s", src.C)
	}
	if sg.NumScalarState == 0 {
		t.Errorf("kinetic gate should allocate a scalar state slot for its non-collapsed state")
	}
}

func TestEmitSpikeListWindowTestAndRecipientsForEveryCompartment(t *testing.T) {
	ct := twoCompartmentCellType()
	sg := sig.New(ct.Name)
	sys := units.Default()
	cfg, _ := config.Defaults()

	src, err := Emit(ct.Name, sg, ct, sys, cfg)
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if !strings.Contains(src.C, "time >= (double)t && time < (double)t + dt") {
		t.Errorf("generated source missing the spike-list window test, got:\n%s", src.C)
	}
	if len(sg.SpikeRecipientsTable) != len(ct.Compartments) {
		t.Errorf("SpikeRecipientsTable has %d entries, want one per compartment (%d)",
			len(sg.SpikeRecipientsTable), len(ct.Compartments))
	}
	for _, c := range ct.Compartments {
		if _, ok := sg.SpikeRecipientsTable[c.ID]; !ok {
			t.Errorf("compartment %d has no recipients table, even though only compartment 0 is a declared spike source", c.ID)
		}
	}
}
