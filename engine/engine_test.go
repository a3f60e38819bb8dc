package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/decomp"
	"github.com/edensim/eden/instantiate"
	"github.com/edensim/eden/kernel"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/units"
)

// passiveCellType mirrors cmd/edenrun/scenarios.go's helper of the same
// name: a single-compartment leaky cell type, the building block the
// worked scenarios below reuse.
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

// passivePulseModel is spec.md §8 scenario 1: one passive compartment,
// C=1nF, leak g=0.1uS/E=-70mV, V0=-70mV, driven by a 0.1nA/50ms pulse
// starting at 10ms. Steady state approaches -69mV with a 10ms time
// constant while the pulse is on.
func passivePulseModel(tFinal float64) *model.Model {
	ct := passiveCellType("PassiveSoma", 1, 0.1, -70, -70)
	return &model.Model{
		CellTypes:   map[string]*model.CellType{ct.Name: ct},
		Populations: []model.Population{{Name: "Soma", CellType: ct.Name, Size: 1}},
		Inputs: []model.Input{{
			Target: somaPoint("Soma"), Kind: model.InputPulse,
			PulseAmplitudeExpr: "0.1", PulseStart: 10, PulseDuration: 50,
		}},
		SimulationSeed: 1, Dt: 0.01, TFinal: tFinal,
		SynapseTypes: map[string]*model.SynapseType{},
	}
}

// chemicalSynapseModel is spec.md §8 scenario 4: a spiking presynaptic
// source firing at 10/20/30ms via an explicit spike list, driving a
// postsynaptic passive cell through a delayed (2ms) exponential-decay
// (tau=2ms) chemical synapse, gbase=0.001uS.
func chemicalSynapseModel(tFinal float64) *model.Model {
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

	return &model.Model{
		CellTypes: map[string]*model.CellType{pre.Name: pre, post.Name: post},
		Populations: []model.Population{
			{Name: "Pre", CellType: pre.Name, Size: 1},
			{Name: "Post", CellType: post.Name, Size: 1},
		},
		Inputs: []model.Input{{
			Target: prePoint, Kind: model.InputSpikeList,
			SpikeTimes: []float64{10, 20, 30},
		}},
		Projections: []model.Projection{
			{Pre: prePoint, Post: postPoint, Synapse: "ExcSyn", WeightExpr: "0.001", DelayExpr: "2"},
		},
		SynapseTypes: map[string]*model.SynapseType{
			"ExcSyn": {Name: "ExcSyn", Kind: model.SynapseChemical, DecayTauExpr: "2", ReversalExpr: "0", DelayDefault: 2},
		},
		SimulationSeed: 1, Dt: 0.01, TFinal: tFinal,
	}
}

// setupEngine runs the same compile/instantiate/wire/finalize pipeline
// cmd/edenrun/main.go's simulate runs, on a single simulated rank, and
// returns a ready-to-step Engine. No trajectory loggers are opened: these
// tests read state directly off the engine's own buffers instead.
func setupEngine(t *testing.T, m *model.Model, numWorkers int) *Engine {
	t.Helper()

	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("config.Defaults(): %v", err)
	}
	cfg.WorkDir = t.TempDir()

	sys := units.Default()
	sigs := instantiate.CellSignatures{}
	loaded := map[string]*kernel.Loaded{}
	for name, ct := range m.CellTypes {
		sg := sig.New(name)
		src, err := kernel.Emit(name, sg, ct, sys, cfg)
		if err != nil {
			t.Fatalf("kernel.Emit(%s): %v", name, err)
		}
		compiled, err := kernel.Compile(src, cfg)
		if err != nil {
			t.Fatalf("kernel.Compile(%s): %v", name, err)
		}
		l, err := kernel.Load(compiled)
		if err != nil {
			t.Fatalf("kernel.Load(%s): %v", name, err)
		}
		sigs[name] = sg
		loaded[name] = l
	}
	t.Cleanup(func() {
		for _, l := range loaded {
			l.Close()
		}
	})

	comms := decomp.NewFakeCommunicators(1)
	comm := comms[0]

	in := instantiate.New(m, sigs, cfg, comm.Rank(), comm.Size())
	if err := in.Run(); err != nil {
		t.Fatalf("Instantiator.Run(): %v", err)
	}
	wired, err := instantiate.Wire(in, comm)
	if err != nil {
		t.Fatalf("instantiate.Wire(): %v", err)
	}
	in.Finalize()

	eng, err := New(m, cfg, comm.Size(), numWorkers, in, wired, loaded, comm, nil)
	if err != nil {
		t.Fatalf("engine.New(): %v", err)
	}
	return eng
}

// TestEngineRunPassivePulseMatchesClosedForm drives spec.md §8 scenario 1
// end to end through Engine.Run and checks the membrane voltage against
// the closed-form RC charging curve V(t) = Eleak + (I/g)*(1-exp(-(t-t0)/tau)),
// tau = C/g = 10ms, I/g = 1mV, within the pulse window.
func TestEngineRunPassivePulseMatchesClosedForm(t *testing.T) {
	m := passivePulseModel(50)
	eng := setupEngine(t, m, 2)

	point := somaPoint("Soma")
	_, table, row, err := eng.In.LocalVoltage(point)
	if err != nil {
		t.Fatalf("LocalVoltage: %v", err)
	}

	if err := eng.Run(m.Dt, m.TFinal); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := eng.buffers.stateF32Now[table][row]
	want := -70 + 1*(1-math.Exp(-(eng.time-10)/10))
	if math.Abs(float64(got)-want) > 0.05 {
		t.Errorf("V(t=%.4f) = %v, want %v (closed-form RC charging, tau=10ms)", eng.time, got, want)
	}
}

// TestEngineRunChemicalSynapseDepolarizesAfterEachDelayedSpike drives
// spec.md §8 scenario 4 step by step (rather than via Run, so intermediate
// samples are observable) and checks that the postsynaptic compartment
// depolarizes shortly after each delayed (2ms) spike delivery at
// 12/22/32ms, decaying back down between deliveries.
func TestEngineRunChemicalSynapseDepolarizesAfterEachDelayedSpike(t *testing.T) {
	m := chemicalSynapseModel(50)
	eng := setupEngine(t, m, 2)

	postPoint := somaPoint("Post")
	_, table, row, err := eng.In.LocalVoltage(postPoint)
	if err != nil {
		t.Fatalf("LocalVoltage: %v", err)
	}

	samples := map[int]float32{}
	if err := driveSteps(eng, m.Dt, m.TFinal, func(time float64) {
		samples[msKey(time)] = eng.buffers.stateF32Now[table][row]
	}); err != nil {
		t.Fatalf("driveSteps: %v", err)
	}

	sample := func(ms float64) float32 {
		v, ok := samples[msKey(ms)]
		if !ok {
			t.Fatalf("no sample recorded at t=%.2fms", ms)
		}
		return v
	}

	before1, after1 := sample(11.5), sample(13.0)
	if after1 <= before1+0.0005 {
		t.Errorf("expected depolarization after first delayed spike at t=12ms: v(11.5)=%v v(13.0)=%v", before1, after1)
	}

	decayed := sample(19.0)
	if decayed >= after1 {
		t.Errorf("expected decay toward rest between deliveries: v(13.0)=%v v(19.0)=%v", after1, decayed)
	}

	before2, after2 := sample(21.5), sample(23.0)
	if after2 <= before2+0.0005 {
		t.Errorf("expected depolarization after second delayed spike at t=22ms: v(21.5)=%v v(23.0)=%v", before2, after2)
	}

	before3, after3 := sample(31.5), sample(33.0)
	if after3 <= before3+0.0005 {
		t.Errorf("expected depolarization after third delayed spike at t=32ms: v(31.5)=%v v(33.0)=%v", before3, after3)
	}
}

// msKey rounds a simulation time in milliseconds to the nearest
// hundredth-of-a-millisecond step index, so floating-point drift across
// many dt=0.01 increments doesn't split one intended sample across two
// keys.
func msKey(ms float64) int {
	return int(math.Round(ms * 100))
}

// driveSteps runs the same three initialization steps plus forward
// stepping loop as Engine.Run, but invokes sample(time) after every
// completed forward step (initialization steps are not sampled) so a test
// can observe intermediate state Run itself does not expose.
func driveSteps(eng *Engine, dt, tFinal float64, sample func(time float64)) error {
	for step := int64(-3); step <= -1; step++ {
		if err := eng.runStep(0, dt, step, false); err != nil {
			return err
		}
	}
	eng.time = 0
	eng.step = 0
	for eng.time <= tFinal {
		if err := eng.runStep(eng.time, dt, eng.step, false); err != nil {
			return err
		}
		eng.time += dt
		eng.step++
		sample(eng.time)
	}
	return nil
}

// TestComputeDoubleBufferPurity is a P2 tripwire: a work item's Compute
// pass must never touch a "next" slot it wasn't meant to write. Two
// unconnected passive cells sharing one rank's table set are simulated
// together, then the second cell alone is simulated in isolation with
// identical parameters; if either work item's kernel call ever wrote
// into a sibling's table slot, the two runs would diverge.
func TestComputeDoubleBufferPurity(t *testing.T) {
	combined := &model.Model{
		CellTypes: map[string]*model.CellType{
			"CellA": passiveCellType("CellA", 1, 0.1, -70, -70),
			"CellB": passiveCellType("CellB", 1, 0.2, -60, -55),
		},
		Populations: []model.Population{
			{Name: "A", CellType: "CellA", Size: 1},
			{Name: "B", CellType: "CellB", Size: 1},
		},
		Inputs: []model.Input{{
			Target: somaPoint("A"), Kind: model.InputPulse,
			PulseAmplitudeExpr: "0.3", PulseStart: 0, PulseDuration: 1000,
		}},
		SimulationSeed: 1, Dt: 0.01, TFinal: 5,
		SynapseTypes: map[string]*model.SynapseType{},
	}
	solo := &model.Model{
		CellTypes:   map[string]*model.CellType{"CellB": passiveCellType("CellB", 1, 0.2, -60, -55)},
		Populations: []model.Population{{Name: "B", CellType: "CellB", Size: 1}},
		SimulationSeed: 1, Dt: 0.01, TFinal: 5,
		SynapseTypes: map[string]*model.SynapseType{},
	}

	combinedEng := setupEngine(t, combined, 2)
	soloEng := setupEngine(t, solo, 1)

	bPoint := somaPoint("B")
	_, cTable, cRow, err := combinedEng.In.LocalVoltage(bPoint)
	if err != nil {
		t.Fatalf("LocalVoltage(combined): %v", err)
	}
	_, sTable, sRow, err := soloEng.In.LocalVoltage(bPoint)
	if err != nil {
		t.Fatalf("LocalVoltage(solo): %v", err)
	}

	if err := combinedEng.Run(combined.Dt, combined.TFinal); err != nil {
		t.Fatalf("Run(combined): %v", err)
	}
	if err := soloEng.Run(solo.Dt, solo.TFinal); err != nil {
		t.Fatalf("Run(solo): %v", err)
	}

	gotCombined := combinedEng.buffers.stateF32Now[cTable][cRow]
	gotSolo := soloEng.buffers.stateF32Now[sTable][sRow]
	if math.Abs(float64(gotCombined-gotSolo)) > 1e-5 {
		t.Errorf("cell B diverged depending on whether cell A shares its table set: combined=%v solo=%v",
			gotCombined, gotSolo)
	}
}

// TestRecvTriggerClearsNextStep is a P3 tripwire: a trigger flag a
// projection's presynaptic kernel call ORs into its postsynaptic entry
// must read back cleared the step after the postsynaptic kernel consumes
// it — otherwise a chemical synapse would reprocess the same spike every
// step forever. The trigger row is set directly (as if a presynaptic
// kernel call had just OR'd it) rather than waiting for the model's own
// spike schedule, so the test exercises exactly the consume-then-clear
// step regardless of delay-queue timing.
func TestRecvTriggerClearsNextStep(t *testing.T) {
	m := chemicalSynapseModel(50)
	eng := setupEngine(t, m, 2)

	postWorkIdx := -1
	for i := 0; i < eng.In.NumWorkItems(); i++ {
		if eng.In.WorkItemCellType(i) == "PostCell" {
			postWorkIdx = i
			break
		}
	}
	if postWorkIdx < 0 {
		t.Fatalf("no PostCell work item found")
	}
	sg, ok := eng.In.Sigs["PostCell"]
	if !ok {
		t.Fatalf("no compiled signature for PostCell")
	}
	table := int(eng.set.TableStateI64Index[postWorkIdx]) + sg.ChemicalSynapse.TriggerTable
	row := 0
	if len(eng.set.StateI64[table]) == 0 {
		t.Fatalf("PostCell trigger table has no rows")
	}

	eng.buffers.stateI64Next[table][row] = 1
	eng.Swap()
	if eng.buffers.stateI64Now[table][row] != 1 {
		t.Fatalf("trigger flag did not read back set after swap")
	}

	eng.Compute(eng.time, m.Dt, eng.step)
	eng.Swap()

	if eng.buffers.stateI64Now[table][row] != 0 {
		t.Errorf("trigger flag should read back cleared the step after it fires, got %d",
			eng.buffers.stateI64Now[table][row])
	}
}
