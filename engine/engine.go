// Package engine runs the double-buffered, MPI-distributed time-stepping
// loop: one goroutine-pool Compute pass per step over every cell type's
// work items, spike/value exchange with peer ranks via decomp, a
// trajectory-log sample, and a buffer swap before advancing to the next
// step. The dispatch pattern (a fixed worker pool draining a jobs channel,
// synchronized by a WaitGroup) and the phase-timer reporting follow the
// same shape emer-leabra's NetworkStru threads its layer-function passes
// through.
package engine

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/decomp"
	"github.com/edensim/eden/edenerr"
	"github.com/edensim/eden/instantiate"
	"github.com/edensim/eden/kernel"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/tables"
	"github.com/edensim/eden/trajlog"
)

// Engine owns the rank's single shared table set and double buffer, one
// loaded kernel per cell type, and this rank's cross-rank exchange state,
// and steps every work item forward in lockstep. Every cell type's work
// items live in the same tables.Set and doubleBuffer — the original
// implementation's one-arena RawTables design — so a packed reference
// resolved while building one instance's projection (a gap junction or
// chemical synapse connecting two different cell types, say) stays valid
// no matter which cell type's kernel dereferences it.
type Engine struct {
	Model *model.Model
	Cfg   *config.SimulatorConfig

	Rank, RankCount int
	NumWorkers      int

	Comm decomp.Communicator

	// In and Wired carry every cross-rank resolution the Instantiator and
	// instantiate.Wire produced: local-point lookups (In) and send
	// lists/mirror tables (Wired). Both are read-only from the engine's
	// point of view; Send/Recv only ever write into buffer/mirror storage,
	// never back into In's own bookkeeping.
	In    *instantiate.Instantiator
	Wired *instantiate.Wired

	set     *tables.Set
	buffers *doubleBuffer

	// workItemLoaded names, for each instantiated work item in order, the
	// compiled kernel Compute must call for it — the per-work-item
	// counterpart of the per-cell-type loaded map, since a shared Set no
	// longer lets a work item's own table set identify its cell type.
	workItemLoaded []*kernel.Loaded

	loggers []*trajlog.Writer

	time float64
	step int64

	timers map[string]*Timer
}

// phaseNames lists every key Run populates in Engine.timers, in the order
// a TimerReport-style summary would print them.
var phaseNames = []string{"send", "recv", "compute", "log"}

// New builds an Engine from an Instantiator that has already run, been
// Wired (cross-rank discovery, mirror allocation, and placeholder
// rewriting complete) and Finalized, plus the compiled-and-loaded kernel
// for every cell type it populated.
func New(m *model.Model, cfg *config.SimulatorConfig, rankCount, numWorkers int,
	in *instantiate.Instantiator, wired *instantiate.Wired, loaded map[string]*kernel.Loaded,
	comm decomp.Communicator, loggers []*trajlog.Writer,
) (*Engine, error) {
	s := in.Set
	e := &Engine{
		Model: m, Cfg: cfg,
		Rank: in.Rank, RankCount: rankCount, NumWorkers: numWorkers,
		Comm: comm, In: in, Wired: wired,
		set:     s,
		buffers: newDoubleBuffer(s),
		loggers: loggers,
		timers:  map[string]*Timer{},
	}
	for _, name := range phaseNames {
		e.timers[name] = newTimer()
	}
	n := in.NumWorkItems()
	e.workItemLoaded = make([]*kernel.Loaded, n)
	for i := 0; i < n; i++ {
		ct := in.WorkItemCellType(i)
		l, ok := loaded[ct]
		if !ok {
			return nil, fmt.Errorf("%w: work item %d has cell type %q with no loaded kernel", edenerr.InternalInvariant, i, ct)
		}
		e.workItemLoaded[i] = l
	}
	return e, nil
}

// Run executes the three negative-indexed initialization steps (settling
// OnStart-derived state with time held at zero — only the clock is held
// back, dt passed in is still the real simulation step size) followed by
// steps forward at dt until time exceeds tFinal. Initialization steps are
// never logged: no Writer has resolved columns representing pre-simulation
// settling.
func (e *Engine) Run(dt, tFinal float64) error {
	for step := int64(-3); step <= -1; step++ {
		if err := e.runStep(0, dt, step, false); err != nil {
			return err
		}
	}
	e.time = 0
	e.step = 0
	for e.time <= tFinal {
		if err := e.runStep(e.time, dt, e.step, true); err != nil {
			return err
		}
		e.time += dt
		e.step++
	}
	return nil
}

// runStep executes one Send/Recv/Compute/Log/Swap cycle. log is false
// during the three negative-indexed initialization steps.
func (e *Engine) runStep(time, dt float64, step int64, log bool) error {
	e.timers["send"].start()
	if err := e.Send(); err != nil {
		return err
	}
	e.timers["send"].stop()

	e.timers["recv"].start()
	if err := e.Recv(); err != nil {
		return err
	}
	e.timers["recv"].stop()

	e.timers["compute"].start()
	e.Compute(time, dt, step)
	e.timers["compute"].stop()

	if step < 0 && e.Cfg != nil && e.Cfg.Debug {
		e.checkFiniteNext(step)
	}

	if log {
		e.timers["log"].start()
		if err := e.Log(time); err != nil {
			return err
		}
		e.timers["log"].stop()
	}

	e.Swap()
	return nil
}

// checkFiniteNext scans every "next" state slot touched so far for NaN/Inf
// and logs (without aborting) any that turn up, per spec.md §9's resolution
// of the dt-during-initialization open question: a non-finite derivative
// during one of the three settling steps is flagged as suspicious, not
// treated as a fatal Model-malformed/Internal-invariant condition, since the
// spec treats passing the real dt during initialization as intentional.
func (e *Engine) checkFiniteNext(step int64) {
	if !isFiniteSlice(e.buffers.scalarNext) {
		log.Printf("eden: debug: non-finite scalar state detected during initialization step %d", step)
	}
	for i, t := range e.buffers.stateF32Next {
		if i == e.set.GlobalStateTabref {
			continue
		}
		if !isFiniteSlice(t) {
			log.Printf("eden: debug: non-finite state_f32 table %d detected during initialization step %d", i, step)
		}
	}
}

func isFiniteSlice(s []float32) bool {
	for _, v := range s {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Compute dispatches every work item across a fixed pool of worker
// goroutines, each draining a shared jobs channel and calling that work
// item's own loaded doit kernel, then blocks until every job has
// completed. Every work item shares the same table set and double buffer
// regardless of cell type, so dispatch is a plain index range over the
// instantiated work items rather than a per-cell-type loop. The synthetic
// work items decomp.MirrorBuffers appends hold only mirror tables and have
// no kernel, so they are not dispatched.
func (e *Engine) Compute(time, dt float64, step int64) {
	jobs := make(chan int, 256)

	var wg sync.WaitGroup
	workers := e.NumWorkers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				callDoit(e.set, e.buffers, e.workItemLoaded[idx], idx, time, dt, step)
			}
		}()
	}

	n := len(e.workItemLoaded)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// Send gathers, for every peer this rank must serve, the current "now"
// value of every VPeer/DAW point that peer mirrors plus any spikes pending
// in the per-cell-type spike mirror tables ResolveSpikeSendTargets wired,
// encodes one combined wire message, and starts a non-blocking send — the
// Domain Decomposer's send phase (spec.md §4.5.2).
func (e *Engine) Send() error {
	for peer, sl := range e.Wired.SendLists {
		vpeerValues := make([]float32, len(sl.VPeer))
		for i, p := range sl.VPeer {
			v, err := e.localValue(p)
			if err != nil {
				return fmt.Errorf("engine: send phase vpeer value for peer %d: %w", peer, err)
			}
			vpeerValues[i] = v
		}

		dawValues := make([]float32, len(sl.DAW))
		for i, p := range sl.DAW {
			v, err := e.localValue(p)
			if err != nil {
				return fmt.Errorf("engine: send phase daw value for peer %d: %w", peer, err)
			}
			dawValues[i] = v
		}

		targets, err := e.In.SpikeSendTargets(sl)
		if err != nil {
			return fmt.Errorf("engine: send phase spike targets for peer %d: %w", peer, err)
		}
		var spikeIndices []int32
		for i, t := range targets {
			mirrors := e.Wired.Mirrors[t.CellType]
			table := mirrors.SpikeMirrorTable[peer]
			slot := mirrors.SpikeMirrorSlot[peer][t.Index]
			if e.buffers.stateI64Now[table][slot] != 0 {
				spikeIndices = append(spikeIndices, int32(i))
			}
			// Consumed: clear both buffers so a stale flag neither gets
			// re-reported next step nor survives the next Swap.
			e.buffers.stateI64Now[table][slot] = 0
			e.buffers.stateI64Next[table][slot] = 0
		}

		payload := decomp.EncodeStepMessage(vpeerValues, dawValues, spikeIndices)
		e.Comm.ISend(peer, decomp.MPITag, decomp.EncodeFloat32Bytes(payload))
	}
	return nil
}

// localValue reads the current "now" voltage of a point this rank owns.
func (e *Engine) localValue(p model.PointOnCell) (float32, error) {
	_, table, row, err := e.In.LocalVoltage(p)
	if err != nil {
		return 0, err
	}
	return e.buffers.stateF32Now[table][row], nil
}

// Recv spin-polls for an incoming message from every peer this rank
// expects data from, scatters VPeer values into the right per-cell-type
// mirror table, DAW values into the dedicated trajectory mirror, and ORs
// each incoming spike index's referenced trigger entry to 1 — the Domain
// Decomposer's recv phase (spec.md §4.5.2), matching decomp.Discover's own
// spin-and-drain idiom.
func (e *Engine) Recv() error {
	pending := make(map[int]bool, len(e.In.RecvLists))
	for peer := range e.In.RecvLists {
		pending[peer] = true
	}
	for len(pending) > 0 {
		source, length, ok := e.Comm.IProbeAny(decomp.MPITag)
		if !ok {
			continue
		}
		if !pending[source] {
			return fmt.Errorf("%w: recv phase got a message from unexpected rank %d", edenerr.InternalInvariant, source)
		}
		data := e.Comm.Recv(source, decomp.MPITag, length)
		floats := decomp.DecodeFloat32Bytes(data)

		rl := e.In.RecvLists[source]
		vpeerValues, dawValues, spikeIndices := decomp.DecodeStepMessage(floats, len(rl.VPeer), len(rl.DAW))

		targets := e.In.VPeerWriteTargets(source)
		for i, v := range vpeerValues {
			t := targets[i]
			mirrors := e.Wired.Mirrors[t.CellType]
			table := mirrors.ValueMirrorTable[source]
			slot := mirrors.ValueMirrorSlot[source][t.Index]
			e.buffers.stateF32Now[table][slot] = v
		}

		for i, v := range dawValues {
			_, slot, err := e.In.DAWMirrorSlot(rl.DAW[i].Point)
			if err != nil {
				return fmt.Errorf("engine: recv phase daw value from rank %d: %w", source, err)
			}
			e.Wired.SetDAWValue(source, slot, v)
		}

		for _, idx := range spikeIndices {
			_, table, row := e.In.SpikeTarget(source, int(idx))
			atomicOrTriggerNow(&e.buffers.stateI64Now[table][row], 1)
		}

		delete(pending, source)
	}
	return nil
}

// Log samples every open trajectory Writer once at the given simulation
// time (spec.md §4.6 Log phase). It is skipped during the three
// negative-indexed initialization steps.
func (e *Engine) Log(time float64) error {
	for _, w := range e.loggers {
		if err := w.WriteRow(time, e, e); err != nil {
			return fmt.Errorf("%w: writing trajectory row: %v", edenerr.ResourceExhausted, err)
		}
	}
	return nil
}

// ScalarNow implements trajlog.NowReader: the current "now" flat scalar
// state vector, the same slice a gap-junction peer-voltage reference or a
// local data-writer column resolves into via the reserved
// GlobalStateTabref alias. cellType is accepted for interface compatibility
// but otherwise unused: the flat scalar vector is shared by every cell
// type on this rank, not scoped per cell type.
func (e *Engine) ScalarNow(cellType string) []float32 {
	return e.buffers.scalarNow
}

// ValueMirror implements trajlog.MirrorReader: the current mirrored
// data-writer values received from peer.
func (e *Engine) ValueMirror(peer int) []float32 {
	return e.Wired.ValueMirror(peer)
}

// Swap makes the "next" buffer the new "now" buffer for the following
// step, the same double-buffer flip the tripwire property (no work item
// observes a sibling's in-progress "next" write during Compute) relies on.
func (e *Engine) Swap() {
	e.buffers.swap()
}

// Timers returns the accumulated per-phase wall-clock timers, keyed by
// phase name ("send", "recv", "compute", "log").
func (e *Engine) Timers() map[string]*Timer {
	return e.timers
}

// atomicOrTriggerNow ORs v into a state_i64 "now" trigger slot using a
// compare-and-swap loop, the Go-side counterpart to the generated kernel's
// C11 atomic OR: used when the Recv phase copies an incoming spike index
// into a local trigger row. runStep completes Recv before Compute starts,
// so no kernel call writes that row at the same time.
func atomicOrTriggerNow(slot *int64, v int64) {
	for {
		old := atomic.LoadInt64(slot)
		if old&v == v {
			return
		}
		if atomic.CompareAndSwapInt64(slot, old, old|v) {
			return
		}
	}
}
