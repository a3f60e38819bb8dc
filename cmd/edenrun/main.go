// Command edenrun is a single-process harness that builds one of the
// worked scenarios in scenarios.go, compiles and loads its per-cell-type
// kernels, instantiates and wires it onto a single simulated rank, and
// runs it to completion, writing trajectory logs as it goes. It exists to
// exercise the compiler and engine end to end without a NeuroML/LEMS
// front end, which remains an external collaborator.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/decomp"
	"github.com/edensim/eden/edenerr"
	"github.com/edensim/eden/engine"
	"github.com/edensim/eden/instantiate"
	"github.com/edensim/eden/kernel"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/sig"
	"github.com/edensim/eden/trajlog"
	"github.com/edensim/eden/units"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("edenrun", flag.ContinueOnError)
	scenario := fs.String("scenario", "passive_pulse", "scenario to run: passive_pulse, gap_junction, hh_spiking, chemical_synapse")
	tomlPath := fs.String("config", "", "optional TOML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*tomlPath, fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "edenrun: config:", err)
		return 2
	}

	m, err := buildScenario(*scenario, cfg.WorkDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "edenrun:", err)
		return 2
	}

	if err := simulate(m, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "edenrun:", err)
		return edenerr.ExitCode(err)
	}
	return 0
}

// simulate runs one model to completion on a single rank: compile and
// load every cell type's kernel, instantiate and wire the population,
// open the trajectory logs, and step the engine forward.
func simulate(m *model.Model, cfg *config.SimulatorConfig) error {
	sys := units.Default()

	sigs := instantiate.CellSignatures{}
	loaded := map[string]*kernel.Loaded{}
	for name, ct := range m.CellTypes {
		sg := sig.New(name)
		src, err := kernel.Emit(name, sg, ct, sys, cfg)
		if err != nil {
			return err
		}
		compiled, err := kernel.Compile(src, cfg)
		if err != nil {
			return err
		}
		l, err := kernel.Load(compiled)
		if err != nil {
			return err
		}
		sigs[name] = sg
		loaded[name] = l
	}
	defer func() {
		for _, l := range loaded {
			l.Close()
		}
	}()

	comms := decomp.NewFakeCommunicators(1)
	comm := comms[0]

	in := instantiate.New(m, sigs, cfg, comm.Rank(), comm.Size())
	if err := in.Run(); err != nil {
		return err
	}

	wired, err := instantiate.Wire(in, comm)
	if err != nil {
		return err
	}

	in.Finalize()

	var loggers []*trajlog.Writer
	defer func() {
		for _, w := range loggers {
			w.Close()
		}
	}()
	for i := range m.DataWriters {
		w, err := trajlog.Open(&m.DataWriters[i], in, sys)
		if err != nil {
			return err
		}
		loggers = append(loggers, w)
	}

	numWorkers := runtime.NumCPU()
	if numWorkers < 1 {
		numWorkers = 1
	}
	eng, err := engine.New(m, cfg, comm.Size(), numWorkers, in, wired, loaded, comm, loggers)
	if err != nil {
		return err
	}

	return eng.Run(m.Dt, m.TFinal)
}
