// Package config holds the simulator's external configuration surface and
// loads it the way github.com/emer/emergent/v2/econfig loads a Sim config:
// apply `default:` struct-tag values, then a TOML file, then command-line
// flag overrides.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"
)

// CableSolver selects the cable-equation integrator the Kernel Emitter
// generates.
type CableSolver int

const (
	CableSolverAuto CableSolver = iota
	CableSolverForwardEuler
	CableSolverBackwardEuler
)

func (c CableSolver) String() string {
	switch c {
	case CableSolverForwardEuler:
		return "fwd_euler"
	case CableSolverBackwardEuler:
		return "bwd_euler"
	default:
		return "auto"
	}
}

func parseCableSolver(s string) (CableSolver, error) {
	switch s {
	case "", "auto":
		return CableSolverAuto, nil
	case "fwd_euler":
		return CableSolverForwardEuler, nil
	case "bwd_euler":
		return CableSolverBackwardEuler, nil
	default:
		return CableSolverAuto, fmt.Errorf("config: unrecognized cable_solver %q", s)
	}
}

// SimulatorConfig holds the simulator's runtime options, plus the
// diagnostic dumps and compiler knobs exposed on its command-line surface.
type SimulatorConfig struct {
	// RngSeed overrides the base seed mixed with each work item's GID.
	RngSeed int64 `toml:"rng_seed" default:"1"`

	// CableSolverName selects ForwardEuler/BackwardEuler/Auto; parsed into
	// CableSolver by Load.
	CableSolverName string      `toml:"cable_solver" default:"auto"`
	CableSolver     CableSolver `toml:"-"`

	Verbose      bool `toml:"verbose" default:"false"`
	Debug        bool `toml:"debug" default:"false"`
	DebugNetcode bool `toml:"debug_netcode" default:"false"`

	DumpRawStateScalar bool `toml:"dump_raw_state_scalar" default:"false"`
	DumpRawStateTable  bool `toml:"dump_raw_state_table" default:"false"`
	DumpRawLayout      bool `toml:"dump_raw_layout" default:"false"`
	DumpArrayLocations bool `toml:"dump_array_locations" default:"false"`

	UseICC         bool `toml:"use_icc" default:"false"`
	OutputAssembly bool `toml:"output_assembly" default:"false"`

	// MaxLogSize holds the parsed max_log_size option (zero when unset).
	// Nothing in this module reads it: trajectory log files are not capped.
	MaxLogSize datasize.ByteSize `toml:"-"`
	MaxLogSizeStr string `toml:"max_log_size" default:"0"`

	WorkDir string `toml:"work_dir" default:"."`
}

// CompilerName returns the system C compiler binary name to invoke,
// honoring UseICC.
func (c *SimulatorConfig) CompilerName() string {
	if c.UseICC {
		return "icc"
	}
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}
	return "cc"
}

// Defaults returns a SimulatorConfig with every `default:` tag applied.
func Defaults() (*SimulatorConfig, error) {
	cfg := &SimulatorConfig{}
	if err := setFromDefaults(cfg); err != nil {
		return nil, err
	}
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load applies defaults, then (if non-empty) a TOML config file, then
// command-line flags, matching econfig's layering order. args should
// typically be os.Args[1:].
func Load(tomlPath string, args []string) (*SimulatorConfig, error) {
	cfg := &SimulatorConfig{}
	var errs []error

	if err := setFromDefaults(cfg); err != nil {
		errs = append(errs, err)
	}
	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			errs = append(errs, fmt.Errorf("config: reading %s: %w", tomlPath, err))
		}
	}
	if err := applyFlags(cfg, args); err != nil {
		errs = append(errs, err)
	}
	if err := finalize(cfg); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// negBoolFlag implements flag.Value for a "-NoX" switch that sets the
// underlying bool to false when given (bare or "=true"), true when given
// "=false" — the econfig convention of pairing "-X"/"-NoX" on the same
// field without either flag clobbering the other's most recent set.
type negBoolFlag struct{ v *bool }

func (f *negBoolFlag) String() string {
	if f.v == nil {
		return "false"
	}
	return strconv.FormatBool(!*f.v)
}

func (f *negBoolFlag) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*f.v = !b
	return nil
}

func (f *negBoolFlag) IsBoolFlag() bool { return true }

func finalize(cfg *SimulatorConfig) error {
	solver, err := parseCableSolver(cfg.CableSolverName)
	if err != nil {
		return err
	}
	cfg.CableSolver = solver

	if cfg.MaxLogSizeStr != "" && cfg.MaxLogSizeStr != "0" {
		var sz datasize.ByteSize
		if err := sz.UnmarshalText([]byte(cfg.MaxLogSizeStr)); err != nil {
			return fmt.Errorf("config: max_log_size %q: %w", cfg.MaxLogSizeStr, err)
		}
		cfg.MaxLogSize = sz
	}
	return nil
}

// setFromDefaults applies each field's `default:` struct tag.
func setFromDefaults(cfg *SimulatorConfig) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		def, ok := f.Tag.Lookup("default")
		if !ok {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Bool:
			b, err := strconv.ParseBool(def)
			if err != nil {
				return fmt.Errorf("config: field %s default %q: %w", f.Name, def, err)
			}
			fv.SetBool(b)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(def, 10, 64)
			if err != nil {
				return fmt.Errorf("config: field %s default %q: %w", f.Name, def, err)
			}
			fv.SetInt(n)
		case reflect.String:
			fv.SetString(def)
		}
	}
	return nil
}

// applyFlags registers one flag per SimulatorConfig field (boolean fields
// get the econfig "-flag"/"-NoFlag" convention) and parses args into cfg.
func applyFlags(cfg *SimulatorConfig, args []string) error {
	fs := flag.NewFlagSet("eden", flag.ContinueOnError)
	fs.Int64Var(&cfg.RngSeed, "RngSeed", cfg.RngSeed, "base RNG seed")
	fs.StringVar(&cfg.CableSolverName, "CableSolver", cfg.CableSolverName, "auto|fwd_euler|bwd_euler")
	fs.StringVar(&cfg.WorkDir, "WorkDir", cfg.WorkDir, "working directory for generated sources")
	fs.StringVar(&cfg.MaxLogSizeStr, "MaxLogSize", cfg.MaxLogSizeStr, "trajectory log size cap, e.g. 100MB")

	boolFlag := func(name string, v *bool) {
		fs.BoolVar(v, name, *v, name)
		fs.Var(&negBoolFlag{v}, "No"+name, "disable -"+name)
	}
	boolFlag("Verbose", &cfg.Verbose)
	boolFlag("Debug", &cfg.Debug)
	boolFlag("DebugNetcode", &cfg.DebugNetcode)
	boolFlag("DumpRawStateScalar", &cfg.DumpRawStateScalar)
	boolFlag("DumpRawStateTable", &cfg.DumpRawStateTable)
	boolFlag("DumpRawLayout", &cfg.DumpRawLayout)
	boolFlag("DumpArrayLocations", &cfg.DumpArrayLocations)
	boolFlag("UseICC", &cfg.UseICC)
	boolFlag("OutputAssembly", &cfg.OutputAssembly)

	return fs.Parse(args)
}
