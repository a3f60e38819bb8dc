package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error: %v", err)
	}
	if cfg.RngSeed != 1 {
		t.Errorf("RngSeed = %d, want 1", cfg.RngSeed)
	}
	if cfg.CableSolver != CableSolverAuto {
		t.Errorf("CableSolver = %v, want auto", cfg.CableSolver)
	}
	if cfg.Verbose {
		t.Errorf("Verbose default should be false")
	}
	if cfg.WorkDir != "." {
		t.Errorf("WorkDir = %q, want .", cfg.WorkDir)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eden.toml")
	contents := "rng_seed = 42\ncable_solver = \"bwd_euler\"\nverbose = true\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture toml: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RngSeed != 42 {
		t.Errorf("RngSeed = %d, want 42", cfg.RngSeed)
	}
	if cfg.CableSolver != CableSolverBackwardEuler {
		t.Errorf("CableSolver = %v, want bwd_euler", cfg.CableSolver)
	}
	if !cfg.Verbose {
		t.Errorf("Verbose = false, want true")
	}
}

func TestLoadAppliesFlagOverrides(t *testing.T) {
	cfg, err := Load("", []string{"-RngSeed=7", "-Verbose"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RngSeed != 7 {
		t.Errorf("RngSeed = %d, want 7", cfg.RngSeed)
	}
	if !cfg.Verbose {
		t.Errorf("Verbose = false, want true")
	}
}

func TestLoadRejectsBadCableSolver(t *testing.T) {
	_, err := Load("", []string{"-CableSolver=warp_speed"})
	if err == nil {
		t.Fatalf("expected error for invalid cable solver")
	}
}

func TestCompilerNameHonorsUseICC(t *testing.T) {
	cfg, _ := Defaults()
	if got := cfg.CompilerName(); got != "cc" && got != os.Getenv("CC") {
		t.Errorf("CompilerName() = %q, want cc (or $CC)", got)
	}
	cfg.UseICC = true
	if got := cfg.CompilerName(); got != "icc" {
		t.Errorf("CompilerName() with UseICC = %q, want icc", got)
	}
}
