package kernel

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/edensim/eden/config"
	"github.com/edensim/eden/edenerr"
)

// Compiled is a kernel source that has been written to disk and built into
// a shared object, ready to load.
type Compiled struct {
	Source   *Source
	CPath    string
	SOPath   string
	ASMPath  string // non-empty when assembly output was requested
}

// Compile writes src's C source to cfg.WorkDir and invokes the system C
// compiler to produce a shared object, matching emer-gosl's
// exec.Command(...).CombinedOutput() + cmd.Dir compile pattern.
func Compile(src *Source, cfg *config.SimulatorConfig) (*Compiled, error) {
	dir := cfg.WorkDir
	if dir == "" {
		dir = "."
	}
	cPath := filepath.Join(dir, src.FileBase+".c")
	soPath := filepath.Join(dir, src.FileBase+".so")

	if err := os.WriteFile(cPath, []byte(src.C), 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", edenerr.ResourceExhausted, cPath, err)
	}

	compiler := cfg.CompilerName()
	args := []string{"-O3", "-shared", "-fpic", "-o", soPath, cPath}
	cmd := exec.Command(compiler, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %v failed: %v\n%s", edenerr.CodegenFailed, compiler, args, err, out)
	}

	compiled := &Compiled{Source: src, CPath: cPath, SOPath: soPath}

	if cfg.OutputAssembly {
		asmPath := filepath.Join(dir, src.FileBase+".s")
		asmCmd := exec.Command(compiler, "-O3", "-S", "-fpic", "-o", asmPath, cPath)
		asmCmd.Dir = dir
		if out, err := asmCmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("%w: assembly dump failed: %v\n%s", edenerr.CodegenFailed, err, out)
		}
		compiled.ASMPath = asmPath
	}
	return compiled, nil
}
