// Package kernel generates, compiles, and loads the per-cell-type C kernel:
// a single `doit` function implementing the fixed iteration-callback
// contract, assembled with strings.Builder and fmt string formatting, then
// compiled with the system C
// compiler and dynamically loaded via cgo.
package kernel

import "fmt"

// Source is one cell type's generated kernel: the C text plus the
// bookkeeping needed to compile and load it.
type Source struct {
	CellType string
	FileBase string // "<name>_code.gen"
	C        string
}

// FunctionName is the fixed exported symbol every generated kernel uses.
const FunctionName = "doit"

func cIdentifier(cellType string) string {
	return sanitizeIdent(cellType)
}

// fileBase returns the generated file's base name (without extension),
// matching "<name>_code.gen.c" / "<name>_code.gen.so".
func fileBase(cellType string) string {
	return fmt.Sprintf("%s_code.gen", cIdentifier(cellType))
}
