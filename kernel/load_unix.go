//go:build unix

package kernel

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef void (*doit_fn)(
    double, double,
    const float*, long,
    const long*, float* const*, const long*,
    const long*, long* const*, const long*,
    const long*, float* const*, float* const*, const long*,
    const long*, long* const*, long* const*, const long*,
    const float*, float*, long,
    long);

static void call_doit(doit_fn fn,
    double time, double dt,
    const float* const_f32_scalar_base, long const_f32_work_offset,
    const long* const_f32_table_sizes, float* const* const_f32_table_ptrs, const long* const_f32_table_work_offset,
    const long* const_i64_table_sizes, long* const* const_i64_table_ptrs, const long* const_i64_table_work_offset,
    const long* state_f32_table_sizes, float* const* state_f32_now_ptrs, float* const* state_f32_next_ptrs, const long* state_f32_table_work_offset,
    const long* state_i64_table_sizes, long* const* state_i64_now_ptrs, long* const* state_i64_next_ptrs, const long* state_i64_table_work_offset,
    const float* state_f32_scalar_now, float* state_f32_scalar_next, long state_f32_scalar_work_offset,
    long step) {
    fn(time, dt,
       const_f32_scalar_base, const_f32_work_offset,
       const_f32_table_sizes, const_f32_table_ptrs, const_f32_table_work_offset,
       const_i64_table_sizes, const_i64_table_ptrs, const_i64_table_work_offset,
       state_f32_table_sizes, state_f32_now_ptrs, state_f32_next_ptrs, state_f32_table_work_offset,
       state_i64_table_sizes, state_i64_now_ptrs, state_i64_next_ptrs, state_i64_table_work_offset,
       state_f32_scalar_now, state_f32_scalar_next, state_f32_scalar_work_offset,
       step);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/edensim/eden/edenerr"
)

// Loaded is a dynamically loaded kernel: the dlopen handle and a resolved
// doit function pointer, kept alive for the process lifetime (tables and
// loaded kernels are process-lifetime, per the model's lifecycle).
type Loaded struct {
	handle unsafe.Pointer
	fn     C.doit_fn
}

// Load dlopens compiled's shared object and resolves the fixed "doit"
// symbol. Go's plugin package cannot do this: it only loads objects built
// by `go build -buildmode=plugin`, not arbitrary cc-produced shared
// objects, so this goes through cgo's dlopen/dlsym directly.
func Load(compiled *Compiled) (*Loaded, error) {
	cPath := C.CString(compiled.SOPath)
	defer C.free(unsafe.Pointer(cPath))

	handle := C.dlopen(cPath, C.RTLD_NOW)
	if handle == nil {
		return nil, fmt.Errorf("%w: dlopen %s failed", edenerr.CodegenFailed, compiled.SOPath)
	}

	cSym := C.CString(FunctionName)
	defer C.free(unsafe.Pointer(cSym))
	sym := C.dlsym(handle, cSym)
	if sym == nil {
		C.dlclose(handle)
		return nil, fmt.Errorf("%w: symbol %s not found in %s", edenerr.CodegenFailed, FunctionName, compiled.SOPath)
	}

	return &Loaded{handle: handle, fn: C.doit_fn(sym)}, nil
}

// Close releases the dlopen handle. Not normally called during a run
// (kernels are process-lifetime); provided for tests and tooling that load
// many kernels in one process.
func (l *Loaded) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("%w: dlclose failed", edenerr.ResourceExhausted)
	}
	l.handle = nil
	return nil
}

// Call invokes the loaded doit function with the full table/pointer
// argument set. Pointer arguments are passed through as-is; callers are
// responsible for ensuring they point at the beginning of each
// respective table/pointer array and remain valid for the call's
// duration.
func (l *Loaded) Call(
	time, dt float64,
	constF32ScalarBase *float32, constF32WorkOffset int64,
	constF32TableSizes *int64, constF32TablePtrs **float32, constF32TableWorkOffset *int64,
	constI64TableSizes *int64, constI64TablePtrs **int64, constI64TableWorkOffset *int64,
	stateF32TableSizes *int64, stateF32NowPtrs, stateF32NextPtrs **float32, stateF32TableWorkOffset *int64,
	stateI64TableSizes *int64, stateI64NowPtrs, stateI64NextPtrs **int64, stateI64TableWorkOffset *int64,
	stateF32ScalarNow *float32, stateF32ScalarNext *float32, stateF32ScalarWorkOffset int64,
	step int64,
) {
	C.call_doit(l.fn,
		C.double(time), C.double(dt),
		(*C.float)(unsafe.Pointer(constF32ScalarBase)), C.long(constF32WorkOffset),
		(*C.long)(unsafe.Pointer(constF32TableSizes)), (**C.float)(unsafe.Pointer(constF32TablePtrs)), (*C.long)(unsafe.Pointer(constF32TableWorkOffset)),
		(*C.long)(unsafe.Pointer(constI64TableSizes)), (**C.long)(unsafe.Pointer(constI64TablePtrs)), (*C.long)(unsafe.Pointer(constI64TableWorkOffset)),
		(*C.long)(unsafe.Pointer(stateF32TableSizes)), (**C.float)(unsafe.Pointer(stateF32NowPtrs)), (**C.float)(unsafe.Pointer(stateF32NextPtrs)), (*C.long)(unsafe.Pointer(stateF32TableWorkOffset)),
		(*C.long)(unsafe.Pointer(stateI64TableSizes)), (**C.long)(unsafe.Pointer(stateI64NowPtrs)), (**C.long)(unsafe.Pointer(stateI64NextPtrs)), (*C.long)(unsafe.Pointer(stateI64TableWorkOffset)),
		(*C.float)(unsafe.Pointer(stateF32ScalarNow)), (*C.float)(unsafe.Pointer(stateF32ScalarNext)), C.long(stateF32ScalarWorkOffset),
		C.long(step),
	)
}
