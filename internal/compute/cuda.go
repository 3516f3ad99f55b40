//go:build cuda && cgo

package compute

/*
#cgo LDFLAGS: -lcuda
#include <cuda.h>
#include <stdlib.h>

static CUresult launch_1d(CUfunction f, unsigned int grid, unsigned int block,
                          CUdeviceptr dst, CUdeviceptr a, CUdeviceptr b, unsigned int n) {
	void *args[] = { &dst, &a, &b, &n };
	return cuLaunchKernel(f, grid, 1, 1, block, 1, 1, 0, 0, args, 0);
}
*/
import "C"

import (
	"context"
	_ "embed"
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

//go:embed kernel.ptx
var kernelPTX string

const kernelName = "subtract_and_square"

type cudaDevice struct {
	mu sync.Mutex

	cuCtx C.CUcontext
	mod   C.CUmodule
	fn    C.CUfunction

	name       string
	maxThreads int
	major      int
	minor      int
}

func cuCheck(op string, r C.CUresult) error {
	if r == C.CUDA_SUCCESS {
		return nil
	}
	var s *C.char
	C.cuGetErrorString(r, &s)
	if s == nil {
		return fmt.Errorf("%s: CUDA error %d", op, int(r))
	}
	return fmt.Errorf("%s: %s", op, C.GoString(s))
}

// OpenDevice initializes the driver, creates a context on device 0 and
// loads the embedded kernel.
func OpenDevice() (Device, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := cuCheck("cuInit", C.cuInit(0)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	var count C.int
	if err := cuCheck("cuDeviceGetCount", C.cuDeviceGetCount(&count)); err != nil || count == 0 {
		return nil, ErrNoDevice
	}

	var dev C.CUdevice
	if err := cuCheck("cuDeviceGet", C.cuDeviceGet(&dev, 0)); err != nil {
		return nil, err
	}

	d := &cudaDevice{}
	var name [256]C.char
	if err := cuCheck("cuDeviceGetName", C.cuDeviceGetName(&name[0], C.int(len(name)), dev)); err != nil {
		return nil, err
	}
	d.name = C.GoString(&name[0])

	attr := func(a C.CUdevice_attribute) (int, error) {
		var v C.int
		err := cuCheck("cuDeviceGetAttribute", C.cuDeviceGetAttribute(&v, a, dev))
		return int(v), err
	}
	var err error
	if d.maxThreads, err = attr(C.CU_DEVICE_ATTRIBUTE_MAX_THREADS_PER_BLOCK); err != nil {
		return nil, err
	}
	if d.major, err = attr(C.CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MAJOR); err != nil {
		return nil, err
	}
	if d.minor, err = attr(C.CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MINOR); err != nil {
		return nil, err
	}

	if err := cuCheck("cuCtxCreate", C.cuCtxCreate_v2(&d.cuCtx, 0, dev)); err != nil {
		return nil, err
	}

	src := C.CString(kernelPTX)
	defer C.free(unsafe.Pointer(src))
	if err := cuCheck("cuModuleLoadData", C.cuModuleLoadData(&d.mod, unsafe.Pointer(src))); err != nil {
		C.cuCtxDestroy_v2(d.cuCtx)
		return nil, err
	}

	fname := C.CString(kernelName)
	defer C.free(unsafe.Pointer(fname))
	if err := cuCheck("cuModuleGetFunction", C.cuModuleGetFunction(&d.fn, d.mod, fname)); err != nil {
		C.cuModuleUnload(d.mod)
		C.cuCtxDestroy_v2(d.cuCtx)
		return nil, err
	}
	return d, nil
}

func (d *cudaDevice) Name() string                  { return d.name }
func (d *cudaDevice) MaxThreadsPerBlock() int       { return d.maxThreads }
func (d *cudaDevice) ComputeCapability() (int, int) { return d.major, d.minor }

// Launch copies the inputs to the device, runs the kernel and copies the
// result back. The call is synchronous.
func (d *cudaDevice) Launch(ctx context.Context, dst, one, two []float64, grid, block int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := cuCheck("cuCtxSetCurrent", C.cuCtxSetCurrent(d.cuCtx)); err != nil {
		return err
	}

	size := C.size_t(len(dst) * 8)
	var dDst, dA, dB C.CUdeviceptr
	for _, p := range []*C.CUdeviceptr{&dDst, &dA, &dB} {
		if err := cuCheck("cuMemAlloc", C.cuMemAlloc_v2(p, size)); err != nil {
			freeAll(dDst, dA, dB)
			return err
		}
	}
	defer freeAll(dDst, dA, dB)

	if err := cuCheck("cuMemcpyHtoD", C.cuMemcpyHtoD_v2(dA, unsafe.Pointer(&one[0]), size)); err != nil {
		return err
	}
	if err := cuCheck("cuMemcpyHtoD", C.cuMemcpyHtoD_v2(dB, unsafe.Pointer(&two[0]), size)); err != nil {
		return err
	}
	if err := cuCheck("cuLaunchKernel", C.launch_1d(d.fn, C.uint(grid), C.uint(block), dDst, dA, dB, C.uint(len(dst)))); err != nil {
		return err
	}
	if err := cuCheck("cuCtxSynchronize", C.cuCtxSynchronize()); err != nil {
		return err
	}
	return cuCheck("cuMemcpyDtoH", C.cuMemcpyDtoH_v2(unsafe.Pointer(&dst[0]), dDst, size))
}

func freeAll(ptrs ...C.CUdeviceptr) {
	for _, p := range ptrs {
		if p != 0 {
			C.cuMemFree_v2(p)
		}
	}
}

func (d *cudaDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mod != nil {
		C.cuModuleUnload(d.mod)
		d.mod = nil
	}
	if d.cuCtx != nil {
		err := cuCheck("cuCtxDestroy", C.cuCtxDestroy_v2(d.cuCtx))
		d.cuCtx = nil
		return err
	}
	return nil
}
