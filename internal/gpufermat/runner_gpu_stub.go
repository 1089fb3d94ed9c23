// +build !gpu

package gpufermat

import "github.com/go-primegap/miner/internal/errs"

// NewGPURunner reports GPUInitError: this build was compiled without the
// gpu tag, so no OpenCL device is available. Build with -tags gpu to
// select runner_gpu.go instead.
func NewGPURunner(platform string, device int) (KernelRunner, error) {
	return nil, &errs.GPUInitError{Msg: "gpufermat: built without -tags gpu; no OpenCL device available"}
}
