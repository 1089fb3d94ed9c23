// +build gpu

package gpufermat

import "github.com/go-primegap/miner/internal/errs"

// NewGPURunner is the hook point for a real OpenCL-backed KernelRunner.
// Spec §1's Non-goals explicitly exclude the GPU kernel's arithmetic
// ("the GPU kernel source ... is not re-specified at the arithmetic
// level; only its host-side batching contract is") and no OpenCL binding
// appears anywhere in the retrieved example pack to ground a real
// implementation on, so this still reports GPUInitError rather than
// fabricate one; see DESIGN.md.
func NewGPURunner(platform string, device int) (KernelRunner, error) {
	return nil, &errs.GPUInitError{Msg: "gpufermat: no OpenCL binding available for platform " + platform}
}
