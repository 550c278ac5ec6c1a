package engine

import (
	"os"
	"os/exec"
	"runtime"
)

// Device is the hardware an engine runs on.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCUDA Device = "cuda"
	DeviceMPS  Device = "mps"
	DeviceCPU  Device = "cpu"
)

// ResolveDevice turns a configured preference into a concrete device. Auto
// prefers Apple silicon, then an NVIDIA GPU, then the CPU.
func ResolveDevice(pref string) Device {
	switch Device(pref) {
	case DeviceCUDA, DeviceMPS, DeviceCPU:
		return Device(pref)
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return DeviceMPS
	}
	if hasCUDA() {
		return DeviceCUDA
	}
	return DeviceCPU
}

func hasCUDA() bool {
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

// CostHint returns how many transcriptions one engine runs at once on d.
func (d Device) CostHint() int {
	switch d {
	case DeviceCUDA:
		return 16
	case DeviceMPS:
		return 4
	default:
		return 2
	}
}

// ComputeType returns the weight precision used on d: 8-bit quantized on
// CUDA, half precision on MPS, full precision on CPU.
func (d Device) ComputeType() string {
	switch d {
	case DeviceCUDA:
		return "int8_float16"
	case DeviceMPS:
		return "float16"
	default:
		return "float32"
	}
}
