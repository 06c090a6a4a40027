package model

import (
	"os"

	"github.com/esimov/reenact"
	"github.com/pkg/errors"
)

// gpuProbe reports whether an accelerator is present on the host.
var gpuProbe = func() bool {
	for _, dev := range []string{"/dev/nvidiactl", "/dev/nvidia0"} {
		if _, err := os.Stat(dev); err == nil {
			return true
		}
	}
	return false
}

// SelectDevice returns the device the networks should be placed on.
func SelectDevice(useGPU bool) (reenact.Device, error) {
	if !useGPU {
		return reenact.CPU, nil
	}
	if !gpuProbe() {
		return reenact.CPU, errors.Wrap(reenact.ErrDeviceUnavailable, "no GPU detected")
	}
	return reenact.GPU, nil
}
