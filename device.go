package reenact

import (
	"strings"

	"github.com/pkg/errors"
)

// Device is the execution device a network is placed on.
// It is chosen once, when the network is loaded, and carried by the network itself.
type Device int

const (
	CPU Device = iota
	GPU
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// ParseDevice returns the device named by s ("cpu", "gpu" or "cuda").
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return CPU, nil
	case "gpu", "cuda":
		return GPU, nil
	default:
		return CPU, errors.Wrapf(ErrConfiguration, "unknown device %q", s)
	}
}
