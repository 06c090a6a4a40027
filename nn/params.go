package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/esimov/reenact"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// parameters is the named set of learnable tensors of a network.
// It is embedded by every network and provides its Parameters and Load methods.
type parameters struct {
	device  reenact.Device
	tensors map[string]*tensor.Dense
}

func newParameters(dev reenact.Device) parameters {
	return parameters{device: dev, tensors: make(map[string]*tensor.Dense)}
}

// add registers a zero initialized float32 tensor under name.
func (p *parameters) add(name string, shape ...int) *tensor.Dense {
	t := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...))
	p.tensors[name] = t
	return t
}

// Parameters returns the expected shape of every learnable tensor.
func (p *parameters) Parameters() map[string]tensor.Shape {
	shapes := make(map[string]tensor.Shape, len(p.tensors))
	for name, t := range p.tensors {
		shapes[name] = t.Shape().Clone()
	}
	return shapes
}

// State returns a copy of every learnable tensor.
func (p *parameters) State() map[string]*tensor.Dense {
	state := make(map[string]*tensor.Dense, len(p.tensors))
	for name, t := range p.tensors {
		state[name] = t.Clone().(*tensor.Dense)
	}
	return state
}

// Device returns the device the network was placed on.
func (p *parameters) Device() reenact.Device {
	return p.device
}

// Load copies the weights into the network. The state must match exactly:
// every missing, unexpected or differently shaped parameter is reported.
func (p *parameters) Load(weights map[string]*tensor.Dense) error {
	var missing, unexpected, mismatched []string

	for name, dst := range p.tensors {
		src, ok := weights[name]
		if !ok || src == nil {
			missing = append(missing, name)
			continue
		}
		if !src.Shape().Eq(dst.Shape()) {
			mismatched = append(mismatched, fmt.Sprintf("%s %v != %v", name, src.Shape(), dst.Shape()))
			continue
		}
		if _, ok := src.Data().([]float32); !ok {
			mismatched = append(mismatched, fmt.Sprintf("%s dtype %v", name, src.Dtype()))
		}
	}
	for name := range weights {
		if _, ok := p.tensors[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}

	var problems []string
	for _, group := range []struct {
		label string
		keys  []string
	}{
		{"missing", missing},
		{"unexpected", unexpected},
		{"mismatched", mismatched},
	} {
		if len(group.keys) == 0 {
			continue
		}
		sort.Strings(group.keys)
		problems = append(problems, group.label+": "+strings.Join(group.keys, ", "))
	}
	if len(problems) > 0 {
		return errors.Wrap(reenact.ErrCheckpointMismatch, strings.Join(problems, "; "))
	}

	for name, dst := range p.tensors {
		copy(dst.Data().([]float32), weights[name].Data().([]float32))
	}
	return nil
}

func checkDevice(name string, dev reenact.Device) error {
	if dev != reenact.CPU {
		return errors.Wrapf(reenact.ErrDeviceUnavailable, "%s has no %s kernel", name, dev)
	}
	return nil
}
