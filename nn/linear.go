package nn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// linear is a fully connected layer: y = W·x + b, with W shaped (out, in).
type linear struct {
	weight *tensor.Dense
	bias   *tensor.Dense
}

func newLinear(p *parameters, name string, in, out int) *linear {
	return &linear{
		weight: p.add(name+".weight", out, in),
		bias:   p.add(name+".bias", out),
	}
}

func (l *linear) forward(x []float32) (*tensor.Dense, error) {
	in := tensor.New(tensor.WithShape(len(x)), tensor.WithBacking(x))
	y, err := l.weight.MatVecMul(in)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do W·x for the linear layer")
	}
	if _, err := y.Add(l.bias, tensor.UseUnsafe()); err != nil {
		return nil, errors.Wrap(err, "Can't add the bias of the linear layer")
	}
	return y, nil
}
