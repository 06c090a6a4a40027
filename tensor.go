package reenact

import (
	"gorgonia.org/tensor"
)

// NewTensor wraps the float32 backing slice into a tensor of the provided shape.
func NewTensor(data []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// NewFrame returns a black frame of the provided size, shaped (1, 3, height, width).
func NewFrame(height, width int) *tensor.Dense {
	return NewTensor(make([]float32, 3*height*width), 1, 3, height, width)
}

// Float32s returns the backing slice of a float32 tensor.
func Float32s(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, shapeErrorf("tensor is missing")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, shapeErrorf("expected float32 tensor, got %v", t.Dtype())
	}
	return data, nil
}

// FrameSize returns the height and width of a frame tensor.
func FrameSize(frame *tensor.Dense) (height, width int, err error) {
	if err := expectShape("frame", frame, 1, 3, -1, -1); err != nil {
		return 0, 0, err
	}
	shape := frame.Shape()
	return shape[2], shape[3], nil
}

// expectShape verifies the tensor rank and dimensions. A negative dimension matches any size.
func expectShape(name string, t *tensor.Dense, dims ...int) error {
	if t == nil {
		return shapeErrorf("%s is missing", name)
	}
	shape := t.Shape()
	if len(shape) != len(dims) {
		return shapeErrorf("%s: expected %d dimensions, got shape %v", name, len(dims), shape)
	}
	for i, d := range dims {
		if d >= 0 && shape[i] != d {
			return shapeErrorf("%s: expected dimension %d to be %d, got shape %v", name, i, d, shape)
		}
	}
	if _, ok := t.Data().([]float32); !ok {
		return shapeErrorf("%s: expected float32 tensor, got %v", name, t.Dtype())
	}
	return nil
}
