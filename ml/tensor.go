// tensor.go - Duenne Hilfsfunktionen ueber github.com/pdevine/tensor
// Alle Tensoren sind zeilenweise (row-major) float32 Dense-Tensoren.
package ml

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pdevine/tensor"
)

// FromFloats wraps s in a dense float32 tensor of the given shape. s is not copied.
func FromFloats(s []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(s))
}

// Zeros returns a zero filled float32 tensor.
func Zeros(shape ...int) *tensor.Dense {
	return FromFloats(make([]float32, tensor.Shape(shape).TotalSize()), shape...)
}

// Floats returns the float32 backing of t, materializing views first.
// The returned slice may share memory with t.
func Floats(t tensor.Tensor) ([]float32, error) {
	d, ok := tensor.Materialize(t).(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("unsupported tensor type %T", t)
	}

	f32s, ok := d.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("unsupported tensor dtype %v", d.Dtype())
	}

	return f32s, nil
}

// Concat joins ts along dim. All inputs must agree on every other dimension.
func Concat(dim int, ts ...tensor.Tensor) (*tensor.Dense, error) {
	switch len(ts) {
	case 0:
		return nil, errors.New("concat: no tensors")
	case 1:
		d, ok := tensor.Materialize(ts[0]).(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("concat: unsupported tensor type %T", ts[0])
		}
		return d.Clone().(*tensor.Dense), nil
	}

	shape := slices.Clone([]int(ts[0].Shape()))
	if dim < 0 || dim >= len(shape) {
		return nil, fmt.Errorf("concat: dim %d out of range for shape %v", dim, shape)
	}

	for _, t := range ts[1:] {
		other := t.Shape()
		if len(other) != len(shape) {
			return nil, fmt.Errorf("concat: rank mismatch %v vs %v", shape, other)
		}

		for i := range shape {
			if i != dim && shape[i] != other[i] {
				return nil, fmt.Errorf("concat: shape mismatch %v vs %v at dim %d", shape, other, i)
			}
		}

		shape[dim] += other[dim]
	}

	out, err := tensor.Concat(dim, ts[0], ts[1:]...)
	if err != nil {
		return nil, err
	}

	d, ok := tensor.Materialize(out).(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("concat: unsupported tensor type %T", out)
	}

	return d, nil
}

// Narrow returns a copy of t restricted to [low, high) along dim. Unlike a
// plain tensor.Slice, dimensions of size one are kept.
func Narrow(t tensor.Tensor, dim, low, high int) (*tensor.Dense, error) {
	shape := slices.Clone([]int(t.Shape()))
	if dim < 0 || dim >= len(shape) {
		return nil, fmt.Errorf("narrow: dim %d out of range for shape %v", dim, shape)
	}

	if low < 0 || high > shape[dim] || low >= high {
		return nil, fmt.Errorf("narrow: invalid range [%d, %d) for size %d", low, high, shape[dim])
	}

	ss := make([]tensor.Slice, len(shape))
	ss[dim] = tensor.S(low, high)

	v, err := t.Slice(ss...)
	if err != nil {
		return nil, err
	}

	d, ok := tensor.Materialize(v).(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("narrow: unsupported tensor type %T", v)
	}

	// slicing drops sliced dimensions of size one
	shape[dim] = high - low
	d = d.Clone().(*tensor.Dense)
	if err := d.Reshape(shape...); err != nil {
		return nil, err
	}

	return d, nil
}

// Unsqueeze returns a copy of t with a new dimension of size one inserted at dim.
func Unsqueeze(t *tensor.Dense, dim int) (*tensor.Dense, error) {
	shape := []int(t.Shape())
	if dim < 0 || dim > len(shape) {
		return nil, fmt.Errorf("unsqueeze: dim %d out of range for shape %v", dim, shape)
	}

	out := t.Clone().(*tensor.Dense)
	if err := out.Reshape(slices.Insert(slices.Clone(shape), dim, 1)...); err != nil {
		return nil, err
	}

	return out, nil
}
