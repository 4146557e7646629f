package kernels

import (
	"cmp"
	"fmt"

	"github.com/pdevine/tensor"
)

func dense[T any](data []T, shape []int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func binary[T, U any](a, b *tensor.Dense, f func(T, T) U) (*tensor.Dense, error) {
	ad, ok := a.Data().([]T)
	if !ok {
		return nil, fmt.Errorf("%w: scalar operand, reshape to [1]", ErrUnsupported)
	}

	bd, ok := b.Data().([]T)
	if !ok {
		return nil, fmt.Errorf("%w: %v and %v", ErrDTypeMismatch, a.Dtype(), b.Dtype())
	}

	out, shape, err := apply(ad, bd, a.Shape(), b.Shape(), f)
	if err != nil {
		return nil, err
	}

	return dense(out, shape), nil
}

func or[T interface {
	~uint8 | ~int8 | ~int16 | ~int32 | ~int64
}](x, y T) T {
	return x | y
}

// BitwiseOr computes a | b for bool and integer tensors of the same type.
func BitwiseOr(a, b *tensor.Dense) (*tensor.Dense, error) {
	a, b = materialize(a), materialize(b)
	switch a.Data().(type) {
	case []bool:
		return binary(a, b, func(x, y bool) bool { return x || y })
	case []uint8:
		return binary(a, b, or[uint8])
	case []int8:
		return binary(a, b, or[int8])
	case []int16:
		return binary(a, b, or[int16])
	case []int32:
		return binary(a, b, or[int32])
	case []int64:
		return binary(a, b, or[int64])
	default:
		return nil, fmt.Errorf("%w: bitwise_or on %v", ErrUnsupported, a.Dtype())
	}
}

func le[T cmp.Ordered](x, y T) bool {
	return x <= y
}

// LessEqual computes a <= b elementwise. The result is a bool tensor.
func LessEqual(a, b *tensor.Dense) (*tensor.Dense, error) {
	a, b = materialize(a), materialize(b)
	switch a.Data().(type) {
	case []bool:
		// false < true
		return binary(a, b, func(x, y bool) bool { return !x || y })
	case []uint8:
		return binary(a, b, le[uint8])
	case []int8:
		return binary(a, b, le[int8])
	case []int16:
		return binary(a, b, le[int16])
	case []int32:
		return binary(a, b, le[int32])
	case []int64:
		return binary(a, b, le[int64])
	case []float32:
		return binary(a, b, le[float32])
	case []float64:
		return binary(a, b, le[float64])
	default:
		return nil, fmt.Errorf("%w: le on %v", ErrUnsupported, a.Dtype())
	}
}

func scalar[T any](a *tensor.Dense, f func(T) bool) *tensor.Dense {
	data := a.Data().([]T)
	out := make([]bool, len(data))
	for i, v := range data {
		out[i] = f(v)
	}
	return dense(out, a.Shape().Clone())
}

// LessEqualScalar computes a <= b with b compared in float64.
func LessEqualScalar(a *tensor.Dense, b float64) (*tensor.Dense, error) {
	a = materialize(a)
	switch a.Data().(type) {
	case []bool:
		return scalar(a, func(x bool) bool { return b >= 1 || (!x && b >= 0) }), nil
	case []uint8:
		return scalar(a, func(x uint8) bool { return float64(x) <= b }), nil
	case []int8:
		return scalar(a, func(x int8) bool { return float64(x) <= b }), nil
	case []int16:
		return scalar(a, func(x int16) bool { return float64(x) <= b }), nil
	case []int32:
		return scalar(a, func(x int32) bool { return float64(x) <= b }), nil
	case []int64:
		return scalar(a, func(x int64) bool { return float64(x) <= b }), nil
	case []float32:
		return scalar(a, func(x float32) bool { return float64(x) <= b }), nil
	case []float64:
		return scalar(a, func(x float64) bool { return x <= b }), nil
	default:
		return nil, fmt.Errorf("%w: le on %v", ErrUnsupported, a.Dtype())
	}
}

func materialize(t *tensor.Dense) *tensor.Dense {
	if !t.IsMaterializable() {
		return t
	}
	return tensor.Materialize(t).(*tensor.Dense)
}
