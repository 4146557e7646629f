// Package kernels - Referenz-Kernels fuer elementweise Operationen auf der CPU
//
// Dieses Paket enthaelt:
// - BroadcastShape: Zielform zweier Operanden nach NumPy-Regeln
// - BitwiseOr: bitweises Oder (bool und Ganzzahlen)
// - LessEqual/LessEqualScalar: Vergleich a <= b mit bool-Ergebnis
//
// Gleiche Formen laufen ueber einen direkten Pfad, alles andere ueber
// Broadcasting mit Schrittweite 0 fuer gestreckte Achsen.
package kernels

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrShapeMismatch = errors.New("shapes are not broadcastable")
	ErrDTypeMismatch = errors.New("operand data types differ")
	ErrUnsupported   = errors.New("unsupported data type")
)

// BroadcastShape returns the shape both operands broadcast to.
func BroadcastShape(a, b []int) ([]int, error) {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := range n {
		da, db := dimFromEnd(a, n-1-i), dimFromEnd(b, n-1-i)
		switch {
		case da == db, db == 1:
			out[i] = da
		case da == 1:
			out[i] = db
		default:
			return nil, fmt.Errorf("%w: %v and %v", ErrShapeMismatch, a, b)
		}
	}
	return out, nil
}

// dimFromEnd returns the size of the i-th dimension counted from the last,
// or 1 if shape has fewer dimensions.
func dimFromEnd(shape []int, i int) int {
	if i >= len(shape) {
		return 1
	}
	return shape[len(shape)-1-i]
}

// broadcastStrides returns the strides of shape viewed as out, with 0 for
// dimensions that are stretched.
func broadcastStrides(shape, out []int) []int {
	strides := make([]int, len(out))
	stride := 1
	for i := len(out) - 1; i >= 0; i-- {
		j := i - (len(out) - len(shape))
		if j < 0 {
			continue
		}

		if shape[j] != 1 {
			strides[i] = stride
		}
		stride *= shape[j]
	}
	return strides
}

// apply evaluates f over the broadcast of a and b.
func apply[T, U any](a, b []T, ashape, bshape []int, f func(T, T) U) ([]U, []int, error) {
	if slices.Equal(ashape, bshape) {
		out := make([]U, len(a))
		for i := range a {
			out[i] = f(a[i], b[i])
		}
		return out, slices.Clone(ashape), nil
	}

	shape, err := BroadcastShape(ashape, bshape)
	if err != nil {
		return nil, nil, err
	}

	size := 1
	for _, d := range shape {
		size *= d
	}

	as, bs := broadcastStrides(ashape, shape), broadcastStrides(bshape, shape)
	idx := make([]int, len(shape))
	out := make([]U, size)
	var ai, bi int
	for i := range out {
		out[i] = f(a[ai], b[bi])

		// advance the multi-index like an odometer
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			ai += as[d]
			bi += bs[d]
			if idx[d] < shape[d] {
				break
			}
			ai -= as[d] * shape[d]
			bi -= bs[d] * shape[d]
			idx[d] = 0
		}
	}

	return out, shape, nil
}
