// dump.go - Textausgabe von Tensoren fuer Debugging (executorch preprocess --dump)
// Gekuerzte Darstellung grosser Tensoren mit "..." wie bei numpy.
package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdevine/tensor"
)

func mul(s ...int) int {
	p := 1
	for _, v := range s {
		p *= v
	}
	return p
}

// DumpOptions configures tensor dump output format.
type DumpOptions func(*dumpOptions)

// DumpWithPrecision sets the number of decimal places to print.
func DumpWithPrecision(n int) DumpOptions {
	return func(opts *dumpOptions) { opts.precision = n }
}

// DumpWithThreshold prints every element when the tensor has at most n of
// them. Larger tensors only show the edge items of each dimension.
func DumpWithThreshold(n int) DumpOptions {
	return func(opts *dumpOptions) { opts.threshold = n }
}

// DumpWithEdgeItems sets how many leading and trailing elements per dimension are shown.
func DumpWithEdgeItems(n int) DumpOptions {
	return func(opts *dumpOptions) { opts.edgeItems = n }
}

// DumpWithHeader stellt Shape und Dtype in einer eigenen Zeile voran
func DumpWithHeader() DumpOptions {
	return func(opts *dumpOptions) { opts.header = true }
}

type dumpOptions struct {
	precision, threshold, edgeItems int
	header                          bool
}

type dumper struct {
	dumpOptions

	sb    strings.Builder
	data  []float32
	shape []int
}

func (d *dumper) value(v float32) {
	text := strconv.FormatFloat(float64(v), 'f', d.precision, 32)
	if !strings.HasPrefix(text, "-") {
		d.sb.WriteByte(' ')
	}
	d.sb.WriteString(text)
}

// block schreibt die Dimensionen dims, beginnend beim flachen Index offset
func (d *dumper) block(dims []int, offset int) {
	inner := mul(dims[1:]...)
	sep := strings.Repeat("\n", len(dims)-1) + strings.Repeat(" ", len(d.shape)-len(dims)+1)

	d.sb.WriteByte('[')
	for i := 0; i < dims[0]; i++ {
		if i == d.edgeItems && dims[0]-d.edgeItems > d.edgeItems {
			d.sb.WriteString("..., ")
			if len(dims) > 1 {
				d.sb.WriteString(sep)
			}
			i = dims[0] - d.edgeItems - 1
			continue
		}

		last := i == dims[0]-1
		if len(dims) > 1 {
			d.block(dims[1:], offset+i*inner)
			if !last {
				d.sb.WriteByte(',')
				d.sb.WriteString(sep)
			}
			continue
		}

		d.value(d.data[offset+i])
		if !last {
			d.sb.WriteString(", ")
		}
	}
	d.sb.WriteByte(']')
}

// Dump converts a float32 tensor to a human-readable string representation.
func Dump(t tensor.Tensor, optsFuncs ...DumpOptions) string {
	d := dumper{
		dumpOptions: dumpOptions{precision: 4, threshold: 1000, edgeItems: 3},
		shape:       []int(t.Shape()),
	}
	for _, fn := range optsFuncs {
		fn(&d.dumpOptions)
	}

	if mul(d.shape...) <= d.threshold {
		d.edgeItems = math.MaxInt
	}

	data, err := Floats(t)
	if err != nil {
		return "<unsupported>"
	}
	d.data = data

	if d.header {
		fmt.Fprintf(&d.sb, "shape=%v dtype=%s\n", d.shape, t.Dtype())
	}

	if len(d.shape) == 0 {
		d.sb.WriteString(strconv.FormatFloat(float64(data[0]), 'f', d.precision, 32))
		return d.sb.String()
	}

	d.block(d.shape, 0)
	return d.sb.String()
}
