package llava

import (
	"context"
	"fmt"
	"math"

	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/mat"

	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/ml"
)

const projectorPrefix = "multi_modal_projector."

// Linear is y = x W^T + b with W stored [out, in] as in the checkpoint.
type Linear struct {
	Weight *mat.Dense
	Bias   []float64
}

func (l *Linear) In() int {
	_, c := l.Weight.Dims()
	return c
}

func (l *Linear) Out() int {
	r, _ := l.Weight.Dims()
	return r
}

func (l *Linear) forward(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.Weight.T())
	if l.Bias != nil {
		rows, _ := y.Dims()
		for i := range rows {
			row := y.RawRowView(i)
			for j, b := range l.Bias {
				row[j] += b
			}
		}
	}
	return &y
}

// MLPProjector is linear_1, activation, linear_2.
type MLPProjector struct {
	Linear1, Linear2 *Linear
	Act              func(float64) float64
}

func gelu(x float64) float64 {
	return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
}

func activation(name string) (func(float64) float64, error) {
	switch name {
	case "", "gelu":
		return gelu, nil
	case "relu":
		return func(x float64) float64 { return max(x, 0) }, nil
	case "identity", "linear":
		return func(x float64) float64 { return x }, nil
	default:
		return nil, fmt.Errorf("unsupported projector activation %q", name)
	}
}

// Project maps [batch, seq, in] features to [batch, seq, out].
func (p *MLPProjector) Project(ctx context.Context, features *tensor.Dense) (*tensor.Dense, error) {
	shape := features.Shape()
	if len(shape) != 3 || shape[2] != p.Linear1.In() {
		return nil, fmt.Errorf("projector expects [batch, seq, %d], got %v", p.Linear1.In(), shape)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f32s, err := ml.Floats(features)
	if err != nil {
		return nil, err
	}

	rows := shape[0] * shape[1]
	x := mat.NewDense(rows, shape[2], toFloat64(f32s))

	h := p.Linear1.forward(x)
	h.Apply(func(_, _ int, v float64) float64 { return p.Act(v) }, h)
	y := p.Linear2.forward(h)

	out := make([]float32, 0, rows*p.Linear2.Out())
	for i := range rows {
		for _, v := range y.RawRowView(i) {
			out = append(out, float32(v))
		}
	}

	return ml.FromFloats(out, shape[0], shape[1], p.Linear2.Out()), nil
}

func loadLinear(params map[string]convert.Tensor, name string) (*Linear, error) {
	w, ok := params[name+".weight"]
	if !ok {
		return nil, fmt.Errorf("missing tensor %s.weight", name)
	}

	shape := w.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("%s.weight: want 2 dims, got %v", name, shape)
	}

	data, err := w.Floats()
	if err != nil {
		return nil, fmt.Errorf("%s.weight: %w", name, err)
	}

	l := &Linear{Weight: mat.NewDense(int(shape[0]), int(shape[1]), toFloat64(data))}

	if b, ok := params[name+".bias"]; ok {
		data, err := b.Floats()
		if err != nil {
			return nil, fmt.Errorf("%s.bias: %w", name, err)
		}

		if len(data) != int(shape[0]) {
			return nil, fmt.Errorf("%s.bias: %d values for %d outputs", name, len(data), shape[0])
		}
		l.Bias = toFloat64(data)
	}

	return l, nil
}

// LoadProjector builds the projector from multi_modal_projector.* tensors.
func LoadProjector(params map[string]convert.Tensor, act string) (*MLPProjector, error) {
	fn, err := activation(act)
	if err != nil {
		return nil, err
	}

	l1, err := loadLinear(params, projectorPrefix+"linear_1")
	if err != nil {
		return nil, err
	}

	l2, err := loadLinear(params, projectorPrefix+"linear_2")
	if err != nil {
		return nil, err
	}

	if l1.Out() != l2.In() {
		return nil, fmt.Errorf("projector layers do not chain: %d -> %d", l1.Out(), l2.In())
	}

	return &MLPProjector{Linear1: l1, Linear2: l2, Act: fn}, nil
}

func toFloat64(s []float32) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
