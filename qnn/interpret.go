package qnn

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/kernels"
)

var cpuKernels = map[string]func(a, b *tensor.Dense) (*tensor.Dense, error){
	OpElementWiseOr:        kernels.BitwiseOr,
	OpElementWiseLessEqual: kernels.LessEqual,
}

// Interpret runs p on the CPU reference kernels. inputs are keyed by the
// names of the APP_WRITE tensors; the result holds every APP_READ tensor.
func Interpret(p *Program, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	values := make(map[string]*tensor.Dense, len(p.Tensors))
	for _, t := range p.Tensors {
		if t.Type != TensorTypeAppWrite {
			continue
		}

		v, ok := inputs[t.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing input %q", ErrUnresolvedTensor, t.Name)
		}
		values[t.Name] = v
	}

	for _, op := range p.Ops {
		kernel, ok := cpuKernels[op.OpType]
		if !ok {
			return nil, fmt.Errorf("no cpu kernel for %s", op.OpType)
		}

		if len(op.Inputs) != 2 || len(op.Outputs) != 1 {
			return nil, fmt.Errorf("op %q: want 2 inputs and 1 output, got %d and %d", op.Name, len(op.Inputs), len(op.Outputs))
		}

		a, ok := values[op.Inputs[0]]
		if !ok {
			return nil, fmt.Errorf("%w: %q read by %q", ErrUnresolvedTensor, op.Inputs[0], op.Name)
		}

		b, ok := values[op.Inputs[1]]
		if !ok {
			return nil, fmt.Errorf("%w: %q read by %q", ErrUnresolvedTensor, op.Inputs[1], op.Name)
		}

		out, err := kernel(a, b)
		if err != nil {
			return nil, fmt.Errorf("op %q: %w", op.Name, err)
		}
		values[op.Outputs[0]] = out
	}

	outputs := make(map[string]*tensor.Dense)
	for _, t := range p.Tensors {
		if t.Type == TensorTypeAppRead {
			outputs[t.Name] = values[t.Name]
		}
	}
	return outputs, nil
}
