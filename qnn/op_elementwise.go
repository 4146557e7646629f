package qnn

import "fmt"

func init() {
	RegisterNodeVisitor(OpOr{})
	RegisterNodeVisitor(OpLessEqual{})
}

// binaryElementWise lowers a two operand element-wise node. Exactly args[0]
// and args[1] are read.
func binaryElementWise(node *Node, reg *TensorRegistry, opType string) (*OpWrapper, error) {
	if len(node.Args) < 2 {
		return nil, fmt.Errorf("%w: %q has %d operands, want 2", ErrUnresolvedTensor, node.Name, len(node.Args))
	}

	out, err := reg.DefineTensor(node, node, TensorTypeNative)
	if err != nil {
		return nil, err
	}

	inputs := make([]*TensorWrapper, 2)
	for i := range inputs {
		input, err := reg.Resolve(node.Args[i], node)
		if err != nil {
			return nil, err
		}

		inputs[i], err = reg.DefineTensor(input, node, TensorTypeNative)
		if err != nil {
			return nil, err
		}
	}

	op := NewOpWrapper(node.Name, PackageNameQtiAisw, opType)
	op.AddInputTensors(inputs...)
	op.AddOutputTensors(out)
	return op, nil
}

// OpOr lowers aten.bitwise_or.Tensor to ElementWiseOr.
type OpOr struct{}

func (OpOr) Targets() []string {
	return []string{"aten.bitwise_or.Tensor"}
}

func (OpOr) DefineNode(node *Node, reg *TensorRegistry) (*OpWrapper, error) {
	return binaryElementWise(node, reg, OpElementWiseOr)
}

// OpLessEqual lowers aten.le.Tensor to ElementWiseLessEqual.
type OpLessEqual struct{}

func (OpLessEqual) Targets() []string {
	return []string{"aten.le.Tensor"}
}

func (OpLessEqual) DefineNode(node *Node, reg *TensorRegistry) (*OpWrapper, error) {
	return binaryElementWise(node, reg, OpElementWiseLessEqual)
}
