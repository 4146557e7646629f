package qnn

import (
	"log/slog"

	"github.com/sis-k/executorch/logutil"
)

// Lower lowers g with DefaultVisitors.
func Lower(g *Graph) (*Program, error) {
	return DefaultVisitors.Lower(g)
}

// Lower visits every call_function node of g in order. The first failing
// node aborts the pass and no program is returned.
func (r *VisitorRegistry) Lower(g *Graph) (*Program, error) {
	reg := NewTensorRegistry(g)

	var ops []*OpWrapper
	for _, node := range g.Nodes {
		if node.Op != OpCallFunction {
			continue
		}

		v, ok := r.Get(node.Target)
		if !ok {
			return nil, &LoweringError{Node: node.Name, Target: node.Target, Err: ErrNoVisitor}
		}

		op, err := v.DefineNode(node, reg)
		if err != nil {
			return nil, &LoweringError{Node: node.Name, Target: node.Target, Err: err}
		}

		logutil.Trace("lowered node", "node", node.Name, "target", node.Target, "op", op.OpType, "inputs", op.Inputs)
		ops = append(ops, op)
	}

	slog.Debug("lowered graph", "nodes", len(g.Nodes), "ops", len(ops), "tensors", reg.Len())
	return &Program{Tensors: reg.Tensors(), Ops: ops}, nil
}
