package qnn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/v2/maps/linkedhashmap"
)

var ErrUnresolvedTensor = errors.New("unresolved tensor")

// TensorRegistry maps graph nodes to their QNN tensors for one lowering
// pass. Entries are only ever added and keep their insertion order.
type TensorRegistry struct {
	graph *Graph

	mu      sync.Mutex
	tensors *linkedhashmap.Map[string, *TensorWrapper]
}

func NewTensorRegistry(g *Graph) *TensorRegistry {
	return &TensorRegistry{
		graph:   g,
		tensors: linkedhashmap.New[string, *TensorWrapper](),
	}
}

// Graph returns the graph being lowered.
func (r *TensorRegistry) Graph() *Graph {
	return r.graph
}

// Resolve returns the node an argument refers to.
func (r *TensorRegistry) Resolve(name string, consumer *Node) (*Node, error) {
	n, ok := r.graph.Node(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q used by %q", ErrUnresolvedTensor, name, consumer.Name)
	}
	return n, nil
}

// DefineTensor returns the tensor of node, creating it on first use.
// Graph inputs and outputs override tensorType.
func (r *TensorRegistry) DefineTensor(node, consumer *Node, tensorType TensorType) (*TensorWrapper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tensors.Get(node.Name); ok {
		return t, nil
	}

	dtype, err := node.dtype()
	if err != nil {
		return nil, fmt.Errorf("%w: %q used by %q: %v", ErrUnresolvedTensor, node.Name, consumer.Name, err)
	}

	dataType, err := DataTypeOf(dtype)
	if err != nil {
		return nil, fmt.Errorf("%w: %q used by %q: %v", ErrUnresolvedTensor, node.Name, consumer.Name, err)
	}

	if node.Meta.Shape == nil {
		return nil, fmt.Errorf("%w: %q used by %q has no shape", ErrUnresolvedTensor, node.Name, consumer.Name)
	}

	dims := make([]uint32, len(node.Meta.Shape))
	for i, d := range node.Meta.Shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: %q has negative dimension %v", ErrUnresolvedTensor, node.Name, node.Meta.Shape)
		}
		dims[i] = uint32(d)
	}

	switch {
	case r.graph.IsInput(node):
		tensorType = TensorTypeAppWrite
	case r.graph.IsOutput(node):
		tensorType = TensorTypeAppRead
	case node.Op == OpGetAttr:
		tensorType = TensorTypeStatic
	}

	t := &TensorWrapper{
		ID:       uint32(r.tensors.Size()),
		Name:     node.Name,
		Type:     tensorType,
		DataType: dataType,
		Dims:     dims,
	}

	r.tensors.Put(node.Name, t)
	return t, nil
}

// Lookup returns the tensor registered for the node called name.
func (r *TensorRegistry) Lookup(name string) (*TensorWrapper, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tensors.Get(name)
}

// Tensors returns every registered tensor in registration order.
func (r *TensorRegistry) Tensors() []*TensorWrapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tensors.Values()
}

func (r *TensorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tensors.Size()
}
