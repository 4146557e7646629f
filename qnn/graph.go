// Package qnn - Absenken von Graph-Knoten auf QNN-Operationen
//
// Dieses Paket enthaelt:
// - Graph/Node: exportierter Rechengraph (JSON), Argumente per Knotenname
// - TensorWrapper/OpWrapper: QNN-Datensaetze, die der Graph-Compiler liest
// - TensorRegistry: Knoten -> TensorWrapper Cache fuer einen Durchlauf
// - NodeVisitor: ein Visitor pro aten-Operation (OpOr, OpLessEqual)
// - Lower: Durchlauf ueber alle call_function Knoten, alles oder nichts
// - Interpret: Referenz-Ausfuehrung eines abgesenkten Programms auf der CPU
package qnn

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sis-k/executorch/ml"
)

// Knoten-Arten eines exportierten Graphen
const (
	OpPlaceholder  = "placeholder"
	OpCallFunction = "call_function"
	OpGetAttr      = "get_attr"
	OpOutput       = "output"
)

var ErrInvalidGraph = errors.New("invalid graph")

// TensorMeta describes the value a node produces.
type TensorMeta struct {
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
}

// Node is one operation of an exported graph. Args name earlier nodes.
type Node struct {
	Name   string     `json:"name"`
	Op     string     `json:"op"`
	Target string     `json:"target,omitempty"`
	Args   []string   `json:"args,omitempty"`
	Meta   TensorMeta `json:"meta"`
}

// Graph holds nodes in topological order.
type Graph struct {
	Nodes []*Node `json:"nodes"`

	index map[string]*Node
	users map[string][]*Node
}

// NewGraph indexes nodes and checks that every argument names an earlier
// node.
func NewGraph(nodes []*Node) (*Graph, error) {
	g := &Graph{
		Nodes: nodes,
		index: make(map[string]*Node, len(nodes)),
		users: make(map[string][]*Node),
	}

	for _, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("%w: node without name", ErrInvalidGraph)
		}

		if _, ok := g.index[n.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrInvalidGraph, n.Name)
		}

		for _, arg := range n.Args {
			if _, ok := g.index[arg]; !ok {
				return nil, fmt.Errorf("%w: node %q uses %q before it is defined", ErrInvalidGraph, n.Name, arg)
			}
			g.users[arg] = append(g.users[arg], n)
		}

		g.index[n.Name] = n
	}

	return g, nil
}

// ParseGraph decodes a graph from JSON.
func ParseGraph(r io.Reader) (*Graph, error) {
	var raw struct {
		Nodes []*Node `json:"nodes"`
	}

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	return NewGraph(raw.Nodes)
}

// Node returns the node called name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.index[name]
	return n, ok
}

// IsInput reports whether n is fed by the application.
func (g *Graph) IsInput(n *Node) bool {
	return n.Op == OpPlaceholder
}

// IsOutput reports whether n is read back by the application.
func (g *Graph) IsOutput(n *Node) bool {
	for _, u := range g.users[n.Name] {
		if u.Op == OpOutput {
			return true
		}
	}
	return false
}

// dtype parses the meta data type of n.
func (n *Node) dtype() (ml.DType, error) {
	return ml.ParseDType(n.Meta.DType)
}
