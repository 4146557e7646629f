// MODUL: visitor
// ZWECK: Registry der Node-Visitors, ein Visitor pro aten-Ziel
// INPUT: NodeVisitor Implementierungen
// OUTPUT: Visitor fuer ein Ziel (z.B. "aten.bitwise_or.Tensor")
// NEBENEFFEKTE: RegisterNodeVisitor aendert DefaultVisitors
// ABHAENGIGKEITEN: sync (stdlib)
// HINWEISE: Doppelte Registrierung ist ein Programmierfehler und fuehrt zu panic

package qnn

import (
	"errors"
	"slices"
	"sync"
)

var ErrNoVisitor = errors.New("no node visitor for target")

// NodeVisitor turns one graph node into a QNN op.
type NodeVisitor interface {
	// Targets returns the aten operations this visitor handles
	Targets() []string

	// DefineNode registers the node's tensors in reg and returns the op
	DefineNode(node *Node, reg *TensorRegistry) (*OpWrapper, error)
}

// LoweringError is returned when a node cannot be lowered.
type LoweringError struct {
	Node   string
	Target string
	Err    error
}

func (e *LoweringError) Error() string {
	return "qnn: lower node '" + e.Node + "' (" + e.Target + "): " + e.Err.Error()
}

func (e *LoweringError) Unwrap() error {
	return e.Err
}

// VisitorRegistry maps targets to visitors.
type VisitorRegistry struct {
	visitors map[string]NodeVisitor
	mu       sync.RWMutex
}

func NewVisitorRegistry() *VisitorRegistry {
	return &VisitorRegistry{
		visitors: make(map[string]NodeVisitor),
	}
}

// Register adds v under each of its targets. It panics if a target already
// has a visitor.
func (r *VisitorRegistry) Register(v NodeVisitor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, target := range v.Targets() {
		if _, exists := r.visitors[target]; exists {
			panic("qnn: node visitor already registered for " + target)
		}
	}

	for _, target := range v.Targets() {
		r.visitors[target] = v
	}
}

// Get returns the visitor for target.
func (r *VisitorRegistry) Get(target string) (NodeVisitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.visitors[target]
	return v, exists
}

// Targets returns every registered target, sorted.
func (r *VisitorRegistry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]string, 0, len(r.visitors))
	for target := range r.visitors {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	return targets
}

// DefaultVisitors holds the visitors registered by this package.
var DefaultVisitors = NewVisitorRegistry()

// RegisterNodeVisitor adds v to DefaultVisitors.
func RegisterNodeVisitor(v NodeVisitor) {
	DefaultVisitors.Register(v)
}
