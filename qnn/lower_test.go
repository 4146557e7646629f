package qnn

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orGraph = `{
  "nodes": [
    {"name": "x", "op": "placeholder", "meta": {"shape": [4], "dtype": "torch.int32"}},
    {"name": "y", "op": "placeholder", "meta": {"shape": [4], "dtype": "torch.int32"}},
    {"name": "bitwise_or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["x", "y"], "meta": {"shape": [4], "dtype": "torch.int32"}},
    {"name": "le", "op": "call_function", "target": "aten.le.Tensor", "args": ["bitwise_or", "y"], "meta": {"shape": [4], "dtype": "torch.bool"}},
    {"name": "output", "op": "output", "args": ["le"]}
  ]
}`

func parse(t *testing.T, s string) *Graph {
	t.Helper()
	g, err := ParseGraph(strings.NewReader(s))
	require.NoError(t, err)
	return g
}

func TestOpOrDefineNode(t *testing.T) {
	g := parse(t, orGraph)
	reg := NewTensorRegistry(g)

	x, _ := g.Node("x")
	y, _ := g.Node("y")
	or, _ := g.Node("bitwise_or")

	// inputs and output are already registered
	for _, n := range []*Node{x, y, or} {
		_, err := reg.DefineTensor(n, or, TensorTypeNative)
		require.NoError(t, err)
	}
	require.Equal(t, 3, reg.Len())

	op, err := OpOr{}.DefineNode(or, reg)
	require.NoError(t, err)

	want := &OpWrapper{
		Name:        "bitwise_or",
		PackageName: PackageNameQtiAisw,
		OpType:      OpElementWiseOr,
		Inputs:      []string{"x", "y"},
		Outputs:     []string{"bitwise_or"},
	}
	if diff := cmp.Diff(want, op); diff != "" {
		t.Errorf("DefineNode (-want +got):\n%s", diff)
	}

	// handles are reused, nothing new is registered
	assert.Equal(t, 3, reg.Len())

	tx, ok := reg.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, []uint32{4}, tx.Dims)
	assert.Equal(t, DataTypeInt32, tx.DataType)
}

func TestOpOrReadsTwoOperands(t *testing.T) {
	g := parse(t, `{"nodes": [
		{"name": "a", "op": "placeholder", "meta": {"shape": [2], "dtype": "bool"}},
		{"name": "b", "op": "placeholder", "meta": {"shape": [2], "dtype": "bool"}},
		{"name": "c", "op": "placeholder", "meta": {"shape": [2], "dtype": "bool"}},
		{"name": "or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["a", "b", "c"], "meta": {"shape": [2], "dtype": "bool"}}
	]}`)

	p, err := Lower(g)
	require.NoError(t, err)
	require.Len(t, p.Ops, 1)
	assert.Equal(t, []string{"a", "b"}, p.Ops[0].Inputs)

	_, ok := p.Tensor("c")
	assert.False(t, ok)
}

func TestLower(t *testing.T) {
	p, err := Lower(parse(t, orGraph))
	require.NoError(t, err)

	require.Len(t, p.Ops, 2)
	assert.Equal(t, OpElementWiseOr, p.Ops[0].OpType)
	assert.Equal(t, OpElementWiseLessEqual, p.Ops[1].OpType)
	assert.Equal(t, []string{"bitwise_or", "y"}, p.Ops[1].Inputs)

	types := make(map[string]TensorType)
	ids := make([]uint32, 0, len(p.Tensors))
	for _, tw := range p.Tensors {
		types[tw.Name] = tw.Type
		ids = append(ids, tw.ID)
	}

	assert.Equal(t, map[string]TensorType{
		"x":          TensorTypeAppWrite,
		"y":          TensorTypeAppWrite,
		"bitwise_or": TensorTypeNative,
		"le":         TensorTypeAppRead,
	}, types)
	assert.Equal(t, []uint32{0, 1, 2, 3}, ids)

	// output is defined before inputs
	assert.Equal(t, "bitwise_or", p.Tensors[0].Name)

	b, err := json.Marshal(p.Ops[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bitwise_or","package_name":"qti.aisw","op_type":"ElementWiseOr","inputs":["x","y"],"outputs":["bitwise_or"]}`, string(b))
}

func TestLowerAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		graph string
		err   error
	}{
		{
			name: "no visitor",
			graph: `{"nodes": [
				{"name": "x", "op": "placeholder", "meta": {"shape": [4], "dtype": "int32"}},
				{"name": "or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["x", "x"], "meta": {"shape": [4], "dtype": "int32"}},
				{"name": "xor", "op": "call_function", "target": "aten.bitwise_xor.Tensor", "args": ["or", "x"], "meta": {"shape": [4], "dtype": "int32"}}
			]}`,
			err: ErrNoVisitor,
		},
		{
			name: "missing operand",
			graph: `{"nodes": [
				{"name": "x", "op": "placeholder", "meta": {"shape": [4], "dtype": "int32"}},
				{"name": "or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["x"], "meta": {"shape": [4], "dtype": "int32"}}
			]}`,
			err: ErrUnresolvedTensor,
		},
		{
			name: "unknown dtype",
			graph: `{"nodes": [
				{"name": "x", "op": "placeholder", "meta": {"shape": [4], "dtype": "complex64"}},
				{"name": "or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["x", "x"], "meta": {"shape": [4], "dtype": "int32"}}
			]}`,
			err: ErrUnresolvedTensor,
		},
		{
			name: "no qnn type",
			graph: `{"nodes": [
				{"name": "x", "op": "placeholder", "meta": {"shape": [4], "dtype": "bfloat16"}},
				{"name": "le", "op": "call_function", "target": "aten.le.Tensor", "args": ["x", "x"], "meta": {"shape": [4], "dtype": "bool"}}
			]}`,
			err: ErrUnresolvedTensor,
		},
		{
			name: "no shape",
			graph: `{"nodes": [
				{"name": "x", "op": "placeholder", "meta": {"dtype": "int32"}},
				{"name": "or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["x", "x"], "meta": {"shape": [4], "dtype": "int32"}}
			]}`,
			err: ErrUnresolvedTensor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lower(parse(t, tt.graph))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.err)

			var lerr *LoweringError
			assert.True(t, errors.As(err, &lerr))
		})
	}
}

func TestParseGraphErrors(t *testing.T) {
	for _, s := range []string{
		`{"nodes": [{"name": "a", "op": "placeholder"}, {"name": "a", "op": "placeholder"}]}`,
		`{"nodes": [{"name": "b", "op": "call_function", "args": ["a"]}, {"name": "a", "op": "placeholder"}]}`,
		`{"nodes": [{"op": "placeholder"}]}`,
		`{"nodes": `,
	} {
		_, err := ParseGraph(strings.NewReader(s))
		assert.ErrorIs(t, err, ErrInvalidGraph, s)
	}
}

func TestVisitorRegistry(t *testing.T) {
	r := NewVisitorRegistry()
	r.Register(OpOr{})
	r.Register(OpLessEqual{})

	assert.Equal(t, []string{"aten.bitwise_or.Tensor", "aten.le.Tensor"}, r.Targets())
	assert.Panics(t, func() { r.Register(OpOr{}) })

	_, ok := r.Get("aten.add.Tensor")
	assert.False(t, ok)

	assert.Equal(t, r.Targets(), DefaultVisitors.Targets())
}

func TestInterpret(t *testing.T) {
	p, err := Lower(parse(t, orGraph))
	require.NoError(t, err)

	x := tensor.New(tensor.WithShape(4), tensor.WithBacking([]int32{1, 2, 4, 8}))
	y := tensor.New(tensor.WithShape(4), tensor.WithBacking([]int32{1, 1, 8, 1}))

	out, err := Interpret(p, map[string]*tensor.Dense{"x": x, "y": y})
	require.NoError(t, err)
	require.Contains(t, out, "le")

	// x|y = [1, 3, 12, 9]
	assert.Equal(t, []bool{true, false, false, false}, out["le"].Data())

	_, err = Interpret(p, map[string]*tensor.Dense{"x": x})
	assert.ErrorIs(t, err, ErrUnresolvedTensor)
}
