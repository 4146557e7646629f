package llava

import (
	"context"
	"math"
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/ml"
)

func projectorParams() map[string]convert.Tensor {
	ts := []convert.Tensor{
		// [out=3, in=2]
		convert.NewTensor("multi_modal_projector.linear_1.weight", []uint64{3, 2}, []float32{1, 0, 0, 1, 1, 1}),
		convert.NewTensor("multi_modal_projector.linear_1.bias", []uint64{3}, []float32{0, 0, -10}),
		// [out=1, in=3]
		convert.NewTensor("multi_modal_projector.linear_2.weight", []uint64{1, 3}, []float32{1, 2, 3}),
		convert.NewTensor("multi_modal_projector.linear_2.bias", []uint64{1}, []float32{0.5}),
	}

	params := make(map[string]convert.Tensor)
	for _, t := range ts {
		params[t.Name()] = t
	}
	return params
}

func TestProjector(t *testing.T) {
	p, err := LoadProjector(projectorParams(), "relu")
	require.NoError(t, err)

	// rows (1, 2) and (3, -4)
	got, err := p.Project(context.Background(), ml.FromFloats([]float32{1, 2, 3, -4}, 1, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 1}, got.Shape())

	// hidden relu([1, 2, -7]) = [1, 2, 0] -> 1 + 4 + 0 + 0.5
	// hidden relu([3, -4, -11]) = [3, 0, 0] -> 3 + 0.5
	assert.InDeltaSlice(t, []float32{5.5, 3.5}, floats(t, got), 1e-6)

	_, err = p.Project(context.Background(), ml.Zeros(1, 2, 3))
	assert.Error(t, err)
}

func TestGELU(t *testing.T) {
	assert.InDelta(t, 0, gelu(0), 1e-12)
	assert.InDelta(t, 0.8413447, gelu(1), 1e-6)
	assert.InDelta(t, -0.1586553, gelu(-1), 1e-6)
	assert.InDelta(t, 10, gelu(10), 1e-6)
	assert.False(t, math.IsNaN(gelu(-40)))
}

func TestLoadProjectorErrors(t *testing.T) {
	_, err := LoadProjector(projectorParams(), "swish")
	assert.Error(t, err)

	params := projectorParams()
	delete(params, "multi_modal_projector.linear_2.weight")
	_, err = LoadProjector(params, "gelu")
	assert.ErrorContains(t, err, "linear_2.weight")

	params = projectorParams()
	params["multi_modal_projector.linear_2.weight"] = convert.NewTensor("multi_modal_projector.linear_2.weight", []uint64{1, 4}, make([]float32, 4))
	_, err = LoadProjector(params, "gelu")
	assert.ErrorContains(t, err, "do not chain")

	params = projectorParams()
	params["multi_modal_projector.linear_1.bias"] = convert.NewTensor("multi_modal_projector.linear_1.bias", []uint64{2}, make([]float32, 2))
	_, err = LoadProjector(params, "gelu")
	assert.ErrorContains(t, err, "linear_1.bias")
}

func TestEmbedder(t *testing.T) {
	params := map[string]convert.Tensor{
		"model.embed_tokens.weight": convert.NewTensor("model.embed_tokens.weight", []uint64{3, 2}, []float32{0, 1, 10, 11, 20, 21}),
	}

	e, err := LoadEmbedder(params)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Vocab)
	assert.Equal(t, 2, e.Dim)

	got, err := e.Embed(context.Background(), []int32{2, 0})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2}, got.Shape())
	assert.Equal(t, []float32{20, 21, 0, 1}, floats(t, got))

	_, err = e.Embed(context.Background(), []int32{3})
	assert.Error(t, err)
	_, err = e.Embed(context.Background(), nil)
	assert.Error(t, err)

	_, err = LoadEmbedder(map[string]convert.Tensor{})
	assert.Error(t, err)
}
