package llava

import (
	"context"
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/ml"
)

// embedding table names seen in llava checkpoints, before and after the
// text rules are applied
var embedNames = []string{
	"model.embed_tokens.weight",
	"model.language_model.embed_tokens.weight",
	"language_model.model.embed_tokens.weight",
	"tok_embeddings.weight",
}

// TableEmbedder gathers rows of a [vocab, dim] table.
type TableEmbedder struct {
	Weights []float32
	Vocab   int
	Dim     int
}

func (e *TableEmbedder) Embed(ctx context.Context, ids []int32) (*tensor.Dense, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("embed: no tokens")
	}

	out := make([]float32, 0, len(ids)*e.Dim)
	for _, id := range ids {
		if id < 0 || int(id) >= e.Vocab {
			return nil, fmt.Errorf("embed: token %d outside vocabulary of %d", id, e.Vocab)
		}
		out = append(out, e.Weights[int(id)*e.Dim:(int(id)+1)*e.Dim]...)
	}

	return ml.FromFloats(out, 1, len(ids), e.Dim), nil
}

// LoadEmbedder finds the token embedding table in params.
func LoadEmbedder(params map[string]convert.Tensor) (*TableEmbedder, error) {
	for _, name := range embedNames {
		t, ok := params[name]
		if !ok {
			continue
		}

		shape := t.Shape()
		if len(shape) != 2 {
			return nil, fmt.Errorf("%s: want 2 dims, got %v", name, shape)
		}

		data, err := t.Floats()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		return &TableEmbedder{Weights: data, Vocab: int(shape[0]), Dim: int(shape[1])}, nil
	}

	return nil, fmt.Errorf("no token embedding table, tried %v", embedNames)
}
