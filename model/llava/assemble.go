package llava

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/ml"
	"github.com/sis-k/executorch/vision"
)

// Model wires the external components together for prefill and decode.
type Model struct {
	Extractor *FeatureExtractor
	Embedder  TokenEmbedder
	Decoder   TextDecoder

	// CropHeight and CropWidth are the vision tower's input canvas
	CropHeight, CropWidth int

	Normalize vision.NormalizeOptions

	// MaxSeqLen bounds the cache of every session
	MaxSeqLen int
}

// Components are the externally provided parts of a model.
type Components struct {
	Encoder   VisionEncoder
	Projector Projector
	Embedder  TokenEmbedder
	Decoder   TextDecoder
}

// New configures a model from config.json and preprocessor_config.json.
// Either config may be nil, in which case the llava-1.5 defaults apply.
func New(config *huggingface.ModelConfig, pre *huggingface.PreprocessorConfig, c Components, maxSeqLen int) (*Model, error) {
	if maxSeqLen <= 0 {
		return nil, fmt.Errorf("max sequence length must be positive, got %d", maxSeqLen)
	}

	extractor, err := NewFeatureExtractor(c.Encoder, c.Projector, config.FeatureLayer(), config.SelectStrategy())
	if err != nil {
		return nil, err
	}

	opts := vision.NormalizeOptionsFromConfig(pre)
	if err := opts.Validate(3); err != nil {
		return nil, err
	}

	height, width := huggingface.GetCropSize(pre)
	return &Model{
		Extractor:  extractor,
		Embedder:   c.Embedder,
		Decoder:    c.Decoder,
		CropHeight: height,
		CropWidth:  width,
		Normalize:  opts,
		MaxSeqLen:  maxSeqLen,
	}, nil
}

// ImageEmbedding pads and normalizes a raw [C, H, W] image onto the crop
// canvas and runs it through the feature extractor.
func (m *Model) ImageEmbedding(ctx context.Context, img *tensor.Dense) (*tensor.Dense, error) {
	pixels := vision.Normalize(img, m.CropHeight, m.CropWidth, m.Normalize)
	return m.Extractor.Extract(ctx, pixels)
}

// PrefillEmbedding returns the embeddings of pre, the image and post joined
// along the sequence axis. Empty token lists contribute nothing.
func (m *Model) PrefillEmbedding(ctx context.Context, pre []int32, img *tensor.Dense, post []int32) (*tensor.Dense, error) {
	if img == nil {
		return nil, errors.New("prefill needs an image")
	}

	imageEmbeds, err := m.ImageEmbedding(ctx, img)
	if err != nil {
		return nil, err
	}

	parts := make([]tensor.Tensor, 0, 3)
	if len(pre) > 0 {
		embeds, err := m.Embedder.Embed(ctx, pre)
		if err != nil {
			return nil, fmt.Errorf("embed prompt before image: %w", err)
		}
		parts = append(parts, embeds)
	}

	parts = append(parts, imageEmbeds)

	if len(post) > 0 {
		embeds, err := m.Embedder.Embed(ctx, post)
		if err != nil {
			return nil, fmt.Errorf("embed prompt after image: %w", err)
		}
		parts = append(parts, embeds)
	}

	return ml.Concat(1, parts...)
}

// Prefill runs the decoder on the assembled prompt at position 0 and
// returns the sequence length together with the logits.
func (m *Model) Prefill(ctx context.Context, pre []int32, img *tensor.Dense, post []int32) (int, *tensor.Dense, error) {
	embeds, err := m.PrefillEmbedding(ctx, pre, img, post)
	if err != nil {
		return 0, nil, err
	}

	logits, err := m.Decoder.Forward(ctx, nil, ForwardOptions{InputPos: 0}, embeds)
	if err != nil {
		return 0, nil, err
	}

	return embeds.Shape()[1], logits, nil
}
