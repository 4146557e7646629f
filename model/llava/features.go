package llava

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"
	"golang.org/x/sync/errgroup"

	"github.com/sis-k/executorch/ml"
)

// SelectStrategy decides which tokens of the selected hidden state are kept.
type SelectStrategy string

const (
	// SelectDefault drops the class token at sequence index 0
	SelectDefault SelectStrategy = "default"
	// SelectFull keeps every token
	SelectFull SelectStrategy = "full"
)

// ParseSelectStrategy validates s. Only "default" and "full" are accepted,
// callers fill in the default before parsing.
func ParseSelectStrategy(s string) (SelectStrategy, error) {
	switch SelectStrategy(s) {
	case SelectDefault:
		return SelectDefault, nil
	case SelectFull:
		return SelectFull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSelectStrategy, s)
	}
}

// FeatureExtractor turns a normalized image batch into embeddings in the
// text model's space.
type FeatureExtractor struct {
	encoder   VisionEncoder
	projector Projector

	// layer indexes HiddenStates, negative values count from the end
	layer    int
	strategy SelectStrategy

	// concurrency bounds the images ExtractAll encodes at once
	concurrency int
}

// NewFeatureExtractor returns an extractor reading hidden state layer. The
// strategy is checked here so a bad configuration fails at startup.
func NewFeatureExtractor(encoder VisionEncoder, projector Projector, layer int, strategy string) (*FeatureExtractor, error) {
	s, err := ParseSelectStrategy(strategy)
	if err != nil {
		return nil, err
	}

	return &FeatureExtractor{
		encoder:     encoder,
		projector:   projector,
		layer:       layer,
		strategy:    s,
		concurrency: 1,
	}, nil
}

func (f *FeatureExtractor) Layer() int { return f.layer }

func (f *FeatureExtractor) Strategy() SelectStrategy { return f.strategy }

// Select picks the configured layer out of hs and applies the strategy.
func (f *FeatureExtractor) Select(hs HiddenStates) (*tensor.Dense, error) {
	idx := f.layer
	if idx < 0 {
		idx += len(hs)
	}

	if idx < 0 || idx >= len(hs) {
		return nil, fmt.Errorf("%w: layer %d with %d hidden states", ErrLayerOutOfRange, f.layer, len(hs))
	}

	states := hs[idx]
	shape := states.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("hidden state must be [batch, seq, hidden], got %v", shape)
	}

	switch f.strategy {
	case SelectFull:
		return states, nil
	default:
		if shape[1] < 2 {
			return nil, fmt.Errorf("hidden state has no patch tokens: %v", shape)
		}
		return ml.Narrow(states, 1, 1, shape[1])
	}
}

// Extract encodes a [1, C, H, W] image and returns [1, seq, D] embeddings.
func (f *FeatureExtractor) Extract(ctx context.Context, image *tensor.Dense) (*tensor.Dense, error) {
	hs, err := f.encoder.Encode(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("vision encoder: %w", err)
	}

	features, err := f.Select(hs)
	if err != nil {
		return nil, err
	}

	embeds, err := f.projector.Project(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("projector: %w", err)
	}

	slog.Debug("image features", "layer", f.layer, "strategy", f.strategy, "features", features.Shape(), "embeds", embeds.Shape())
	return embeds, nil
}

// SetConcurrency lets ExtractAll encode up to n images at once. The encoder
// and projector must then be safe for concurrent use. n < 1 is treated as 1.
func (f *FeatureExtractor) SetConcurrency(n int) {
	f.concurrency = max(n, 1)
}

// ExtractAll encodes each image on its own and joins the embeddings along
// the sequence axis in input order. Images may be [C, H, W] or [1, C, H, W].
func (f *FeatureExtractor) ExtractAll(ctx context.Context, images []*tensor.Dense) (*tensor.Dense, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images")
	}

	results := make([]tensor.Tensor, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, img := range images {
		g.Go(func() error {
			if len(img.Shape()) == 3 {
				var err error
				img, err = ml.Unsqueeze(img, 0)
				if err != nil {
					return err
				}
			}

			embeds, err := f.Extract(ctx, img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}

			results[i] = embeds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ml.Concat(1, results...)
}
