package llava

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/ml"
	"github.com/sis-k/executorch/vision"
)

// fakeEncoder returns layers [1, 1+patches, 1] with value base + 100*layer + token.
type fakeEncoder struct {
	layers, patches int
	base            func(*tensor.Dense) float32
	err             error

	mu     sync.Mutex
	shapes [][]int

	// active and peak count overlapping Encode calls
	active, peak int
}

func (e *fakeEncoder) Encode(ctx context.Context, images *tensor.Dense) (HiddenStates, error) {
	e.mu.Lock()
	e.shapes = append(e.shapes, images.Shape().Clone())
	e.active++
	e.peak = max(e.peak, e.active)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	if e.err != nil {
		return nil, e.err
	}

	var base float32
	if e.base != nil {
		base = e.base(images)
	}

	hs := make(HiddenStates, e.layers)
	for l := range hs {
		s := make([]float32, e.patches+1)
		for i := range s {
			s[i] = base + float32(100*l+i)
		}
		hs[l] = ml.FromFloats(s, 1, e.patches+1, 1)
	}
	return hs, nil
}

type identityProjector struct{}

func (identityProjector) Project(_ context.Context, features *tensor.Dense) (*tensor.Dense, error) {
	return features, nil
}

// fakeEmbedder embeds token id as the single value id.
type fakeEmbedder struct {
	err error
}

func (e fakeEmbedder) Embed(_ context.Context, ids []int32) (*tensor.Dense, error) {
	if e.err != nil {
		return nil, e.err
	}

	s := make([]float32, len(ids))
	for i, id := range ids {
		s[i] = float32(id)
	}
	return ml.FromFloats(s, 1, len(ids), 1), nil
}

type decoderCall struct {
	pos    int32
	embeds []float32
	mask   []int
}

// fakeDecoder returns logits [1, 2] holding the input position and length.
type fakeDecoder struct {
	calls []decoderCall
	fail  bool
}

var errDecoder = errors.New("decoder failed")

func (d *fakeDecoder) Forward(_ context.Context, tokens []int32, opts ForwardOptions, embeds *tensor.Dense) (*tensor.Dense, error) {
	if tokens != nil {
		return nil, errors.New("tokens must be nil")
	}

	f32s, err := ml.Floats(embeds)
	if err != nil {
		return nil, err
	}

	call := decoderCall{pos: opts.InputPos, embeds: append([]float32(nil), f32s...)}
	if opts.Mask != nil {
		call.mask = opts.Mask.Shape().Clone()
	}
	d.calls = append(d.calls, call)

	if d.fail {
		return nil, errDecoder
	}

	return ml.FromFloats([]float32{float32(opts.InputPos), float32(embeds.Shape()[1])}, 1, 2), nil
}

// testModel has a 4x4 crop, three encoder layers and four patches.
func testModel(t *testing.T, maxSeqLen int) (*Model, *fakeDecoder) {
	t.Helper()

	extractor, err := NewFeatureExtractor(&fakeEncoder{layers: 3, patches: 4}, identityProjector{}, -2, "default")
	if err != nil {
		t.Fatal(err)
	}

	decoder := &fakeDecoder{}
	return &Model{
		Extractor:  extractor,
		Embedder:   fakeEmbedder{},
		Decoder:    decoder,
		CropHeight: 4,
		CropWidth:  4,
		Normalize: vision.NormalizeOptions{
			RescaleFactor: 1,
			Mean:          []float32{0, 0, 0},
			Std:           []float32{1, 1, 1},
		},
		MaxSeqLen: maxSeqLen,
	}, decoder
}

func rawImage() *tensor.Dense {
	return ml.Zeros(3, 2, 2)
}

func floats(t *testing.T, d *tensor.Dense) []float32 {
	t.Helper()
	f32s, err := ml.Floats(d)
	if err != nil {
		t.Fatal(err)
	}
	return f32s
}
