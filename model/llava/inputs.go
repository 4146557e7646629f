package llava

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pdevine/tensor"
)

// SplitPrompt returns the tokens before the first and after the last image
// placeholder.
func SplitPrompt(ids []int32, imageToken int32) (before, after []int32, err error) {
	first := slices.Index(ids, imageToken)
	if first < 0 {
		return nil, nil, fmt.Errorf("%w: token %d", ErrNoImageToken, imageToken)
	}

	last := first
	for i, id := range slices.Backward(ids) {
		if id == imageToken {
			last = i
			break
		}
	}

	return slices.Clone(ids[:first]), slices.Clone(ids[last+1:]), nil
}

// PrefillInputs are the three pieces passed to Model.Prefill.
type PrefillInputs struct {
	Before []int32
	Image  *tensor.Dense
	After  []int32
}

// ExampleInputs builds the sample inputs used for tracing. The image and the
// tokenized prompt are computed on first use and kept until Reset.
type ExampleInputs struct {
	// LoadImage returns the prepared [C, H, W] image
	LoadImage func() (*tensor.Dense, error)

	// Tokenize returns the prompt token ids, including the image placeholder
	Tokenize func() ([]int32, error)

	ImageToken int32

	mu      sync.Mutex
	image   *tensor.Dense
	prefill *PrefillInputs
}

// Image returns the memoized example image.
func (e *ExampleInputs) Image() (*tensor.Dense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadImage()
}

func (e *ExampleInputs) loadImage() (*tensor.Dense, error) {
	if e.image != nil {
		return e.image, nil
	}

	if e.LoadImage == nil {
		return nil, errors.New("example inputs: no image loader")
	}

	img, err := e.LoadImage()
	if err != nil {
		return nil, err
	}

	e.image = img
	return img, nil
}

// Prefill returns the memoized prompt split around the example image.
func (e *ExampleInputs) Prefill() (*PrefillInputs, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.prefill != nil {
		return e.prefill, nil
	}

	img, err := e.loadImage()
	if err != nil {
		return nil, err
	}

	if e.Tokenize == nil {
		return nil, errors.New("example inputs: no tokenizer")
	}

	ids, err := e.Tokenize()
	if err != nil {
		return nil, err
	}

	before, after, err := SplitPrompt(ids, e.ImageToken)
	if err != nil {
		return nil, err
	}

	e.prefill = &PrefillInputs{Before: before, Image: img, After: after}
	return e.prefill, nil
}

// Reset drops the memoized values.
func (e *ExampleInputs) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.image = nil
	e.prefill = nil
}
