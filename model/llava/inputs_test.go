package llava

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sis-k/executorch/ml"
)

func TestSplitPrompt(t *testing.T) {
	const img = 32000

	tests := []struct {
		name          string
		ids           []int32
		before, after []int32
	}{
		{"middle", []int32{1, 2, img, 3, 4}, []int32{1, 2}, []int32{3, 4}},
		{"first", []int32{img, 3}, []int32{}, []int32{3}},
		{"last", []int32{1, img}, []int32{1}, []int32{}},
		{"repeated", []int32{1, img, img, img, 2}, []int32{1}, []int32{2}},
		{"separated", []int32{1, img, 5, img, 2}, []int32{1}, []int32{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after, err := SplitPrompt(tt.ids, img)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.before, before); diff != "" {
				t.Errorf("before (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.after, after); diff != "" {
				t.Errorf("after (-want +got):\n%s", diff)
			}
		})
	}

	_, _, err := SplitPrompt([]int32{1, 2, 3}, img)
	assert.ErrorIs(t, err, ErrNoImageToken)
}

func TestExampleInputsMemoized(t *testing.T) {
	var loads, tokenizes int
	e := &ExampleInputs{
		LoadImage: func() (*tensor.Dense, error) {
			loads++
			return ml.Zeros(3, 2, 2), nil
		},
		Tokenize: func() ([]int32, error) {
			tokenizes++
			return []int32{1, 9, 2}, nil
		},
		ImageToken: 9,
	}

	img, err := e.Image()
	require.NoError(t, err)

	p, err := e.Prefill()
	require.NoError(t, err)
	assert.Same(t, img, p.Image)
	assert.Equal(t, []int32{1}, p.Before)
	assert.Equal(t, []int32{2}, p.After)

	again, err := e.Prefill()
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, tokenizes)

	e.Reset()
	_, err = e.Prefill()
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, 2, tokenizes)
}

func TestExampleInputsErrors(t *testing.T) {
	boom := errors.New("boom")

	e := &ExampleInputs{LoadImage: func() (*tensor.Dense, error) { return nil, boom }}
	_, err := e.Prefill()
	assert.ErrorIs(t, err, boom)

	// a failed load is retried on the next call
	e.LoadImage = func() (*tensor.Dense, error) { return ml.Zeros(3, 1, 1), nil }
	_, err = e.Image()
	require.NoError(t, err)

	_, err = e.Prefill()
	assert.Error(t, err, "no tokenizer")

	e.Tokenize = func() ([]int32, error) { return []int32{1, 2}, nil }
	_, err = e.Prefill()
	assert.ErrorIs(t, err, ErrNoImageToken)

	_, err = (&ExampleInputs{}).Image()
	assert.Error(t, err)
}
