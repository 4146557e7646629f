package llava

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Dim is a named symbolic dimension with an inclusive range.
type Dim struct {
	Name string `yaml:"name" json:"name"`
	Min  int    `yaml:"min" json:"min"`
	Max  int    `yaml:"max" json:"max"`
}

// ScaledDim is Factor times a symbolic dimension, e.g. height = 2*_height.
type ScaledDim struct {
	Dim    `yaml:",inline"`
	Factor int `yaml:"factor" json:"factor"`
}

// Contains reports whether size is Factor*k for some k in [Min, Max].
func (d ScaledDim) Contains(size int) bool {
	f := max(d.Factor, 1)
	return size%f == 0 && size/f >= d.Min && size/f <= d.Max
}

// AxisBound is either a static size or a scaled symbolic dimension.
type AxisBound struct {
	Static int        `yaml:"static,omitempty" json:"static,omitempty"`
	Dim    *ScaledDim `yaml:"dim,omitempty" json:"dim,omitempty"`
}

// ShapeSpec maps axis index to its bound. Axes not listed are unconstrained.
type ShapeSpec map[int]AxisBound

// Check reports the first axis of shape that violates s.
func (s ShapeSpec) Check(shape []int) error {
	for _, axis := range slices.Sorted(maps.Keys(s)) {
		if axis >= len(shape) {
			return fmt.Errorf("axis %d missing in shape %v", axis, shape)
		}

		b := s[axis]
		switch {
		case b.Dim != nil:
			if !b.Dim.Contains(shape[axis]) {
				return fmt.Errorf("axis %d size %d outside %s: %d*[%d, %d]", axis, shape[axis], b.Dim.Name, max(b.Dim.Factor, 1), b.Dim.Min, b.Dim.Max)
			}
		case b.Static != shape[axis]:
			return fmt.Errorf("axis %d size %d, want %d", axis, shape[axis], b.Static)
		}
	}

	return nil
}

// ImageDynamicShapes declares the accepted raw image sizes: even heights and
// widths up to the crop size.
func ImageDynamicShapes(cropHeight, cropWidth int) []ShapeSpec {
	height := &ScaledDim{Dim: Dim{Name: "_height", Min: 1, Max: cropHeight / 2}, Factor: 2}
	width := &ScaledDim{Dim: Dim{Name: "_width", Min: 1, Max: cropWidth / 2}, Factor: 2}
	return []ShapeSpec{{1: {Dim: height}, 2: {Dim: width}}}
}

// PromptDynamicShapes declares the text decoder inputs: a single input
// position and an embedding sequence of 2 to maxSeqLen tokens on axis 1.
func PromptDynamicShapes(maxSeqLen int) []ShapeSpec {
	tokens := &ScaledDim{Dim: Dim{Name: "token_dim", Min: 2, Max: maxSeqLen}, Factor: 1}
	return []ShapeSpec{{0: {Static: 1}}, {1: {Dim: tokens}}}
}

// Manifest is what the tracer reads to set up dynamic shapes.
type Manifest struct {
	Model     string                 `yaml:"model"`
	MaxSeqLen int                    `yaml:"max_seq_len"`
	Inputs    map[string][]ShapeSpec `yaml:"inputs"`
}

// NewManifest returns the manifest for the image and prompt inputs.
func NewManifest(model string, cropHeight, cropWidth, maxSeqLen int) Manifest {
	return Manifest{
		Model:     model,
		MaxSeqLen: maxSeqLen,
		Inputs: map[string][]ShapeSpec{
			"image":  ImageDynamicShapes(cropHeight, cropWidth),
			"prompt": PromptDynamicShapes(maxSeqLen),
		},
	}
}

// WriteShapes encodes m as YAML.
func WriteShapes(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// ReadShapes decodes a manifest written by WriteShapes.
func ReadShapes(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
