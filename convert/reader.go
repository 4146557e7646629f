// reader.go - Einlesen von Checkpoints (safetensors, PyTorch)
// Liefert eine Liste von Tensoren mit bereits umbenannten Namen.
package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/sis-k/executorch/ml"
)

// Tensor is a named parameter read from a checkpoint. Data is decoded lazily.
type Tensor interface {
	Name() string
	Shape() []uint64
	DType() ml.DType
	Floats() ([]float32, error)
}

type tensorBase struct {
	name  string
	shape []uint64
	dtype ml.DType
}

func (t tensorBase) Name() string {
	return t.name
}

func (t tensorBase) Shape() []uint64 {
	return t.shape
}

func (t tensorBase) DType() ml.DType {
	return t.dtype
}

func (t tensorBase) elements() int {
	n := 1
	for _, d := range t.shape {
		n *= int(d)
	}
	return n
}

var ErrUnknownFormat = errors.New("unknown tensor format")

// ParseTensors reads every checkpoint shard in fsys and renames the tensors
// with rules. Safetensors files are preferred over PyTorch pickles.
func ParseTensors(fsys fs.FS, rules Rules) ([]Tensor, error) {
	patterns := []struct {
		Pattern string
		Func    func(fs.FS, ...string) ([]Tensor, error)
	}{
		{"model-*-of-*.safetensors", parseSafetensors},
		{"model.safetensors", parseSafetensors},
		{"adapters.safetensors", parseSafetensors},
		{"pytorch_model-*-of-*.bin", parseTorch},
		{"pytorch_model.bin", parseTorch},
		{"consolidated.*.pth", parseTorch},
	}

	for _, pattern := range patterns {
		matches, err := fs.Glob(fsys, pattern.Pattern)
		if err != nil {
			return nil, err
		}

		if len(matches) > 0 {
			slices.Sort(matches)
			ts, err := pattern.Func(fsys, matches...)
			if err != nil {
				return nil, err
			}

			return RemapTensors(ts, rules)
		}
	}

	return nil, ErrUnknownFormat
}

// Params collects tensors into a mapping keyed by name.
func Params(ts []Tensor) (map[string]Tensor, error) {
	m := make(map[string]Tensor, len(ts))
	for _, t := range ts {
		if _, ok := m[t.Name()]; ok {
			return nil, fmt.Errorf("duplicate tensor name '%s' was found for this model", t.Name())
		}
		m[t.Name()] = t
	}
	return m, nil
}
