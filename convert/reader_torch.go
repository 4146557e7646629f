// reader_torch.go - Leser fuer PyTorch Checkpoints (.bin, .pth)
package convert

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/sis-k/executorch/ml"
)

func parseTorch(fsys fs.FS, ps ...string) ([]Tensor, error) {
	var ts []Tensor
	for _, p := range ps {
		pt, err := loadTorch(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		dict, ok := pt.(*types.Dict)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported checkpoint layout %T", p, pt)
		}

		for _, k := range dict.Keys() {
			name, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%s: unsupported key type %T", p, k)
			}

			t, ok := dict.MustGet(k).(*pytorch.Tensor)
			if !ok {
				continue
			}

			shape := make([]uint64, len(t.Size))
			for i, dim := range t.Size {
				shape[i] = uint64(dim)
			}

			dtype := ml.DTypeOther
			switch t.Source.(type) {
			case *pytorch.FloatStorage:
				dtype = ml.DTypeF32
			case *pytorch.HalfStorage:
				dtype = ml.DTypeF16
			}

			ts = append(ts, torch{
				tensor:     t,
				tensorBase: tensorBase{name: name, shape: shape, dtype: dtype},
			})
		}
	}

	return ts, nil
}

// loadTorch stages the checkpoint on disk since gopickle reads zip archives by path.
func loadTorch(fsys fs.FS, p string) (any, error) {
	src, err := fsys.Open(p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "executorch-*.pth")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		return nil, err
	}

	if err := tmp.Close(); err != nil {
		return nil, err
	}

	return pytorch.Load(tmp.Name())
}

type torch struct {
	tensor *pytorch.Tensor
	tensorBase
}

func (pt torch) Floats() ([]float32, error) {
	n := pt.elements()
	start := pt.tensor.StorageOffset

	var data []float32
	switch s := pt.tensor.Source.(type) {
	case *pytorch.FloatStorage:
		data = s.Data
	case *pytorch.HalfStorage:
		data = s.Data
	default:
		return nil, fmt.Errorf("unsupported storage %T for tensor %s", s, pt.name)
	}

	if start+n > len(data) {
		return nil, fmt.Errorf("tensor %s: storage too small", pt.name)
	}

	return data[start : start+n], nil
}
