// writer_safetensors.go - Schreibt umbenannte Parameter als safetensors Datei
package convert

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/x448/float16"

	"github.com/sis-k/executorch/ml"
)

// WriteSafetensors writes ts to w, sorted by name, storing every tensor as
// dtype (F32 or F16).
func WriteSafetensors(w io.Writer, ts []Tensor, dtype ml.DType) error {
	if dtype != ml.DTypeF32 && dtype != ml.DTypeF16 {
		return fmt.Errorf("unsupported storage type %s", dtype)
	}

	ts = slices.SortedFunc(slices.Values(ts), func(a, b Tensor) int {
		return cmp.Compare(a.Name(), b.Name())
	})

	header := make(map[string]safetensorMetadata, len(ts))
	var offset int64
	for _, t := range ts {
		if _, ok := header[t.Name()]; ok {
			return fmt.Errorf("duplicate tensor name '%s'", t.Name())
		}

		n := int64(1)
		for _, d := range t.Shape() {
			n *= int64(d)
		}

		size := n * int64(dtype.Size())
		header[t.Name()] = safetensorMetadata{
			Type:    dtype.String(),
			Shape:   t.Shape(),
			Offsets: []int64{offset, offset + size},
		}
		offset += size
	}

	bts, err := json.Marshal(header)
	if err != nil {
		return err
	}

	// pad the header so tensor data starts 8 byte aligned
	if rem := len(bts) % 8; rem != 0 {
		bts = append(bts, bytes.Repeat([]byte(" "), 8-rem)...)
	}

	if err := binary.Write(w, binary.LittleEndian, int64(len(bts))); err != nil {
		return err
	}

	if _, err := w.Write(bts); err != nil {
		return err
	}

	for _, t := range ts {
		f32s, err := t.Floats()
		if err != nil {
			return fmt.Errorf("tensor %s: %w", t.Name(), err)
		}

		if want := header[t.Name()]; int64(len(f32s)*dtype.Size()) != want.Offsets[1]-want.Offsets[0] {
			return fmt.Errorf("tensor %s: %d elements do not match shape %v", t.Name(), len(f32s), t.Shape())
		}

		switch dtype {
		case ml.DTypeF32:
			err = binary.Write(w, binary.LittleEndian, f32s)
		case ml.DTypeF16:
			f16s := make([]uint16, len(f32s))
			for i := range f32s {
				f16s[i] = float16.Fromfloat32(f32s[i]).Bits()
			}
			err = binary.Write(w, binary.LittleEndian, f16s)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// memTensor is an in-memory Tensor, used for tensors produced in process.
type memTensor struct {
	tensorBase
	data []float32
}

// NewTensor wraps data as a Tensor of the given shape.
func NewTensor(name string, shape []uint64, data []float32) Tensor {
	return memTensor{
		tensorBase: tensorBase{name: name, shape: shape, dtype: ml.DTypeF32},
		data:       data,
	}
}

func (t memTensor) Floats() ([]float32, error) {
	return t.data, nil
}
