// reader_safetensors.go - Leser fuer das safetensors Format
// Header: 8 Byte Laenge (little endian), danach JSON mit dtype, shape, data_offsets.
package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/sis-k/executorch/ml"
)

type safetensorMetadata struct {
	Type    string   `json:"dtype"`
	Shape   []uint64 `json:"shape"`
	Offsets []int64  `json:"data_offsets"`
}

func parseSafetensors(fsys fs.FS, ps ...string) ([]Tensor, error) {
	var ts []Tensor
	names := make(map[string]struct{})
	for _, p := range ps {
		headers, n, err := readSafetensorsHeader(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		for _, key := range slices.Sorted(maps.Keys(headers)) {
			value := headers[key]
			// __metadata__ carries no dtype
			if value.Type == "" {
				continue
			}

			// bitsandbytes quantized models are unsupported
			if len(value.Offsets) != 2 {
				return nil, errors.New("unsupported safetensors model")
			}

			dtype, err := ml.ParseDType(value.Type)
			if err != nil {
				return nil, err
			}

			if _, ok := names[key]; ok {
				return nil, fmt.Errorf("duplicate tensor name '%s' was found for this model", key)
			}
			names[key] = struct{}{}

			ts = append(ts, safetensor{
				fs:     fsys,
				path:   p,
				offset: safetensorsPad(n, value.Offsets[0]),
				size:   value.Offsets[1] - value.Offsets[0],
				tensorBase: tensorBase{
					name:  key,
					shape: value.Shape,
					dtype: dtype,
				},
			})
		}
	}

	return ts, nil
}

func readSafetensorsHeader(fsys fs.FS, p string) (map[string]safetensorMetadata, int64, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var n int64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, 0, err
	}

	b := bytes.NewBuffer(make([]byte, 0, n))
	if _, err = io.CopyN(b, f, n); err != nil {
		return nil, 0, err
	}

	var headers map[string]json.RawMessage
	if err := json.NewDecoder(b).Decode(&headers); err != nil {
		return nil, 0, err
	}

	out := make(map[string]safetensorMetadata, len(headers))
	for k, raw := range headers {
		if k == "__metadata__" {
			continue
		}

		var m safetensorMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, 0, fmt.Errorf("tensor %s: %w", k, err)
		}
		out[k] = m
	}

	return out, n, nil
}

// safetensorsPad returns the absolute file offset for a data offset given the header length n
func safetensorsPad(n, offset int64) int64 {
	return 8 + n + offset
}

type safetensor struct {
	fs     fs.FS
	path   string
	offset int64
	size   int64
	tensorBase
}

func (st safetensor) Floats() ([]float32, error) {
	f, err := st.fs.Open(st.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if seeker, ok := f.(io.Seeker); ok {
		if _, err := seeker.Seek(st.offset, io.SeekStart); err != nil {
			return nil, err
		}
	} else {
		if _, err := io.CopyN(io.Discard, f, st.offset); err != nil {
			return nil, err
		}
	}

	if want := int64(st.elements() * st.dtype.Size()); want != st.size {
		return nil, fmt.Errorf("tensor %s: expected %d bytes, header says %d", st.name, want, st.size)
	}

	var f32s []float32
	switch st.dtype {
	case ml.DTypeF32:
		f32s = make([]float32, st.size/4)
		if err = binary.Read(f, binary.LittleEndian, f32s); err != nil {
			return nil, err
		}
	case ml.DTypeF16:
		u16s := make([]uint16, st.size/2)
		if err = binary.Read(f, binary.LittleEndian, u16s); err != nil {
			return nil, err
		}

		f32s = make([]float32, len(u16s))
		for i := range u16s {
			f32s[i] = float16.Frombits(u16s[i]).Float32()
		}
	case ml.DTypeBF16:
		u8s := make([]uint8, st.size)
		if err = binary.Read(f, binary.LittleEndian, u8s); err != nil {
			return nil, err
		}

		f32s = bfloat16.DecodeFloat32(u8s)
	default:
		return nil, fmt.Errorf("unsupported data type %s for tensor %s", st.dtype, st.name)
	}

	return f32s, nil
}
