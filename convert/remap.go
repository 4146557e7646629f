// remap.go - Umbenennung kompletter Parameter-Mappings
// Werte bleiben unveraendert, nur die Schluessel werden ueber Rules umgeschrieben.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

var ErrKeyCollision = errors.New("key collision")

// Remap returns a new mapping with the same values under renamed keys. Source
// keys are visited in sorted order. Two source names producing the same
// output name is an error and no partial mapping is returned.
func Remap[T any](src map[string]T, rules Rules) (map[string]T, error) {
	dst := make(map[string]T, len(src))
	from := make(map[string]string, len(src))

	var renamed int
	for _, k := range slices.Sorted(maps.Keys(src)) {
		name, ok := rules.Rename(k)
		if prev, exists := from[name]; exists {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrKeyCollision, prev, k, name)
		}

		if ok {
			renamed++
		}

		from[name] = k
		dst[name] = src[k]
	}

	slog.Debug("remapped parameters", "total", len(src), "renamed", renamed)
	return dst, nil
}

type renamedTensor struct {
	Tensor
	name string
}

func (t renamedTensor) Name() string {
	return t.name
}

// RemapTensors renames a list of tensors, keeping their order. It fails on
// the same collisions as Remap.
func RemapTensors(ts []Tensor, rules Rules) ([]Tensor, error) {
	from := make(map[string]string, len(ts))
	out := make([]Tensor, 0, len(ts))
	for _, t := range ts {
		name, _ := rules.Rename(t.Name())
		if prev, exists := from[name]; exists {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrKeyCollision, prev, t.Name(), name)
		}

		from[name] = t.Name()
		out = append(out, renamedTensor{Tensor: t, name: name})
	}

	return out, nil
}
