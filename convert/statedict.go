// statedict.go - Abgleich eines umbenannten Parameter-Mappings mit den
// erwarteten Parametern des Zielmodells (strict / non-strict Laden).
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

var ErrStateDictMismatch = errors.New("state dict mismatch")

// LoadResult lists how a parameter mapping lined up with a model.
type LoadResult struct {
	Loaded     []string
	Missing    []string
	Unexpected []string
}

// LoadStateDict matches params against the parameter names a model expects.
// In non-strict mode missing and unexpected names are reported but tolerated.
// In strict mode any mismatch is an error.
func LoadStateDict[T any](expected []string, params map[string]T, strict bool) (LoadResult, error) {
	var result LoadResult

	want := make(map[string]struct{}, len(expected))
	for _, name := range expected {
		want[name] = struct{}{}
		if _, ok := params[name]; ok {
			result.Loaded = append(result.Loaded, name)
		} else {
			result.Missing = append(result.Missing, name)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(params)) {
		if _, ok := want[name]; !ok {
			result.Unexpected = append(result.Unexpected, name)
			slog.Debug("unexpected parameter", "name", name, "closest", closest(name, expected))
		}
	}

	slices.Sort(result.Loaded)
	slices.Sort(result.Missing)

	if strict && (len(result.Missing) > 0 || len(result.Unexpected) > 0) {
		return result, fmt.Errorf("%w: missing [%s], unexpected [%s]", ErrStateDictMismatch,
			strings.Join(result.Missing, ", "), strings.Join(result.Unexpected, ", "))
	}

	if len(result.Missing) > 0 {
		slog.Warn("parameters missing from checkpoint", "count", len(result.Missing))
	}

	return result, nil
}

// closest returns the candidate with the smallest edit distance to s.
func closest(s string, candidates []string) string {
	var best string
	score := math.MaxInt
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(s, c); d < score {
			score = d
			best = c
		}
	}
	return best
}
