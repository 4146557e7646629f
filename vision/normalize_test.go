// MODUL: normalize_test
// ZWECK: Tests fuer ComputePadding und Normalize
// INPUT: kleine synthetische Tensoren
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, testify, gonum
// HINWEISE: Rand-Zellen muessen nach Normalisierung -mean/std ergeben

package vision

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sis-k/executorch/ml"
)

func TestComputePadding(t *testing.T) {
	tests := []struct {
		name                   string
		h, w, targetH, targetW int
		want                   Padding
	}{
		{"quadratisch", 336, 336, 336, 336, Padding{}},
		{"gerade", 168, 336, 336, 336, Padding{Top: 84, Bottom: 84}},
		{"ungerade", 335, 333, 336, 336, Padding{Left: 1, Right: 2, Top: 0, Bottom: 1}},
		{"klein", 1, 1, 4, 5, Padding{Left: 2, Right: 2, Top: 1, Bottom: 2}},
		{"hochformat", 100, 50, 100, 100, Padding{Left: 25, Right: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePadding(tt.h, tt.w, tt.targetH, tt.targetW)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ComputePadding (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.targetW, tt.w+got.Left+got.Right)
			assert.Equal(t, tt.targetH, tt.h+got.Top+got.Bottom)
		})
	}

	_, err := ComputePadding(337, 10, 336, 336)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("err = %v, erwartet ErrImageTooLarge", err)
	}
}

func TestNormalize(t *testing.T) {
	// 2 Kanaele, 1x2 Bild in 3x3 Flaeche
	img := ml.FromFloats([]float32{255, 0, 51, 102}, 2, 1, 2)
	opts := NormalizeOptions{
		RescaleFactor: 1.0 / 255.0,
		Mean:          []float32{0.5, 0.2},
		Std:           []float32{0.5, 0.4},
	}

	out := Normalize(img, 3, 3, opts)
	assert.Equal(t, []int{1, 2, 3, 3}, []int(out.Shape()))

	got, err := ml.Floats(out)
	require.NoError(t, err)

	// Rand: (0 - mean) / std
	p0, p1 := float32(-1), float32(-0.5)
	want := []float32{
		p0, p0, p0,
		1, -1, p0,
		p0, p0, p0,

		p1, p1, p1,
		0, 0.5, p1,
		p1, p1, p1,
	}

	g64 := make([]float64, len(got))
	w64 := make([]float64, len(want))
	for i := range got {
		g64[i], w64[i] = float64(got[i]), float64(want[i])
	}

	if !floats.EqualApprox(w64, g64, 1e-6) {
		t.Errorf("Normalize = %v, erwartet %v", got, want)
	}
}

func TestNormalizePortrait(t *testing.T) {
	// 100x50 Bild (weiss) in 100x100: links und rechts je 25 Spalten Rand
	data := make([]float32, 3*100*50)
	for i := range data {
		data[i] = 255
	}

	opts := DefaultNormalizeOptions()
	out := Normalize(ml.FromFloats(data, 3, 100, 50), 100, 100, opts)
	assert.Equal(t, []int{1, 3, 100, 100}, []int(out.Shape()))

	got, err := ml.Floats(out)
	require.NoError(t, err)

	for ch := range 3 {
		pad := -opts.Mean[ch] / opts.Std[ch]
		white := (1 - opts.Mean[ch]) / opts.Std[ch]
		for _, row := range []int{0, 99} {
			line := got[ch*10000+row*100 : ch*10000+row*100+100]
			assert.InDelta(t, pad, line[24], 1e-5)
			assert.InDelta(t, white, line[25], 1e-5)
			assert.InDelta(t, white, line[74], 1e-5)
			assert.InDelta(t, pad, line[75], 1e-5)
		}
	}
}

func TestNormalizeFullCanvas(t *testing.T) {
	// ohne Rand entspricht der Mittelwert der Ausgabe der normalisierten Eingabe
	data := make([]float32, 3*4*4)
	for i := range data {
		data[i] = float32(i % 256)
	}

	out := Normalize(ml.FromFloats(data, 3, 4, 4), 4, 4, DefaultNormalizeOptions())
	got, err := ml.Floats(out)
	require.NoError(t, err)

	opts := DefaultNormalizeOptions()
	for ch := range 3 {
		plane := make([]float64, 16)
		for i := range plane {
			plane[i] = float64(got[ch*16+i])
		}

		var sum float64
		for i := range 16 {
			sum += float64(data[ch*16+i])
		}
		wantMean := (sum/16*float64(opts.RescaleFactor) - float64(opts.Mean[ch])) / float64(opts.Std[ch])
		assert.InDelta(t, wantMean, stat.Mean(plane, nil), 1e-5)
	}
}

func TestNormalizePanics(t *testing.T) {
	opts := DefaultNormalizeOptions()

	assert.Panics(t, func() {
		Normalize(ml.Zeros(3, 337, 10), 336, 336, opts)
	}, "zu hoch")

	assert.Panics(t, func() {
		Normalize(ml.Zeros(3, 10, 337), 336, 336, opts)
	}, "zu breit")

	assert.Panics(t, func() {
		Normalize(ml.Zeros(4, 10, 10), 336, 336, opts)
	}, "falsche Kanalzahl")

	assert.Panics(t, func() {
		Normalize(ml.Zeros(10, 10), 336, 336, opts)
	}, "falsche Dimension")
}

func TestNormalizeOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultNormalizeOptions().Validate(3))
	assert.ErrorIs(t, DefaultNormalizeOptions().Validate(1), ErrInvalidOptions)

	bad := NormalizeOptions{RescaleFactor: 1, Mean: []float32{0}, Std: []float32{0}}
	assert.ErrorIs(t, bad.Validate(1), ErrInvalidOptions)
}
