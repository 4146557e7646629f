// MODUL: normalize
// ZWECK: Auffuellen, Skalieren und Normalisieren eines Bild-Tensors auf die
//        feste Eingabegroesse des Vision-Encoders
// INPUT: [C, H, W] float32 Tensor, Zielgroesse, NormalizeOptions
// OUTPUT: [1, C, targetH, targetW] float32 Tensor
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: github.com/pdevine/tensor, gonum.org/v1/gonum/floats
// HINWEISE: Der Rand wird mit 0 gefuellt (vor der Normalisierung), nicht mit
//           der Mittelwert-Farbe. Bilder groesser als die Zielflaeche sind ein
//           Programmierfehler und fuehren zu panic.

package vision

import (
	"errors"
	"fmt"

	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/floats"

	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/ml"
)

var (
	ErrImageTooLarge  = errors.New("bild groesser als Zielflaeche")
	ErrInvalidOptions = errors.New("ungueltige Normalisierungs-Parameter")
)

// Padding enthaelt die Rand-Breiten je Seite
type Padding struct {
	Left, Right, Top, Bottom int
}

// ComputePadding berechnet den Rand, der ein height x width Bild mittig in
// eine targetH x targetW Flaeche setzt. Links/oben wird abgerundet,
// rechts/unten aufgerundet.
func ComputePadding(height, width, targetH, targetW int) (Padding, error) {
	if height > targetH || width > targetW {
		return Padding{}, fmt.Errorf("%w: %dx%d > %dx%d", ErrImageTooLarge, width, height, targetW, targetH)
	}

	dw, dh := targetW-width, targetH-height
	return Padding{
		Left:   dw / 2,
		Right:  dw - dw/2,
		Top:    dh / 2,
		Bottom: dh - dh/2,
	}, nil
}

// NormalizeOptions steuert Skalierung und Normalisierung je Kanal
type NormalizeOptions struct {
	RescaleFactor float32
	Mean          []float32
	Std           []float32
}

// DefaultNormalizeOptions gibt die CLIP-Werte mit Skalierung 1/255 zurueck
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptionsFromConfig(nil)
}

// NormalizeOptionsFromConfig uebernimmt rescale_factor, image_mean und
// image_std aus einer preprocessor_config.json
func NormalizeOptionsFromConfig(config *huggingface.PreprocessorConfig) NormalizeOptions {
	return NormalizeOptions{
		RescaleFactor: huggingface.GetRescaleFactor(config),
		Mean:          huggingface.GetImageMean(config),
		Std:           huggingface.GetImageStd(config),
	}
}

// Validate prueft die Parameter fuer ein Bild mit channels Kanaelen
func (o NormalizeOptions) Validate(channels int) error {
	if len(o.Mean) != channels || len(o.Std) != channels {
		return fmt.Errorf("%w: %d Kanaele, %d mean, %d std", ErrInvalidOptions, channels, len(o.Mean), len(o.Std))
	}
	for _, s := range o.Std {
		if s == 0 {
			return fmt.Errorf("%w: std ist 0", ErrInvalidOptions)
		}
	}
	return nil
}

// Normalize setzt img ([C, H, W], Rohwerte) mittig in eine targetH x targetW
// Flaeche mit Null-Rand, multipliziert mit RescaleFactor, normalisiert jeden
// Kanal mit (x - mean) / std und liefert [1, C, targetH, targetW].
//
// Normalize panics if the image is larger than the canvas or the options do
// not match the channel count.
func Normalize(img tensor.Tensor, targetH, targetW int, opts NormalizeOptions) *tensor.Dense {
	shape := img.Shape()
	if len(shape) != 3 {
		panic(fmt.Errorf("bild-tensor braucht Form [C, H, W], bekam %v", shape))
	}

	c, h, w := shape[0], shape[1], shape[2]
	pad, err := ComputePadding(h, w, targetH, targetW)
	if err != nil {
		panic(err)
	}

	if err := opts.Validate(c); err != nil {
		panic(err)
	}

	src, err := ml.Floats(img)
	if err != nil {
		panic(err)
	}

	size := targetH * targetW
	out := make([]float32, c*size)
	plane := make([]float64, size)
	for ch := range c {
		clear(plane)
		for y := range h {
			row := src[ch*h*w+y*w : ch*h*w+(y+1)*w]
			dst := plane[(y+pad.Top)*targetW+pad.Left:]
			for x, v := range row {
				dst[x] = float64(v)
			}
		}

		floats.Scale(float64(opts.RescaleFactor), plane)
		floats.AddConst(-float64(opts.Mean[ch]), plane)
		floats.Scale(1/float64(opts.Std[ch]), plane)

		for i, v := range plane {
			out[ch*size+i] = float32(v)
		}
	}

	return ml.FromFloats(out, 1, c, targetH, targetW)
}

// Preprocessed ist das Ergebnis von Preprocess
type Preprocessed struct {
	Resized *ImageInput
	Padding Padding
	Pixels  *tensor.Dense
}

// Preprocess skaliert img in die targetH x targetW Flaeche und normalisiert
// es. Anders als Normalize liefert es Fehler statt panic.
func Preprocess(img *ImageInput, targetH, targetW int, opts NormalizeOptions) (*Preprocessed, error) {
	if err := opts.Validate(3); err != nil {
		return nil, err
	}

	resized, err := Prepare(img, targetH, targetW)
	if err != nil {
		return nil, err
	}

	pad, err := ComputePadding(resized.Height, resized.Width, targetH, targetW)
	if err != nil {
		return nil, err
	}

	return &Preprocessed{
		Resized: resized,
		Padding: pad,
		Pixels:  Normalize(ToTensor(resized), targetH, targetW, opts),
	}, nil
}
