// MODUL: image
// ZWECK: Bild-Lade- und Groessenanpassung fuer den Bild-Eingang des Modells
// INPUT: Dateipfad, Bytes oder io.Reader
// OUTPUT: ImageInput mit dekodiertem Bild, [3, H, W] Tensor mit Rohwerten 0-255
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadImage
// ABHAENGIGKEITEN: golang.org/x/image (draw, webp, bmp, tiff), github.com/pdevine/tensor
// HINWEISE: Bilder mit Alpha-Kanal werden auf weissem Hintergrund zusammengesetzt

package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	// Standard-Decoder registrieren
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/ml"
)

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// LoadImage laedt ein Bild von einem Dateipfad
func LoadImage(path string) (*ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("datei lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// LoadImageFromBytes dekodiert ein Bild aus Byte-Daten
func LoadImageFromBytes(data []byte) (*ImageInput, error) {
	format := DetectFormat(data)
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren fehlgeschlagen: %w", err)
	}

	rgba := composite(img)
	bounds := rgba.Bounds()

	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// DecodeImage dekodiert ein Bild aus einem io.Reader
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("daten lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// composite entfernt den Alpha-Kanal durch weissen Hintergrund
func composite(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

// FitSize berechnet die Groesse, mit der ein h x w Bild unter Beibehaltung des
// Seitenverhaeltnisses in eine targetH x targetW Flaeche passt. Das Verhaeltnis
// ist max(h/targetH, w/targetW), die Groessen werden abgeschnitten.
func FitSize(height, width, targetH, targetW int) (int, int) {
	ratio := max(float64(height)/float64(targetH), float64(width)/float64(targetW))
	return max(1, int(float64(height)/ratio)), max(1, int(float64(width)/ratio))
}

// Prepare skaliert das Bild so, dass es in die Zielflaeche passt. Kleinere
// Bilder werden vergroessert.
func Prepare(img *ImageInput, targetH, targetW int) (*ImageInput, error) {
	if targetH <= 0 || targetW <= 0 {
		return nil, fmt.Errorf("ungueltige Groesse: %dx%d", targetW, targetH)
	}

	h, w := FitSize(img.Height, img.Width, targetH, targetW)
	if h == img.Height && w == img.Width {
		return img, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Src, nil)

	return &ImageInput{
		Image:  dst,
		Width:  w,
		Height: h,
		Format: img.Format,
	}, nil
}

// ToTensor konvertiert das Bild in einen [3, H, W] float32 Tensor mit
// unskalierten Werten im Bereich 0-255 (Channel-First).
func ToTensor(img *ImageInput) *tensor.Dense {
	bounds := img.Image.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	plane := h * w

	data := make([]float32, 3*plane)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.Image.RGBAAt(x, y)
			data[idx] = float32(c.R)
			data[plane+idx] = float32(c.G)
			data[2*plane+idx] = float32(c.B)
			idx++
		}
	}

	return ml.FromFloats(data, 3, h, w)
}

// TensorShape gibt die Tensor-Form im Channel-First Layout zurueck
func (img *ImageInput) TensorShape() []int {
	return []int{3, img.Height, img.Width}
}
