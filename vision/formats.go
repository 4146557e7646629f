// MODUL: formats
// ZWECK: Bildformat-Erkennung und Validierung vor dem Dekodieren
// INPUT: Bild-Bytes
// OUTPUT: ImageFormat, Fehler bei ungueltigem Format
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine
// HINWEISE: Magic-Bytes-basierte Erkennung fuer JPEG/PNG/WebP/BMP/TIFF

package vision

import (
	"bytes"
	"errors"
)

// ImageFormat repraesentiert ein unterstuetztes Bildformat
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "jpeg"
	FormatPNG     ImageFormat = "png"
	FormatWebP    ImageFormat = "webp"
	FormatBMP     ImageFormat = "bmp"
	FormatTIFF    ImageFormat = "tiff"
	FormatUnknown ImageFormat = "unknown"
)

type signature struct {
	format ImageFormat
	magic  []byte
}

// Magic-Byte-Signaturen, WebP wird zusaetzlich ueber den WEBP-Marker geprueft
var signatures = []signature{
	{FormatJPEG, []byte{0xFF, 0xD8, 0xFF}},
	{FormatPNG, []byte{0x89, 0x50, 0x4E, 0x47}},
	{FormatWebP, []byte("RIFF")},
	{FormatBMP, []byte("BM")},
	{FormatTIFF, []byte{'I', 'I', 0x2A, 0x00}},
	{FormatTIFF, []byte{'M', 'M', 0x00, 0x2A}},
}

var (
	ErrUnknownFormat     = errors.New("unbekanntes Bildformat")
	ErrUnsupportedFormat = errors.New("nicht unterstuetztes Bildformat")
)

// DetectFormat erkennt das Bildformat anhand der Magic-Bytes
func DetectFormat(data []byte) ImageFormat {
	if len(data) < 4 {
		return FormatUnknown
	}

	for _, sig := range signatures {
		if !bytes.HasPrefix(data, sig.magic) {
			continue
		}
		if sig.format == FormatWebP && !isValidWebP(data) {
			continue
		}
		return sig.format
	}

	return FormatUnknown
}

// isValidWebP prueft auf "WEBP" Marker nach RIFF Header
func isValidWebP(data []byte) bool {
	return len(data) >= 12 && string(data[8:12]) == "WEBP"
}

// ValidateFormat prueft ob ein Format dekodiert werden kann
func ValidateFormat(format ImageFormat) error {
	switch format {
	case FormatJPEG, FormatPNG, FormatWebP, FormatBMP, FormatTIFF:
		return nil
	case FormatUnknown:
		return ErrUnknownFormat
	default:
		return ErrUnsupportedFormat
	}
}

// MimeType gibt den MIME-Type fuer ein Format zurueck
func (f ImageFormat) MimeType() string {
	switch f {
	case FormatJPEG, FormatPNG, FormatWebP, FormatBMP, FormatTIFF:
		return "image/" + string(f)
	default:
		return "application/octet-stream"
	}
}

// String implementiert Stringer Interface
func (f ImageFormat) String() string {
	return string(f)
}
