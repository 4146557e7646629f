// preprocessor.go - Parser fuer HuggingFace preprocessor_config.json
//
// Extrahiert Bildvorverarbeitungs-Parameter wie crop_size, image_mean, image_std.
package huggingface

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Fehler
var (
	ErrPreprocessorNotFound = errors.New("preprocessor_config.json nicht gefunden")
	ErrInvalidPreprocessor  = errors.New("ungueltige preprocessor_config.json")
)

// PreprocessorFile ist der Dateiname innerhalb eines Modell-Verzeichnisses.
const PreprocessorFile = "preprocessor_config.json"

// ParsePreprocessorConfig parst JSON-Bytes einer preprocessor_config.json.
func ParsePreprocessorConfig(data []byte) (*PreprocessorConfig, error) {
	var config PreprocessorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &HuggingFaceError{Op: "parse_preprocessor", Err: fmt.Errorf("%w: %v", ErrInvalidPreprocessor, err)}
	}
	if !hasValidPreprocessorData(&config) {
		return nil, &HuggingFaceError{Op: "parse_preprocessor", Err: ErrInvalidPreprocessor}
	}
	if len(config.ImageMean) != len(config.ImageStd) {
		return nil, &HuggingFaceError{Op: "parse_preprocessor", Err: fmt.Errorf("%w: image_mean hat %d Werte, image_std %d",
			ErrInvalidPreprocessor, len(config.ImageMean), len(config.ImageStd))}
	}
	for _, s := range config.ImageStd {
		if s == 0 {
			return nil, &HuggingFaceError{Op: "parse_preprocessor", Err: fmt.Errorf("%w: image_std enthaelt 0", ErrInvalidPreprocessor)}
		}
	}
	return &config, nil
}

// LoadPreprocessorConfig laedt die preprocessor_config.json aus einem Modell-Verzeichnis.
func LoadPreprocessorConfig(fsys fs.FS) (*PreprocessorConfig, error) {
	data, err := fs.ReadFile(fsys, PreprocessorFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &HuggingFaceError{Op: "load_preprocessor", Path: PreprocessorFile, Err: ErrPreprocessorNotFound}
		}
		return nil, &HuggingFaceError{Op: "load_preprocessor", Path: PreprocessorFile, Err: fmt.Errorf("lesen: %w", err)}
	}
	return ParsePreprocessorConfig(data)
}

// GetImageMean gibt die Normalisierungs-Mittelwerte zurueck.
func GetImageMean(config *PreprocessorConfig) []float32 {
	if config == nil {
		return DefaultImageMeanCLIP
	}
	if len(config.ImageMean) >= 3 {
		return config.ImageMean
	}
	if isCLIP(config) {
		return DefaultImageMeanCLIP
	}
	return DefaultImageMeanImageNet
}

// GetImageStd gibt die Normalisierungs-Standardabweichungen zurueck.
func GetImageStd(config *PreprocessorConfig) []float32 {
	if config == nil {
		return DefaultImageStdCLIP
	}
	if len(config.ImageStd) >= 3 {
		return config.ImageStd
	}
	if isCLIP(config) {
		return DefaultImageStdCLIP
	}
	return DefaultImageStdImageNet
}

// GetCropSize gibt Hoehe und Breite der Zielflaeche zurueck. crop_size hat
// Vorrang vor size.
func GetCropSize(config *PreprocessorConfig) (height, width int) {
	if config == nil {
		return DefaultImageSize, DefaultImageSize
	}
	if h, w := extractSizeFromBlock(config.CropSize); h > 0 && w > 0 {
		return h, w
	}
	if h, w := extractSizeFromBlock(config.Size); h > 0 && w > 0 {
		return h, w
	}
	return DefaultImageSize, DefaultImageSize
}

// GetRescaleFactor gibt den Rescale-Faktor zurueck (Standard: 1/255).
func GetRescaleFactor(config *PreprocessorConfig) float32 {
	if config == nil || config.RescaleFactor == 0 {
		return 1.0 / 255.0
	}
	return config.RescaleFactor
}

// hasValidPreprocessorData prueft ob mindestens ein gueltiges Feld gesetzt ist.
func hasValidPreprocessorData(config *PreprocessorConfig) bool {
	hasSize := config.Size != nil || config.CropSize != nil
	return hasSize || len(config.ImageMean) > 0 || len(config.ImageStd) > 0 ||
		config.ImageProcessorType != "" || config.ProcessorClass != ""
}

// extractSizeFromBlock extrahiert Hoehe und Breite aus einem ImageSizeConfig.
func extractSizeFromBlock(block *ImageSizeConfig) (height, width int) {
	if block == nil {
		return 0, 0
	}
	if block.Width > 0 && block.Height > 0 {
		return block.Height, block.Width
	}
	if block.ShortestEdge > 0 {
		return block.ShortestEdge, block.ShortestEdge
	}
	return 0, 0
}

func isCLIP(config *PreprocessorConfig) bool {
	return strings.Contains(strings.ToLower(config.ImageProcessorType+config.ProcessorClass), "clip")
}
