// detect.go - Parsen und Pruefen der HuggingFace config.json
//
// Erkennt LLaVA-Modelle und liefert die fuer den Export noetigen Werte
// mit den Standardwerten von llava-1.5.
package huggingface

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Fehler-Definitionen
var (
	ErrConfigNotFound   = errors.New("config.json nicht gefunden")
	ErrInvalidConfig    = errors.New("ungueltige config.json Struktur")
	ErrUnknownModelType = errors.New("unbekannter model_type")
)

// ConfigFile ist der Dateiname innerhalb eines Modell-Verzeichnisses.
const ConfigFile = "config.json"

// ParseConfig parst die rohen JSON-Bytes einer config.json.
func ParseConfig(data []byte) (*ModelConfig, error) {
	var config ModelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &HuggingFaceError{Op: "parse_config", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	if config.ModelType == "" && len(config.Architectures) == 0 {
		return nil, &HuggingFaceError{Op: "parse_config", Err: ErrInvalidConfig}
	}
	return &config, nil
}

// LoadConfig laedt die config.json aus einem Modell-Verzeichnis.
func LoadConfig(fsys fs.FS) (*ModelConfig, error) {
	data, err := fs.ReadFile(fsys, ConfigFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &HuggingFaceError{Op: "load_config", Path: ConfigFile, Err: ErrConfigNotFound}
		}
		return nil, &HuggingFaceError{Op: "load_config", Path: ConfigFile, Err: fmt.Errorf("lesen: %w", err)}
	}
	return ParseConfig(data)
}

// DetectModelType gibt den normalisierten Modell-Typ zurueck.
func DetectModelType(config *ModelConfig) (string, error) {
	modelType := strings.ToLower(config.ModelType)
	switch {
	case modelType == ModelTypeLlava, strings.HasPrefix(modelType, "llava"):
		return ModelTypeLlava, nil
	case modelType == ModelTypeLlama:
		return ModelTypeLlama, nil
	case strings.HasPrefix(modelType, "clip"):
		return ModelTypeCLIP, nil
	}

	for _, arch := range config.Architectures {
		if strings.HasPrefix(arch, "Llava") {
			return ModelTypeLlava, nil
		}
	}

	return "", &HuggingFaceError{Op: "detect", Err: fmt.Errorf("%w: %q", ErrUnknownModelType, config.ModelType)}
}

// ImageToken gibt die Token-ID des Bild-Platzhalters zurueck.
func (c *ModelConfig) ImageToken() int32 {
	if c == nil || c.ImageTokenIndex == nil {
		return DefaultImageTokenIndex
	}
	return *c.ImageTokenIndex
}

// FeatureLayer gibt den Index der Vision-Schicht zurueck (negativ zaehlt vom Ende).
func (c *ModelConfig) FeatureLayer() int {
	if c == nil || c.VisionFeatureLayer == nil {
		return DefaultVisionFeatureLayer
	}
	return *c.VisionFeatureLayer
}

// SelectStrategy gibt die Auswahlstrategie der Vision-Features zurueck.
func (c *ModelConfig) SelectStrategy() string {
	if c == nil || c.VisionFeatureSelectStrategy == "" {
		return DefaultSelectStrategy
	}
	return c.VisionFeatureSelectStrategy
}
