// preprocessor_test.go - Unit Tests fuer den Preprocessor Config Parser
package huggingface

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

// llava-1.5 preprocessor_config.json
const llavaPreprocessor = `{
  "crop_size": {"height": 336, "width": 336},
  "do_center_crop": true,
  "do_convert_rgb": true,
  "do_normalize": true,
  "do_rescale": true,
  "do_resize": true,
  "image_mean": [0.48145466, 0.4578275, 0.40821073],
  "image_processor_type": "CLIPImageProcessor",
  "image_std": [0.26862954, 0.26130258, 0.27577711],
  "processor_class": "LlavaProcessor",
  "resample": 3,
  "rescale_factor": 0.00392156862745098,
  "size": {"shortest_edge": 336}
}`

// TestParsePreprocessorConfig testet das Parsen von preprocessor_config.json
func TestParsePreprocessorConfig(t *testing.T) {
	tests := []struct {
		name, data string
		expectErr  bool
	}{
		{"LLaVA", llavaPreprocessor, false},
		{"CLIP crop", `{"processor_class": "CLIPProcessor", "crop_size": {"height": 224, "width": 224}}`, false},
		{"shortest_edge", `{"image_processor_type": "Processor", "size": {"shortest_edge": 518}}`, false},
		{"Invalides JSON", `{"invalid: json}`, true},
		{"Leere Config", `{}`, true},
		{"Nur Typ", `{"image_processor_type": "Processor"}`, false},
		{"Mean ohne Std", `{"image_mean": [0.5, 0.5, 0.5]}`, true},
		{"Std mit Null", `{"image_mean": [0.5, 0.5, 0.5], "image_std": [0.5, 0, 0.5]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParsePreprocessorConfig([]byte(tt.data))
			if tt.expectErr {
				if err == nil {
					t.Error("Erwartete Fehler")
				}
				if !errors.Is(err, ErrInvalidPreprocessor) {
					t.Errorf("Erwartete ErrInvalidPreprocessor, bekam %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unerwarteter Fehler: %v", err)
			} else if config == nil {
				t.Error("Erwartete Config, bekam nil")
			}
		})
	}
}

// TestLoadPreprocessorConfig testet das Laden aus einem Verzeichnis
func TestLoadPreprocessorConfig(t *testing.T) {
	t.Run("Valide Datei", func(t *testing.T) {
		fsys := fstest.MapFS{PreprocessorFile: {Data: []byte(llavaPreprocessor)}}
		config, err := LoadPreprocessorConfig(fsys)
		if err != nil {
			t.Fatalf("Fehler: %v", err)
		}
		if config.ImageProcessorType != "CLIPImageProcessor" {
			t.Errorf("ImageProcessorType = %q, erwartet CLIPImageProcessor", config.ImageProcessorType)
		}
	})

	t.Run("Nicht existierend", func(t *testing.T) {
		_, err := LoadPreprocessorConfig(fstest.MapFS{})
		var hfErr *HuggingFaceError
		if !errors.As(err, &hfErr) {
			t.Fatalf("Erwartete HuggingFaceError, bekam %T", err)
		}
		if !errors.Is(err, ErrPreprocessorNotFound) {
			t.Errorf("Erwartete ErrPreprocessorNotFound, bekam %v", err)
		}
	})
}

// TestPreprocessorAccessors testet die Getter mit und ohne Config
func TestPreprocessorAccessors(t *testing.T) {
	config, err := ParsePreprocessorConfig([]byte(llavaPreprocessor))
	if err != nil {
		t.Fatal(err)
	}

	if h, w := GetCropSize(config); h != 336 || w != 336 {
		t.Errorf("GetCropSize = %dx%d, erwartet 336x336", h, w)
	}
	if diff := cmp.Diff(DefaultImageMeanCLIP, GetImageMean(config)); diff != "" {
		t.Errorf("GetImageMean (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultImageStdCLIP, GetImageStd(config)); diff != "" {
		t.Errorf("GetImageStd (-want +got):\n%s", diff)
	}
	if got := GetRescaleFactor(config); got != float32(0.00392156862745098) {
		t.Errorf("GetRescaleFactor = %v", got)
	}

	if h, w := GetCropSize(nil); h != DefaultImageSize || w != DefaultImageSize {
		t.Errorf("GetCropSize(nil) = %dx%d", h, w)
	}
	if got := GetRescaleFactor(nil); got != 1.0/255.0 {
		t.Errorf("GetRescaleFactor(nil) = %v", got)
	}

	rect := &PreprocessorConfig{CropSize: &ImageSizeConfig{Height: 224, Width: 448}}
	if h, w := GetCropSize(rect); h != 224 || w != 448 {
		t.Errorf("GetCropSize = %dx%d, erwartet 224x448", h, w)
	}

	plain := &PreprocessorConfig{ImageProcessorType: "ViTImageProcessor"}
	if diff := cmp.Diff(DefaultImageMeanImageNet, GetImageMean(plain)); diff != "" {
		t.Errorf("GetImageMean (-want +got):\n%s", diff)
	}
}
