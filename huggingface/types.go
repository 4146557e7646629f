// types.go - Typen fuer das Parsen von HuggingFace Konfigurationsdateien
//
// Enthaelt Typen fuer:
// - config.json Parsing (ModelConfig, VisionConfig, TextConfig)
// - preprocessor_config.json Parsing (PreprocessorConfig)
// - Fehler (HuggingFaceError)
package huggingface

// =============================================================================
// KONSTANTEN
// =============================================================================

// Unterstuetzte Model-Typen
const (
	ModelTypeLlava = "llava"
	ModelTypeCLIP  = "clip"
	ModelTypeLlama = "llama"
)

// Standard-Werte fuer LLaVA-1.5
const (
	DefaultImageSize          = 336
	DefaultImageTokenIndex    = 32000
	DefaultVisionFeatureLayer = -2
	DefaultSelectStrategy     = "default"
)

// Normalisierungswerte der bekannten Bild-Encoder
var (
	DefaultImageMeanImageNet = []float32{0.485, 0.456, 0.406}
	DefaultImageStdImageNet  = []float32{0.229, 0.224, 0.225}
	DefaultImageMeanCLIP     = []float32{0.48145466, 0.4578275, 0.40821073}
	DefaultImageStdCLIP      = []float32{0.26862954, 0.26130258, 0.27577711}
)

// =============================================================================
// CONFIG PARSING TYPEN
// =============================================================================

// ModelConfig enthaelt die Felder einer LLaVA config.json, die fuer den
// Export gebraucht werden.
type ModelConfig struct {
	ModelType     string   `json:"model_type"`
	Architectures []string `json:"architectures,omitempty"`

	// Platzhalter-Token fuer Bilder im Prompt
	ImageTokenIndex *int32 `json:"image_token_index,omitempty"`

	// Auswahl der Vision-Features
	VisionFeatureLayer          *int   `json:"vision_feature_layer,omitempty"`
	VisionFeatureSelectStrategy string `json:"vision_feature_select_strategy,omitempty"`
	ProjectorHiddenAct          string `json:"projector_hidden_act,omitempty"`

	VisionConfig *VisionConfig `json:"vision_config,omitempty"`
	TextConfig   *TextConfig   `json:"text_config,omitempty"`

	TorchDtype          string `json:"torch_dtype,omitempty"`
	TransformersVersion string `json:"transformers_version,omitempty"`
}

// VisionConfig enthaelt den vision_config Block der config.json
type VisionConfig struct {
	ModelType         string `json:"model_type,omitempty"`
	HiddenSize        int    `json:"hidden_size"`
	IntermediateSize  int    `json:"intermediate_size,omitempty"`
	NumHiddenLayers   int    `json:"num_hidden_layers"`
	NumAttentionHeads int    `json:"num_attention_heads"`
	ImageSize         int    `json:"image_size"`
	PatchSize         int    `json:"patch_size"`
	ProjectionDim     int    `json:"projection_dim,omitempty"`
}

// TextConfig enthaelt den text_config Block der config.json
type TextConfig struct {
	ModelType             string `json:"model_type,omitempty"`
	HiddenSize            int    `json:"hidden_size"`
	IntermediateSize      int    `json:"intermediate_size,omitempty"`
	NumHiddenLayers       int    `json:"num_hidden_layers"`
	NumAttentionHeads     int    `json:"num_attention_heads"`
	VocabSize             int    `json:"vocab_size"`
	MaxPositionEmbeddings int    `json:"max_position_embeddings,omitempty"`
}

// =============================================================================
// PREPROCESSOR TYPEN
// =============================================================================

// PreprocessorConfig enthaelt die Bildvorverarbeitungs-Parameter
// aus preprocessor_config.json
type PreprocessorConfig struct {
	ImageProcessorType string `json:"image_processor_type,omitempty"`
	ProcessorClass     string `json:"processor_class,omitempty"`

	// Bildgroesse (verschiedene Formate moeglich)
	Size     *ImageSizeConfig `json:"size,omitempty"`
	CropSize *ImageSizeConfig `json:"crop_size,omitempty"`

	// Normalisierung
	ImageMean []float32 `json:"image_mean,omitempty"`
	ImageStd  []float32 `json:"image_std,omitempty"`

	Resample     int  `json:"resample,omitempty"`
	DoResize     bool `json:"do_resize,omitempty"`
	DoCenterCrop bool `json:"do_center_crop,omitempty"`
	DoNormalize  bool `json:"do_normalize,omitempty"`
	DoRescale    bool `json:"do_rescale,omitempty"`
	DoConvertRGB bool `json:"do_convert_rgb,omitempty"`

	RescaleFactor float32 `json:"rescale_factor,omitempty"`
}

// ImageSizeConfig repraesentiert die Bildgroesse in verschiedenen Formaten
type ImageSizeConfig struct {
	Height       int `json:"height,omitempty"`
	Width        int `json:"width,omitempty"`
	ShortestEdge int `json:"shortest_edge,omitempty"`
}

// =============================================================================
// ERROR TYPEN
// =============================================================================

// HuggingFaceError repraesentiert einen Fehler beim Lesen einer Konfiguration
type HuggingFaceError struct {
	Op   string // Operation (parse_config, load_preprocessor, ...)
	Path string // Betroffene Datei
	Err  error  // Urspruenglicher Fehler
}

// Error implementiert das error Interface
func (e *HuggingFaceError) Error() string {
	if e.Path != "" {
		return "huggingface " + e.Op + " [" + e.Path + "]: " + e.Err.Error()
	}
	return "huggingface " + e.Op + ": " + e.Err.Error()
}

// Unwrap ermoeglicht errors.Is/As
func (e *HuggingFaceError) Unwrap() error {
	return e.Err
}
