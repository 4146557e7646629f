// Package llava - Vision+Sprache Export-Modell
//
// Dieses Paket setzt die Eingaben eines LLaVA-Modells fuer den Export
// zusammen. Vision-Tower, Projektor, Token-Embedding und Text-Decoder sind
// externe Komponenten hinter Interfaces.
//
// Hauptkomponenten:
// - FeatureExtractor: Hidden-State-Auswahl und Projektion
// - Model: Prefill-Embedding aus Text und Bild
// - Session: inkrementelles Dekodieren mit Positionspruefung
// - ExampleInputs: memoisierte Beispiel-Eingaben fuer den Export
// - Dim/ShapeSpec: dynamische Formen fuer das Tracing
package llava

import (
	"context"
	"errors"

	"github.com/pdevine/tensor"
)

var (
	ErrUnknownSelectStrategy = errors.New("unknown vision feature select strategy")
	ErrLayerOutOfRange       = errors.New("vision feature layer out of range")
	ErrNoImageToken          = errors.New("prompt has no image placeholder")
	ErrAlreadyPrefilled      = errors.New("session is already prefilled")
	ErrNotPrefilled          = errors.New("session has not been prefilled")
	ErrPositionMismatch      = errors.New("decode position does not match session")
)

// HiddenStates holds one [batch, seq, hidden] tensor per encoder layer,
// starting with the embedding output.
type HiddenStates []*tensor.Dense

// VisionEncoder runs the vision tower on a [batch, C, H, W] image batch.
// Implementations need not be safe for concurrent use unless the
// FeatureExtractor is configured with SetConcurrency above 1.
type VisionEncoder interface {
	Encode(ctx context.Context, images *tensor.Dense) (HiddenStates, error)
}

// Projector maps vision features into the text embedding space. The same
// concurrency rule as for VisionEncoder applies.
type Projector interface {
	Project(ctx context.Context, features *tensor.Dense) (*tensor.Dense, error)
}

// TokenEmbedder looks up token embeddings and returns [1, len(ids), D].
type TokenEmbedder interface {
	Embed(ctx context.Context, ids []int32) (*tensor.Dense, error)
}

// ForwardOptions are passed to the text decoder on every call.
type ForwardOptions struct {
	// InputPos is the position of the first embedding in embeds
	InputPos int32

	// Mask is the causal mask of the cache for this call, may be nil
	Mask *tensor.Dense
}

// TextDecoder runs the language model. tokens is always nil here, the
// input comes in as embeddings.
type TextDecoder interface {
	Forward(ctx context.Context, tokens []int32, opts ForwardOptions, embeds *tensor.Dense) (*tensor.Dense, error)
}
