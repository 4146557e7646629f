// types.go - API-Typen des Export-Dienstes
// Enthaelt: StatusError, Remap-, Preprocess-, Lower- und Shapes-Anfragen/-Antworten
package api

import (
	"encoding/json"
	"fmt"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the executorch server logs for details"
	}
}

// ImageData represents the raw binary data of an image file.
type ImageData []byte

// Rule is one (pattern, replacement) rename rule.
type Rule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// RemapRequest asks for the renamed form of Names. Without Rules the
// server's configured rules are used.
type RemapRequest struct {
	Names []string `json:"names"`
	Rules []Rule   `json:"rules,omitempty"`
}

// RemapEntry is the result for one name.
type RemapEntry struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Matched bool   `json:"matched"`
}

type RemapResponse struct {
	Entries []RemapEntry `json:"entries"`
}

// PreprocessRequest carries an image to resize, pad and normalize. Height
// and Width default to the crop size of the loaded preprocessor config.
type PreprocessRequest struct {
	Image  ImageData `json:"image"`
	Height int       `json:"height,omitempty"`
	Width  int       `json:"width,omitempty"`

	// Data includes the normalized pixel values in the response
	Data bool `json:"data,omitempty"`
}

// Padding is the number of zero pixels added on each side.
type Padding struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// ChannelStats summarizes one normalized channel.
type ChannelStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

type PreprocessResponse struct {
	Format   string         `json:"format"`
	Original [2]int         `json:"original"`
	Resized  [2]int         `json:"resized"`
	Padding  Padding        `json:"padding"`
	Shape    []int          `json:"shape"`
	Channels []ChannelStats `json:"channels"`
	Data     []float32      `json:"data,omitempty"`
}

// LowerRequest carries an exported graph in JSON form.
type LowerRequest struct {
	Graph json.RawMessage `json:"graph"`
}

// Tensor is a QNN tensor of a lowered program.
type Tensor struct {
	ID       uint32   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	DataType string   `json:"data_type"`
	Dims     []uint32 `json:"dims"`
}

// Op is a QNN op of a lowered program.
type Op struct {
	Name        string   `json:"name"`
	PackageName string   `json:"package_name"`
	OpType      string   `json:"op_type"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

type LowerResponse struct {
	Tensors []Tensor `json:"tensors"`
	Ops     []Op     `json:"ops"`
}

// Dim is a symbolic dimension size = Factor * [Min, Max].
type Dim struct {
	Name   string `json:"name"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Factor int    `json:"factor"`
}

// AxisBound is a static size or a symbolic dimension.
type AxisBound struct {
	Static int  `json:"static,omitempty"`
	Dim    *Dim `json:"dim,omitempty"`
}

type ShapesResponse struct {
	Model     string                         `json:"model"`
	MaxSeqLen int                            `json:"max_seq_len"`
	Inputs    map[string][]map[int]AxisBound `json:"inputs"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
