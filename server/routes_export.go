// routes_export.go - Handler fuer Umbenennung, Bild-Vorverarbeitung,
// Dynamic Shapes und QNN-Lowering
// Enthaelt: RemapHandler, PreprocessHandler, ShapesHandler, LowerHandler

package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/stat"

	"github.com/sis-k/executorch/api"
	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/ml"
	"github.com/sis-k/executorch/model/llava"
	"github.com/sis-k/executorch/qnn"
	"github.com/sis-k/executorch/vision"
)

// bindJSON liest den Request-Body, ein leerer Body ist ein Fehler
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return false
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return false
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// RemapHandler benennt Parameter-Namen um
func (s *Server) RemapHandler(c *gin.Context) {
	var req api.RemapRequest
	if !bindJSON(c, &req) {
		return
	}

	if len(req.Names) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "names are required"})
		return
	}

	rules := s.rules
	if len(req.Rules) > 0 {
		pairs := make([]string, 0, 2*len(req.Rules))
		for _, r := range req.Rules {
			pairs = append(pairs, r.Pattern, r.Replacement)
		}

		var err error
		if rules, err = convert.ParseRules(pairs...); err != nil {
			c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
	}

	// Kollisionen ueber das ganze Mapping pruefen
	src := make(map[string]struct{}, len(req.Names))
	for _, name := range req.Names {
		src[name] = struct{}{}
	}
	if _, err := convert.Remap(src, rules); err != nil {
		c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	resp := api.RemapResponse{Entries: make([]api.RemapEntry, 0, len(req.Names))}
	for _, name := range req.Names {
		to, ok := rules.Rename(name)
		resp.Entries = append(resp.Entries, api.RemapEntry{From: name, To: to, Matched: ok})
	}

	c.JSON(http.StatusOK, resp)
}

// PreprocessHandler skaliert, fuellt auf und normalisiert ein Bild
func (s *Server) PreprocessHandler(c *gin.Context) {
	var req api.PreprocessRequest
	if !bindJSON(c, &req) {
		return
	}

	if len(req.Image) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}

	height, width := huggingface.GetCropSize(s.preprocessor)
	if req.Height > 0 {
		height = req.Height
	}
	if req.Width > 0 {
		width = req.Width
	}

	img, err := vision.LoadImageFromBytes(req.Image)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pre, err := vision.Preprocess(img, height, width, vision.NormalizeOptionsFromConfig(s.preprocessor))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := ml.Floats(pre.Pixels)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := api.PreprocessResponse{
		Format:   string(img.Format),
		Original: [2]int{img.Height, img.Width},
		Resized:  [2]int{pre.Resized.Height, pre.Resized.Width},
		Padding: api.Padding{
			Left:   pre.Padding.Left,
			Right:  pre.Padding.Right,
			Top:    pre.Padding.Top,
			Bottom: pre.Padding.Bottom,
		},
		Shape:    pre.Pixels.Shape().Clone(),
		Channels: channelStats(data, 3),
	}
	if req.Data {
		resp.Data = data
	}

	slog.Debug("preprocessed image", "format", img.Format, "original", resp.Original, "resized", resp.Resized)
	c.JSON(http.StatusOK, resp)
}

// channelStats berechnet Mittelwert und Standardabweichung je Kanal
func channelStats(data []float32, channels int) []api.ChannelStats {
	plane := len(data) / channels
	stats := make([]api.ChannelStats, channels)
	values := make([]float64, plane)
	for ch := range channels {
		for i, v := range data[ch*plane : (ch+1)*plane] {
			values[i] = float64(v)
		}
		stats[ch].Mean, stats[ch].Std = stat.MeanStdDev(values, nil)
	}
	return stats
}

// ShapesHandler liefert die Dynamic-Shape-Deklarationen des Modells
func (s *Server) ShapesHandler(c *gin.Context) {
	height, width := huggingface.GetCropSize(s.preprocessor)
	m := llava.NewManifest(s.model, height, width, s.maxSeqLen)
	c.JSON(http.StatusOK, shapesResponse(m))
}

func shapesResponse(m llava.Manifest) api.ShapesResponse {
	resp := api.ShapesResponse{
		Model:     m.Model,
		MaxSeqLen: m.MaxSeqLen,
		Inputs:    make(map[string][]map[int]api.AxisBound, len(m.Inputs)),
	}

	for name, specs := range m.Inputs {
		out := make([]map[int]api.AxisBound, 0, len(specs))
		for _, spec := range specs {
			axes := make(map[int]api.AxisBound, len(spec))
			for axis, b := range spec {
				ab := api.AxisBound{Static: b.Static}
				if b.Dim != nil {
					ab.Dim = &api.Dim{Name: b.Dim.Name, Min: b.Dim.Min, Max: b.Dim.Max, Factor: b.Dim.Factor}
				}
				axes[axis] = ab
			}
			out = append(out, axes)
		}
		resp.Inputs[name] = out
	}

	return resp
}

// LowerHandler uebersetzt einen exportierten Graphen in QNN-Ops
func (s *Server) LowerHandler(c *gin.Context) {
	var req api.LowerRequest
	if !bindJSON(c, &req) {
		return
	}

	if len(req.Graph) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "graph is required"})
		return
	}

	g, err := qnn.ParseGraph(bytes.NewReader(req.Graph))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := qnn.Lower(g)
	if err != nil {
		var lerr *qnn.LoweringError
		if errors.As(err, &lerr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("lowering failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, lowerResponse(p))
}

func lowerResponse(p *qnn.Program) api.LowerResponse {
	resp := api.LowerResponse{
		Tensors: make([]api.Tensor, 0, len(p.Tensors)),
		Ops:     make([]api.Op, 0, len(p.Ops)),
	}

	for _, t := range p.Tensors {
		resp.Tensors = append(resp.Tensors, api.Tensor{
			ID:       t.ID,
			Name:     t.Name,
			Type:     string(t.Type),
			DataType: string(t.DataType),
			Dims:     t.Dims,
		})
	}

	for _, op := range p.Ops {
		resp.Ops = append(resp.Ops, api.Op{
			Name:        op.Name,
			PackageName: op.PackageName,
			OpType:      op.OpType,
			Inputs:      op.Inputs,
			Outputs:     op.Outputs,
		})
	}

	return resp
}
