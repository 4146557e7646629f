package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sis-k/executorch/api"
	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/ml"
	"github.com/sis-k/executorch/model/llava"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func writeCheckpoint(t *testing.T, dir string, ts ...convert.Tensor) {
	t.Helper()

	f, err := os.Create(filepath.Join(dir, "model.safetensors"))
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, convert.WriteSafetensors(f, ts, ml.DTypeF32))
}

func TestRemapHandler(t *testing.T) {
	t.Setenv("EXECUTORCH_RULES", "")
	t.Setenv("EXECUTORCH_STRICT_LOAD", "")

	src := t.TempDir()
	writeCheckpoint(t, src,
		convert.NewTensor("model.language_model.layers.1.mlp.gate_proj.weight", []uint64{2}, []float32{1, 2}),
		convert.NewTensor("model.embed_tokens.weight", []uint64{2}, []float32{3, 4}),
	)

	dst := t.TempDir()
	expect := filepath.Join(dst, "expected.txt")
	require.NoError(t, os.WriteFile(expect, []byte("# llama\nlayers.1.feed_forward.w1.weight\nmodel.embed_tokens.weight\n"), 0o644))

	out := run(t, newRemapCmd(), src, "--json", "--expect", expect, "--strict", "-o", filepath.Join(dst, "model.safetensors"))

	var entries []api.RemapEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.ElementsMatch(t, []api.RemapEntry{
		{From: "model.language_model.layers.1.mlp.gate_proj.weight", To: "layers.1.feed_forward.w1.weight", Matched: true},
		{From: "model.embed_tokens.weight", To: "model.embed_tokens.weight"},
	}, entries)

	ts, err := convert.ParseTensors(os.DirFS(dst), nil)
	require.NoError(t, err)
	params, err := convert.Params(ts)
	require.NoError(t, err)
	require.Contains(t, params, "layers.1.feed_forward.w1.weight")

	data, err := params["layers.1.feed_forward.w1.weight"].Floats()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, data)
}

func TestRemapHandlerStrictMismatch(t *testing.T) {
	t.Setenv("EXECUTORCH_RULES", "")

	src := t.TempDir()
	writeCheckpoint(t, src, convert.NewTensor("lm_head.weight", []uint64{2}, []float32{1, 2}))

	expect := filepath.Join(t.TempDir(), "expected.txt")
	require.NoError(t, os.WriteFile(expect, []byte("norm.weight\n"), 0o644))

	cmd := newRemapCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{src, "--json", "--expect", expect, "--strict"})
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), convert.ErrStateDictMismatch)
}

func TestRemapHandlerRulesFile(t *testing.T) {
	src := t.TempDir()
	writeCheckpoint(t, src, convert.NewTensor("enc.block0.w", []uint64{1, 2}, []float32{1, 2}))

	rules := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(rules, []byte(`{"block(\\d+)": "layer.\\1"}`), 0o644))

	out := run(t, newRemapCmd(), src, "--json", "--rules", rules)

	var entries []api.RemapEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Equal(t, []api.RemapEntry{{From: "enc.block0.w", To: "enc.layer.0.w", Matched: true}}, entries)
}

func TestRemapHandlerLegacyCheckpoint(t *testing.T) {
	t.Setenv("EXECUTORCH_RULES", "")

	src := t.TempDir()
	writeCheckpoint(t, src,
		convert.NewTensor("language_model.model.layers.0.self_attn.o_proj.weight", []uint64{2}, []float32{1, 2}),
		convert.NewTensor("language_model.lm_head.weight", []uint64{2}, []float32{3, 4}),
	)
	require.NoError(t, os.WriteFile(filepath.Join(src, "config.json"), []byte(`{"model_type": "llava", "transformers_version": "4.44.2"}`), 0o644))

	out := run(t, newRemapCmd(), src, "--json")

	var entries []api.RemapEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.ElementsMatch(t, []api.RemapEntry{
		{From: "language_model.model.layers.0.self_attn.o_proj.weight", To: "layers.0.attention.wo.weight", Matched: true},
		{From: "language_model.lm_head.weight", To: "output.weight", Matched: true},
	}, entries)
}

func TestReadNames(t *testing.T) {
	names, err := readNames(strings.NewReader("a\n\n# comment\n  b  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestShapesHandler(t *testing.T) {
	out := run(t, newShapesCmd(), "--model", t.TempDir(), "--max-seq-len", "32")

	m, err := llava.ReadShapes(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "llava", m.Model)
	assert.Equal(t, 32, m.MaxSeqLen)
	require.Len(t, m.Inputs["prompt"], 2)
	assert.Equal(t, 32, m.Inputs["prompt"][1][1].Dim.Max)
}

const orGraph = `{"nodes": [
	{"name": "x", "op": "placeholder", "meta": {"shape": [2, 3], "dtype": "torch.bool"}},
	{"name": "y", "op": "placeholder", "meta": {"shape": [2, 3], "dtype": "torch.bool"}},
	{"name": "bitwise_or", "op": "call_function", "target": "aten.bitwise_or.Tensor", "args": ["x", "y"], "meta": {"shape": [2, 3], "dtype": "torch.bool"}},
	{"name": "output", "op": "output", "args": ["bitwise_or"]}
]}`

func TestLowerHandler(t *testing.T) {
	graph := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(graph, []byte(orGraph), 0o644))

	out := run(t, newLowerCmd(), graph, "--json")

	var resp api.LowerResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Ops, 1)
	assert.Equal(t, "ElementWiseOr", resp.Ops[0].OpType)
	assert.Equal(t, []string{"x", "y"}, resp.Ops[0].Inputs)
	require.Len(t, resp.Tensors, 3)
	assert.Equal(t, []uint32{2, 3}, resp.Tensors[0].Dims)
	assert.Equal(t, "QNN_DATATYPE_BOOL_8", resp.Tensors[0].DataType)
}

func TestLowerHandlerTable(t *testing.T) {
	resp, err := lowerLocal([]byte(orGraph))
	require.NoError(t, err)

	var out bytes.Buffer
	writeProgram(&out, resp)
	assert.Contains(t, out.String(), "qti.aisw.ElementWiseOr")
	assert.Contains(t, out.String(), "APP_READ")
}

func TestLowerHandlerRemote(t *testing.T) {
	var got api.LowerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/lower", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LowerResponse{Ops: []api.Op{{Name: "remote", OpType: "ElementWiseOr"}}})
	}))
	defer srv.Close()

	t.Setenv("EXECUTORCH_HOST", srv.URL)

	graph := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(graph, []byte(orGraph), 0o644))

	out := run(t, newLowerCmd(), graph, "--remote", "--json")

	var resp api.LowerResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Ops, 1)
	assert.Equal(t, "remote", resp.Ops[0].Name)
	assert.JSONEq(t, orGraph, string(got.Graph))
}

func TestPreprocessHandler(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "cat.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	outDir := t.TempDir()
	out := run(t, newPreprocessCmd(), path, "--json", "--height", "8", "--width", "8", "-o", filepath.Join(outDir, "model.safetensors"))

	var resp api.PreprocessResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "png", resp.Format)
	assert.Equal(t, [2]int{4, 8}, resp.Resized)
	assert.Equal(t, api.Padding{Top: 2, Bottom: 2}, resp.Padding)
	assert.Equal(t, []int{1, 3, 8, 8}, resp.Shape)

	ts, err := convert.ParseTensors(os.DirFS(outDir), nil)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "pixel_values", ts[0].Name())
	assert.Equal(t, []uint64{1, 3, 8, 8}, ts[0].Shape())
}
