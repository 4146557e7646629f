// cmd_preprocess.go - Bild-Vorverarbeitung auf der Kommandozeile
// Hauptfunktionen: PreprocessHandler, loadPreprocessor
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sis-k/executorch/api"
	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/ml"
	"github.com/sis-k/executorch/vision"
)

// loadPreprocessor - preprocessor_config.json aus dir, leerer Pfad = Defaults
func loadPreprocessor(dir string) (*huggingface.PreprocessorConfig, error) {
	if dir == "" {
		return nil, nil
	}
	return huggingface.LoadPreprocessorConfig(os.DirFS(dir))
}

// PreprocessHandler - Skaliert und normalisiert ein Bild wie der Export
func PreprocessHandler(cmd *cobra.Command, args []string) error {
	modelDir, _ := cmd.Flags().GetString("model")
	config, err := loadPreprocessor(modelDir)
	if err != nil {
		return err
	}

	height, width := huggingface.GetCropSize(config)
	if h, _ := cmd.Flags().GetInt("height"); h > 0 {
		height = h
	}
	if w, _ := cmd.Flags().GetInt("width"); w > 0 {
		width = w
	}

	img, err := vision.LoadImage(args[0])
	if err != nil {
		return err
	}

	pre, err := vision.Preprocess(img, height, width, vision.NormalizeOptionsFromConfig(config))
	if err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		data, err := ml.Floats(pre.Pixels)
		if err != nil {
			return err
		}

		shape := make([]uint64, 0, len(pre.Pixels.Shape()))
		for _, d := range pre.Pixels.Shape() {
			shape = append(shape, uint64(d))
		}

		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := convert.WriteSafetensors(f, []convert.Tensor{convert.NewTensor("pixel_values", shape, data)}, ml.DTypeF32); err != nil {
			return err
		}
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
		Shape: pre.Pixels.Shape().Clone(),
	}

	if dump, _ := cmd.Flags().GetBool("dump"); dump {
		fmt.Fprintln(cmd.ErrOrStderr(), ml.Dump(pre.Pixels, ml.DumpWithPrecision(4), ml.DumpWithEdgeItems(2), ml.DumpWithHeader()))
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON || !isTerminal() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "format      %s\n", resp.Format)
	fmt.Fprintf(out, "original    %dx%d\n", resp.Original[1], resp.Original[0])
	fmt.Fprintf(out, "resized     %dx%d\n", resp.Resized[1], resp.Resized[0])
	fmt.Fprintf(out, "padding     left=%d right=%d top=%d bottom=%d\n", resp.Padding.Left, resp.Padding.Right, resp.Padding.Top, resp.Padding.Bottom)
	fmt.Fprintf(out, "shape       %v\n", resp.Shape)
	return nil
}

// newPreprocessCmd - Erstellt den preprocess Command
func newPreprocessCmd() *cobra.Command {
	preprocessCmd := &cobra.Command{
		Use:   "preprocess IMAGE",
		Short: "Resize, pad and normalize an image for the vision encoder",
		Args:  cobra.ExactArgs(1),
		RunE:  PreprocessHandler,
	}

	preprocessCmd.Flags().String("model", "", "Model directory with preprocessor_config.json")
	preprocessCmd.Flags().Int("height", 0, "Target height (default: crop size)")
	preprocessCmd.Flags().Int("width", 0, "Target width (default: crop size)")
	preprocessCmd.Flags().StringP("output", "o", "", "Write pixel_values to a safetensors file")
	preprocessCmd.Flags().Bool("dump", false, "Print the normalized pixel values to stderr")
	preprocessCmd.Flags().Bool("json", false, "Print JSON")
	return preprocessCmd
}
