// cmd_shapes.go - Dynamic-Shape-Manifest fuer den Tracer
// Hauptfunktionen: ShapesHandler
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/sis-k/executorch/envconfig"
	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/model/llava"
)

// ShapesHandler - Schreibt das YAML-Manifest der Bild- und Prompt-Eingaben
func ShapesHandler(cmd *cobra.Command, _ []string) error {
	modelDir, _ := cmd.Flags().GetString("model")
	if modelDir == "" {
		modelDir = envconfig.Models()
	}
	fsys := os.DirFS(modelDir)

	model := huggingface.ModelTypeLlava
	if config, err := huggingface.LoadConfig(fsys); err == nil {
		if model, err = huggingface.DetectModelType(config); err != nil {
			return err
		}
	} else if !errors.Is(err, huggingface.ErrConfigNotFound) {
		return err
	}

	pre, err := huggingface.LoadPreprocessorConfig(fsys)
	if errors.Is(err, huggingface.ErrPreprocessorNotFound) {
		pre = nil
	} else if err != nil {
		return err
	}

	maxSeqLen, _ := cmd.Flags().GetInt("max-seq-len")
	if maxSeqLen <= 0 {
		maxSeqLen = int(envconfig.MaxSeqLen())
	}

	height, width := huggingface.GetCropSize(pre)
	return llava.WriteShapes(cmd.OutOrStdout(), llava.NewManifest(model, height, width, maxSeqLen))
}

// newShapesCmd - Erstellt den shapes Command
func newShapesCmd() *cobra.Command {
	shapesCmd := &cobra.Command{
		Use:   "shapes",
		Short: "Print the dynamic shape manifest for tracing",
		Args:  cobra.ExactArgs(0),
		RunE:  ShapesHandler,
	}

	shapesCmd.Flags().String("model", "", "Model directory (default: EXECUTORCH_MODELS)")
	shapesCmd.Flags().Int("max-seq-len", 0, "Maximum sequence length (default: EXECUTORCH_MAX_SEQ_LEN)")
	return shapesCmd
}
