// cmd_remap.go - Umbenennung der Parameter eines Checkpoints
// Hauptfunktionen: RemapHandler, loadRules, readNames
package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sis-k/executorch/api"
	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/envconfig"
	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/ml"
)

// loadRules - Regeldatei lesen, ohne Pfad gelten die LLaVA-Regeln passend zur
// transformers-Version aus dir/config.json
func loadRules(path, dir string) (convert.Rules, error) {
	if path == "" {
		path = envconfig.RulesFile()
	}
	if path == "" {
		config, err := huggingface.LoadConfig(os.DirFS(dir))
		if err != nil {
			return convert.LlavaTextRules(), nil
		}
		return convert.LlavaTextRulesFor(config.TransformersVersion), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return convert.LoadRules(f)
}

// readNames - Ein Parameter-Name pro Zeile, Leerzeilen und # werden ignoriert
func readNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func shapeString(shape []uint64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RemapHandler - Liest einen Checkpoint, benennt die Parameter um und gibt
// die Zuordnung aus. Optional wird das Ergebnis als safetensors geschrieben.
func RemapHandler(cmd *cobra.Command, args []string) error {
	rulesPath, _ := cmd.Flags().GetString("rules")
	rules, err := loadRules(rulesPath, args[0])
	if err != nil {
		return err
	}

	ts, err := convert.ParseTensors(os.DirFS(args[0]), nil)
	if err != nil {
		return err
	}

	renamed, err := convert.RemapTensors(ts, rules)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON || !isTerminal() {
		entries := make([]api.RemapEntry, len(ts))
		for i, t := range ts {
			_, matched := rules.Rename(t.Name())
			entries[i] = api.RemapEntry{From: t.Name(), To: renamed[i].Name(), Matched: matched}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return err
		}
	} else {
		data := make([][]string, len(ts))
		for i, t := range ts {
			data[i] = []string{t.Name(), renamed[i].Name(), shapeString(t.Shape()), t.DType().String()}
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"FROM", "TO", "SHAPE", "TYPE"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(data)
		table.Render()
	}

	if expectPath, _ := cmd.Flags().GetString("expect"); expectPath != "" {
		if err := checkStateDict(cmd, expectPath, renamed); err != nil {
			return err
		}
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		dtypeName, _ := cmd.Flags().GetString("dtype")
		dtype, err := ml.ParseDType(dtypeName)
		if err != nil {
			return err
		}

		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := convert.WriteSafetensors(f, renamed, dtype); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d tensors to %s\n", len(renamed), output)
	}

	return nil
}

// checkStateDict - Gleicht die umbenannten Parameter mit den erwarteten ab
func checkStateDict(cmd *cobra.Command, path string, ts []convert.Tensor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	expected, err := readNames(f)
	if err != nil {
		return err
	}

	params, err := convert.Params(ts)
	if err != nil {
		return err
	}

	strict, _ := cmd.Flags().GetBool("strict")
	result, err := convert.LoadStateDict(expected, params, strict || envconfig.StrictLoad())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "loaded %d, missing %d, unexpected %d\n", len(result.Loaded), len(result.Missing), len(result.Unexpected))
	return nil
}

// newRemapCmd - Erstellt den remap Command
func newRemapCmd() *cobra.Command {
	remapCmd := &cobra.Command{
		Use:   "remap DIR",
		Short: "Rename checkpoint parameters for the llama transformer layout",
		Args:  cobra.ExactArgs(1),
		RunE:  RemapHandler,
	}

	remapCmd.Flags().String("rules", "", "JSON file with ordered pattern to replacement rules")
	remapCmd.Flags().StringP("output", "o", "", "Write the renamed parameters to a safetensors file")
	remapCmd.Flags().String("dtype", "f32", "Storage type of the output file (f32 or f16)")
	remapCmd.Flags().String("expect", "", "File with the expected parameter names, one per line")
	remapCmd.Flags().Bool("strict", false, "Fail on missing or unexpected parameters")
	remapCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return remapCmd
}
