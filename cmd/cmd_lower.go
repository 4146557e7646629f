// cmd_lower.go - Absenken eines exportierten Graphen auf QNN-Ops
// Hauptfunktionen: LowerHandler, lowerLocal, lowerRemote
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sis-k/executorch/api"
	"github.com/sis-k/executorch/qnn"
)

// lowerLocal - Lowering im eigenen Prozess
func lowerLocal(data []byte) (*api.LowerResponse, error) {
	g, err := qnn.ParseGraph(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	p, err := qnn.Lower(g)
	if err != nil {
		return nil, err
	}

	resp := &api.LowerResponse{}
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
	return resp, nil
}

// lowerRemote - Lowering ueber den laufenden Export-Dienst
func lowerRemote(ctx context.Context, data []byte) (*api.LowerResponse, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}
	return client.Lower(ctx, &api.LowerRequest{Graph: json.RawMessage(data)})
}

func writeProgram(w io.Writer, resp *api.LowerResponse) {
	ops := make([][]string, len(resp.Ops))
	for i, op := range resp.Ops {
		ops[i] = []string{op.Name, op.PackageName + "." + op.OpType, strings.Join(op.Inputs, ", "), strings.Join(op.Outputs, ", ")}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"OP", "TYPE", "INPUTS", "OUTPUTS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(ops)
	table.Render()

	fmt.Fprintln(w)

	tensors := make([][]string, len(resp.Tensors))
	for i, t := range resp.Tensors {
		tensors[i] = []string{fmt.Sprint(t.ID), t.Name, strings.TrimPrefix(t.Type, "QNN_TENSOR_TYPE_"), strings.TrimPrefix(t.DataType, "QNN_DATATYPE_"), fmt.Sprint(t.Dims)}
	}

	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "TENSOR", "TYPE", "DATATYPE", "DIMS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(tensors)
	table.Render()
}

// LowerHandler - Liest einen Graphen (Datei oder - fuer stdin) und gibt die
// QNN-Ops und Tensoren aus
func LowerHandler(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	var resp *api.LowerResponse
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		resp, err = lowerRemote(cmd.Context(), data)
	} else {
		resp, err = lowerLocal(data)
	}
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON || !isTerminal() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	writeProgram(cmd.OutOrStdout(), resp)
	return nil
}

// newLowerCmd - Erstellt den lower Command
func newLowerCmd() *cobra.Command {
	lowerCmd := &cobra.Command{
		Use:   "lower GRAPH",
		Short: "Lower an exported graph to QNN operators",
		Args:  cobra.ExactArgs(1),
		RunE:  LowerHandler,
	}

	lowerCmd.Flags().Bool("remote", false, "Lower on the server at EXECUTORCH_HOST")
	lowerCmd.Flags().Bool("json", false, "Print JSON instead of tables")
	return lowerCmd
}
