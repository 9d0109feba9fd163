// Package parse handles the dry-run receipt command.
package parse

import (
	"fmt"

	"github.com/spf13/cobra"

	"kassabot/cmd/common"
	"kassabot/cmd/root"
	"kassabot/internal/export"
	"kassabot/internal/logging"
	"kassabot/internal/pipeline"
)

var flags common.ReceiptFlags

// Cmd represents the parse command.
var Cmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract and bucket a receipt without touching the ledger",
	Long: `Parse runs the full pipeline on a local receipt PDF and prints the
bucketed items and their shares, but registers nothing.`,
	RunE: parseFunc,
}

func init() {
	flags.Register(Cmd)
}

func parseFunc(cmd *cobra.Command, args []string) error {
	outcome, err := common.ProcessReceipt(cmd.Context(), flags, false)
	if err != nil {
		return err
	}

	fmt.Print(pipeline.Report(outcome))

	if flags.CSVOut != "" {
		if err := export.WriteOutcomeCSV(flags.CSVOut, outcome); err != nil {
			return err
		}
		root.Log.Info("wrote csv export",
			logging.Field{Key: logging.FieldFile, Value: flags.CSVOut})
	}
	return nil
}
