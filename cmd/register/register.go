// Package register handles the receipt registration command.
package register

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

// Cmd represents the register command.
var Cmd = &cobra.Command{
	Use:   "register",
	Short: "Process a receipt and create the expenses in the ledger",
	Long: `Register runs the full pipeline on a local receipt PDF and creates
one expense per line item in the configured ledger group.`,
	RunE: registerFunc,
}

func init() {
	flags.Register(Cmd)
}

func registerFunc(cmd *cobra.Command, args []string) error {
	outcome, err := common.ProcessReceipt(cmd.Context(), flags, true)
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

	if len(outcome.SubmissionErrors) > 0 {
		return fmt.Errorf("%d of the expenses were rejected by the ledger", len(outcome.SubmissionErrors))
	}
	return nil
}
