// Package common contains the receipt-processing flow shared by the parse
// and register commands.
package common

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"kassabot/cmd/root"
	"kassabot/internal/pipeline"
)

// ReceiptFlags are the flags shared by the parse and register commands.
type ReceiptFlags struct {
	File            string
	Group           string
	Payer           string
	SecondaryAmount string
	CSVOut          string
}

// Register adds the shared flags to a command.
func (f *ReceiptFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.File, "file", "f", "", "Receipt PDF to process (required)")
	cmd.Flags().StringVarP(&f.Group, "group", "g", "", "Ledger group (defaults to the configured group)")
	cmd.Flags().StringVarP(&f.Payer, "payer", "p", "", "Member who paid the receipt (required)")
	cmd.Flags().StringVar(&f.SecondaryAmount, "secondary-amount", "", "Absolute contribution of the secondary member")
	cmd.Flags().StringVar(&f.CSVOut, "csv", "", "Write the bucketed items to this CSV file")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("payer")
}

// ProcessReceipt runs the pipeline for one local PDF and returns the outcome.
// With submit false nothing is written to the ledger.
func ProcessReceipt(ctx context.Context, flags ReceiptFlags, submit bool) (*pipeline.Outcome, error) {
	c, err := root.GetContainer(ctx)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(flags.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", flags.File, err)
	}

	groupName := strings.TrimSpace(flags.Group)
	if groupName == "" {
		groupName = c.Buckets().Group
	}
	group, err := c.Ledger().FindGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{
		PDF:       data,
		Name:      flags.File,
		Group:     group,
		PayerName: flags.Payer,
		Submit:    submit,
	}

	if raw := strings.TrimSpace(flags.SecondaryAmount); raw != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
		if err != nil {
			return nil, fmt.Errorf("invalid secondary amount %q", raw)
		}
		req.SecondaryAmount = &amount
	}

	return c.Processor().Process(ctx, req)
}
