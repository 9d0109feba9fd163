package models

import (
	"fmt"
	"strings"
)

// ExtractionError indicates the OCR/LLM collaborator failed or returned an
// unparseable structure. Fatal for the invoice being processed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract invoice %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ReconciliationMismatch reports that the cleaned-item sum differs from the
// invoice's printed total by a cent or more. It is logged, never fatal.
type ReconciliationMismatch struct {
	PrintedTotal string
	ComputedSum  string
}

func (e *ReconciliationMismatch) Error() string {
	return fmt.Sprintf("sum of items (%s) differs from printed total (%s)", e.ComputedSum, e.PrintedTotal)
}

// InvalidMemberError indicates a named participant was not found in the
// resolved group roster. ValidOptions lists the roster so the user can pick.
type InvalidMemberError struct {
	Name         string
	ValidOptions []string
}

func (e *InvalidMemberError) Error() string {
	return fmt.Sprintf("invalid member name '%s', please choose from available members: %s",
		e.Name, strings.Join(e.ValidOptions, ", "))
}

// LedgerSubmissionError indicates the ledger collaborator rejected one entry.
// It carries enough context for the entry to be replayed by hand.
type LedgerSubmissionError struct {
	Description string
	Amount      string
	FieldErrors map[string][]string
}

func (e *LedgerSubmissionError) Error() string {
	return fmt.Sprintf("ledger rejected expense '%s' (%s): %v", e.Description, e.Amount, e.FieldErrors)
}

// MalformedInputError indicates the incoming payload is missing a required
// field or has the wrong shape (e.g. a non-PDF attachment).
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Reason)
}
