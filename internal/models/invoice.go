// Package models defines the data types shared across the application:
// extracted invoices, cleaned line items, match results, and ledger entries.
package models

import (
	"github.com/shopspring/decimal"
)

// RawLineItem is one line item as extracted by the OCR/LLM collaborator.
// Either Quantity or Weight is set, depending on how the item was sold.
// Immutable once parsed.
type RawLineItem struct {
	UnitPrice   float64 `json:"unit_price"`
	Weight      float64 `json:"weight"`
	Quantity    float64 `json:"quantity"`
	Discount    float64 `json:"discount"`
	Description string  `json:"description"`
}

// InvoicePage is one extracted page of a receipt. Multi-page receipts produce
// one InvoicePage per page; item order within a page reflects print order.
type InvoicePage struct {
	Date               string        `json:"date"`
	Page               int           `json:"page"`
	TotalAmountInvoice float64       `json:"total_amount_invoice"`
	Items              []RawLineItem `json:"items"`
}

// Invoice is a fully extracted receipt: the merged page list plus bookkeeping
// for the processing cache.
type Invoice struct {
	Pages    []InvoicePage `json:"pages"`
	Path     string        `json:"path,omitempty"`
	FileHash string        `json:"file_hash,omitempty"`
}

// CleanedItem is a line item after discount merging and reconciliation.
// Not mutated after the invoice cleaner finishes.
type CleanedItem struct {
	Description    string          `json:"description" csv:"description"`
	AdjustedAmount decimal.Decimal `json:"adjusted_amount" csv:"adjusted_amount"`
	Date           string          `json:"date" csv:"date"`
}

// MatchResult pairs a cleaned item with its best-matching target term and the
// similarity score that selected it, kept for auditing.
type MatchResult struct {
	Item       CleanedItem `json:"item" csv:"-"`
	TargetTerm string      `json:"target_term" csv:"target_term"`
	Similarity float64     `json:"similarity" csv:"similarity"`
}

// Bucket is a named partition of an invoice's cleaned items, assigned one
// cost-sharing policy. Buckets for a single invoice are disjoint.
type Bucket struct {
	Name    string
	Items   []CleanedItem
	Matches []MatchResult
}

// Total returns the summed adjusted amount of all items in the bucket.
func (b Bucket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		total = total.Add(item.AdjustedAmount)
	}
	return total
}
