// Package invoice reconstructs logical line items from raw OCR rows: it
// merges trailing discount rows into the item they belong to, strips
// non-product rows, reconciles the item sum against the printed total, and
// nets deposit lines into a single row.
package invoice

import (
	"strings"

	"github.com/shopspring/decimal"

	"kassabot/internal/logging"
	"kassabot/internal/models"
)

const (
	// discountMarker starts the description of a discount row printed on the
	// line below the item it applies to.
	discountMarker = "korting"

	// depositMarker identifies bottle-deposit rows, which are netted into a
	// single synthetic row per invoice.
	depositMarker = "waarborg"

	depositNetDescription = "waarborg net"
)

// nonProductMarkers mark rows that are not purchasable items: payment-total
// lines, card-terminal rows, and the recurring OCR misread of the payment
// logo as "apple".
var nonProductMarkers = []string{"total payment", "total amount", "apple", "maestro"}

var oneCent = decimal.New(1, -2)

// Result is the outcome of one cleaning pass. Mismatch is set when the item
// sum disagrees with the printed total by a cent or more; it is reported for
// human review but never blocks processing.
type Result struct {
	Items        []models.CleanedItem
	Date         string
	PrintedTotal decimal.Decimal
	HasPrinted   bool
	ItemSum      decimal.Decimal
	Mismatch     *models.ReconciliationMismatch
}

// Cleaner turns extracted invoice pages into cleaned line items.
type Cleaner struct {
	log logging.Logger
}

// NewCleaner creates a Cleaner that reports reconciliation issues on logger.
func NewCleaner(logger logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Cleaner{log: logger}
}

// Clean flattens the per-page item lists into one ordered sequence and runs
// the full cleaning pipeline. Row order must reflect physical print order:
// the discount merge looks one row ahead and silently breaks otherwise.
func (c *Cleaner) Clean(pages []models.InvoicePage) (*Result, error) {
	var rows []models.RawLineItem
	date := ""
	printedTotal := decimal.Zero
	hasPrinted := false

	for _, page := range pages {
		rows = append(rows, page.Items...)
		if date == "" && page.Date != "" {
			date = page.Date
		}
		if !hasPrinted && page.TotalAmountInvoice != 0 {
			printedTotal = decimal.NewFromFloat(page.TotalAmountInvoice).Round(2)
			hasPrinted = true
		}
	}

	if len(rows) == 0 {
		return nil, &models.MalformedInputError{Reason: "invoice contains no line items"}
	}

	withText := 0
	for _, row := range rows {
		if strings.TrimSpace(row.Description) != "" {
			withText++
		}
	}
	if withText == 0 {
		return nil, &models.MalformedInputError{Reason: "invoice line items have no descriptions"}
	}

	items := c.mergeDiscountRows(rows, date)
	items = stripNonProductRows(items)
	items = consolidateDeposits(items, date)

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.AdjustedAmount)
	}

	result := &Result{
		Items:        items,
		Date:         date,
		PrintedTotal: printedTotal,
		HasPrinted:   hasPrinted,
		ItemSum:      sum,
	}

	if hasPrinted && sum.Sub(printedTotal).Abs().GreaterThanOrEqual(oneCent) {
		result.Mismatch = &models.ReconciliationMismatch{
			PrintedTotal: printedTotal.StringFixed(2),
			ComputedSum:  sum.StringFixed(2),
		}
		c.log.Warn("cleaned item sum differs from printed invoice total",
			logging.Field{Key: logging.FieldPrintedSum, Value: printedTotal.StringFixed(2)},
			logging.Field{Key: logging.FieldComputedSum, Value: sum.StringFixed(2)})
	}

	return result, nil
}

// mergeDiscountRows computes per-row prices and folds discount rows into the
// item printed above them. The discount row's description is appended to the
// item's for the audit trail, its discount value replaces the item's own, and
// the row itself is consumed.
func (c *Cleaner) mergeDiscountRows(rows []models.RawLineItem, date string) []models.CleanedItem {
	var items []models.CleanedItem

	for i := 0; i < len(rows); i++ {
		row := rows[i]
		description := strings.ToLower(row.Description)
		if strings.HasPrefix(description, discountMarker) {
			// A discount row reaching this point had no preceding item row.
			c.log.Warn("discount row without a preceding item, dropping",
				logging.Field{Key: logging.FieldItem, Value: description})
			continue
		}

		discount := row.Discount
		if i+1 < len(rows) {
			next := strings.ToLower(rows[i+1].Description)
			if strings.HasPrefix(next, discountMarker) {
				description = description + " " + next
				discount = rows[i+1].Discount
				i++
			}
		}

		price := decimal.NewFromFloat(quantityOf(row)).
			Mul(decimal.NewFromFloat(row.UnitPrice)).
			Round(2)
		adjusted := price.
			Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount).Div(decimal.NewFromInt(100)))).
			Round(2)

		items = append(items, models.CleanedItem{
			Description:    description,
			AdjustedAmount: adjusted,
			Date:           date,
		})
	}

	return items
}

// quantityOf returns the multiplier for the unit price: the item count when
// sold by piece, the weight when sold by weight, 1 when the OCR gave neither.
func quantityOf(row models.RawLineItem) float64 {
	if row.Quantity > 0 {
		return row.Quantity
	}
	if row.Weight > 0 {
		return row.Weight
	}
	return 1
}

func stripNonProductRows(items []models.CleanedItem) []models.CleanedItem {
	kept := items[:0]
	for _, item := range items {
		if isNonProduct(item.Description) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func isNonProduct(description string) bool {
	for _, marker := range nonProductMarkers {
		if strings.Contains(description, marker) {
			return true
		}
	}
	return false
}

// consolidateDeposits pulls out every deposit row, sums them, and appends one
// synthetic net row. Multi-unit purchases often print several small deposit
// lines that should become a single ledger entry.
func consolidateDeposits(items []models.CleanedItem, date string) []models.CleanedItem {
	kept := items[:0:len(items)]
	depositSum := decimal.Zero
	found := false

	for _, item := range items {
		if strings.Contains(item.Description, depositMarker) {
			depositSum = depositSum.Add(item.AdjustedAmount)
			found = true
			continue
		}
		kept = append(kept, item)
	}

	if !found {
		return items
	}

	return append(kept, models.CleanedItem{
		Description:    depositNetDescription,
		AdjustedAmount: depositSum,
		Date:           date,
	})
}
