// Package pipeline orchestrates the full receipt flow: cache lookup,
// extraction, cleaning, bucket matching, share allocation, and ledger
// submission. It is transport-agnostic; the chat handler and the HTTP
// server both drive it through Process.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kassabot/internal/allocate"
	"kassabot/internal/extract"
	"kassabot/internal/invoice"
	"kassabot/internal/invoicecache"
	"kassabot/internal/ledger"
	"kassabot/internal/logging"
	"kassabot/internal/matcher"
	"kassabot/internal/models"
	"kassabot/internal/store"
)

// restBucketName labels the implicit bucket holding every item no curated
// term list claimed.
const restBucketName = "rest"

var hundred = decimal.NewFromInt(100)

// Cache is the extraction cache the processor consults before calling the
// extraction model.
type Cache interface {
	Get(hash string) (*models.Invoice, bool, error)
	Put(invoice models.Invoice) error
}

var _ Cache = (*invoicecache.Cache)(nil)

// Request is one receipt to process with its conversation parameters.
// SecondaryAmount, when set, is the secondary member's absolute contribution
// and takes precedence over SecondaryContributionPct; it is converted to a
// percentage of the receipt total once that total is known.
type Request struct {
	PDF                      []byte
	Name                     string
	Group                    models.Group
	PayerName                string
	SecondaryAmount          *decimal.Decimal
	SecondaryContributionPct decimal.Decimal
	Submit                   bool
}

// BucketSummary is the per-bucket outcome reported back to the user.
type BucketSummary struct {
	Name    string
	Group   string
	Items   []models.CleanedItem
	Total   decimal.Decimal
	Entries []models.LedgerEntry
}

// Outcome is the result of processing one receipt.
type Outcome struct {
	Date             string
	Total            decimal.Decimal
	Mismatch         *models.ReconciliationMismatch
	Buckets          []BucketSummary
	SubmittedEntries int
	SubmissionErrors []error
	FromCache        bool
}

// Processor wires the pipeline stages together.
type Processor struct {
	cache     Cache
	extractor extract.Extractor
	cleaner   *invoice.Cleaner
	matcher   *matcher.Matcher
	ledger    ledger.Client
	buckets   *store.BucketConfig
	log       logging.Logger
}

// New creates a Processor. All collaborators are required except the logger.
func New(cache Cache, extractor extract.Extractor, cleaner *invoice.Cleaner,
	m *matcher.Matcher, client ledger.Client, buckets *store.BucketConfig,
	logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Processor{
		cache:     cache,
		extractor: extractor,
		cleaner:   cleaner,
		matcher:   m,
		ledger:    client,
		buckets:   buckets,
		log:       logger,
	}
}

// Process runs the full pipeline for one receipt. Submission errors for
// individual entries are collected in the outcome rather than aborting the
// run; every other stage failure is fatal.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	pages, fromCache, err := p.pages(ctx, req)
	if err != nil {
		return nil, err
	}

	cleaned, err := p.cleaner.Clean(pages)
	if err != nil {
		return nil, err
	}

	policyBase, err := p.basePolicy(req, cleaned.ItemSum)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Date:      cleaned.Date,
		Total:     cleaned.ItemSum,
		Mismatch:  cleaned.Mismatch,
		FromCache: fromCache,
	}

	claimed := make(map[string]bool)
	for _, spec := range p.buckets.Buckets {
		results := p.matcher.Match(cleaned.Items, spec.Terms, claimed)
		matcher.Claim(claimed, results)

		items := make([]models.CleanedItem, 0, len(results))
		for _, r := range results {
			items = append(items, r.Item)
		}
		if err := p.appendBucket(ctx, outcome, req, spec.Name, spec.Group, spec.OwedPercentage, items, policyBase); err != nil {
			return nil, err
		}
	}

	var rest []models.CleanedItem
	for _, item := range cleaned.Items {
		if !claimed[item.Description] {
			rest = append(rest, item)
		}
	}
	if err := p.appendBucket(ctx, outcome, req, restBucketName, "", nil, rest, policyBase); err != nil {
		return nil, err
	}

	p.log.Info("receipt processed",
		logging.Field{Key: logging.FieldFile, Value: req.Name},
		logging.Field{Key: logging.FieldAmount, Value: cleaned.ItemSum.StringFixed(2)},
		logging.Field{Key: logging.FieldCount, Value: outcome.SubmittedEntries})
	return outcome, nil
}

// pages returns the receipt's extracted pages, from cache when possible.
func (p *Processor) pages(ctx context.Context, req Request) ([]models.InvoicePage, bool, error) {
	hash := invoicecache.Key(req.PDF)

	cached, ok, err := p.cache.Get(hash)
	if err != nil {
		return nil, false, err
	}
	if ok {
		p.log.Info("extraction served from cache",
			logging.Field{Key: logging.FieldFileHash, Value: hash})
		return cached.Pages, true, nil
	}

	pages, err := p.extractor.Extract(ctx, req.PDF, req.Name)
	if err != nil {
		return nil, false, err
	}

	if err := p.cache.Put(models.Invoice{Pages: pages, Path: req.Name, FileHash: hash}); err != nil {
		// A cache write failure costs a re-extraction later, nothing more.
		p.log.WithError(err).Warn("failed to cache extraction result")
	}
	return pages, false, nil
}

// basePolicy resolves the allocation parameters that are shared by every
// bucket. When the payer is the secondary member, the secondary contribution
// is the whole receipt.
func (p *Processor) basePolicy(req Request, total decimal.Decimal) (models.AllocationPolicy, error) {
	policy := models.AllocationPolicy{
		PayerName:                req.PayerName,
		DistinguishedMember:      p.buckets.DistinguishedMember,
		SecondaryMember:          p.buckets.SecondaryMember,
		SecondaryContributionPct: req.SecondaryContributionPct,
	}

	if strings.EqualFold(strings.TrimSpace(req.PayerName), strings.TrimSpace(p.buckets.SecondaryMember)) {
		policy.SecondaryContributionPct = hundred
		return policy, nil
	}

	if req.SecondaryAmount != nil {
		if total.IsZero() {
			return models.AllocationPolicy{}, &models.MalformedInputError{
				Reason: "cannot derive a contribution percentage from a zero receipt total",
			}
		}
		if req.SecondaryAmount.IsNegative() || req.SecondaryAmount.GreaterThan(total) {
			return models.AllocationPolicy{}, &models.MalformedInputError{
				Reason: fmt.Sprintf("contribution %s must lie between 0 and the receipt total %s",
					req.SecondaryAmount.StringFixed(2), total.StringFixed(2)),
			}
		}
		policy.SecondaryContributionPct = req.SecondaryAmount.Mul(hundred).Div(total)
	}

	return policy, nil
}

// appendBucket allocates and optionally submits one bucket, then records its
// summary. Empty buckets are recorded with no entries so the report stays
// complete.
func (p *Processor) appendBucket(ctx context.Context, outcome *Outcome, req Request,
	name, groupOverride string, owedPct *decimal.Decimal,
	items []models.CleanedItem, policyBase models.AllocationPolicy) error {

	summary := BucketSummary{Name: name, Group: req.Group.Name, Items: items}
	for _, item := range items {
		summary.Total = summary.Total.Add(item.AdjustedAmount)
	}

	if len(items) == 0 {
		outcome.Buckets = append(outcome.Buckets, summary)
		return nil
	}

	group := req.Group
	if groupOverride != "" && !strings.EqualFold(groupOverride, req.Group.Name) {
		resolved, err := p.ledger.FindGroup(ctx, groupOverride)
		if err != nil {
			return fmt.Errorf("bucket %s: %w", name, err)
		}
		group = resolved
		summary.Group = resolved.Name
	}

	policy := policyBase
	policy.OwedPercentage = owedPct

	entries, err := allocate.Allocate(items, policy, group)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", name, err)
	}
	summary.Entries = entries

	if req.Submit {
		for _, entry := range entries {
			if err := p.ledger.CreateExpense(ctx, entry); err != nil {
				// One rejected expense must not lose the rest of the receipt.
				p.log.WithError(err).Error("failed to submit ledger entry",
					logging.Field{Key: logging.FieldItem, Value: entry.Description},
					logging.Field{Key: logging.FieldBucket, Value: name})
				outcome.SubmissionErrors = append(outcome.SubmissionErrors, err)
				continue
			}
			outcome.SubmittedEntries++
		}
	}

	outcome.Buckets = append(outcome.Buckets, summary)
	return nil
}

// Report renders the outcome as the plain-text summary sent back to the chat.
func Report(outcome *Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Receipt %s, total %s\n", outcome.Date, outcome.Total.StringFixed(2))
	if outcome.Mismatch != nil {
		fmt.Fprintf(&b, "Warning: printed total %s differs from item sum %s\n",
			outcome.Mismatch.PrintedTotal, outcome.Mismatch.ComputedSum)
	}

	for _, bucket := range outcome.Buckets {
		if len(bucket.Items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s) -> %s\n", bucket.Name, bucket.Total.StringFixed(2), bucket.Group)
		for _, item := range bucket.Items {
			fmt.Fprintf(&b, "  %s  %s\n", item.AdjustedAmount.StringFixed(2), item.Description)
		}
	}

	if outcome.SubmittedEntries > 0 {
		fmt.Fprintf(&b, "\nCreated %d expenses\n", outcome.SubmittedEntries)
	}
	for _, err := range outcome.SubmissionErrors {
		fmt.Fprintf(&b, "Failed: %v\n", err)
	}

	return b.String()
}
