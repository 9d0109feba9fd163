// Package export writes processing outcomes to CSV for offline inspection.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"kassabot/internal/pipeline"
)

// Row is one cleaned item with the bucket it landed in.
type Row struct {
	Bucket      string `csv:"bucket"`
	Group       string `csv:"group"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Date        string `csv:"date"`
}

// WriteOutcomeCSV writes one row per bucketed item. Empty buckets produce no
// rows; the file is created or truncated.
func WriteOutcomeCSV(path string, outcome *pipeline.Outcome) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	rows := make([]*Row, 0)
	for _, bucket := range outcome.Buckets {
		for _, item := range bucket.Items {
			rows = append(rows, &Row{
				Bucket:      bucket.Name,
				Group:       bucket.Group,
				Description: item.Description,
				Amount:      item.AdjustedAmount.StringFixed(2),
				Date:        item.Date,
			})
		}
	}

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
