// Package invoicecache persists extraction results keyed by the document's
// content hash, so a receipt uploaded twice is never sent to the extraction
// model again. The store is an append-only NDJSON file: one invoice per
// line, last write wins on lookup conflicts.
package invoicecache

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kassabot/internal/logging"
	"kassabot/internal/models"
)

// maxRecordSize bounds a single NDJSON line; a multi-page receipt stays well
// under this.
const maxRecordSize = 4 * 1024 * 1024

// Cache is a file-backed extraction cache. Safe for concurrent use.
type Cache struct {
	path string
	mu   sync.Mutex
	log  logging.Logger
}

// New creates a cache backed by the NDJSON file at path. The file is created
// lazily on first Put.
func New(path string, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Cache{path: path, log: logger}
}

// Key returns the cache key for a document: the hex-encoded SHA-256 of its
// raw bytes.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached invoice for the given content hash, if present.
func (c *Cache) Get(hash string) (*models.Invoice, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open invoice cache: %w", err)
	}
	defer file.Close()

	var found *models.Invoice
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var invoice models.Invoice
		if err := json.Unmarshal(line, &invoice); err != nil {
			// A torn write must not poison the whole cache.
			c.log.Warn("skipping unreadable invoice cache record",
				logging.Field{Key: logging.FieldFile, Value: c.path})
			continue
		}
		if invoice.FileHash == hash {
			hit := invoice
			found = &hit
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to scan invoice cache: %w", err)
	}

	return found, found != nil, nil
}

// Put appends the invoice to the cache. The invoice's FileHash must be set.
func (c *Cache) Put(invoice models.Invoice) error {
	if invoice.FileHash == "" {
		return fmt.Errorf("invoice has no file hash")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open invoice cache: %w", err)
	}
	defer file.Close()

	line, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to invoice cache: %w", err)
	}

	c.log.Debug("invoice cached",
		logging.Field{Key: logging.FieldFileHash, Value: invoice.FileHash})
	return nil
}
