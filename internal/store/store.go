// Package store loads the bucket configuration: the curated term lists that
// partition a receipt into buckets, the cost-sharing policy per bucket, and
// the ledger group the result is posted to.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BucketSpec is one curated bucket: a name, the target terms that pull items
// into it, and an optional owed percentage for the distinguished member.
// A nil OwedPercentage means the bucket splits equally. Group, when set,
// overrides the top-level group for this bucket's entries.
type BucketSpec struct {
	Name           string           `yaml:"name"`
	Terms          []string         `yaml:"terms"`
	OwedPercentage *decimal.Decimal `yaml:"owed_percentage,omitempty"`
	Group          string           `yaml:"group,omitempty"`
}

// BucketConfig is the full contents of buckets.yaml. Items matched by no
// bucket fall into an implicit rest bucket that splits equally.
type BucketConfig struct {
	Group               string       `yaml:"group"`
	DistinguishedMember string       `yaml:"distinguished_member"`
	SecondaryMember     string       `yaml:"secondary_member"`
	Buckets             []BucketSpec `yaml:"buckets"`
}

// BucketStore loads bucket configuration from a YAML file.
type BucketStore struct {
	File string
}

// NewBucketStore creates a store reading from the given file name or path.
func NewBucketStore(file string) *BucketStore {
	return &BucketStore{File: file}
}

// FindConfigFile looks for a configuration file in standard locations.
func (s *BucketStore) FindConfigFile(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", os.ErrNotExist
	}

	locations := []string{
		filename,
		filepath.Join("config", filename),
		filepath.Join("data", filename),
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".kassabot", filename))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}
	return "", fmt.Errorf("config file %s not found in standard locations", filename)
}

// Load reads and validates the bucket configuration.
func (s *BucketStore) Load() (*BucketConfig, error) {
	path, err := s.FindConfigFile(s.File)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read bucket config %s: %w", path, err)
	}

	var cfg BucketConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse bucket config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid bucket config %s: %w", path, err)
	}

	return &cfg, nil
}

func validate(cfg *BucketConfig) error {
	if strings.TrimSpace(cfg.Group) == "" {
		return fmt.Errorf("group is required")
	}
	if strings.TrimSpace(cfg.DistinguishedMember) == "" {
		return fmt.Errorf("distinguished_member is required")
	}
	if strings.TrimSpace(cfg.SecondaryMember) == "" {
		return fmt.Errorf("secondary_member is required")
	}

	one := decimal.NewFromInt(1)
	seen := make(map[string]bool, len(cfg.Buckets))
	for _, bucket := range cfg.Buckets {
		name := strings.ToLower(strings.TrimSpace(bucket.Name))
		if name == "" {
			return fmt.Errorf("every bucket needs a name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate bucket name %q", bucket.Name)
		}
		seen[name] = true

		if len(bucket.Terms) == 0 {
			return fmt.Errorf("bucket %q has no terms", bucket.Name)
		}
		if pct := bucket.OwedPercentage; pct != nil {
			if pct.IsNegative() || pct.GreaterThan(one) {
				return fmt.Errorf("bucket %q: owed_percentage must lie in [0,1]", bucket.Name)
			}
		}
	}
	return nil
}
