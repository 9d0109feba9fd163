package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassabot/internal/config"
	"kassabot/internal/ledger"
	"kassabot/internal/logging"
	"kassabot/internal/models"
)

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte, string) ([]models.InvoicePage, error) {
	return nil, nil
}

func (stubExtractor) ExtractImages(context.Context, [][]byte, string) ([]models.InvoicePage, error) {
	return nil, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buckets.yaml"), []byte(`group: Blijdeberg
distinguished_member: Maarten
secondary_member: Sofie
buckets:
  - name: maarten
    owed_percentage: 1.0
    terms: [espresso]
`), 0o644))

	cfg := &config.Config{}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Data.Directory = dir
	cfg.Data.BucketsFile = "buckets.yaml"
	cfg.Data.CacheFile = "output.ndjson"
	cfg.Matching.Threshold = 0.8
	cfg.Ledger.APIKey = "token"
	cfg.Ledger.BaseURL = "https://secure.splitwise.com/api/v3.0"
	cfg.Ledger.TimeoutSeconds = 10
	return cfg
}

func TestNewContainerWiresEverything(t *testing.T) {
	cfg := testConfig(t)

	c, err := NewContainer(context.Background(), cfg, WithExtractor(stubExtractor{}))

	require.NoError(t, err)
	assert.NotNil(t, c.Logger())
	assert.NotNil(t, c.Buckets())
	assert.NotNil(t, c.Ledger())
	assert.NotNil(t, c.Sessions())
	assert.NotNil(t, c.Processor())
	assert.Equal(t, "Maarten", c.Buckets().DistinguishedMember)
	assert.NoError(t, c.Close())
}

func TestNewContainerRejectsNilConfig(t *testing.T) {
	_, err := NewContainer(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewContainerRequiresLedgerKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.APIKey = ""

	_, err := NewContainer(context.Background(), cfg, WithExtractor(stubExtractor{}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger api key")
}

func TestNewContainerFailsOnMissingBucketConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.BucketsFile = "absent.yaml"

	_, err := NewContainer(context.Background(), cfg, WithExtractor(stubExtractor{}))

	assert.Error(t, err)
}

func TestWithLedgerOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.APIKey = ""
	stub := ledger.NewSplitwiseClient("http://localhost", "t", 0, &logging.MockLogger{})

	c, err := NewContainer(context.Background(), cfg,
		WithExtractor(stubExtractor{}), WithLedger(stub))

	require.NoError(t, err)
	assert.Equal(t, ledger.Client(stub), c.Ledger())
}
