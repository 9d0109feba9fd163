package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `group: Blijdeberg
distinguished_member: Maarten
secondary_member: Sofie
buckets:
  - name: maarten
    owed_percentage: 1.0
    terms:
      - espresso
      - scheermesjes
  - name: sofie
    owed_percentage: 0.0
    terms:
      - maandverband
  - name: common
    group: Anti Hangriness Sofieke
    terms:
      - toiletpapier
      - handzeep
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buckets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesBuckets(t *testing.T) {
	store := NewBucketStore(writeConfig(t, sampleConfig))

	cfg, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, "Blijdeberg", cfg.Group)
	assert.Equal(t, "Maarten", cfg.DistinguishedMember)
	assert.Equal(t, "Sofie", cfg.SecondaryMember)
	require.Len(t, cfg.Buckets, 3)

	maarten := cfg.Buckets[0]
	require.NotNil(t, maarten.OwedPercentage)
	assert.True(t, decimal.NewFromInt(1).Equal(*maarten.OwedPercentage))
	assert.Equal(t, []string{"espresso", "scheermesjes"}, maarten.Terms)

	sofie := cfg.Buckets[1]
	require.NotNil(t, sofie.OwedPercentage)
	assert.True(t, sofie.OwedPercentage.IsZero())

	common := cfg.Buckets[2]
	assert.Nil(t, common.OwedPercentage, "omitted percentage means equal split")
	assert.Equal(t, "Anti Hangriness Sofieke", common.Group)
}

func TestLoadRejectsMissingGroup(t *testing.T) {
	store := NewBucketStore(writeConfig(t, `distinguished_member: Maarten
secondary_member: Sofie
buckets:
  - name: maarten
    terms: [espresso]
`))

	_, err := store.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "group is required")
}

func TestLoadRejectsDuplicateBucketNames(t *testing.T) {
	store := NewBucketStore(writeConfig(t, `group: Blijdeberg
distinguished_member: Maarten
secondary_member: Sofie
buckets:
  - name: common
    terms: [espresso]
  - name: Common
    terms: [kaas]
`))

	_, err := store.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate bucket name")
}

func TestLoadRejectsPercentageOutOfRange(t *testing.T) {
	store := NewBucketStore(writeConfig(t, `group: Blijdeberg
distinguished_member: Maarten
secondary_member: Sofie
buckets:
  - name: maarten
    owed_percentage: 1.5
    terms: [espresso]
`))

	_, err := store.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "owed_percentage")
}

func TestLoadRejectsBucketWithoutTerms(t *testing.T) {
	store := NewBucketStore(writeConfig(t, `group: Blijdeberg
distinguished_member: Maarten
secondary_member: Sofie
buckets:
  - name: maarten
    terms: []
`))

	_, err := store.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no terms")
}

func TestFindConfigFileMissing(t *testing.T) {
	store := NewBucketStore("definitely-not-there.yaml")

	_, err := store.FindConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}
