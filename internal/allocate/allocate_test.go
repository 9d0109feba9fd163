package allocate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassabot/internal/models"
)

func testGroup(names ...string) models.Group {
	g := models.Group{ID: 77, Name: "Blijdeberg"}
	for i, name := range names {
		g.Members = append(g.Members, models.Member{ID: int64(i + 1), FirstName: name})
	}
	return g
}

func cleanedItem(description, price string) models.CleanedItem {
	return models.CleanedItem{
		Description:    description,
		AdjustedAmount: amount(price),
		Date:           "2025-02-19",
	}
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sums(entry models.LedgerEntry) (paid, owed decimal.Decimal) {
	for _, share := range entry.Shares {
		paid = paid.Add(share.Paid)
		owed = owed.Add(share.Owed)
	}
	return paid, owed
}

func shareOf(t *testing.T, entry models.LedgerEntry, name string) models.MemberShare {
	t.Helper()
	for _, share := range entry.Shares {
		if share.FirstName == name {
			return share
		}
	}
	t.Fatalf("no share for member %q", name)
	return models.MemberShare{}
}

func TestAllocateFullyOwedByPayer(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	pct := decimal.NewFromInt(1)
	policy := models.AllocationPolicy{
		PayerName:           "maarten",
		DistinguishedMember: "Maarten",
		OwedPercentage:      &pct,
		SecondaryMember:     "Sofie",
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("espresso", "4.00")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	maarten := shareOf(t, entries[0], "Maarten")
	sofie := shareOf(t, entries[0], "Sofie")
	assert.True(t, amount("4.00").Equal(maarten.Owed), "got %s", maarten.Owed)
	assert.True(t, amount("4.00").Equal(maarten.Paid), "got %s", maarten.Paid)
	assert.True(t, sofie.Owed.IsZero(), "got %s", sofie.Owed)
	assert.True(t, sofie.Paid.IsZero(), "got %s", sofie.Paid)
}

func TestAllocateEqualSplitAssignsRemainderToLastMember(t *testing.T) {
	group := testGroup("Maarten", "Sofie", "Anna")
	policy := models.AllocationPolicy{
		PayerName:           "Maarten",
		DistinguishedMember: "Maarten",
		SecondaryMember:     "Sofie",
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("wijn", "10.00")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	// 10.00 / 3 floors to 3.33; Sofie sorts after Anna and absorbs the cent.
	assert.True(t, amount("3.33").Equal(shareOf(t, entries[0], "Maarten").Owed))
	assert.True(t, amount("3.33").Equal(shareOf(t, entries[0], "Anna").Owed))
	assert.True(t, amount("3.34").Equal(shareOf(t, entries[0], "Sofie").Owed))

	paid, owed := sums(entries[0])
	assert.True(t, entries[0].Cost.Equal(paid), "paid shares must sum to the cost, got %s", paid)
	assert.True(t, entries[0].Cost.Equal(owed), "owed shares must sum to the cost, got %s", owed)
}

func TestAllocateSharesAlwaysSumToCost(t *testing.T) {
	group := testGroup("Maarten", "Sofie", "Anna", "Bram", "Els", "Koen", "Lien")
	secPct, err := decimal.NewFromString("37.5")
	require.NoError(t, err)
	policy := models.AllocationPolicy{
		PayerName:                "Maarten",
		DistinguishedMember:      "Maarten",
		SecondaryMember:          "Sofie",
		SecondaryContributionPct: secPct,
	}

	for _, price := range []string{"0.01", "0.05", "1.00", "3.33", "9.99", "17.42", "100.01"} {
		entries, err := Allocate([]models.CleanedItem{cleanedItem("artikel", price)}, policy, group)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		paid, owed := sums(entries[0])
		assert.True(t, amount(price).Equal(paid), "price %s: paid shares sum to %s", price, paid)
		assert.True(t, amount(price).Equal(owed), "price %s: owed shares sum to %s", price, owed)
	}
}

func TestAllocateOwedPercentageSplitsRemainderOverOthers(t *testing.T) {
	group := testGroup("Maarten", "Sofie", "Anna")
	pct, err := decimal.NewFromString("0.5")
	require.NoError(t, err)
	policy := models.AllocationPolicy{
		PayerName:           "Sofie",
		DistinguishedMember: "Maarten",
		OwedPercentage:      &pct,
		SecondaryMember:     "Sofie",
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("kaas", "10.01")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	// 10.01 * 0.5 rounds to 5.01; the remaining 5.00 splits as 2.50 each,
	// with the last of the others taking the exact complement.
	assert.True(t, amount("5.01").Equal(shareOf(t, entries[0], "Maarten").Owed))
	assert.True(t, amount("2.50").Equal(shareOf(t, entries[0], "Anna").Owed))
	assert.True(t, amount("2.50").Equal(shareOf(t, entries[0], "Sofie").Owed))

	_, owed := sums(entries[0])
	assert.True(t, entries[0].Cost.Equal(owed))
}

func TestAllocateSecondaryContribution(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	policy := models.AllocationPolicy{
		PayerName:                "Maarten",
		DistinguishedMember:      "Maarten",
		SecondaryMember:          "Sofie",
		SecondaryContributionPct: decimal.NewFromInt(40),
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("boodschappen", "10.00")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.True(t, amount("4.00").Equal(shareOf(t, entries[0], "Sofie").Paid))
	assert.True(t, amount("6.00").Equal(shareOf(t, entries[0], "Maarten").Paid))
}

func TestAllocateSecondaryIsPayer(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	policy := models.AllocationPolicy{
		PayerName:                "Sofie",
		DistinguishedMember:      "Maarten",
		SecondaryMember:          "Sofie",
		SecondaryContributionPct: decimal.NewFromInt(100),
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("boodschappen", "8.40")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.True(t, amount("8.40").Equal(shareOf(t, entries[0], "Sofie").Paid))
	assert.True(t, shareOf(t, entries[0], "Maarten").Paid.IsZero())
}

func TestAllocateSecondaryOutsideGroupPayerCoversAll(t *testing.T) {
	// The common bucket may post to a group the secondary member is not part
	// of. Their contribution cannot land on anyone there, so the payer holds
	// the full paid share.
	group := testGroup("Maarten", "Bram")
	policy := models.AllocationPolicy{
		PayerName:                "Maarten",
		DistinguishedMember:      "Maarten",
		SecondaryMember:          "Sofie",
		SecondaryContributionPct: decimal.NewFromInt(50),
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("ontstopper", "10.00")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.True(t, amount("10.00").Equal(shareOf(t, entries[0], "Maarten").Paid))
	assert.True(t, shareOf(t, entries[0], "Bram").Paid.IsZero())

	paid, owed := sums(entries[0])
	assert.True(t, entries[0].Cost.Equal(paid), "paid shares must sum to the cost, got %s", paid)
	assert.True(t, entries[0].Cost.Equal(owed), "owed shares must sum to the cost, got %s", owed)
}

func TestAllocateDistinguishedSecondaryPayerPaysInFull(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	policy := models.AllocationPolicy{
		PayerName:                "Sofie",
		DistinguishedMember:      "Sofie",
		SecondaryMember:          "Sofie",
		SecondaryContributionPct: decimal.NewFromInt(100),
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("boodschappen", "8.40")}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.True(t, amount("8.40").Equal(shareOf(t, entries[0], "Sofie").Paid))
	assert.True(t, shareOf(t, entries[0], "Maarten").Paid.IsZero())

	paid, _ := sums(entries[0])
	assert.True(t, entries[0].Cost.Equal(paid), "paid shares must sum to the cost, got %s", paid)
}

func TestAllocateRejectsUnknownPayer(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	policy := models.AllocationPolicy{
		PayerName:           "Jan",
		DistinguishedMember: "Maarten",
		SecondaryMember:     "Sofie",
	}

	entries, err := Allocate([]models.CleanedItem{cleanedItem("espresso", "4.00")}, policy, group)

	assert.Nil(t, entries)
	var invalid *models.InvalidMemberError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "Jan", invalid.Name)
	assert.Equal(t, []string{"Maarten", "Sofie"}, invalid.ValidOptions)
}

func TestAllocatePayerNameIsCaseInsensitive(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	policy := models.AllocationPolicy{
		PayerName:           "  sOfIe ",
		DistinguishedMember: "maarten",
		SecondaryMember:     "Sofie",
	}

	_, err := Allocate([]models.CleanedItem{cleanedItem("espresso", "4.00")}, policy, group)

	assert.NoError(t, err)
}

func TestAllocateRejectsTooFewMembers(t *testing.T) {
	group := testGroup("Maarten")
	policy := models.AllocationPolicy{
		PayerName:           "Maarten",
		DistinguishedMember: "Maarten",
	}

	_, err := Allocate([]models.CleanedItem{cleanedItem("espresso", "4.00")}, policy, group)

	var malformed *models.MalformedInputError
	require.ErrorAs(t, err, &malformed)
}

func TestAllocateRejectsOwedPercentageOutOfRange(t *testing.T) {
	group := testGroup("Maarten", "Sofie")

	for _, raw := range []string{"-0.1", "1.5"} {
		pct := amount(raw)
		policy := models.AllocationPolicy{
			PayerName:           "Maarten",
			DistinguishedMember: "Maarten",
			OwedPercentage:      &pct,
			SecondaryMember:     "Sofie",
		}

		_, err := Allocate([]models.CleanedItem{cleanedItem("espresso", "4.00")}, policy, group)

		var malformed *models.MalformedInputError
		require.ErrorAs(t, err, &malformed, "percentage %s must be rejected", raw)
	}
}

func TestAllocateOneEntryPerItem(t *testing.T) {
	group := testGroup("Maarten", "Sofie")
	policy := models.AllocationPolicy{
		PayerName:           "Maarten",
		DistinguishedMember: "Maarten",
		SecondaryMember:     "Sofie",
	}

	entries, err := Allocate([]models.CleanedItem{
		cleanedItem("espresso", "4.00"),
		cleanedItem("bananen", "2.10"),
	}, policy, group)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "espresso", entries[0].Description)
	assert.Equal(t, "bananen", entries[1].Description)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, int64(77), entries[0].GroupID)
	assert.Equal(t, "2025-02-19", entries[0].Date)
}
