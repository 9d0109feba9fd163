// Package allocate converts bucketed invoice items into per-member ledger
// entries. Each item becomes its own entry; the arithmetic guarantees that
// paid shares and owed shares both sum to the item's cost exactly, to the
// cent, by assigning any rounding remainder to the last of the
// alphabetically ordered non-distinguished members.
package allocate

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kassabot/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Allocate produces one LedgerEntry per item under the given policy.
//
// The distinguished member's owed share follows the policy's OwedPercentage
// when set; otherwise every member owes an equal share, floored to the cent so
// the remainder correction stays non-negative. The secondary member's paid
// share is their contribution percentage of the price; the payer covers the
// rest. When the secondary member is not on the group's roster the payer
// covers the full price instead.
func Allocate(items []models.CleanedItem, policy models.AllocationPolicy, group models.Group) ([]models.LedgerEntry, error) {
	if err := validatePolicy(policy, group); err != nil {
		return nil, err
	}

	entries := make([]models.LedgerEntry, 0, len(items))
	for _, item := range items {
		entry, err := allocateItem(item, policy, group)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func validatePolicy(policy models.AllocationPolicy, group models.Group) error {
	if len(group.Members) < 2 {
		return &models.MalformedInputError{Reason: "group must have at least two members"}
	}

	if _, err := resolveMember(policy.PayerName, group.Members); err != nil {
		return err
	}
	if _, err := resolveMember(policy.DistinguishedMember, group.Members); err != nil {
		return err
	}

	if pct := policy.OwedPercentage; pct != nil {
		if pct.IsNegative() || pct.GreaterThan(one) {
			return &models.MalformedInputError{
				Reason: "owed percentage must lie in [0,1], got " + pct.String(),
			}
		}
	}

	return nil
}

// resolveMember finds a member by display name, case-insensitively.
func resolveMember(name string, members []models.Member) (models.Member, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, m := range members {
		if strings.ToLower(strings.TrimSpace(m.FirstName)) == needle {
			return m, nil
		}
	}

	valid := make([]string, 0, len(members))
	for _, m := range members {
		valid = append(valid, m.FirstName)
	}
	return models.Member{}, &models.InvalidMemberError{Name: name, ValidOptions: valid}
}

func allocateItem(item models.CleanedItem, policy models.AllocationPolicy, group models.Group) (models.LedgerEntry, error) {
	price := item.AdjustedAmount.Round(2)
	memberCount := int64(len(group.Members))

	distinguished, err := resolveMember(policy.DistinguishedMember, group.Members)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	// Stable ordering of the remaining members, so the remainder always lands
	// on the same one across runs.
	others := make([]models.Member, 0, len(group.Members)-1)
	for _, m := range group.Members {
		if m.ID != distinguished.ID {
			others = append(others, m)
		}
	}
	sort.Slice(others, func(i, j int) bool {
		return strings.ToLower(others[i].FirstName) < strings.ToLower(others[j].FirstName)
	})

	var distinguishedOwed, equalShare decimal.Decimal
	if pct := policy.OwedPercentage; pct != nil {
		distinguishedOwed = price.Mul(*pct).Round(2)
		equalShare = price.Sub(distinguishedOwed).Div(decimal.NewFromInt(int64(len(others)))).Round(2)
	} else {
		// Floor to the cent: under-allocating here keeps the remainder that
		// lands on the last member non-negative.
		equalShare = price.Mul(hundred).Div(decimal.NewFromInt(memberCount)).Floor().Div(hundred)
		distinguishedOwed = equalShare
	}

	payer, err := resolveMember(policy.PayerName, group.Members)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	// Paid shares keyed by member id. A secondary contributor who is not on
	// this group's roster, or who is the payer themselves, holds no separate
	// share; the payer then covers the full price, so paid shares still sum
	// to it.
	paidBy := map[int64]decimal.Decimal{}
	secondaryPaid := decimal.Zero
	if policy.SecondaryContributionPct.IsPositive() {
		if sec, err := resolveMember(policy.SecondaryMember, group.Members); err == nil && sec.ID != payer.ID {
			secondaryPaid = price.Mul(policy.SecondaryContributionPct).Div(hundred).Round(2)
			paidBy[sec.ID] = secondaryPaid
		}
	}
	paidBy[payer.ID] = price.Sub(secondaryPaid)

	shares := make([]models.MemberShare, 0, len(group.Members))
	shares = append(shares, models.MemberShare{
		MemberID:  distinguished.ID,
		FirstName: distinguished.FirstName,
		Paid:      paidBy[distinguished.ID],
		Owed:      distinguishedOwed,
	})

	owedSoFar := distinguishedOwed
	for i, member := range others {
		owed := equalShare
		if i == len(others)-1 {
			// The last member absorbs the rounding remainder, forcing the
			// owed shares to sum to the price exactly.
			owed = price.Sub(owedSoFar).Sub(equalShare.Mul(decimal.NewFromInt(int64(len(others) - 1 - i)))).Round(2)
		}

		shares = append(shares, models.MemberShare{
			MemberID:  member.ID,
			FirstName: member.FirstName,
			Paid:      paidBy[member.ID],
			Owed:      owed,
		})
		owedSoFar = owedSoFar.Add(owed)
	}

	return models.LedgerEntry{
		ID:          uuid.NewString(),
		Cost:        price,
		Description: item.Description,
		Date:        item.Date,
		GroupID:     group.ID,
		Shares:      shares,
	}, nil
}
