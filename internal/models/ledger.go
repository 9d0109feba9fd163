package models

import (
	"github.com/shopspring/decimal"
)

// Member is one participant in an expense-sharing group, as resolved from the
// ledger collaborator's roster.
type Member struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

// Group is an expense-sharing group with its member roster.
type Group struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// MemberShare is one member's slice of a ledger entry. Paid is what the
// member physically handed over at purchase time; Owed is what the member is
// financially responsible for.
type MemberShare struct {
	MemberID  int64           `json:"member_id"`
	FirstName string          `json:"first_name"`
	Paid      decimal.Decimal `json:"paid_share"`
	Owed      decimal.Decimal `json:"owed_share"`
}

// LedgerEntry is one expense to persist on the ledger. Invariant: the paid
// shares and the owed shares each sum to Cost exactly, to the cent.
type LedgerEntry struct {
	ID          string          `json:"id"`
	Cost        decimal.Decimal `json:"cost"`
	Description string          `json:"description"`
	Date        string          `json:"date,omitempty"`
	GroupID     int64           `json:"group_id"`
	Shares      []MemberShare   `json:"shares"`
}

// AllocationPolicy describes how one bucket's items are split.
//
// OwedPercentage, when set, is the fraction of each item's cost the
// distinguished member owes; the remaining members split the rest equally.
// When nil, every member (distinguished included) owes an equal share.
// SecondaryContributionPct is the fraction (0-100) of each item's price the
// secondary member physically paid, independent of the owed split.
type AllocationPolicy struct {
	PayerName                string
	DistinguishedMember      string
	OwedPercentage           *decimal.Decimal
	SecondaryMember          string
	SecondaryContributionPct decimal.Decimal
}
