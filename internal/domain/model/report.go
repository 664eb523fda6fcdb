package model

import "github.com/shopspring/decimal"

// OwnerRevenue aggregates net revenue per group owner.
type OwnerRevenue struct {
	OwnerID      string
	TotalRevenue decimal.Decimal
	Groups       []string
}

// TransactionView is a payment joined with its group title for reporting.
type TransactionView struct {
	Payment    *Payment
	GroupTitle string
}

type PlatformStats struct {
	TotalGroups      int
	TotalGroupOwners int
	ActivePaidRows   int
}
