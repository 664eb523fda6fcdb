package adapter

import "context"

// Bank is one entry of the payout bank directory.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug"`
}

// ResolvedAccount is what the account-validation API returns.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankCode      string `json:"bank_code"`
}

// AccountResolver validates payout destinations. Failures wrap domain.ErrResolution.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error)
	ListBanks(ctx context.Context) ([]Bank, error)
}
