package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"telegram-group-paywall/internal/infra/adapters/bank"
)

func bankCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Query the payout bank directory",
	}

	resolve := &cobra.Command{
		Use:   "resolve",
		Short: "Look up the registered name on a bank account",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, _ := cmd.Flags().GetString("account")
			code, _ := cmd.Flags().GetString("bank")
			r, err := newResolver(flags)
			if err != nil {
				return err
			}
			acc, err := r.ResolveAccount(cmd.Context(), account, code)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", acc.AccountNumber, acc.BankCode, acc.AccountName)
			return nil
		},
	}
	resolve.Flags().String("account", "", "10-digit account number")
	resolve.Flags().String("bank", "", "bank code")
	_ = resolve.MarkFlagRequired("account")
	_ = resolve.MarkFlagRequired("bank")

	list := &cobra.Command{
		Use:   "list",
		Short: "List supported banks and their codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newResolver(flags)
			if err != nil {
				return err
			}
			banks, err := r.ListBanks(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME")
			for _, b := range banks {
				fmt.Fprintf(w, "%s\t%s\n", b.Code, b.Name)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(resolve, list)
	return cmd
}

func newResolver(flags *rootFlags) (*bank.PaystackResolver, error) {
	cfg, err := flags.load()
	if err != nil {
		return nil, err
	}
	return bank.NewPaystackResolver(cfg.Bank.BaseURL, cfg.Bank.SecretKey, cfg.Bank.Country, cfg.Bank.Timeout, cfg.Bank.CacheTTL)
}
