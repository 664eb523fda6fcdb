package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"telegram-group-paywall/internal/client/paywall"
)

func paymentCmd() *cobra.Command {
	var (
		apiURL  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Record and inspect payments through the HTTP API",
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "paywall HTTP base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")

	wait := &cobra.Command{
		Use:   "wait <reference>",
		Short: "Poll a payment until it is confirmed, failed, or the attempts run out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := paywall.DefaultPolicy()
			policy.MaxAttempts, _ = cmd.Flags().GetInt("attempts")
			policy.Interval, _ = cmd.Flags().GetDuration("interval")

			c := paywall.NewClient(apiURL, timeout)
			res, err := c.WaitForConfirmation(cmd.Context(), args[0], policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s after %d attempt(s)\n", res.Outcome, res.Attempts)
			if res.Payment != nil && res.Payment.ExpiresAt != nil && res.Outcome == paywall.Confirmed {
				fmt.Fprintf(cmd.OutOrStdout(), "access until %s\n", res.Payment.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	wait.Flags().Int("attempts", 10, "maximum status checks")
	wait.Flags().Duration("interval", 2*time.Second, "initial delay between checks")

	record := &cobra.Command{
		Use:   "record",
		Short: "Record a pending payment (reference generated when omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in paywall.RecordRequest
			in.Reference, _ = cmd.Flags().GetString("reference")
			in.SubjectID, _ = cmd.Flags().GetString("subject")
			in.GroupID, _ = cmd.Flags().GetString("group")
			in.Amount, _ = cmd.Flags().GetString("amount")
			in.DurationTier, _ = cmd.Flags().GetString("tier")
			in.ContactEmail, _ = cmd.Flags().GetString("email")
			if in.Reference == "" {
				in.Reference = paywall.NewReference()
			}
			st, err := paywall.NewClient(apiURL, timeout).Record(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
	record.Flags().String("reference", "", "checkout reference")
	record.Flags().String("subject", "", "paying user's Telegram id")
	record.Flags().String("group", "", "group chat id")
	record.Flags().String("amount", "", "gross amount")
	record.Flags().String("tier", "monthly", "monthly|quarterly|biannual|annual")
	record.Flags().String("email", "", "contact email")
	_ = record.MarkFlagRequired("subject")
	_ = record.MarkFlagRequired("group")
	_ = record.MarkFlagRequired("amount")

	status := &cobra.Command{
		Use:   "status <reference>",
		Short: "Show the ledger state of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := paywall.NewClient(apiURL, timeout).Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}

	cmd.AddCommand(wait, record, status)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
