package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"telegram-group-paywall/internal/domain/ports/adapter"
	tele "telegram-group-paywall/internal/infra/adapters/telegram"
	pg "telegram-group-paywall/internal/infra/db/postgres"
	"telegram-group-paywall/internal/infra/events"
	"telegram-group-paywall/internal/infra/i18n"
	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/usecase"
)

func sweepCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a background sweep once and print its report",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Mark lapsed paid subscriptions as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, flags, "expire")
		},
	})
	enforce := &cobra.Command{
		Use:   "enforce",
		Short: "Remove members without an active entitlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, flags, "enforce")
		},
	}
	enforce.Flags().Bool("dry-run", false, "use the noop chat adapter; log removals instead of performing them")
	cmd.AddCommand(enforce)
	return cmd
}

func runSweep(cmd *cobra.Command, flags *rootFlags, kind string) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	ctx := cmd.Context()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10*time.Second)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	paymentRepo := pg.NewPaymentRepo(pool)
	groupRepo := pg.NewGroupRepo(pool)

	var pub adapter.EventPublisher = events.NewNoopPublisher(logger)
	if cfg.Events.AMQPURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer rp.Close()
		pub = rp
	}

	now := time.Now().UTC()
	out := cmd.OutOrStdout()

	if kind == "expire" {
		ledger := usecase.NewLedgerUseCase(paymentRepo, groupRepo, cfg.Payment.Currency, logger)
		rep, err := usecase.NewExpiryUseCase(paymentRepo, ledger, pub, logger).Sweep(ctx, now)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "scanned=%d expired=%d skipped=%d errors=%d\n", rep.Scanned, rep.Expired, rep.Skipped, rep.Errors)
		return nil
	}

	translator, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return err
	}
	var chat adapter.ChatPlatform
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun || strings.EqualFold(cfg.Bot.Mode, "noop") {
		chat = tele.NewNoopBotAdapter(logger)
	} else {
		bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, translator, nil, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		chat = bot
	}
	access := usecase.NewAccessUseCase(paymentRepo, groupRepo, chat, pub, translator, usecase.AccessOptions{
		SubscribeBaseURL: cfg.Access.SubscribeBaseURL,
		UnbanAfterRevoke: cfg.Access.UnbanAfterRevoke,
	}, logger)
	rep, err := access.Sweep(ctx, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "candidates=%d revoked=%d skipped=%d errors=%d\n", rep.Candidates, rep.Revoked, rep.Skipped, rep.Errors)
	return nil
}
