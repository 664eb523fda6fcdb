// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-group-paywall/internal/application"
	"telegram-group-paywall/internal/config"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/infra/adapters/bank"
	tele "telegram-group-paywall/internal/infra/adapters/telegram"
	"telegram-group-paywall/internal/infra/api"
	pg "telegram-group-paywall/internal/infra/db/postgres"
	"telegram-group-paywall/internal/infra/events"
	"telegram-group-paywall/internal/infra/i18n"
	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/infra/metrics"
	red "telegram-group-paywall/internal/infra/redis"
	"telegram-group-paywall/internal/infra/sched"
	"telegram-group-paywall/internal/infra/scheduler"
	"telegram-group-paywall/internal/infra/security"
	"telegram-group-paywall/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

// chatBackend is what the use cases need from the bot, real or noop.
type chatBackend interface {
	adapter.ChatPlatform
	adapter.Messenger
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("paywall exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10*time.Second)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient, cfg.Bot.RateLimit, cfg.Bot.RateWindow)
	sessions := red.NewSessionRepo(redisClient, cfg.Redis.SessionTTL)

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		if !cfg.Runtime.Dev {
			return fmt.Errorf("security.encryption_key: %w", err)
		}
		logger.Warn().Err(err).Msg("security.encryption_key unusable; using dev key (INSECURE)")
		if encSvc, err = security.NewEncryptionService("0123456789abcdef0123456789abcdef"); err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
	}

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	groupRepo := pg.NewGroupRepoCacheDecorator(pg.NewGroupRepo(pool), redisClient, cfg.Redis.TTL, logger)
	webhookRepo := pg.NewWebhookEventRepo(pool)
	payoutRepo := pg.NewPayoutAccountRepo(pool, encSvc)
	txManager := pg.NewTxManager(pool)

	// ---- Collaborators ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	resolver, err := bank.NewPaystackResolver(cfg.Bank.BaseURL, cfg.Bank.SecretKey, cfg.Bank.Country, cfg.Bank.Timeout, cfg.Bank.CacheTTL)
	if err != nil {
		return fmt.Errorf("paystack: %w", err)
	}

	var publisher adapter.EventPublisher
	if cfg.Events.AMQPURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer rp.Close()
		publisher = rp
	} else {
		publisher = events.NewNoopPublisher(logger)
	}

	var (
		chat    chatBackend
		realBot *tele.RealTelegramBotAdapter
	)
	switch strings.ToLower(cfg.Bot.Mode) {
	case "noop":
		chat = tele.NewNoopBotAdapter(logger)
	default:
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, translator, rateLimiter, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		chat = realBot
	}

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(paymentRepo, groupRepo, cfg.Payment.Currency, logger)
	reconcileUC := usecase.NewReconcileUseCase(ledgerUC, webhookRepo, publisher, logger)
	expiryUC := usecase.NewExpiryUseCase(paymentRepo, ledgerUC, publisher, logger)
	accessUC := usecase.NewAccessUseCase(paymentRepo, groupRepo, chat, publisher, translator, usecase.AccessOptions{
		SubscribeBaseURL: cfg.Access.SubscribeBaseURL,
		UnbanAfterRevoke: cfg.Access.UnbanAfterRevoke,
	}, logger)
	groupUC := usecase.NewGroupUseCase(groupRepo, accessUC, chat, translator, logger)
	payoutUC := usecase.NewPayoutUseCase(sessions, payoutRepo, txManager, resolver, translator, logger)
	reportUC := usecase.NewReportUseCase(paymentRepo, groupRepo, logger)

	facade := application.NewBotFacade(groupUC, accessUC, payoutUC, reportUC, translator)
	if realBot != nil {
		realBot.SetHandlers(tele.Handlers{Access: accessUC, Groups: groupUC, Facade: facade})
	}

	// ---- Scheduler ----
	sch := scheduler.NewScheduler(cfg.Scheduler.ShutdownGrace, logger)
	if err := sch.Add(cfg.Scheduler.ExpiryCheckCron, sched.NewExpiryWorker(expiryUC, logger)); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}
	if err := sch.Add(cfg.Scheduler.EnforcementCron, sched.NewEnforcementWorker(accessUC, logger)); err != nil {
		return fmt.Errorf("schedule enforcement sweep: %w", err)
	}

	// ---- HTTP ----
	var auth *api.AuthManager
	if cfg.Admin.Password != "" && cfg.Admin.JWTSecret != "" {
		auth = api.NewAuthManager(cfg.Admin.Password, cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.TokenTTL)
	} else {
		logger.Warn().Msg("admin.password or admin.jwt_secret empty; admin API disabled")
	}
	srv := api.NewServer(cfg, api.Deps{
		Ledger:    ledgerUC,
		Reconcile: reconcileUC,
		Banks:     payoutUC,
		Reports:   reportUC,
		Auth:      auth,
		Ping:      pool.Ping,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error {
		sch.Start()
		<-gctx.Done()
		sch.Stop()
		return nil
	})
	if realBot != nil {
		g.Go(func() error {
			if err := realBot.StartPolling(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("telegram polling: %w", err)
			}
			return nil
		})
	}

	logger.Info().Str("version", version).Str("addr", cfg.HTTP.Addr).Str("bot_mode", cfg.Bot.Mode).Msg("paywall started")
	return g.Wait()
}
