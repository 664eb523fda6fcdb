package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/config"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/infra/metrics"
	"telegram-group-paywall/internal/usecase"
)

// PaymentLedger is the slice of the ledger the HTTP layer reads and writes.
type PaymentLedger interface {
	CreatePending(ctx context.Context, in usecase.NewPaymentInput) (*model.Payment, error)
	FindByAnyReference(ctx context.Context, ref string) (*model.Payment, error)
}

type BankDirectory interface {
	ListBanks(ctx context.Context) ([]adapter.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*adapter.ResolvedAccount, error)
}

type Deps struct {
	Ledger    PaymentLedger
	Reconcile usecase.ReconcileUseCase
	Banks     BankDirectory
	Reports   usecase.ReportUseCase
	Auth      *AuthManager // nil disables /api/auth and /api/admin
	Ping      func(ctx context.Context) error
}

type Server struct {
	cfg       *config.Config
	log       *zerolog.Logger
	ledger    PaymentLedger
	reconcile usecase.ReconcileUseCase
	banks     BankDirectory
	reports   usecase.ReportUseCase
	auth      *AuthManager
	ping      func(ctx context.Context) error
}

func NewServer(cfg *config.Config, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTP").Logger()
	return &Server{
		cfg:       cfg,
		log:       &l,
		ledger:    deps.Ledger,
		reconcile: deps.Reconcile,
		banks:     deps.Banks,
		reports:   deps.Reports,
		auth:      deps.Auth,
		ping:      deps.Ping,
	}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(15*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", traceHeader},
		ExposedHeaders:   []string{traceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/payment/return", s.handleReturn)
	r.Post("/webhook/{processor}", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments/record", s.handleRecordPayment)
		r.Get("/payments/{reference}/status", s.handlePaymentStatus)
		r.Post("/payments/verify", s.handleVerifyPayment)

		r.Get("/paystack/banks", s.handleListBanks)
		r.Post("/paystack/verify-account", s.handleResolveAccount)

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(AdminOnly(s.auth))
			r.Get("/admin/transactions", s.handleTransactions)
			r.Get("/admin/revenue/weekly", s.handleWeeklyRevenue)
			r.Get("/admin/stats", s.handleStats)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ListenAndServe runs until ctx is cancelled, then drains within cfg.HTTP.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	grace := s.cfg.HTTP.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
