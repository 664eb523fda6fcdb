package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/usecase"
)

// ExpiryWorker flips lapsed ledger rows to expired on each tick.
type ExpiryWorker struct {
	uc  usecase.ExpiryUseCase
	log *zerolog.Logger
	now func() time.Time
}

func NewExpiryWorker(uc usecase.ExpiryUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{uc: uc, log: &l, now: func() time.Time { return time.Now().UTC() }}
}

func (w *ExpiryWorker) Name() string { return "expiry_sweep" }

func (w *ExpiryWorker) Run(ctx context.Context) error {
	defer logging.TraceDuration(w.log, "ExpiryUC.Sweep")()
	rep, err := w.uc.Sweep(ctx, w.now())
	if err != nil {
		return err
	}
	if rep.Errors > 0 {
		w.log.Warn().Int("errors", rep.Errors).Int("expired", rep.Expired).Msg("expiry sweep finished with row errors")
	} else {
		w.log.Debug().Int("scanned", rep.Scanned).Int("expired", rep.Expired).Msg("expiry sweep finished")
	}
	return nil
}
