package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/usecase"
)

// EnforcementWorker removes members whose entitlement has lapsed.
type EnforcementWorker struct {
	uc  usecase.AccessUseCase
	log *zerolog.Logger
	now func() time.Time
}

func NewEnforcementWorker(uc usecase.AccessUseCase, logger *zerolog.Logger) *EnforcementWorker {
	l := logger.With().Str("component", "EnforcementWorker").Logger()
	return &EnforcementWorker{uc: uc, log: &l, now: func() time.Time { return time.Now().UTC() }}
}

func (w *EnforcementWorker) Name() string { return "enforcement_sweep" }

func (w *EnforcementWorker) Run(ctx context.Context) error {
	defer logging.TraceDuration(w.log, "AccessUC.Sweep")()
	rep, err := w.uc.Sweep(ctx, w.now())
	if err != nil {
		return err
	}
	w.log.Debug().Int("candidates", rep.Candidates).Int("revoked", rep.Revoked).Int("errors", rep.Errors).Msg("enforcement sweep finished")
	return nil
}
