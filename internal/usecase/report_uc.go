package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
)

// Compile-time check
var _ ReportUseCase = (*reportUC)(nil)

const maxTransactionPage = 500

type ReportUseCase interface {
	Transactions(ctx context.Context, status string, limit, offset int) ([]*model.TransactionView, error)
	// WeeklyRevenue sums net revenue per group owner over the seven days before now.
	WeeklyRevenue(ctx context.Context, now time.Time) ([]*model.OwnerRevenue, error)
	Stats(ctx context.Context, now time.Time) (*model.PlatformStats, error)
}

type reportUC struct {
	payments repository.PaymentRepository
	groups   repository.GroupRepository
	log      *zerolog.Logger
}

func NewReportUseCase(payments repository.PaymentRepository, groups repository.GroupRepository, logger *zerolog.Logger) *reportUC {
	return &reportUC{payments: payments, groups: groups, log: logger}
}

func (r *reportUC) Transactions(ctx context.Context, status string, limit, offset int) ([]*model.TransactionView, error) {
	f := repository.PaymentFilter{Limit: limit, Offset: offset}
	if status != "" {
		st, err := model.ParsePaymentStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	if f.Limit <= 0 || f.Limit > maxTransactionPage {
		f.Limit = maxTransactionPage
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, err := r.payments.List(ctx, repository.NoTX, f)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	seen := map[string]bool{}
	for _, p := range rows {
		if !seen[p.GroupID] {
			seen[p.GroupID] = true
			ids = append(ids, p.GroupID)
		}
	}
	titles := map[string]string{}
	if len(ids) > 0 {
		groups, err := r.groups.FindByIDs(ctx, repository.NoTX, ids)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			titles[g.GroupID] = g.Title
		}
	}

	out := make([]*model.TransactionView, 0, len(rows))
	for _, p := range rows {
		out = append(out, &model.TransactionView{Payment: p, GroupTitle: titles[p.GroupID]})
	}
	return out, nil
}

func (r *reportUC) WeeklyRevenue(ctx context.Context, now time.Time) ([]*model.OwnerRevenue, error) {
	return r.payments.RevenueByOwnerSince(ctx, repository.NoTX, now.AddDate(0, 0, -7))
}

func (r *reportUC) Stats(ctx context.Context, now time.Time) (*model.PlatformStats, error) {
	groups, owners, err := r.groups.CountGroupsAndOwners(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	active, err := r.payments.CountEntitled(ctx, repository.NoTX, now)
	if err != nil {
		return nil, err
	}
	return &model.PlatformStats{TotalGroups: groups, TotalGroupOwners: owners, ActivePaidRows: active}, nil
}
