package application

import (
	"context"
	"time"

	"telegram-group-paywall/internal/domain/model"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface the facade needs, so tests can pass in
// light-weight mocks.

type GroupUseCaseIface interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Group, error)
}

type AccessUseCaseIface interface {
	SubscriptionLink(ctx context.Context, groupID string) string
}

type PayoutUseCaseIface interface {
	Start(ctx context.Context, ownerID string) (string, error)
	Cancel(ctx context.Context, ownerID string) (string, error)
	HandleInput(ctx context.Context, ownerID, text string) (string, bool, error)
	Account(ctx context.Context, ownerID string) (*model.PayoutAccount, error)
}

type ReportUseCaseIface interface {
	WeeklyRevenue(ctx context.Context, now time.Time) ([]*model.OwnerRevenue, error)
	Stats(ctx context.Context, now time.Time) (*model.PlatformStats, error)
}

type Translator interface {
	T(key string, args ...interface{}) string
}
