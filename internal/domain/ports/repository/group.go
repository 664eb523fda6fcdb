package repository

import (
	"context"

	"telegram-group-paywall/internal/domain/model"
)

type GroupRepository interface {
	Upsert(ctx context.Context, tx Tx, g *model.Group) error
	FindByID(ctx context.Context, tx Tx, groupID string) (*model.Group, error)
	FindByIDs(ctx context.Context, tx Tx, groupIDs []string) ([]*model.Group, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.Group, error)
	SetActive(ctx context.Context, tx Tx, groupID string, active bool) error
	AddSubscriber(ctx context.Context, tx Tx, groupID, subjectID string) error
	RemoveSubscriber(ctx context.Context, tx Tx, groupID, subjectID string) error
	CountGroupsAndOwners(ctx context.Context, tx Tx) (groups int, owners int, err error)
}

type PayoutAccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.PayoutAccount) error
	FindByOwner(ctx context.Context, tx Tx, ownerID string) (*model.PayoutAccount, error)
}
