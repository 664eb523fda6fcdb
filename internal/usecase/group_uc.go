package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/domain/ports/repository"
)

// Compile-time check
var _ GroupUseCase = (*groupUC)(nil)

type GroupUseCase interface {
	// Register records a chat the bot was promoted in and tells the owner.
	Register(ctx context.Context, groupID, ownerID, title string) (*model.Group, error)
	// Deactivate marks a chat the bot was removed from.
	Deactivate(ctx context.Context, groupID string) error
	Get(ctx context.Context, groupID string) (*model.Group, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Group, error)
}

type groupUC struct {
	groups repository.GroupRepository
	access AccessUseCase
	msg    adapter.Messenger
	tr     Translator
	log    *zerolog.Logger
}

func NewGroupUseCase(groups repository.GroupRepository, access AccessUseCase, msg adapter.Messenger, tr Translator, logger *zerolog.Logger) *groupUC {
	l := logger.With().Str("component", "GroupUC").Logger()
	return &groupUC{groups: groups, access: access, msg: msg, tr: tr, log: &l}
}

func (u *groupUC) Register(ctx context.Context, groupID, ownerID, title string) (*model.Group, error) {
	g, err := u.groups.FindByID(ctx, repository.NoTX, groupID)
	switch {
	case err == nil:
		g.IsActive = true
		if title != "" {
			g.Title = title
		}
	case errors.Is(err, domain.ErrNotFound):
		g, err = model.NewGroup(groupID, ownerID, title)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if err := u.groups.Upsert(ctx, repository.NoTX, g); err != nil {
		return nil, err
	}
	u.log.Info().Str("group_id", groupID).Str("owner_id", g.OwnerID).Msg("group registered")

	if u.msg != nil {
		link := ""
		if u.access != nil {
			link = u.access.SubscriptionLink(ctx, groupID)
		}
		if err := u.msg.SendDirectMessage(ctx, g.OwnerID, u.tr.T("group.registered", g.Title, link)); err != nil {
			u.log.Debug().Err(err).Str("owner_id", g.OwnerID).Msg("owner not notified")
		}
	}
	return g, nil
}

func (u *groupUC) Deactivate(ctx context.Context, groupID string) error {
	if err := u.groups.SetActive(ctx, repository.NoTX, groupID, false); err != nil {
		return err
	}
	u.log.Info().Str("group_id", groupID).Msg("group deactivated")
	return nil
}

func (u *groupUC) Get(ctx context.Context, groupID string) (*model.Group, error) {
	return u.groups.FindByID(ctx, repository.NoTX, groupID)
}

func (u *groupUC) ListByOwner(ctx context.Context, ownerID string) ([]*model.Group, error) {
	return u.groups.ListByOwner(ctx, repository.NoTX, ownerID)
}
