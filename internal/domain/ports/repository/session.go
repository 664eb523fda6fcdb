package repository

import (
	"context"

	"telegram-group-paywall/internal/domain/model"
)

// SessionRepository stores bot conversation state with a TTL.
// Get returns domain.ErrSessionExpired when nothing is stored.
type SessionRepository interface {
	Get(ctx context.Context, subjectID string) (*model.BotSession, error)
	Save(ctx context.Context, s *model.BotSession) error
	Clear(ctx context.Context, subjectID string) error
}
