package telegram

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain/ports/adapter"
)

var (
	_ adapter.ChatPlatform = (*NoopBotAdapter)(nil)
	_ adapter.Messenger    = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter logs instead of calling Telegram. Used with bot.mode=noop
// for local runs; every subject reports as a plain member.
type NoopBotAdapter struct {
	log *zerolog.Logger

	mu     sync.Mutex
	banned map[string]bool
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopBot").Logger()
	return &NoopBotAdapter{log: &l, banned: map[string]bool{}}
}

func (b *NoopBotAdapter) ApproveJoinRequest(ctx context.Context, groupID, subjectID string) error {
	b.log.Info().Str("group_id", groupID).Str("subject_id", subjectID).Msg("[noop] approve join request")
	return nil
}

func (b *NoopBotAdapter) DeclineJoinRequest(ctx context.Context, groupID, subjectID string) error {
	b.log.Info().Str("group_id", groupID).Str("subject_id", subjectID).Msg("[noop] decline join request")
	return nil
}

func (b *NoopBotAdapter) BanMember(ctx context.Context, groupID, subjectID string) error {
	b.mu.Lock()
	b.banned[groupID+"/"+subjectID] = true
	b.mu.Unlock()
	b.log.Info().Str("group_id", groupID).Str("subject_id", subjectID).Msg("[noop] ban member")
	return nil
}

func (b *NoopBotAdapter) UnbanMember(ctx context.Context, groupID, subjectID string) error {
	b.mu.Lock()
	delete(b.banned, groupID+"/"+subjectID)
	b.mu.Unlock()
	b.log.Info().Str("group_id", groupID).Str("subject_id", subjectID).Msg("[noop] unban member")
	return nil
}

func (b *NoopBotAdapter) GetMembershipStatus(ctx context.Context, groupID, subjectID string) (adapter.MembershipStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.banned[groupID+"/"+subjectID] {
		return adapter.MembershipKicked, nil
	}
	return adapter.MembershipMember, nil
}

func (b *NoopBotAdapter) SendDirectMessage(ctx context.Context, subjectID, text string) error {
	b.log.Info().Str("subject_id", subjectID).Str("text", text).Msg("[noop] direct message")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, subjectID, text string, rows [][]adapter.InlineButton) error {
	b.log.Info().Str("subject_id", subjectID).Str("text", text).Int("rows", len(rows)).Msg("[noop] buttons")
	return nil
}
