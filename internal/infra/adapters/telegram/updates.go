package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/infra/metrics"
	red "telegram-group-paywall/internal/infra/redis"
)

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		metrics.IncTelegramUpdate("callback")
		return r.handleQuery(ctx, update.CallbackQuery)

	case update.ChatJoinRequest != nil:
		metrics.IncTelegramUpdate("join_request")
		req := update.ChatJoinRequest
		_, err := r.handlers.Access.HandleJoinRequest(ctx, formatID(req.Chat.ID), formatID(req.From.ID))
		return err

	case update.MyChatMember != nil:
		metrics.IncTelegramUpdate("my_chat_member")
		return r.handleMyChatMember(ctx, update.MyChatMember)

	case update.Message != nil:
		return r.handleMessage(ctx, update.Message)
	}
	return nil
}

func (r *RealTelegramBotAdapter) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil || message.Chat == nil {
		return nil
	}

	if len(message.NewChatMembers) > 0 {
		metrics.IncTelegramUpdate("new_members")
		groupID := formatID(message.Chat.ID)
		var firstErr error
		for _, m := range message.NewChatMembers {
			if _, err := r.handlers.Access.HandleNewMember(ctx, groupID, formatID(m.ID), m.IsBot); err != nil {
				r.log.Warn().Err(err).Str("group_id", groupID).Int64("tg_id", m.ID).Msg("new member check failed")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}

	if !message.Chat.IsPrivate() {
		return nil
	}
	if !r.allow(ctx, message.From.ID) {
		return r.reply(ctx, message, r.translator.T("error_rate_limited"))
	}
	if message.IsCommand() {
		return r.dispatchCommand(ctx, message)
	}
	metrics.IncTelegramUpdate("text")
	return r.handleText(ctx, message)
}

// handleMyChatMember registers a group once the bot is promoted to admin and
// deactivates it when the bot is removed.
func (r *RealTelegramBotAdapter) handleMyChatMember(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) error {
	if r.handlers.Groups == nil || !(upd.Chat.IsGroup() || upd.Chat.IsSuperGroup()) {
		return nil
	}
	groupID := formatID(upd.Chat.ID)
	switch adapter.MembershipStatus(upd.NewChatMember.Status) {
	case adapter.MembershipAdministrator:
		if adapter.MembershipStatus(upd.OldChatMember.Status) == adapter.MembershipAdministrator {
			return nil
		}
		_, err := r.handlers.Groups.Register(ctx, groupID, formatID(upd.From.ID), upd.Chat.Title)
		return err
	case adapter.MembershipLeft, adapter.MembershipKicked:
		return r.handlers.Groups.Deactivate(ctx, groupID)
	}
	return nil
}

// allow applies the per-subject private message limit. Limiter errors fail open.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, tgID int64) bool {
	if r.rateLimiter == nil {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.SubjectMessageKey(tgID))
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
	}
	return allowed
}

// updateContext tags ctx with the subject and group an update concerns.
func updateContext(ctx context.Context, up *tgbotapi.Update) context.Context {
	if req := up.ChatJoinRequest; req != nil {
		return logging.WithGroupID(logging.WithSubjectID(ctx, formatID(req.From.ID)), formatID(req.Chat.ID))
	}
	if chat := up.FromChat(); chat != nil && !chat.IsPrivate() {
		ctx = logging.WithGroupID(ctx, formatID(chat.ID))
	}
	if from := up.SentFrom(); from != nil {
		ctx = logging.WithSubjectID(ctx, formatID(from.ID))
	}
	return ctx
}
