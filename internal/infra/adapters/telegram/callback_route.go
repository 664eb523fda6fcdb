package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type cbHandler func(ctx context.Context, chatID, fromID int64, data string) error

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:status": r.statusCBRoute,
		"cmd:payout": r.payoutCBRoute,
		"cmd:help":   r.helpCBRoute,
	}
}

func (r *RealTelegramBotAdapter) statusCBRoute(ctx context.Context, chatID, fromID int64, _ string) error {
	text, err := r.handlers.Facade.HandleStatus(ctx, formatID(fromID))
	if err != nil {
		text = r.translator.T("error_generic")
	}
	return r.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (r *RealTelegramBotAdapter) payoutCBRoute(ctx context.Context, chatID, fromID int64, _ string) error {
	text, err := r.handlers.Facade.HandlePayout(ctx, formatID(fromID))
	if err != nil {
		text = r.translator.T("error_generic")
	}
	return r.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (r *RealTelegramBotAdapter) helpCBRoute(ctx context.Context, chatID, _ int64, _ string) error {
	text, _ := r.handlers.Facade.HandleHelp(ctx)
	return r.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	// Stop the client spinner.
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	if allowed := r.allow(ctx, query.From.ID); !allowed {
		return r.send(ctx, tgbotapi.NewMessage(chatID, r.translator.T("error_rate_limited")))
	}

	data := strings.TrimSpace(query.Data)
	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, query.From.ID, data)
	}
	return errors.New("unknown callback data")
}
