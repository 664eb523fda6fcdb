package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines the private-chat commands.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  r.handleStartCommand,
		"help":   r.handleHelpCommand,
		"status": r.handleStatusCommand,
		"payout": r.handlePayoutCommand,
		"cancel": r.handleCancelCommand,

		"stats": r.adminOnly(r.handleStatsCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.isAdmin(message.From.ID) {
			return r.reply(ctx, message, r.translator.T("unknown_command"))
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	if err := r.SetMenuCommands(ctx, message.Chat.ID, r.isAdmin(message.From.ID)); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("failed to set menu commands")
	}
	text, err := r.handlers.Facade.HandleStart(ctx, formatID(message.From.ID))
	if err != nil {
		return r.reply(ctx, message, r.translator.T("error_generic"))
	}
	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, _ := r.handlers.Facade.HandleHelp(ctx)
	return r.reply(ctx, message, text)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.handlers.Facade.HandleStatus(ctx, formatID(message.From.ID))
	if err != nil {
		r.log.Error().Err(err).Int64("tg_id", message.From.ID).Msg("status failed")
		text = r.translator.T("error_generic")
	}
	return r.reply(ctx, message, text)
}

func (r *RealTelegramBotAdapter) handlePayoutCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.handlers.Facade.HandlePayout(ctx, formatID(message.From.ID))
	if err != nil {
		r.log.Error().Err(err).Int64("tg_id", message.From.ID).Msg("payout start failed")
		text = r.translator.T("error_generic")
	}
	return r.reply(ctx, message, text)
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.handlers.Facade.HandleCancel(ctx, formatID(message.From.ID))
	if err != nil {
		text = r.translator.T("error_generic")
	}
	return r.reply(ctx, message, text)
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.handlers.Facade.HandleStats(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("stats failed")
		text = r.translator.T("error_generic")
	}
	return r.reply(ctx, message, text)
}

// handleText feeds non-command private messages into an open conversation.
func (r *RealTelegramBotAdapter) handleText(ctx context.Context, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return nil
	}
	reply, handled, err := r.handlers.Facade.HandleText(ctx, formatID(message.From.ID), text)
	if err != nil {
		r.log.Error().Err(err).Int64("tg_id", message.From.ID).Msg("conversation input failed")
		return r.reply(ctx, message, r.translator.T("error_generic"))
	}
	if !handled {
		return r.reply(ctx, message, r.translator.T("help_message"))
	}
	return r.reply(ctx, message, reply)
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, message *tgbotapi.Message, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return r.send(ctx, tgbotapi.NewMessage(message.Chat.ID, text))
}

// sendMainMenu shows the owner actions as inline buttons.
func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	rows := [][]adapter.InlineButton{
		{{Text: "📊 My groups", Data: "cmd:status"}},
		{{Text: "🏦 Payout account", Data: "cmd:payout"}},
		{{Text: "❔ Help", Data: "cmd:help"}},
	}
	return r.SendButtons(ctx, formatID(chatID), intro, rows)
}

// SetMenuCommands publishes the command list for one private chat.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	cmds := []tgbotapi.BotCommand{
		{Command: "start", Description: "Introduction"},
		{Command: "status", Description: "Your groups and payout account"},
		{Command: "payout", Description: "Set your payout bank account"},
		{Command: "cancel", Description: "Abort the current conversation"},
		{Command: "help", Description: "List commands"},
	}
	if isAdmin {
		cmds = append(cmds, tgbotapi.BotCommand{Command: "stats", Description: "Platform statistics"})
	}
	cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...)
	return r.request(ctx, "set_commands", cfg)
}

func (r *RealTelegramBotAdapter) dispatchCommand(ctx context.Context, message *tgbotapi.Message) error {
	metrics.IncTelegramUpdate("command")
	if fn, ok := r.commandRoutes()[strings.ToLower(message.Command())]; ok {
		return fn(ctx, message)
	}
	return r.reply(ctx, message, r.translator.T("unknown_command"))
}
