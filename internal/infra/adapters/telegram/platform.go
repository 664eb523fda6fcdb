package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/ports/adapter"
)

func (r *RealTelegramBotAdapter) ApproveJoinRequest(ctx context.Context, groupID, subjectID string) error {
	chatID, userID, err := parsePair(groupID, subjectID)
	if err != nil {
		return err
	}
	cfg := tgbotapi.ApproveChatJoinRequestConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}, UserID: userID}
	return r.request(ctx, "approve", cfg)
}

func (r *RealTelegramBotAdapter) DeclineJoinRequest(ctx context.Context, groupID, subjectID string) error {
	chatID, userID, err := parsePair(groupID, subjectID)
	if err != nil {
		return err
	}
	cfg := tgbotapi.DeclineChatJoinRequest{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}, UserID: userID}
	return r.request(ctx, "decline", cfg)
}

func (r *RealTelegramBotAdapter) BanMember(ctx context.Context, groupID, subjectID string) error {
	chatID, userID, err := parsePair(groupID, subjectID)
	if err != nil {
		return err
	}
	cfg := tgbotapi.BanChatMemberConfig{ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID}}
	return r.request(ctx, "ban", cfg)
}

func (r *RealTelegramBotAdapter) UnbanMember(ctx context.Context, groupID, subjectID string) error {
	chatID, userID, err := parsePair(groupID, subjectID)
	if err != nil {
		return err
	}
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	return r.request(ctx, "unban", cfg)
}

func (r *RealTelegramBotAdapter) GetMembershipStatus(ctx context.Context, groupID, subjectID string) (adapter.MembershipStatus, error) {
	chatID, userID, err := parsePair(groupID, subjectID)
	if err != nil {
		return "", err
	}
	cfg := tgbotapi.GetChatMemberConfig{ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID}}

	var member tgbotapi.ChatMember
	err = r.withRetry(ctx, "get_member", func() error {
		var callErr error
		member, callErr = r.bot.GetChatMember(cfg)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return adapter.MembershipStatus(strings.ToLower(member.Status)), nil
}

// SendDirectMessage fails when the subject never opened a private chat with the bot.
func (r *RealTelegramBotAdapter) SendDirectMessage(ctx context.Context, subjectID, text string) error {
	id, err := parseID(subjectID)
	if err != nil {
		return err
	}
	return r.send(ctx, tgbotapi.NewMessage(id, text))
}

// SendButtons sends a message with inline buttons.
// A button with URL opens a link; otherwise it sends Data (or its Text) as callback data.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, subjectID, text string, rows [][]adapter.InlineButton) error {
	id, err := parseID(subjectID)
	if err != nil {
		return err
	}
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}
	msg := tgbotapi.NewMessage(id, text)
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	return r.send(ctx, msg)
}

func (r *RealTelegramBotAdapter) send(ctx context.Context, c tgbotapi.Chattable) error {
	return r.withRetry(ctx, "send", func() error {
		_, err := r.bot.Send(c)
		return err
	})
}

func (r *RealTelegramBotAdapter) request(ctx context.Context, op string, c tgbotapi.Chattable) error {
	return r.withRetry(ctx, op, func() error {
		_, err := r.bot.Request(c)
		return err
	})
}

// withRetry honours the Bot API flood-control hint (HTTP 429 retry_after) and
// wraps the final failure in domain.ErrMembershipAPI.
func (r *RealTelegramBotAdapter) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = call(); err == nil {
			return nil
		}
		wait, retry := retryAfter(err)
		if !retry || attempt == r.maxAttempts {
			break
		}
		r.log.Debug().Str("op", op).Int("retry_after", wait).Int("attempt", attempt).Msg("telegram flood control")
		if sErr := r.sleep(ctx, wait); sErr != nil {
			return sErr
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrMembershipAPI, op, err)
}

func retryAfter(err error) (int, bool) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, seconds int) error {
	t := time.NewTimer(time.Duration(seconds) * time.Second)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chat id %q", domain.ErrInvalidArgument, s)
	}
	return id, nil
}

func parsePair(groupID, subjectID string) (int64, int64, error) {
	chatID, err := parseID(groupID)
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseID(subjectID)
	if err != nil {
		return 0, 0, err
	}
	return chatID, userID, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
