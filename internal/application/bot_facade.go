package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-group-paywall/internal/domain"
)

// BotFacade composes usecases into high-level bot commands.
// Methods return strings so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	GroupUC  GroupUseCaseIface
	AccessUC AccessUseCaseIface
	PayoutUC PayoutUseCaseIface
	ReportUC ReportUseCaseIface
	tr       Translator
}

// NewBotFacade constructs a facade. Any usecase may be nil; the commands that
// need it then return an error.
func NewBotFacade(groupUC GroupUseCaseIface, accessUC AccessUseCaseIface, payoutUC PayoutUseCaseIface, reportUC ReportUseCaseIface, tr Translator) *BotFacade {
	return &BotFacade{GroupUC: groupUC, AccessUC: accessUC, PayoutUC: payoutUC, ReportUC: reportUC, tr: tr}
}

func (b *BotFacade) HandleStart(ctx context.Context, subjectID string) (string, error) {
	return b.tr.T("welcome_message"), nil
}

func (b *BotFacade) HandleHelp(ctx context.Context) (string, error) {
	return b.tr.T("help_message"), nil
}

// HandleStatus lists the owner's groups with their subscribe links and the payout account.
func (b *BotFacade) HandleStatus(ctx context.Context, ownerID string) (string, error) {
	if b.GroupUC == nil {
		return "", fmt.Errorf("group usecase not available")
	}
	groups, err := b.GroupUC.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("list groups: %w", err)
	}

	var sb strings.Builder
	if len(groups) == 0 {
		sb.WriteString(b.tr.T("status_no_groups"))
	} else {
		sb.WriteString(b.tr.T("status_header"))
		for _, g := range groups {
			if !g.IsActive {
				continue
			}
			link := g.SubLink
			if b.AccessUC != nil {
				link = b.AccessUC.SubscriptionLink(ctx, g.GroupID)
			}
			sb.WriteString("\n")
			sb.WriteString(b.tr.T("status_group_line", g.Title, len(g.SubscribedUsers), link))
		}
	}

	if b.PayoutUC != nil {
		sb.WriteString("\n\n")
		acct, err := b.PayoutUC.Account(ctx, ownerID)
		switch {
		case err == nil:
			sb.WriteString(b.tr.T("status_payout", acct.AccountName, acct.BankName))
		case errors.Is(err, domain.ErrNotFound):
			sb.WriteString(b.tr.T("status_no_payout"))
		default:
			return "", fmt.Errorf("payout account: %w", err)
		}
	}
	return sb.String(), nil
}

func (b *BotFacade) HandlePayout(ctx context.Context, ownerID string) (string, error) {
	if b.PayoutUC == nil {
		return "", fmt.Errorf("payout usecase not available")
	}
	return b.PayoutUC.Start(ctx, ownerID)
}

func (b *BotFacade) HandleCancel(ctx context.Context, ownerID string) (string, error) {
	if b.PayoutUC == nil {
		return "", fmt.Errorf("payout usecase not available")
	}
	return b.PayoutUC.Cancel(ctx, ownerID)
}

// HandleText routes free text into an open conversation. handled is false
// when nothing was waiting for input.
func (b *BotFacade) HandleText(ctx context.Context, subjectID, text string) (string, bool, error) {
	if b.PayoutUC == nil {
		return "", false, nil
	}
	return b.PayoutUC.HandleInput(ctx, subjectID, strings.TrimSpace(text))
}

// HandleStats builds the admin-facing stats message.
func (b *BotFacade) HandleStats(ctx context.Context) (string, error) {
	if b.ReportUC == nil {
		return "", fmt.Errorf("report usecase not available")
	}
	now := time.Now().UTC()
	stats, err := b.ReportUC.Stats(ctx, now)
	if err != nil {
		return "", fmt.Errorf("get stats: %w", err)
	}
	revenue, err := b.ReportUC.WeeklyRevenue(ctx, now)
	if err != nil {
		return "", fmt.Errorf("weekly revenue: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("📊 Platform statistics:\n\n")
	sb.WriteString(fmt.Sprintf("👥 Groups: %d\n", stats.TotalGroups))
	sb.WriteString(fmt.Sprintf("🧑‍💼 Group owners: %d\n", stats.TotalGroupOwners))
	sb.WriteString(fmt.Sprintf("🎫 Active paid subscriptions: %d\n", stats.ActivePaidRows))
	sb.WriteString("\n💰 Net revenue, last 7 days:\n")
	if len(revenue) == 0 {
		sb.WriteString("  - none\n")
	}
	for _, r := range revenue {
		sb.WriteString(fmt.Sprintf("  - %s: %s (%d groups)\n", r.OwnerID, r.TotalRevenue.StringFixed(2), len(r.Groups)))
	}
	return sb.String(), nil
}
