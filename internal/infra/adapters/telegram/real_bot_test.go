//go:build !integration

package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-group-paywall/internal/application"
	"telegram-group-paywall/internal/config"
	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/usecase"
)

type fakeBot struct {
	mu        sync.Mutex
	requests  []tgbotapi.Chattable
	sent      []tgbotapi.Chattable
	member    tgbotapi.ChatMember
	failTimes int
	failErr   error
}

func (f *fakeBot) fail() error {
	if f.failTimes > 0 {
		f.failTimes--
		return f.failErr
	}
	return nil
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return tgbotapi.Message{}, err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return tgbotapi.ChatMember{}, err
	}
	return f.member, nil
}

func (f *fakeBot) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeBot) StopReceivingUpdates() {}

type stubTranslator struct{}

func (stubTranslator) T(key string, args ...interface{}) string { return key }

type recordingAccess struct {
	usecase.AccessUseCase
	joins      [][2]string
	newMembers [][2]string
}

func (a *recordingAccess) HandleJoinRequest(ctx context.Context, groupID, subjectID string) (model.AccessState, error) {
	a.joins = append(a.joins, [2]string{groupID, subjectID})
	return model.AccessActive, nil
}

func (a *recordingAccess) HandleNewMember(ctx context.Context, groupID, subjectID string, isBot bool) (model.AccessState, error) {
	if !isBot {
		a.newMembers = append(a.newMembers, [2]string{groupID, subjectID})
	}
	return model.AccessActive, nil
}

type recordingGroups struct {
	usecase.GroupUseCase
	registered  []string
	deactivated []string
}

func (g *recordingGroups) Register(ctx context.Context, groupID, ownerID, title string) (*model.Group, error) {
	g.registered = append(g.registered, groupID+"|"+ownerID+"|"+title)
	return &model.Group{GroupID: groupID}, nil
}

func (g *recordingGroups) Deactivate(ctx context.Context, groupID string) error {
	g.deactivated = append(g.deactivated, groupID)
	return nil
}

func newTestAdapter(t *testing.T, bot *fakeBot) (*RealTelegramBotAdapter, *recordingAccess, *recordingGroups) {
	t.Helper()
	logger := zerolog.Nop()
	cfg := &config.BotConfig{Token: "dummy", AdminIDs: []int64{1111}}
	r := newAdapter(bot, cfg, stubTranslator{}, nil, &logger)
	r.sleep = func(context.Context, int) error { return nil }
	access := &recordingAccess{}
	groups := &recordingGroups{}
	r.SetHandlers(Handlers{
		Access: access,
		Groups: groups,
		Facade: application.NewBotFacade(nil, nil, nil, nil, stubTranslator{}),
	})
	return r, access, groups
}

func TestIsAdmin(t *testing.T) {
	r, _, _ := newTestAdapter(t, &fakeBot{})
	assert.True(t, r.isAdmin(1111))
	assert.False(t, r.isAdmin(3333))
}

func TestMembershipCallsUseParsedIDs(t *testing.T) {
	bot := &fakeBot{}
	r, _, _ := newTestAdapter(t, bot)
	ctx := context.Background()

	require.NoError(t, r.ApproveJoinRequest(ctx, "-1001", "42"))
	require.NoError(t, r.BanMember(ctx, "-1001", "42"))
	require.NoError(t, r.UnbanMember(ctx, "-1001", "42"))
	require.Len(t, bot.requests, 3)

	approve, ok := bot.requests[0].(tgbotapi.ApproveChatJoinRequestConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-1001), approve.ChatID)
	assert.Equal(t, int64(42), approve.UserID)

	ban, ok := bot.requests[1].(tgbotapi.BanChatMemberConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), ban.UserID)

	unban, ok := bot.requests[2].(tgbotapi.UnbanChatMemberConfig)
	require.True(t, ok)
	assert.True(t, unban.OnlyIfBanned)
}

func TestInvalidIDsAreRejected(t *testing.T) {
	r, _, _ := newTestAdapter(t, &fakeBot{})
	err := r.DeclineJoinRequest(context.Background(), "group", "42")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGetMembershipStatus(t *testing.T) {
	bot := &fakeBot{member: tgbotapi.ChatMember{Status: "administrator"}}
	r, _, _ := newTestAdapter(t, bot)
	st, err := r.GetMembershipStatus(context.Background(), "-1001", "42")
	require.NoError(t, err)
	assert.Equal(t, adapter.MembershipAdministrator, st)
	assert.True(t, st.IsPrivileged())
}

func TestFloodControlIsRetried(t *testing.T) {
	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1}}
	bot := &fakeBot{failTimes: 2, failErr: flood}
	r, _, _ := newTestAdapter(t, bot)

	require.NoError(t, r.BanMember(context.Background(), "-1001", "42"))
	assert.Len(t, bot.requests, 1)
}

func TestPermanentErrorWrapsMembershipAPI(t *testing.T) {
	bot := &fakeBot{failTimes: 5, failErr: errors.New("Bad Request: user not found")}
	r, _, _ := newTestAdapter(t, bot)

	err := r.BanMember(context.Background(), "-1001", "42")
	assert.ErrorIs(t, err, domain.ErrMembershipAPI)
	assert.Equal(t, 4, bot.failTimes, "non-flood errors must not be retried")
}

func TestHandleUpdate_RoutesGroupEvents(t *testing.T) {
	r, access, groups := newTestAdapter(t, &fakeBot{})
	ctx := context.Background()

	require.NoError(t, r.handleUpdate(ctx, tgbotapi.Update{ChatJoinRequest: &tgbotapi.ChatJoinRequest{
		Chat: tgbotapi.Chat{ID: -1001, Type: "supergroup"},
		From: tgbotapi.User{ID: 42},
		Date: int(time.Now().Unix()),
	}}))
	assert.Equal(t, [][2]string{{"-1001", "42"}}, access.joins)

	require.NoError(t, r.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From:           &tgbotapi.User{ID: 1},
		Chat:           &tgbotapi.Chat{ID: -1001, Type: "supergroup"},
		NewChatMembers: []tgbotapi.User{{ID: 43}, {ID: 99, IsBot: true}},
	}}))
	assert.Equal(t, [][2]string{{"-1001", "43"}}, access.newMembers)

	promoted := &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -1001, Type: "supergroup", Title: "Traders"},
		From:          tgbotapi.User{ID: 7},
		OldChatMember: tgbotapi.ChatMember{Status: "member"},
		NewChatMember: tgbotapi.ChatMember{Status: "administrator"},
	}
	require.NoError(t, r.handleUpdate(ctx, tgbotapi.Update{MyChatMember: promoted}))
	assert.Equal(t, []string{"-1001|7|Traders"}, groups.registered)

	removed := &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -1001, Type: "supergroup"},
		From:          tgbotapi.User{ID: 7},
		OldChatMember: tgbotapi.ChatMember{Status: "administrator"},
		NewChatMember: tgbotapi.ChatMember{Status: "kicked"},
	}
	require.NoError(t, r.handleUpdate(ctx, tgbotapi.Update{MyChatMember: removed}))
	assert.Equal(t, []string{"-1001"}, groups.deactivated)
}

func TestHandleUpdate_PrivateTextWithoutConversationGetsHelp(t *testing.T) {
	bot := &fakeBot{}
	r, _, _ := newTestAdapter(t, bot)

	require.NoError(t, r.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42, Type: "private"},
		Text: "hello",
	}}))
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "help_message", msg.Text)
}

func TestNoopBotTracksBans(t *testing.T) {
	logger := zerolog.Nop()
	b := NewNoopBotAdapter(&logger)
	ctx := context.Background()

	st, _ := b.GetMembershipStatus(ctx, "g", "s")
	assert.Equal(t, adapter.MembershipMember, st)
	require.NoError(t, b.BanMember(ctx, "g", "s"))
	st, _ = b.GetMembershipStatus(ctx, "g", "s")
	assert.False(t, st.IsPresent())
	require.NoError(t, b.UnbanMember(ctx, "g", "s"))
	st, _ = b.GetMembershipStatus(ctx, "g", "s")
	assert.True(t, st.IsPresent())
}
