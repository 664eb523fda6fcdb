package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/application"
	"telegram-group-paywall/internal/config"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/infra/logging"
	red "telegram-group-paywall/internal/infra/redis"
	"telegram-group-paywall/internal/usecase"
)

var (
	_ adapter.ChatPlatform = (*RealTelegramBotAdapter)(nil)
	_ adapter.Messenger    = (*RealTelegramBotAdapter)(nil)
)

// botAPI is the part of tgbotapi.BotAPI the adapter drives.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handlers are the usecases updates are routed to. They are attached after
// construction because the access loop itself needs the adapter.
type Handlers struct {
	Access usecase.AccessUseCase
	Groups usecase.GroupUseCase
	Facade *application.BotFacade
}

// RealTelegramBotAdapter polls updates with tgbotapi and implements the chat
// platform ports on top of the Bot API.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	handlers    Handlers
	translator  usecase.Translator
	rateLimiter *red.RateLimiter
	log         *zerolog.Logger

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	maxAttempts   int
	sleep         func(ctx context.Context, seconds int) error

	mu            sync.Mutex
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, translator usecase.Translator, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, translator, rateLimiter, logger), nil
}

func newAdapter(bot botAPI, cfg *config.BotConfig, translator usecase.Translator, rateLimiter *red.RateLimiter, logger *zerolog.Logger) *RealTelegramBotAdapter {
	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		translator:    translator,
		rateLimiter:   rateLimiter,
		log:           &l,
		adminIDsMap:   adminMap,
		updateWorkers: workers,
		maxAttempts:   3,
		sleep:         sleepCtx,
	}
}

// SetHandlers must be called before StartPolling.
func (r *RealTelegramBotAdapter) SetHandlers(h Handlers) {
	r.handlers = h
}

// StartPolling blocks until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.handlers.Access == nil || r.handlers.Facade == nil {
		return errors.New("telegram handlers not attached")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "chat_join_request", "my_chat_member"}
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelPolling = cancel
	r.mu.Unlock()

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				uctx := updateContext(ctx, &up)
				if err := r.handleUpdate(uctx, up); err != nil {
					logging.With(uctx, r.log).Error().Err(err).Int("worker", id).Int("update_id", up.UpdateID).Msg("update handling failed")
				}
			}
		}(i)
	}
	r.log.Info().Int("workers", r.updateWorkers).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			r.log.Info().Msg("telegram polling stopped")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				cancel()
				continue
			}
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}
