package bot

import (
	"context"
	"os"
	"sync"
	"time"

	"petsitting/internal/collection"
	"petsitting/internal/config"
	"petsitting/internal/domain"
	"petsitting/internal/events"
	"petsitting/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	updateTimeout     = 30 * time.Second
	transitionTimeout = 60 * time.Second
)

type Bot struct {
	tgService domain.TelegramService
	config    *config.Config
	sessions  domain.SessionManager
	gateway   domain.BookingGateway
	eventBus  domain.EventPublisher
	metrics   *Metrics
	logger    *zerolog.Logger

	views    *viewStore
	inflight sync.WaitGroup
	now      func() time.Time
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	sessions domain.SessionManager,
	gateway domain.BookingGateway,
	eventBus domain.EventPublisher,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if eventBus == nil {
		eventBus = events.NewEventBus()
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	b := &Bot{
		tgService: tgService,
		config:    config,
		sessions:  sessions,
		gateway:   gateway,
		eventBus:  eventBus,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	if metrics != nil {
		b.views = newViewStore(metrics.ActiveDashboards)
	} else {
		b.views = newViewStore(nil)
	}
	return b, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates and waits for status changes already sent to the
// backend, so their results are still rendered.
func (b *Bot) Stop() {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()
	b.Wait()
}

// Wait blocks until every outstanding transition has been applied and rendered.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdatesProcessed.Inc()
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var chatID int64
		switch {
		case update.Message != nil && update.Message.Chat != nil:
			chatID = update.Message.Chat.ID
		case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
			chatID = update.CallbackQuery.Message.Chat.ID
		}

		if chatID == 0 {
			return
		}

		if !b.allow(updateCtx, chatID, update) {
			return
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
			return
		}

		b.handleMessage(updateCtx, update.Message)
	})
}

// dashboard returns the chat's dashboard, building one from the stored session if needed.
func (b *Bot) dashboard(ctx context.Context, chatID int64) (*chatView, error) {
	if v, ok := b.views.get(chatID); ok {
		return v, nil
	}

	session, err := b.sessions.Current(ctx, chatID)
	if err != nil {
		return nil, err
	}

	d := collection.NewDashboard(session, b.gateway,
		collection.WithEvents(b.eventBus),
		collection.WithLogger(b.logger),
	)
	v := newChatView(d)
	b.views.put(chatID, v)
	return v, nil
}

func (b *Bot) pageSize() int {
	if b.config != nil && b.config.Bot.PaginationSize > 0 {
		return b.config.Bot.PaginationSize
	}
	return models.DefaultPaginationSize
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
