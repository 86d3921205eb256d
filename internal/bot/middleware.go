package bot

import (
	"context"
	"time"

	"petsitting/internal/logging"
	"petsitting/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allow applies the per-chat message rate limit. A failing limiter lets the update through.
func (b *Bot) allow(ctx context.Context, chatID int64, update tgbotapi.Update) bool {
	limit, window := models.RateLimitMessages, models.RateLimitWindow
	if b.config != nil {
		if b.config.Bot.RateLimitMessages > 0 {
			limit = b.config.Bot.RateLimitMessages
		}
		if b.config.Bot.RateLimitWindow > 0 {
			window = b.config.Bot.RateLimitWindow
		}
	}

	allowed, err := b.sessions.CheckRateLimit(ctx, chatID, limit, time.Duration(window)*time.Second)
	if err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Int64("chat_id", chatID).Msg("Rate limit check failed")
		return true
	}
	if allowed {
		return true
	}

	logging.FromContext(ctx, b.logger).Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
	if b.metrics != nil {
		b.metrics.RateLimited.Inc()
	}
	switch {
	case update.Message != nil:
		b.sendMessage(chatID, "⚠️ You are sending messages too often. Please wait a little.")
	case update.CallbackQuery != nil:
		_ = b.tgService.AnswerCallback(update.CallbackQuery.ID, "Too many requests, please wait.")
	}
	return false
}
