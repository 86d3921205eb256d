package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"petsitting/internal/collection"
	"petsitting/internal/controls"
	"petsitting/internal/gateway"
	"petsitting/internal/logging"
	"petsitting/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `🐾 Pet sitting bookings

/login <token> - sign in with your account token
/logout - sign out
/owner - my pet bookings
/sitter - my sitting requests
/bookings - both lists with tabs
/booking <id> - show one booking
/export - download the current list as a spreadsheet
/help - this message`

var knownCommands = map[string]bool{
	"start": true, "help": true, "login": true, "logout": true, "owner": true,
	"sitter": true, "bookings": true, "booking": true, "export": true,
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		b.sendMessage(chatID, "Send /help to see what I can do.")
		return
	}

	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	if b.metrics != nil {
		label := command
		if !knownCommands[label] {
			label = "unknown"
		}
		b.metrics.CommandsProcessed.WithLabelValues(label).Inc()
	}

	switch command {
	case "start", "help":
		b.sendMessage(chatID, helpText)
	case "login":
		b.handleLogin(ctx, msg, args)
	case "logout":
		b.handleLogout(ctx, chatID)
	case "owner":
		b.showList(ctx, chatID, models.RoleOwner)
	case "sitter":
		b.showList(ctx, chatID, models.RoleSitter)
	case "bookings":
		b.showDashboard(ctx, chatID)
	case "booking":
		b.handleBookingDetail(ctx, chatID, args)
	case "export":
		b.handleExport(ctx, chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Send /help to see the list of commands.")
	}
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message, token string) {
	chatID := msg.Chat.ID

	// Сообщение с токеном не должно оставаться в истории чата
	if err := b.tgService.DeleteMessage(chatID, msg.MessageID); err != nil {
		logging.FromContext(ctx, b.logger).Debug().Err(err).Msg("Failed to delete login message")
	}

	session, err := b.sessions.Login(ctx, chatID, token)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	b.views.drop(chatID)

	text := "✅ Signed in. Use /owner, /sitter or /bookings to see your bookings."
	if session.ExpiresAt != nil {
		text += fmt.Sprintf("\nThe session is valid until %s.", session.ExpiresAt.Format("2006-01-02 15:04 MST"))
	}
	b.sendMessage(chatID, text)
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	b.views.drop(chatID)
	if err := b.sessions.Logout(ctx, chatID); err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to clear session")
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	b.sendMessage(chatID, "👋 Signed out.")
}

// showList opens role's tab in a new message and loads it from the backend.
func (b *Bot) showList(ctx context.Context, chatID int64, role models.Role) {
	v, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	if err := v.dashboard.SwitchTab(role); err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	loading := loadingPage(role)
	sent, err := b.tgService.SendPage(chatID, loading.Text, &loading.Markup)
	if err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Msg("Failed to send list")
		return
	}
	v.setListMessage(sent.MessageID)

	b.loadTab(ctx, chatID, v, role)
	b.renderListMessage(ctx, chatID, v)
}

func (b *Bot) showDashboard(ctx context.Context, chatID int64) {
	v, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	b.showList(ctx, chatID, v.dashboard.Active())
}

// loadTab reloads role's collection. Failures end up in the collection's page state.
func (b *Bot) loadTab(ctx context.Context, chatID int64, v *chatView, role models.Role) {
	if err := v.dashboard.Collection(role).Load(ctx); err != nil {
		b.forgetOnUnauthenticated(chatID, err)
	}
}

func (b *Bot) renderListMessage(ctx context.Context, chatID int64, v *chatView) {
	role := v.dashboard.Active()
	view := v.dashboard.Collection(role).Snapshot()
	page := renderList(view, v.page(role), b.pageSize(), b.now())
	v.setPage(role, page.Page)

	if messageID := v.listMessage(); messageID != 0 {
		if _, err := b.tgService.EditMessage(chatID, messageID, page.Text, &page.Markup); err != nil {
			logging.FromContext(ctx, b.logger).Debug().Err(err).Int("message_id", messageID).Msg("Failed to edit list")
		}
		return
	}

	sent, err := b.tgService.SendPage(chatID, page.Text, &page.Markup)
	if err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Msg("Failed to send list")
		return
	}
	v.setListMessage(sent.MessageID)
}

func (b *Bot) handleBookingDetail(ctx context.Context, chatID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || id <= 0 {
		b.sendMessage(chatID, "Usage: /booking <id>")
		return
	}

	v, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	session, err := b.sessions.Current(ctx, chatID)
	if err != nil {
		b.forgetOnUnauthenticated(chatID, err)
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	booking, err := b.gateway.GetBooking(ctx, session, id)
	if err != nil {
		b.forgetOnUnauthenticated(chatID, err)
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	role := b.roleFor(ctx, chatID, v, id)
	var view *collection.View
	if role != "" {
		snapshot := v.dashboard.Collection(role).Snapshot()
		view = &snapshot
	}
	text, markup := renderDetail(*booking, role, view, b.now())
	if _, err := b.tgService.SendPage(chatID, text, markup); err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Msg("Failed to send booking")
	}
}

// roleFor finds which of the chat's lists holds booking id, loading lists not fetched yet.
func (b *Bot) roleFor(ctx context.Context, chatID int64, v *chatView, id int64) models.Role {
	for _, role := range models.Roles {
		c := v.dashboard.Collection(role)
		if !c.Snapshot().Loaded {
			b.loadTab(ctx, chatID, v, role)
		}
		if _, ok := c.Find(id); ok {
			return role
		}
	}
	return ""
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	data := callback.Data
	chatID := callback.Message.Chat.ID

	kind := "unknown"
	defer func() {
		if b.metrics != nil {
			b.metrics.CallbacksProcessed.WithLabelValues(kind).Inc()
		}
	}()

	switch {
	case data == callbackNoop:
		kind = "noop"
		b.answer(callback.ID, "")

	case controls.IsTransitionCallback(data):
		kind = "transition"
		b.handleTransition(ctx, callback)

	case strings.HasPrefix(data, callbackTab):
		kind = "tab"
		role, err := models.ParseRole(strings.TrimPrefix(data, callbackTab))
		if err != nil {
			b.answer(callback.ID, "Unknown list")
			return
		}
		b.answer(callback.ID, "")
		b.switchTab(ctx, chatID, callback.Message.MessageID, role)

	case strings.HasPrefix(data, callbackPage):
		kind = "page"
		role, page, err := parsePageCallback(data)
		if err != nil {
			b.answer(callback.ID, "Unknown page")
			return
		}
		b.answer(callback.ID, "")
		b.turnPage(ctx, chatID, callback.Message.MessageID, role, page)

	case strings.HasPrefix(data, callbackRefresh):
		kind = "refresh"
		role, err := models.ParseRole(strings.TrimPrefix(data, callbackRefresh))
		if err != nil {
			b.answer(callback.ID, "Unknown list")
			return
		}
		b.answer(callback.ID, "Refreshing…")
		b.refresh(ctx, chatID, callback.Message.MessageID, role)

	default:
		b.answer(callback.ID, "Unknown action")
	}
}

// listView returns the chat's dashboard bound to the message the callback came from.
func (b *Bot) listView(ctx context.Context, chatID int64, messageID int, role models.Role) (*chatView, bool) {
	v, err := b.dashboard(ctx, chatID)
	if err != nil {
		if _, editErr := b.tgService.EditMessage(chatID, messageID, errorMessage(err), nil); editErr != nil {
			b.sendMessage(chatID, errorMessage(err))
		}
		return nil, false
	}
	if err := v.dashboard.SwitchTab(role); err != nil {
		return nil, false
	}
	v.setListMessage(messageID)
	return v, true
}

func (b *Bot) switchTab(ctx context.Context, chatID int64, messageID int, role models.Role) {
	v, ok := b.listView(ctx, chatID, messageID, role)
	if !ok {
		return
	}
	if !v.dashboard.Collection(role).Snapshot().Loaded {
		b.showLoading(chatID, messageID, role)
		b.loadTab(ctx, chatID, v, role)
	}
	b.renderListMessage(ctx, chatID, v)
}

func (b *Bot) turnPage(ctx context.Context, chatID int64, messageID int, role models.Role, page int) {
	v, ok := b.listView(ctx, chatID, messageID, role)
	if !ok {
		return
	}
	v.setPage(role, page)
	b.renderListMessage(ctx, chatID, v)
}

func (b *Bot) refresh(ctx context.Context, chatID int64, messageID int, role models.Role) {
	v, ok := b.listView(ctx, chatID, messageID, role)
	if !ok {
		return
	}
	v.dashboard.Collection(role).DismissNotification()
	b.showLoading(chatID, messageID, role)
	b.loadTab(ctx, chatID, v, role)
	b.renderListMessage(ctx, chatID, v)
}

func (b *Bot) showLoading(chatID int64, messageID int, role models.Role) {
	loading := loadingPage(role)
	if _, err := b.tgService.EditMessage(chatID, messageID, loading.Text, &loading.Markup); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to show loading state")
	}
}

// handleTransition runs a status change in its own goroutine so the update loop keeps
// serving other chats and bookings while the backend answers.
func (b *Bot) handleTransition(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	log := logging.FromContext(ctx, b.logger)

	action, err := controls.ParseCallback(callback.Data)
	if err != nil {
		log.Warn().Err(err).Msg("Malformed transition callback")
		b.answer(callback.ID, "Unknown action")
		return
	}

	v, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.answer(callback.ID, "Please sign in again")
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	col := v.dashboard.Collection(action.Role)

	booking, ok := col.Find(action.BookingID)
	if !ok {
		b.answer(callback.ID, "This booking is no longer in the list")
		return
	}
	if col.IsInFlight(action.BookingID) {
		b.answer(callback.ID, "⏳ Already in progress")
		return
	}
	b.answer(callback.ID, "Updating…")

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()

		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transitionTimeout)
		defer cancel()

		b.withRecovery(func() {
			start := time.Now()
			err := controls.Activate(tctx, booking, action.Role, action.Target, col.RequestTransition)
			b.observeTransition(action.Role, err, time.Since(start))

			switch {
			case errors.Is(err, collection.ErrTransitionInFlight):
				return
			case errors.Is(err, controls.ErrNoSuchControl):
				log.Warn().Err(err).Msg("Stale control activated")
			case err != nil:
				b.forgetOnUnauthenticated(chatID, err)
			}

			b.renderAfterTransition(tctx, chatID, messageID, v, action)
		})
	}()
}

// renderAfterTransition redraws the message the control was tapped in: the list, or a
// booking opened with /booking.
func (b *Bot) renderAfterTransition(ctx context.Context, chatID int64, messageID int, v *chatView, action controls.Action) {
	if messageID == v.listMessage() {
		b.renderListMessage(ctx, chatID, v)
		return
	}

	col := v.dashboard.Collection(action.Role)
	booking, ok := col.Find(action.BookingID)
	if !ok {
		return
	}
	view := col.Snapshot()
	text, markup := renderDetail(booking, action.Role, &view, b.now())
	if _, err := b.tgService.EditMessage(chatID, messageID, text, markup); err != nil {
		logging.FromContext(ctx, b.logger).Debug().Err(err).Msg("Failed to edit booking")
	}
}

func (b *Bot) observeTransition(role models.Role, err error, took time.Duration) {
	if b.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		b.metrics.ErrorsTotal.Inc()
	}
	b.metrics.TransitionDuration.WithLabelValues(role.String(), outcome).Observe(took.Seconds())
}

// forgetOnUnauthenticated drops the chat's dashboard when the backend refused the session,
// so the next command rebuilds it from a fresh login.
func (b *Bot) forgetOnUnauthenticated(chatID int64, err error) {
	if errors.Is(err, gateway.ErrUnauthenticated) {
		b.views.drop(chatID)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to answer callback")
	}
}

func parsePageCallback(data string) (models.Role, int, error) {
	parts := strings.Split(strings.TrimPrefix(data, callbackPage), ":")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed page callback: %q", data)
	}
	role, err := models.ParseRole(parts[0])
	if err != nil {
		return "", 0, err
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil || page < 0 {
		return "", 0, fmt.Errorf("invalid page in callback %q", data)
	}
	return role, page, nil
}
