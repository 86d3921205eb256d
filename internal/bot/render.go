package bot

import (
	"fmt"
	"strings"
	"time"

	"petsitting/internal/collection"
	"petsitting/internal/controls"
	"petsitting/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackTab     = "tab:"
	callbackPage    = "page:"
	callbackRefresh = "refresh:"
	callbackNoop    = "noop"
)

var listTitles = map[models.Role]string{
	models.RoleOwner:  "🐾 My pet bookings",
	models.RoleSitter: "🐕 My sitting requests",
}

var statusEmoji = map[models.Status]string{
	models.StatusPending:   "⏳",
	models.StatusConfirmed: "✅",
	models.StatusRejected:  "🚫",
	models.StatusCancelled: "❌",
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// renderedPage is one screen of a booking list.
type renderedPage struct {
	Text   string
	Markup tgbotapi.InlineKeyboardMarkup
	Page   int
}

// renderList draws the active tab of a dashboard. page is clamped to the available pages.
func renderList(view collection.View, page, pageSize int, now time.Time) renderedPage {
	if pageSize <= 0 {
		pageSize = models.DefaultPaginationSize
	}

	var text strings.Builder
	var keyboard [][]tgbotapi.InlineKeyboardButton

	text.WriteString(fmt.Sprintf("*%s*\n\n", listTitles[view.Role]))

	total := len(view.Bookings)
	totalPages := (total + pageSize - 1) / pageSize
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}

	switch {
	case view.Loading:
		text.WriteString("⏳ Loading…\n")
	case view.Err != nil:
		text.WriteString(errorMessage(view.Err))
		text.WriteString("\n")
	case !view.Loaded:
		text.WriteString("Press Refresh to load your bookings.\n")
	case total == 0:
		text.WriteString("You have no bookings yet.\n")
	default:
		if totalPages > 1 {
			text.WriteString(fmt.Sprintf("Page %d of %d\n\n", page+1, totalPages))
		}
		start := page * pageSize
		end := start + pageSize
		if end > total {
			end = total
		}
		for _, booking := range view.Bookings[start:end] {
			text.WriteString(renderCard(booking, view.Role, now))
			text.WriteString("\n")

			if view.InFlight[booking.ID] {
				keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⏳ Updating #%d…", booking.ID), callbackNoop),
				))
				continue
			}
			if row := controls.KeyboardRow(booking, view.Role); row != nil {
				keyboard = append(keyboard, row)
			}
		}

		var nav []tgbotapi.InlineKeyboardButton
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", pageCallback(view.Role, page-1)))
		}
		if end < total {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", pageCallback(view.Role, page+1)))
		}
		if len(nav) > 0 {
			keyboard = append(keyboard, nav)
		}
	}

	if view.ActionErr != nil {
		text.WriteString("\n")
		text.WriteString(errorMessage(view.ActionErr))
		text.WriteString("\n")
	} else if view.Notification != "" {
		text.WriteString("\nℹ️ ")
		text.WriteString(escape(view.Notification))
		text.WriteString("\n")
	}

	keyboard = append(keyboard, tabRow(view.Role), tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", callbackRefresh+view.Role.String()),
	))

	return renderedPage{
		Text:   text.String(),
		Markup: tgbotapi.NewInlineKeyboardMarkup(keyboard...),
		Page:   page,
	}
}

// renderCard draws one booking. Cancelled and rejected bookings are shown in italics.
func renderCard(b models.Booking, role models.Role, now time.Time) string {
	var card strings.Builder

	emoji := statusEmoji[b.Status]
	if emoji == "" {
		emoji = "❔"
	}
	header := fmt.Sprintf("#%d %s", b.ID, escape(b.ServiceTitle))
	if b.Muted() {
		card.WriteString(fmt.Sprintf("%s _%s_\n", emoji, header))
	} else {
		card.WriteString(fmt.Sprintf("%s *%s*\n", emoji, header))
	}

	if b.PetName != "" {
		card.WriteString(fmt.Sprintf("   🐶 %s\n", escape(b.PetName)))
	}
	if other := b.Counterpart(role); other != "" {
		label := "Sitter"
		if role == models.RoleSitter {
			label = "Owner"
		}
		card.WriteString(fmt.Sprintf("   👤 %s: %s\n", label, escape(other)))
	}
	card.WriteString(fmt.Sprintf("   💰 %s\n", b.Price.StringFixed(2)))
	card.WriteString(fmt.Sprintf("   📅 %s → %s\n", b.StartDate, b.EndDate))
	card.WriteString(fmt.Sprintf("   Status: %s\n", b.Status))

	if role == models.RoleOwner && b.ReviewAvailable(now) {
		card.WriteString(fmt.Sprintf("   ⭐ The stay is over, you can leave a review for %s.\n", escape(b.SitterName)))
	}
	return card.String()
}

// renderDetail draws a single booking opened with /booking. role is empty when the booking
// is in neither list; no controls are offered then.
func renderDetail(b models.Booking, role models.Role, view *collection.View, now time.Time) (string, *tgbotapi.InlineKeyboardMarkup) {
	var text strings.Builder
	text.WriteString(renderCard(b, role, now))

	if view != nil {
		if view.ActionErr != nil {
			text.WriteString("\n")
			text.WriteString(errorMessage(view.ActionErr))
			text.WriteString("\n")
		} else if view.Notification != "" {
			text.WriteString("\nℹ️ ")
			text.WriteString(escape(view.Notification))
			text.WriteString("\n")
		}
		if view.InFlight[b.ID] {
			markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⏳ Updating #%d…", b.ID), callbackNoop),
			))
			return text.String(), &markup
		}
	}

	if role == "" {
		return text.String(), nil
	}
	return text.String(), controls.Keyboard(b, role)
}

func tabRow(active models.Role) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(models.Roles))
	for _, role := range models.Roles {
		label := listTitles[role]
		if role == active {
			label = "• " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackTab+role.String()))
	}
	return row
}

func pageCallback(role models.Role, page int) string {
	return fmt.Sprintf("%s%s:%d", callbackPage, role, page)
}

func loadingPage(role models.Role) renderedPage {
	return renderList(collection.View{Role: role, Loading: true}, 0, 1, time.Now())
}
