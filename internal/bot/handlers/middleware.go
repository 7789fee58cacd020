// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// SenderRequired creates a middleware that drops updates with no identifiable
// sender. Every item and session is keyed by the sender's user id, so such
// updates cannot be handled.
func SenderRequired(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			switch {
			case update.Message != nil && update.Message.From != nil:
			case update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0:
			default:
				deps.Logger.With("middleware", "SenderRequired").
					DebugContext(ctx, "Dropping update without sender", "update_id", update.ID)
				return
			}
			next(ctx, bot, update)
		}
	}
}
