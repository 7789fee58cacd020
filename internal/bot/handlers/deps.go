package handlers

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/metrics"
	"github.com/edgard/pantrybot/internal/session"
)

// MessengerFactory builds the outbound side for the bot an update arrived on.
type MessengerFactory func(b *tgbot.Bot) chat.Messenger

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        database.Store
	Sessions     *session.Manager
	Clock        clockwork.Clock
	Metrics      *metrics.Metrics
	NewMessenger MessengerFactory
}
