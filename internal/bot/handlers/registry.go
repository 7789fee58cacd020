package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/pantrybot/internal/chat"
)

// RegisteredHandler represents a command handler with its match rules and middleware.
// It encapsulates all information needed to register a handler with the bot.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all bot commands and
// the delete picker callback, all routed through one Conversation.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	conv := NewConversation(deps)
	deps = conv.deps
	mw := []tgbot.Middleware{SenderRequired(deps)}

	command := func(pattern string, kind chat.Kind) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     newUpdateHandler(deps, conv, kind),
			Middleware:  mw,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		}
	}

	handlers := make(map[string]RegisteredHandler)
	handlers["/start"] = command("start", chat.StartCommand)
	handlers["/add"] = command("add", chat.AddCommand)
	handlers["/list"] = command("list", chat.ListCommand)
	handlers["/delete"] = command("delete", chat.DeleteCommand)
	handlers["/help"] = command("help", chat.HelpCommand)
	handlers["/cancel"] = command("cancel", chat.CancelCommand)

	handlers[DeletePrefix] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     DeletePrefix,
		Handler:     newUpdateHandler(deps, conv, chat.Selection),
		Middleware:  mw,
		MatchType:   tgbot.MatchTypePrefix,
	}

	deps.Logger.Info("Initialized command handlers", "count", len(handlers))
	return handlers
}

// NewDefaultHandler returns the handler for updates no command matched:
// plain text replies to a pending prompt, and stray callback queries.
func NewDefaultHandler(deps HandlerDeps) tgbot.HandlerFunc {
	conv := NewConversation(deps)
	deps = conv.deps
	return SenderRequired(deps)(newUpdateHandler(deps, conv, chat.FreeText))
}
