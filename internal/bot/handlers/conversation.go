package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/expiry"
	"github.com/edgard/pantrybot/internal/session"
)

// eventHandler handles one event for an owner whose session is already locked.
type eventHandler interface {
	handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error
}

// Conversation routes chat events to handlers according to the sender's
// session state. Events of one owner are handled one at a time.
type Conversation struct {
	deps     HandlerDeps
	logger   *slog.Logger
	commands map[chat.Kind]eventHandler
	name     eventHandler
	products eventHandler
	choice   eventHandler
}

// NewConversation wires every handler to deps.
func NewConversation(deps HandlerDeps) *Conversation {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(deps.Logger)
	}

	return &Conversation{
		deps:   deps,
		logger: deps.Logger.With("component", "conversation"),
		commands: map[chat.Kind]eventHandler{
			chat.StartCommand:  startHandler{deps},
			chat.AddCommand:    addHandler{deps},
			chat.ListCommand:   listHandler{deps},
			chat.DeleteCommand: deleteHandler{deps},
			chat.HelpCommand:   helpHandler{deps},
			chat.CancelCommand: cancelHandler{deps},
		},
		name:     nameHandler{deps},
		products: productsHandler{deps},
		choice:   selectionHandler{deps},
	}
}

func (c *Conversation) route(sess *session.Session, ev chat.Event) eventHandler {
	switch ev.Kind {
	case chat.FreeText:
		switch sess.State() {
		case session.StateAwaitingName:
			return c.name
		case session.StateAwaitingProducts:
			return c.products
		}
		return nil
	case chat.Selection:
		if sess.State() == session.StateAwaitingDeleteChoice {
			return c.choice
		}
		return nil
	default:
		return c.commands[ev.Kind]
	}
}

// Handle processes ev and replies through m. Events that do not apply to the
// owner's current state are ignored. Handler failures are logged and answered
// with the generic error message.
func (c *Conversation) Handle(ctx context.Context, m chat.Messenger, ev chat.Event) {
	log := c.logger.With("kind", ev.Kind.String(), "owner_id", ev.OwnerID, "chat_id", ev.ChatID)

	sess := c.deps.Sessions.Get(ev.OwnerID)
	sess.Lock()
	defer sess.Unlock()

	h := c.route(sess, ev)
	if h == nil {
		log.DebugContext(ctx, "Ignoring event in current state", "state", sess.State())
		c.count(ev, "ignored")
		return
	}

	err := h.handle(ctx, m, sess, ev)
	switch {
	case err == nil:
		c.count(ev, "ok")
	case errors.Is(err, session.ErrInvalidTransition):
		log.DebugContext(ctx, "Event not valid in current state", "state", sess.State(), "error", err)
		c.count(ev, "ignored")
	default:
		log.ErrorContext(ctx, "Failed to handle event", "state", sess.State(), "error", err)
		c.count(ev, "error")
		if sendErr := m.SendText(ctx, ev.ChatID, c.deps.Config.Messages.GeneralError); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr)
		}
	}
}

func (c *Conversation) count(ev chat.Event, outcome string) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.Events.WithLabelValues(ev.Kind.String(), outcome).Inc()
	}
}

// today returns the current time in the configured zone and the year
// day.month expiry values are read in.
func (d HandlerDeps) today() (time.Time, int) {
	loc, err := d.Config.Location()
	if err != nil {
		loc = time.Local
	}
	now := d.Clock.Now().In(loc)
	return now, expiry.YearPolicy{FixedYear: d.Config.Expiry.FixedYear}.Year(now)
}

// EventFromUpdate converts a Telegram update into an event of the given kind.
// Callback queries always become Selection events.
func EventFromUpdate(update *models.Update, kind chat.Kind) (chat.Event, bool) {
	switch {
	case update == nil:
		return chat.Event{}, false
	case update.Message != nil:
		if update.Message.From == nil {
			return chat.Event{}, false
		}
		return chat.Event{
			Kind:      kind,
			OwnerID:   update.Message.From.ID,
			ChatID:    update.Message.Chat.ID,
			MessageID: update.Message.ID,
			Text:      update.Message.Text,
		}, true
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		ev := chat.Event{
			Kind:    chat.Selection,
			OwnerID: cq.From.ID,
			ChatID:  cq.From.ID,
			Token:   cq.Data,
		}
		if msg := cq.Message.Message; msg != nil {
			ev.ChatID, ev.MessageID = msg.Chat.ID, msg.ID
		} else if im := cq.Message.InaccessibleMessage; im != nil {
			ev.ChatID, ev.MessageID = im.Chat.ID, im.MessageID
		}
		return ev, true
	default:
		return chat.Event{}, false
	}
}

// newUpdateHandler adapts conv to a tgbot handler for events of kind.
func newUpdateHandler(deps HandlerDeps, conv *Conversation, kind chat.Kind) tgbot.HandlerFunc {
	log := deps.Logger.With("handler", kind.String())

	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		if update.CallbackQuery != nil && b != nil {
			_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
			if err != nil {
				log.WarnContext(ctx, "Failed to answer callback query", "error", err, "callback_query_id", update.CallbackQuery.ID)
			}
		}

		ev, ok := EventFromUpdate(update, kind)
		if !ok {
			log.WarnContext(ctx, "Handler received update with nil message or sender", "update_id", update.ID)
			return
		}
		if kind == chat.FreeText && ev.Kind == chat.Selection {
			log.DebugContext(ctx, "Ignoring callback query with unknown data", "owner_id", ev.OwnerID, "data", ev.Token)
			return
		}
		if ev.Kind == chat.FreeText && (strings.TrimSpace(ev.Text) == "" || strings.HasPrefix(ev.Text, "/")) {
			log.DebugContext(ctx, "Ignoring empty text or unknown command", "owner_id", ev.OwnerID)
			return
		}

		conv.Handle(ctx, deps.NewMessenger(b), ev)
	}
}
