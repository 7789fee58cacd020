package handlers

import (
	"context"
	"fmt"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/session"
)

// helpHandler prints the command vocabulary. It does not touch the session.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) handle(ctx context.Context, m chat.Messenger, _ *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "help")
	log.InfoContext(ctx, "Handling /help command", "chat_id", ev.ChatID, "owner_id", ev.OwnerID)

	if err := m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.Help); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}
	return nil
}

// cancelHandler abandons whatever prompt is pending.
type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	msg := h.deps.Config.Messages.NothingToCancel
	if sess.Can(session.EventCancel) {
		h.deps.Logger.With("handler", "cancel").InfoContext(ctx, "Cancelling pending prompt",
			"owner_id", ev.OwnerID, "state", sess.State())
		if err := sess.Fire(ctx, session.EventCancel); err != nil {
			return err
		}
		msg = h.deps.Config.Messages.Cancelled
	}

	if err := m.SendText(ctx, ev.ChatID, msg); err != nil {
		return fmt.Errorf("failed to send cancel reply: %w", err)
	}
	return nil
}
