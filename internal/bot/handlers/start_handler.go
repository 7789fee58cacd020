package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/session"
)

// startHandler greets the user and asks for a name.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "start")
	log.InfoContext(ctx, "Handling /start command", "chat_id", ev.ChatID, "owner_id", ev.OwnerID)

	if err := m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.Greeting); err != nil {
		return fmt.Errorf("failed to send greeting: %w", err)
	}
	return sess.Fire(ctx, session.EventStart)
}

// nameHandler captures the name typed after /start.
type nameHandler struct {
	deps HandlerDeps
}

func (h nameHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "name")

	name, _, _ := strings.Cut(strings.TrimSpace(ev.Text), "\n")
	name = strings.TrimSpace(name)
	sess.Set(session.KeyName, name)
	if err := sess.Fire(ctx, session.EventName); err != nil {
		return err
	}

	log.DebugContext(ctx, "Captured name", "owner_id", ev.OwnerID)
	if err := m.SendText(ctx, ev.ChatID, fmt.Sprintf(h.deps.Config.Messages.NiceToMeetFmt, name)); err != nil {
		return fmt.Errorf("failed to send acknowledgement: %w", err)
	}
	return nil
}
