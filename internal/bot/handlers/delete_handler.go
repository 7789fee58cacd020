package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/session"
)

// DeletePrefix starts the callback data of every delete picker button.
const DeletePrefix = "del_"

// DeleteToken is the callback data for deleting row id.
func DeleteToken(id int64) string {
	return DeletePrefix + strconv.FormatInt(id, 10)
}

// ParseDeleteToken extracts the row id from a picker token.
func ParseDeleteToken(token string) (int64, bool) {
	raw, ok := strings.CutPrefix(token, DeletePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// deleteHandler shows one button per item.
type deleteHandler struct {
	deps HandlerDeps
}

func (h deleteHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "delete")

	items, err := h.deps.Store.ListItemsByOwner(ctx, sess.OwnerID())
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	if len(items) == 0 {
		if sess.Can(session.EventCancel) {
			if err := sess.Fire(ctx, session.EventCancel); err != nil {
				return err
			}
		}
		if err := m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.ListEmpty); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
		return nil
	}

	choices := make([]chat.Choice, 0, len(items))
	for _, it := range items {
		choices = append(choices, chat.Choice{Label: it.Name, Token: DeleteToken(it.ID)})
	}

	log.InfoContext(ctx, "Showing delete picker", "owner_id", ev.OwnerID, "count", len(choices))
	if err := m.SendTextWithChoices(ctx, ev.ChatID, h.deps.Config.Messages.DeletePrompt, choices); err != nil {
		return fmt.Errorf("failed to send delete picker: %w", err)
	}
	return sess.Fire(ctx, session.EventDelete)
}

// selectionHandler deletes the row picked in the delete picker and replaces
// the picker with the outcome. The session returns to idle either way.
type selectionHandler struct {
	deps HandlerDeps
}

func (h selectionHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "selection")

	if err := sess.Fire(ctx, session.EventSelect); err != nil {
		return err
	}

	msgs := h.deps.Config.Messages
	reply := msgs.DeleteFailed

	if id, ok := ParseDeleteToken(ev.Token); ok {
		name, deleted, err := h.deps.Store.DeleteItem(ctx, sess.OwnerID(), id)
		if err != nil {
			return fmt.Errorf("failed to delete item %d: %w", id, err)
		}
		if deleted {
			log.InfoContext(ctx, "Item deleted", "owner_id", ev.OwnerID, "item_id", id)
			if h.deps.Metrics != nil {
				h.deps.Metrics.ItemsDeleted.Inc()
			}
			reply = fmt.Sprintf(msgs.DeletedFmt, name)
		} else {
			log.InfoContext(ctx, "Selected item no longer exists", "owner_id", ev.OwnerID, "item_id", id)
		}
	} else {
		log.WarnContext(ctx, "Malformed delete token", "owner_id", ev.OwnerID, "token", ev.Token)
	}

	if ev.MessageID == 0 {
		if err := m.SendText(ctx, ev.ChatID, reply); err != nil {
			return fmt.Errorf("failed to send delete result: %w", err)
		}
		return nil
	}
	if err := m.EditMessage(ctx, ev.ChatID, ev.MessageID, reply); err != nil {
		return fmt.Errorf("failed to edit delete picker: %w", err)
	}
	return nil
}
