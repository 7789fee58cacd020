package handlers

import (
	"context"
	"fmt"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/expiry"
	"github.com/edgard/pantrybot/internal/session"
)

// listHandler renders the owner's items grouped by urgency.
type listHandler struct {
	deps HandlerDeps
}

func (h listHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "list")

	items, err := h.deps.Store.ListItemsByOwner(ctx, sess.OwnerID())
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	today, year := h.deps.today()
	msgs := h.deps.Config.Messages
	buckets := expiry.Bucket(database.Entries(items), today, year)

	text := msgs.ListEmpty
	if !buckets.Empty() {
		text = expiry.Render(buckets, expiry.Headers{
			Expired: msgs.ExpiredHeader,
			Warning: msgs.WarningHeader,
			Fresh:   msgs.FreshHeader,
		})
	}

	log.DebugContext(ctx, "Rendering list", "owner_id", ev.OwnerID, "count", len(items))
	if err := m.SendText(ctx, ev.ChatID, text); err != nil {
		return fmt.Errorf("failed to send list: %w", err)
	}
	return nil
}
