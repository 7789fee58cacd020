package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/session"
)

// Product is one name/expiry pair read from a bulk add message.
type Product struct {
	Name   string
	Expiry string
}

// ParseProducts reads alternating name and date lines. A trailing line
// without a date is dropped, as are pairs whose name line is blank.
func ParseProducts(text string) []Product {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	var out []Product
	for i := 0; i+1 < len(lines); i += 2 {
		name := strings.TrimSpace(lines[i])
		if name == "" {
			continue
		}
		out = append(out, Product{Name: name, Expiry: strings.TrimSpace(lines[i+1])})
	}
	return out
}

// addHandler prompts for products.
type addHandler struct {
	deps HandlerDeps
}

func (h addHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	h.deps.Logger.With("handler", "add").InfoContext(ctx, "Handling /add command", "chat_id", ev.ChatID, "owner_id", ev.OwnerID)

	if err := m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.AddPrompt); err != nil {
		return fmt.Errorf("failed to send add prompt: %w", err)
	}
	return sess.Fire(ctx, session.EventAdd)
}

// productsHandler stores the pairs sent after /add. The session returns to
// idle whether or not anything was stored.
type productsHandler struct {
	deps HandlerDeps
}

func (h productsHandler) handle(ctx context.Context, m chat.Messenger, sess *session.Session, ev chat.Event) error {
	log := h.deps.Logger.With("handler", "products")

	if err := sess.Fire(ctx, session.EventProducts); err != nil {
		return err
	}

	products := ParseProducts(ev.Text)
	if len(products) == 0 {
		log.InfoContext(ctx, "No complete product pairs in message", "owner_id", ev.OwnerID)
		if err := m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.NothingAdded); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
		return nil
	}

	added := make([]string, 0, len(products))
	for _, p := range products {
		if _, err := h.deps.Store.InsertItem(ctx, sess.OwnerID(), p.Name, p.Expiry); err != nil {
			return fmt.Errorf("failed to add %q after %d of %d items: %w", p.Name, len(added), len(products), err)
		}
		if h.deps.Metrics != nil {
			h.deps.Metrics.ItemsAdded.Inc()
		}
		added = append(added, fmt.Sprintf("%s (%s)", p.Name, p.Expiry))
	}

	log.InfoContext(ctx, "Items added", "owner_id", ev.OwnerID, "count", len(added))
	if err := m.SendText(ctx, ev.ChatID, h.deps.Config.Messages.AddedPrefix+strings.Join(added, ", ")); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	return nil
}
