package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/pantrybot/internal/chat"
)

// API is the subset of *bot.Bot used to deliver messages.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

// Messenger implements chat.Messenger on top of the Telegram Bot API.
type Messenger struct {
	api    API
	logger *slog.Logger
}

var _ chat.Messenger = (*Messenger)(nil)

// NewMessenger wraps api. A *bot.Bot satisfies API.
func NewMessenger(api API, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{api: api, logger: logger.With("component", "messenger")}
}

// SendText sends a plain message.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := m.api.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendTextWithChoices sends text with one inline button per choice, each on its own row.
func (m *Messenger) SendTextWithChoices(ctx context.Context, chatID int64, text string, choices []chat.Choice) error {
	_, err := m.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: Keyboard(choices),
	})
	if err != nil {
		return fmt.Errorf("send choices to chat %d: %w", chatID, err)
	}
	return nil
}

// EditMessage replaces the text of messageID and drops its keyboard.
// Telegram rejects edits that change nothing; those are treated as success.
func (m *Messenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := m.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		if isNotModified(err) {
			m.logger.DebugContext(ctx, "Edit skipped, message not modified", "chat_id", chatID, "message_id", messageID)
			return nil
		}
		return fmt.Errorf("edit message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// Keyboard lays out choices as a single-column inline keyboard.
func Keyboard(choices []chat.Choice) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: c.Label, CallbackData: c.Token},
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
