// Package chat defines the boundary between the bot logic and the messaging
// transport: the inbound events the handlers understand and the outbound
// operations they need.
package chat

import "context"

// Kind identifies an inbound event.
type Kind int

const (
	StartCommand Kind = iota
	AddCommand
	ListCommand
	DeleteCommand
	HelpCommand
	CancelCommand
	FreeText
	Selection
)

func (k Kind) String() string {
	switch k {
	case StartCommand:
		return "start"
	case AddCommand:
		return "add"
	case ListCommand:
		return "list"
	case DeleteCommand:
		return "delete"
	case HelpCommand:
		return "help"
	case CancelCommand:
		return "cancel"
	case FreeText:
		return "text"
	case Selection:
		return "selection"
	default:
		return "unknown"
	}
}

// Event is one inbound interaction from a user.
type Event struct {
	Kind    Kind
	OwnerID int64
	ChatID  int64
	// MessageID is the message a Selection was made on.
	MessageID int
	Text      string
	Token     string
}

// Choice is a selectable control attached to an outbound message.
type Choice struct {
	Label string
	Token string
}

// Messenger delivers outbound messages.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTextWithChoices(ctx context.Context, chatID int64, text string, choices []Choice) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
}
