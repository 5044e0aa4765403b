package demo

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/relay/pkg/domain"
)

// Messenger is the outbound side the demo handlers talk to.
type Messenger interface {
	// Send posts a new message and returns its id.
	Send(ctx context.Context, chatID int64, text string) (int, error)
	// Edit replaces the text of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

// LogMessenger writes outbound messages to a logger. It is used when no
// chat platform is attached (webhook and MCP modes).
type LogMessenger struct {
	Logger *slog.Logger
	nextID atomic.Int64
}

func (m *LogMessenger) Send(ctx context.Context, chatID int64, text string) (int, error) {
	id := int(m.nextID.Add(1))
	m.Logger.Info("send", "chat_id", chatID, "message_id", id, "text", text)
	return id, nil
}

func (m *LogMessenger) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	m.Logger.Info("edit", "chat_id", chatID, "message_id", messageID, "text", text)
	return nil
}

// Notify implements ports.Notifier by sending the notice as a message.
func (m *LogMessenger) Notify(ctx context.Context, ev domain.Event, text string) error {
	m.Logger.Info("notice", "chat_id", ev.ChatID, "user_id", ev.ActorID, "text", text)
	return nil
}
