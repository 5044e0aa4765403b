package domain

import (
	"strings"
)

// EventKind classifies an inbound platform event.
type EventKind string

const (
	KindCommand  EventKind = "command"  // Slash command ("/settings")
	KindCallback EventKind = "callback" // Inline-button callback payload
	KindText     EventKind = "text"     // Free-text message
	KindOther    EventKind = "other"    // Payments, membership changes, etc.
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindCommand, KindCallback, KindText, KindOther:
		return true
	}
	return false
}

// ChatType is the kind of chat the event originated from.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroup reports whether the chat is a group or a supergroup.
func (c ChatType) IsGroup() bool {
	return c == ChatGroup || c == ChatSupergroup
}

// Event is one normalized inbound unit from the chat platform.
//
// Cancellation is not a field: the context.Context handed to the dispatcher
// together with the event carries it.
type Event struct {
	// ID correlates logs and telemetry for this event.
	ID string `json:"id,omitempty"`

	ActorID  int64    `json:"actor_id"`
	ChatID   int64    `json:"chat_id"`
	ChatType ChatType `json:"chat_type"`

	// OriginMessageID is the message carrying the button that produced a callback.
	OriginMessageID int `json:"origin_message_id,omitempty"`

	Kind EventKind `json:"kind"`

	// Payload is the raw command line, callback data or message text.
	Payload string `json:"payload"`
}

// Command splits a command payload into its lower-cased name and the
// remaining arguments. A leading "/" and a trailing "@botname" are stripped.
// It returns an empty name for non-command events.
func (e Event) Command() (name string, args string) {
	if e.Kind != KindCommand {
		return "", ""
	}
	payload := strings.TrimSpace(e.Payload)
	payload = strings.TrimPrefix(payload, "/")

	head, rest, _ := strings.Cut(payload, " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}
