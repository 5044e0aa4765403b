package domain

import "time"

const (
	// StateStart is the state of a freshly created session.
	StateStart = "Start"

	// StateEnd is returned by a step to terminate the conversation.
	StateEnd = ""
)

// Session is the live state of one user's multi-step conversation.
// At most one session exists per user.
type Session struct {
	UserID   int64  `json:"user_id"`
	ChatID   int64  `json:"chat_id"`
	Workflow string `json:"workflow"`
	State    string `json:"state"`

	// PinnedMessageID is the chat message currently rendering this session's menu.
	PinnedMessageID int `json:"pinned_message_id"`

	// Data holds workflow variables between steps.
	Data map[string]any `json:"data"`

	UpdatedAt time.Time `json:"updated_at"`

	// StaleMenu is set for the duration of a step when the callback came from
	// a message other than the pinned one. It is never persisted.
	StaleMenu bool `json:"-"`
}

// NewSession creates a session for the given workflow in StateStart.
func NewSession(userID, chatID int64, workflow string) *Session {
	return &Session{
		UserID:    userID,
		ChatID:    chatID,
		Workflow:  workflow,
		State:     StateStart,
		Data:      make(map[string]any),
		UpdatedAt: time.Now(),
	}
}

// Clone returns a copy whose Data map can be mutated independently.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		c.Data[k] = v
	}
	return &c
}

// Pins reports whether the session's menu is the given message in the given chat.
// A session without a recorded chat matches on the message id alone.
func (s *Session) Pins(chatID int64, messageID int) bool {
	if s.PinnedMessageID == 0 || s.PinnedMessageID != messageID {
		return false
	}
	return s.ChatID == 0 || chatID == 0 || s.ChatID == chatID
}
