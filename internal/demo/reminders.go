package demo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/domain"
)

// Reminder is one booked reminder.
type Reminder struct {
	UserID int64
	Text   string
	Due    time.Time
}

// Reminders is an in-memory reminder book.
type Reminders struct {
	mu    sync.Mutex
	items []Reminder
	now   func() time.Time
}

func NewReminders() *Reminders {
	return &Reminders{now: time.Now}
}

func (r *Reminders) add(rem Reminder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, rem)
}

// For returns the reminders booked by a user.
func (r *Reminders) For(userID int64) []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reminder
	for _, rem := range r.items {
		if rem.UserID == userID {
			out = append(out, rem)
		}
	}
	return out
}

func (b *Bot) reminderWizard() *conversation.Workflow {
	return conversation.NewWorkflow("reminder").
		On(domain.StateStart, b.remindAsk, "What").
		On("What", b.remindWhat, "What", "When").
		On("When", b.remindWhen, "When", domain.StateEnd)
}

func (b *Bot) remindAsk(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	id, err := b.out.Send(ctx, ev.ChatID, "What should I remind you about?")
	if err != nil {
		return domain.StateEnd, err
	}
	s.PinnedMessageID = id
	return "What", nil
}

func (b *Bot) remindWhat(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	text := strings.TrimSpace(ev.Payload)
	if ev.Kind != domain.KindText || text == "" {
		return "What", nil
	}
	s.Data["text"] = text
	return "When", b.send(ctx, ev, "In how long? (e.g. 30m, 2h)")
}

func (b *Bot) remindWhen(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	if ev.Kind != domain.KindText {
		return "When", nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(ev.Payload))
	if err != nil || d <= 0 {
		return "When", b.send(ctx, ev, "I did not understand that duration. Try 30m or 2h.")
	}
	text, _ := s.Data["text"].(string)
	b.reminders.add(Reminder{UserID: s.UserID, Text: text, Due: b.reminders.now().Add(d)})
	return domain.StateEnd, b.send(ctx, ev, fmt.Sprintf("Okay, I'll remind you in %s.", d))
}
