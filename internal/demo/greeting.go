package demo

import (
	"context"
	"strings"

	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/domain"
)

const maxGreeting = 200

func (b *Bot) greetingEditor() *conversation.Workflow {
	return conversation.NewWorkflow("greeting-editor").
		On(domain.StateStart, b.greetingAsk, "Await").
		On("Await", b.greetingSave, "Await", domain.StateEnd)
}

func (b *Bot) greetingAsk(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	id, err := b.out.Send(ctx, ev.ChatID, menu("Send the new greeting for this chat.", "GREET+cancel"))
	if err != nil {
		return domain.StateEnd, err
	}
	s.PinnedMessageID = id
	return "Await", nil
}

func (b *Bot) greetingSave(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	switch ev.Kind {
	case domain.KindCallback:
		if ev.Payload == "GREET+cancel" {
			return domain.StateEnd, b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID, "Greeting unchanged.")
		}
		return "Await", nil
	case domain.KindText:
		text := strings.TrimSpace(ev.Payload)
		if text == "" || len(text) > maxGreeting {
			return "Await", b.send(ctx, ev, "The greeting must be 1 to 200 characters.")
		}
		b.greetings.Store(s.ChatID, text)
		return domain.StateEnd, b.send(ctx, ev, "Greeting updated.")
	}
	return "Await", nil
}
