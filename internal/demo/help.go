package demo

import (
	"context"

	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
)

const helpPrefix = "HELP"

var helpTopics = map[string]string{
	"commands":  "/ping, /whoami, /settings, /remind, /greeting",
	"settings":  "Use /settings in a group to change language and notifications.",
	"reminders": "Use /remind in a private chat to book a reminder.",
}

// helpMenu posts the button that opens the help browser.
func (b *Bot) helpMenu(ctx context.Context, ev domain.Event) error {
	return b.send(ctx, ev, menu("Need help?", "HELP+commands", "HELP+settings", "HELP+reminders"))
}

func (b *Bot) help() *conversation.Workflow {
	return conversation.NewWorkflow("help").
		On(domain.StateStart, b.helpShow, "Browse", domain.StateEnd).
		On("Browse", b.helpShow, "Browse", domain.StateEnd)
}

func (b *Bot) helpShow(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	args := routing.CallbackArgs(helpPrefix, ev.Payload)
	if ev.Kind != domain.KindCallback {
		return "Browse", nil
	}
	if len(args) == 0 || args[0] == "close" {
		return domain.StateEnd, b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID, "Help closed.")
	}
	text, ok := helpTopics[args[0]]
	if !ok {
		text = "Unknown topic."
	}
	s.Data["topic"] = args[0]
	return "Browse", b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID,
		menu(text, "HELP+commands", "HELP+settings", "HELP+reminders", "HELP+close"))
}
