package demo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
)

const settingsPrefix = "SET"

var languages = []string{"en", "pt", "es"}

func (b *Bot) settings() *conversation.Workflow {
	return conversation.NewWorkflow("settings").
		On(domain.StateStart, b.settingsOpen, "Menu").
		On("Menu", b.settingsMenu, "Menu", "Language", domain.StateEnd).
		On("Language", b.settingsLanguage, "Menu", "Language", domain.StateEnd)
}

func settingsText(s *domain.Session) string {
	lang, _ := s.Data["lang"].(string)
	if lang == "" {
		lang = "en"
	}
	notify, _ := s.Data["notify"].(bool)
	return menu(fmt.Sprintf("Settings (language: %s, notifications: %t)", lang, notify),
		"SET+lang", "SET+notify", "SET+close")
}

func (b *Bot) settingsOpen(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	id, err := b.out.Send(ctx, ev.ChatID, settingsText(s))
	if err != nil {
		return domain.StateEnd, err
	}
	s.PinnedMessageID = id
	return "Menu", nil
}

// redraw edits the pinned menu, or posts a fresh one when the user clicked
// an older copy of it.
func (b *Bot) redraw(ctx context.Context, ev domain.Event, s *domain.Session, text string) error {
	if s.StaleMenu {
		_ = b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID, "This menu is outdated.")
		id, err := b.out.Send(ctx, ev.ChatID, text)
		if err != nil {
			return err
		}
		s.PinnedMessageID = id
		return nil
	}
	return b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID, text)
}

func (b *Bot) settingsMenu(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	if ev.Kind != domain.KindCallback {
		return "Menu", nil
	}
	switch strings.Join(routing.CallbackArgs(settingsPrefix, ev.Payload), "+") {
	case "lang":
		return "Language", b.redraw(ctx, ev, s, menu("Pick a language", "SET+lang+en", "SET+lang+pt", "SET+lang+es", "SET+back"))
	case "notify":
		on, _ := s.Data["notify"].(bool)
		s.Data["notify"] = !on
		return "Menu", b.redraw(ctx, ev, s, settingsText(s))
	case "close":
		return domain.StateEnd, b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID, "Settings saved.")
	}
	return "Menu", nil
}

func (b *Bot) settingsLanguage(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	if ev.Kind != domain.KindCallback {
		return "Language", nil
	}
	args := routing.CallbackArgs(settingsPrefix, ev.Payload)
	switch {
	case len(args) == 2 && args[0] == "lang":
		for _, l := range languages {
			if l == args[1] {
				s.Data["lang"] = l
			}
		}
		return "Menu", b.redraw(ctx, ev, s, settingsText(s))
	case len(args) == 1 && args[0] == "back":
		return "Menu", b.redraw(ctx, ev, s, settingsText(s))
	case len(args) == 1 && args[0] == "close":
		return domain.StateEnd, b.out.Edit(ctx, ev.ChatID, s.PinnedMessageID, "Settings saved.")
	}
	return "Language", nil
}
