// Package demo registers a small bot used by the relay CLI: a settings menu,
// a help browser started from buttons, a greeting editor for admins, a
// reminder wizard and a few plain commands and text triggers.
package demo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
)

// SessionLister reports active sessions.
type SessionLister interface {
	List(ctx context.Context) ([]*domain.Session, error)
}

// Bot holds the demo's shared state.
type Bot struct {
	out       Messenger
	sessions  SessionLister
	greetings sync.Map // chat id -> string
	reminders *Reminders
}

// New creates the demo bot.
func New(out Messenger, sessions SessionLister) *Bot {
	return &Bot{out: out, sessions: sessions, reminders: NewReminders()}
}

// Reminders returns the reminders booked through the wizard.
func (b *Bot) Reminders() *Reminders { return b.reminders }

// Workflows lists the conversation definitions, for graph and validate.
func (b *Bot) Workflows() []*conversation.Workflow {
	return []*conversation.Workflow{b.settings(), b.help(), b.greetingEditor(), b.reminderWizard()}
}

// Routes registers every demo route.
func (b *Bot) Routes() []routing.Route {
	r := routing.NewBuilder()

	r.Command("start", b.reply("Hi! Try /settings in a group, /remind in private, or /help."))
	r.Command("ping", b.reply("pong")).Aliases("p")
	r.Command("whoami", b.whoami)
	r.Command("help", b.helpMenu)
	r.Command("sessions", b.sessionCount).DevOnly()
	r.Command("legacy", b.reply("This command was retired.")).Inactive()

	r.Callback("page", "PAGE", b.page)

	r.Text("greeting", `(?i)\b(hello|hi)\b`, b.greet).GroupOnly()
	r.Text("thanks", `(?i)\bthank(s| you)\b`, b.reply("You're welcome!"))

	r.Conversation("settings", b.settings()).Trigger("settings").GroupOnly()
	r.Conversation("help", b.help()).EntryOnCallback(helpPrefix)
	r.Conversation("greeting-editor", b.greetingEditor()).Trigger("greeting").GroupOnly().AdminOnly()
	r.Conversation("reminder", b.reminderWizard()).Trigger("remind").PrivateOnly()

	return r.Routes()
}

// Table builds the route table.
func (b *Bot) Table(opts ...routing.BuildOption) *routing.Table {
	return routing.Build(b.Routes(), opts...)
}

func (b *Bot) send(ctx context.Context, ev domain.Event, text string) error {
	_, err := b.out.Send(ctx, ev.ChatID, text)
	return err
}

func (b *Bot) reply(text string) routing.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		return b.send(ctx, ev, text)
	}
}

func (b *Bot) whoami(ctx context.Context, ev domain.Event) error {
	return b.send(ctx, ev, fmt.Sprintf("user %d in %s chat %d", ev.ActorID, ev.ChatType, ev.ChatID))
}

func (b *Bot) sessionCount(ctx context.Context, ev domain.Event) error {
	list, err := b.sessions.List(ctx)
	if err != nil {
		return err
	}
	return b.send(ctx, ev, fmt.Sprintf("%d active sessions", len(list)))
}

func (b *Bot) page(ctx context.Context, ev domain.Event) error {
	args := routing.CallbackArgs("PAGE", ev.Payload)
	n := "1"
	if len(args) > 0 {
		n = args[0]
	}
	return b.out.Edit(ctx, ev.ChatID, ev.OriginMessageID, "Page "+n)
}

func (b *Bot) greet(ctx context.Context, ev domain.Event) error {
	text := "Hello!"
	if v, ok := b.greetings.Load(ev.ChatID); ok {
		text = v.(string)
	}
	return b.send(ctx, ev, text)
}

// Greeting returns the custom greeting of a chat, if set.
func (b *Bot) Greeting(chatID int64) (string, bool) {
	v, ok := b.greetings.Load(chatID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func menu(title string, buttons ...string) string {
	return title + "\n" + strings.Join(buttons, " | ")
}
