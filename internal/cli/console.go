package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/muesli/termenv"
)

// ConsoleHelp documents the console input syntax.
const ConsoleHelp = `Input:
  /command args        send a command
  #PAYLOAD [message]   click a button (message defaults to the last menu)
  anything else        send a text message
  :as <user>           act as another user
  :chat private        switch to a private chat with the current user
  :chat group <id>     switch to a group chat
  :sessions            list active sessions
  :help                show this help
  :quit                leave`

// Console plays the chat platform on a terminal: it prints what the bot
// sends and turns typed lines into events.
type Console struct {
	out     *termenv.Output
	mu      sync.Mutex
	nextID  int
	lastID  map[int64]int // chat -> last message id
	actor   int64
	chatID  int64
	chatTyp domain.ChatType
}

// NewConsole creates a console writing to w. Colors are used only when
// color is true.
func NewConsole(w io.Writer, color bool, actor int64) *Console {
	opts := []termenv.OutputOption{}
	if !color {
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	}
	return &Console{
		out:     termenv.NewOutput(w, opts...),
		nextID:  100,
		lastID:  map[int64]int{},
		actor:   actor,
		chatID:  actor,
		chatTyp: domain.ChatPrivate,
	}
}

// Send implements demo.Messenger.
func (c *Console) Send(ctx context.Context, chatID int64, text string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.lastID[chatID] = c.nextID
	fmt.Fprintf(c.out, "%s %s\n", c.out.String(fmt.Sprintf("[%d #%d]", chatID, c.nextID)).Faint(), text)
	return c.nextID, nil
}

// Edit implements demo.Messenger.
func (c *Console) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", c.out.String(fmt.Sprintf("[%d #%d edited]", chatID, messageID)).Faint(), text)
	return nil
}

// Notify implements ports.Notifier.
func (c *Console) Notify(ctx context.Context, ev domain.Event, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", c.out.String(fmt.Sprintf("(to %d)", ev.ActorID)).Foreground(c.out.Color("3")), text)
	return nil
}

// Parse turns one input line into an event. ok is false for console
// directives, which Parse applies itself.
func (c *Console) Parse(line string) (ev domain.Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case line == "":
		return domain.Event{}, false, nil

	case strings.HasPrefix(line, ":"):
		return domain.Event{}, false, c.directive(strings.Fields(line[1:]))

	case strings.HasPrefix(line, "/"):
		ev = c.event(domain.KindCommand, line)

	case strings.HasPrefix(line, "#"):
		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			return domain.Event{}, false, fmt.Errorf("missing callback payload")
		}
		ev = c.event(domain.KindCallback, fields[0])
		ev.OriginMessageID = c.lastID[c.chatID]
		if len(fields) > 1 {
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return domain.Event{}, false, fmt.Errorf("invalid message id %q", fields[1])
			}
			ev.OriginMessageID = id
		}

	default:
		ev = c.event(domain.KindText, line)
	}

	clean, err := domain.SanitizePayload(ev.Payload)
	if err != nil {
		return domain.Event{}, false, err
	}
	ev.Payload = clean
	return ev, true, nil
}

func (c *Console) event(kind domain.EventKind, payload string) domain.Event {
	return domain.Event{ActorID: c.actor, ChatID: c.chatID, ChatType: c.chatTyp, Kind: kind, Payload: payload}
}

func (c *Console) directive(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty directive")
	}
	switch args[0] {
	case "as":
		if len(args) != 2 {
			return fmt.Errorf("usage: :as <user>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[1])
		}
		if c.chatTyp == domain.ChatPrivate {
			c.chatID = id
		}
		c.actor = id
	case "chat":
		switch {
		case len(args) == 2 && args[1] == "private":
			c.chatID, c.chatTyp = c.actor, domain.ChatPrivate
		case len(args) == 3 && args[1] == "group":
			id, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[2])
			}
			c.chatID, c.chatTyp = id, domain.ChatSupergroup
		default:
			return fmt.Errorf("usage: :chat private | :chat group <id>")
		}
	default:
		return fmt.Errorf("unknown directive %q", args[0])
	}
	return nil
}

// Prompt returns the prompt for the current identity.
func (c *Console) Prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String(fmt.Sprintf("user %d @ %s %d> ", c.actor, c.chatTyp, c.chatID)).Bold().String()
}

// RunConsole reads lines from in until EOF, ":quit" or ctx is done.
func RunConsole(ctx context.Context, rt *Runtime, c *Console, in io.Reader, w io.Writer, interactive bool) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Fprint(w, c.Prompt())
		}
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case ":quit", ":q":
			return nil
		case ":help":
			fmt.Fprintln(w, ConsoleHelp)
			continue
		case ":sessions":
			list, err := rt.Engine.Sessions().List(ctx)
			if err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
				continue
			}
			data, _ := json.MarshalIndent(list, "", "  ")
			fmt.Fprintln(w, string(data))
			continue
		}

		ev, ok, err := c.Parse(line)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if !ok {
			continue
		}
		res := rt.Engine.Dispatch(ctx, ev)
		if res.Outcome == dispatch.OutcomeNoRoute {
			fmt.Fprintln(w, "(no route)")
		}
		rt.Logger.Debug("console event", "outcome", res.Outcome, "route", res.Route)
	}
}
