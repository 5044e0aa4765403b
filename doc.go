/*
Package relay routes chat-platform events (commands, button callbacks and
free text) to handlers and multi-step conversations.

# Concept

Routes are registered once and compiled into a table. Every inbound event
then goes through a fixed precedence:

 1. a button on a menu owned by another user is rejected;
 2. a command that starts a conversation restarts it for the user;
 3. any other command runs its handler, leaving an active conversation alone;
 4. an active conversation receives everything else;
 5. conversation entry points are tried;
 6. callback and text routes are resolved (longest prefix for callbacks, all
    matches for text triggers).

Each route carries access flags (developer only, admin only, group only,
private only) checked by the policy gate before it runs. Conversation
sessions are stored through a ports.SessionStore (memory, Redis or SQLite)
and a user's steps are serialized by a per-user lock.

# Usage

	b := routing.NewBuilder()
	b.Command("ping", func(ctx context.Context, ev domain.Event) error {
		return reply(ev.ChatID, "pong")
	})
	b.Conversation("settings", settingsWorkflow).Trigger("settings").GroupOnly()

	engine := relay.New(b.Routes(), relay.WithDevIDs(42))
	res := engine.Dispatch(ctx, event)
*/
package relay
