/*
Package routing holds the route descriptors and the immutable route table.

Routes come in four variants:

  - CommandRoute: "/settings", "/s" (case-insensitive aliases, unique across routes).
  - CallbackRoute: inline-button payloads, "HELP" matches "HELP" and "HELP+2".
  - TextTriggerRoute: regular expressions over free text; every match fires.
  - ConversationRoute: a workflow started by a command or an entry predicate.

Routes are declared explicitly with a Builder:

	b := routing.NewBuilder()
	b.Command("weather", weatherHandler, "weather", "w")
	b.Callback("help-page", "HELP", helpHandler)
	b.Text("greet", `(?i)^hello\b`, greetHandler)
	b.Conversation("settings", settingsWorkflow).Trigger("settings").GroupOnly()

	table := b.Build(routing.WithLogger(logger))

Build never fails. Conflicts are resolved first-registrant-wins and reported
through Table.Warnings.
*/
package routing
