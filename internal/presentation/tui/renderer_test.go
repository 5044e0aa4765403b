package tui

import (
	"testing"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
	"github.com/stretchr/testify/assert"
)

func TestRoutesMarkdown(t *testing.T) {
	routes := []routing.RouteInfo{
		{Name: "settings", Kind: routing.KindConversation, Match: []string{"/settings"}, Flags: domain.Flags{GroupOnly: true}},
		{Name: "ping", Kind: routing.KindCommand, Match: []string{"/ping", "/p"}},
		{Name: "thanks", Kind: routing.KindText, Match: []string{`(?i)(thanks|thx)`}},
	}
	md := RoutesMarkdown(routes, []routing.Warning{{Route: "old", Kind: routing.KindCommand, Message: "unreachable"}})

	assert.Contains(t, md, "## Conversations")
	assert.Contains(t, md, "| settings | /settings | group |")
	assert.Contains(t, md, "| ping | /ping, /p | - |")
	assert.Contains(t, md, `(?i)(thanks\|thx)`)
	assert.NotContains(t, md, "## Callbacks")
	assert.Contains(t, md, "## Warnings")
}
