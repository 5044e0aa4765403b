package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/relay/internal/config"
	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_Parse(t *testing.T) {
	c := NewConsole(&bytes.Buffer{}, false, 5)
	_, _ = c.Send(context.Background(), 5, "menu")

	ev, ok, err := c.Parse("/ping now")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Event{ActorID: 5, ChatID: 5, ChatType: domain.ChatPrivate, Kind: domain.KindCommand, Payload: "/ping now"}, ev)

	ev, ok, err = c.Parse("#HELP+commands")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.KindCallback, ev.Kind)
	assert.Equal(t, 101, ev.OriginMessageID, "defaults to the last message of the chat")

	ev, _, err = c.Parse("#PAGE+2 77")
	require.NoError(t, err)
	assert.Equal(t, 77, ev.OriginMessageID)

	_, ok, err = c.Parse(":chat group -100")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, err = c.Parse(":as 9")
	require.NoError(t, err)

	ev, _, err = c.Parse("hello there")
	require.NoError(t, err)
	assert.Equal(t, domain.Event{ActorID: 9, ChatID: -100, ChatType: domain.ChatSupergroup, Kind: domain.KindText, Payload: "hello there"}, ev)

	for _, bad := range []string{":as x", ":chat group", ":nope", "#", "#X y"} {
		_, _, err := c.Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunConsole_Script(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, false, 1)
	rt, err := Build(context.Background(), config.Default(), c, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	script := strings.Join([]string{
		"/ping",
		":chat group -100",
		"/settings",
		"#SET+notify",
		":as 2",
		"#SET+close",
		":as 1",
		"#SET+close",
		"/unknown",
		":quit",
		"/ping",
	}, "\n")

	require.NoError(t, RunConsole(context.Background(), rt, c, strings.NewReader(script), &out, false))

	got := out.String()
	assert.Contains(t, got, "pong")
	assert.Contains(t, got, "notifications: true")
	assert.Contains(t, got, "(to 2) This menu belongs to someone else")
	assert.Contains(t, got, "Settings saved.")
	assert.Contains(t, got, "(no route)")
	assert.Equal(t, 1, strings.Count(got, "pong"), "input after :quit is ignored")

	sessions, err := rt.Engine.Sessions().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
