package domain_test

import (
	"testing"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestEvent_Command(t *testing.T) {
	tests := []struct {
		name     string
		event    domain.Event
		wantName string
		wantArgs string
	}{
		{"Plain", domain.Event{Kind: domain.KindCommand, Payload: "/settings"}, "settings", ""},
		{"BotSuffix", domain.Event{Kind: domain.KindCommand, Payload: "/Weather@relay_bot Lisbon"}, "weather", "Lisbon"},
		{"ExtraSpaces", domain.Event{Kind: domain.KindCommand, Payload: "  /remind   tomorrow 9am "}, "remind", "tomorrow 9am"},
		{"NotACommand", domain.Event{Kind: domain.KindText, Payload: "/settings"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := tt.event.Command()
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSession_CloneIsolatesData(t *testing.T) {
	s := domain.NewSession(1, 10, "settings")
	s.Data["lang"] = "en"

	c := s.Clone()
	c.Data["lang"] = "pt"
	c.State = "Language"

	assert.Equal(t, "en", s.Data["lang"])
	assert.Equal(t, domain.StateStart, s.State)
}

func TestSession_Pins(t *testing.T) {
	s := &domain.Session{UserID: 1, ChatID: 10, PinnedMessageID: 100}

	assert.True(t, s.Pins(10, 100))
	assert.False(t, s.Pins(10, 101))
	assert.False(t, s.Pins(11, 100), "same message id in another chat is another message")

	unpinned := &domain.Session{UserID: 1}
	assert.False(t, unpinned.Pins(10, 0))
}

func TestChatType_IsGroup(t *testing.T) {
	assert.True(t, domain.ChatGroup.IsGroup())
	assert.True(t, domain.ChatSupergroup.IsGroup())
	assert.False(t, domain.ChatPrivate.IsGroup())
	assert.False(t, domain.ChatChannel.IsGroup())
}

func TestEventKind_Valid(t *testing.T) {
	for _, k := range []domain.EventKind{domain.KindCommand, domain.KindCallback, domain.KindText, domain.KindOther} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, domain.EventKind("sticker").Valid())
	assert.False(t, domain.EventKind("").Valid())
}
