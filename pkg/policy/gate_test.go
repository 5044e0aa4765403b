package policy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFunc func(ctx context.Context, chatID, userID int64) (bool, error)

func (f adminFunc) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	return f(ctx, chatID, userID)
}

const dev = int64(1)

func event(actor int64, chat domain.ChatType) domain.Event {
	return domain.Event{ActorID: actor, ChatID: -100, ChatType: chat, Kind: domain.KindCommand}
}

func TestGate_Matrix(t *testing.T) {
	admins := policy.StaticAdmins{-100: {7}}
	gate := policy.NewGate([]int64{dev}, admins)
	ctx := context.Background()

	tests := []struct {
		name   string
		flags  domain.Flags
		event  domain.Event
		reason domain.DenialReason
	}{
		{"NoFlags", domain.Flags{}, event(5, domain.ChatPrivate), domain.DenyNone},
		{"DevOnly_Dev", domain.Flags{DevOnly: true}, event(dev, domain.ChatGroup), domain.DenyNone},
		{"DevOnly_Other", domain.Flags{DevOnly: true}, event(5, domain.ChatGroup), domain.DenyNotDev},
		{"PrivateOnly_Private", domain.Flags{PrivateOnly: true}, event(5, domain.ChatPrivate), domain.DenyNone},
		{"PrivateOnly_Group", domain.Flags{PrivateOnly: true}, event(5, domain.ChatSupergroup), domain.DenyPrivateOnly},
		{"GroupOnly_Group", domain.Flags{GroupOnly: true}, event(5, domain.ChatGroup), domain.DenyNone},
		{"GroupOnly_Supergroup", domain.Flags{GroupOnly: true}, event(5, domain.ChatSupergroup), domain.DenyNone},
		{"GroupOnly_Private", domain.Flags{GroupOnly: true}, event(5, domain.ChatPrivate), domain.DenyGroupOnly},
		{"GroupOnly_Channel", domain.Flags{GroupOnly: true}, event(5, domain.ChatChannel), domain.DenyGroupOnly},
		{"AdminOnly_Admin", domain.Flags{AdminOnly: true}, event(7, domain.ChatGroup), domain.DenyNone},
		{"AdminOnly_Dev", domain.Flags{AdminOnly: true}, event(dev, domain.ChatGroup), domain.DenyNone},
		{"AdminOnly_Member", domain.Flags{AdminOnly: true}, event(5, domain.ChatGroup), domain.DenyNotAdmin},
		{"DevBeforeChat", domain.Flags{DevOnly: true, GroupOnly: true}, event(5, domain.ChatPrivate), domain.DenyNotDev},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := gate.Evaluate(ctx, tt.flags, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.reason == domain.DenyNone, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestGate_AdminQueryErrorPropagates(t *testing.T) {
	boom := errors.New("network down")
	gate := policy.NewGate(nil, adminFunc(func(ctx context.Context, chatID, userID int64) (bool, error) {
		return false, boom
	}))

	d, err := gate.Evaluate(context.Background(), domain.Flags{AdminOnly: true}, event(5, domain.ChatGroup))
	assert.ErrorIs(t, err, policy.ErrAdminQuery)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.DenyNone, d.Reason, "a failed query is neither Allow nor Deny")
}

func TestGate_AdminSkipsQueryForPureDenials(t *testing.T) {
	called := false
	gate := policy.NewGate(nil, adminFunc(func(ctx context.Context, chatID, userID int64) (bool, error) {
		called = true
		return true, nil
	}))

	d, err := gate.Evaluate(context.Background(), domain.Flags{AdminOnly: true, GroupOnly: true}, event(5, domain.ChatPrivate))
	require.NoError(t, err)
	assert.Equal(t, domain.DenyGroupOnly, d.Reason)
	assert.False(t, called)
}

func TestGate_NoCheckerConfigured(t *testing.T) {
	gate := policy.NewGate(nil, nil)
	_, err := gate.Evaluate(context.Background(), domain.Flags{AdminOnly: true}, event(5, domain.ChatGroup))
	assert.ErrorIs(t, err, policy.ErrNoAdminChecker)
}

func TestNotice(t *testing.T) {
	for _, r := range []domain.DenialReason{domain.DenyNotDev, domain.DenyPrivateOnly, domain.DenyGroupOnly, domain.DenyNotAdmin} {
		assert.NotEmpty(t, policy.Notice(r))
	}
}
