package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
)

type failingSMS struct{}

func (failingSMS) SendSMS(context.Context, *SMSNotification) error {
	return errors.New("carrier unavailable")
}

type memberMap map[int64]*butterfly.Member

func (m memberMap) GetMember(_ context.Context, id int64) (*butterfly.Member, error) {
	mb, ok := m[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return mb, nil
}

func strPtr(s string) *string { return &s }

func TestGhostingWarning_AllChannels(t *testing.T) {
	push, email, sms := NewMockPushService(), NewMockEmailService(), NewMockSMSService()
	svc := NewService(nil, Options{
		Push: push, Email: email, SMS: sms,
		EnablePush: true, EnableEmail: true, EnableSMS: true,
	})

	silent := &butterfly.Member{
		ID:         3,
		PushTokens: []string{"tok-1"},
		Email:      strPtr("quiet@example.com"),
		Phone:      strPtr("+15550001111"),
	}
	partner := &butterfly.Member{ID: 7, Username: "ada"}

	require.NoError(t, svc.GhostingWarning(context.Background(), silent, partner, 11))

	require.Len(t, push.Sent(), 1)
	assert.Equal(t, []string{"tok-1"}, push.Sent()[0].Tokens)
	assert.Equal(t, "11", push.Sent()[0].Data["match_id"])
	assert.Contains(t, push.Sent()[0].Body, "ada")

	require.Len(t, email.Sent(), 1)
	assert.Equal(t, "quiet@example.com", email.Sent()[0].To)
	assert.Contains(t, email.Sent()[0].HTML, "ada is waiting")

	require.Len(t, sms.Sent(), 1)
	assert.Equal(t, "+15550001111", sms.Sent()[0].To)
}

func TestGhostingWarning_DisabledChannelsAreSkipped(t *testing.T) {
	push, email := NewMockPushService(), NewMockEmailService()
	svc := NewService(nil, Options{Push: push, Email: email, EnablePush: false, EnableEmail: true})

	silent := &butterfly.Member{ID: 3, PushTokens: []string{"tok"}, Email: strPtr("a@b.co")}
	require.NoError(t, svc.GhostingWarning(context.Background(), silent, nil, 1))

	assert.Empty(t, push.Sent())
	assert.Len(t, email.Sent(), 1)
	assert.Contains(t, email.Sent()[0].Body, "Your match")
}

func TestGhostingWarning_NoChannel(t *testing.T) {
	svc := NewService(nil, Options{Push: NewMockPushService(), EnablePush: true})
	err := svc.GhostingWarning(context.Background(), &butterfly.Member{ID: 3}, nil, 1)
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestGhostingWarning_PartialFailureStillSucceeds(t *testing.T) {
	email := NewMockEmailService()
	svc := NewService(nil, Options{Email: email, SMS: failingSMS{}, EnableEmail: true, EnableSMS: true})

	silent := &butterfly.Member{ID: 3, Email: strPtr("a@b.co"), Phone: strPtr("+15550001111")}
	require.NoError(t, svc.GhostingWarning(context.Background(), silent, nil, 1))
	assert.Len(t, email.Sent(), 1)
}

func TestGhostingWarning_AllFailed(t *testing.T) {
	svc := NewService(nil, Options{SMS: failingSMS{}, EnableSMS: true})

	silent := &butterfly.Member{ID: 3, Phone: strPtr("+15550001111")}
	err := svc.GhostingWarning(context.Background(), silent, nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier unavailable")
}

func TestNotifyOffline(t *testing.T) {
	push := NewMockPushService()
	members := memberMap{
		3: {ID: 3, PushTokens: []string{"tok-3"}},
		4: {ID: 4},
	}
	svc := NewService(members, Options{Push: push, EnablePush: true})
	ctx := context.Background()

	tier := butterfly.TierMonarch
	require.NoError(t, svc.NotifyOffline(ctx, 3, string(TypeButterflyReward), butterfly.RewardOutcome{
		MatchID: 11, Generated: true, Tier: &tier,
	}))
	require.Len(t, push.Sent(), 1)
	assert.Contains(t, push.Sent()[0].Body, "monarch")
	assert.Equal(t, "11", push.Sent()[0].Data["match_id"])
	assert.Equal(t, string(TypeButterflyReward), push.Sent()[0].Data["type"])

	// A roll that produced nothing is not worth a push.
	require.NoError(t, svc.NotifyOffline(ctx, 3, string(TypeButterflyReward), butterfly.RewardOutcome{MatchID: 11}))
	assert.Len(t, push.Sent(), 1)

	// No tokens, nothing to send.
	require.NoError(t, svc.NotifyOffline(ctx, 4, string(TypeMatchActivated), nil))
	assert.Len(t, push.Sent(), 1)

	// Unknown event types are ignored before the lookup.
	require.NoError(t, svc.NotifyOffline(ctx, 99, "presence", nil))

	err := svc.NotifyOffline(ctx, 99, string(TypeMatchActivated), nil)
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	got := flatten(map[string]interface{}{
		"s": "x", "n": 12.5, "b": true, "nested": map[string]int{"a": 1}, "nil": nil,
	})
	assert.Equal(t, map[string]string{"s": "x", "n": "12.5", "b": "true"}, got)
	assert.Empty(t, flatten(nil))
}
