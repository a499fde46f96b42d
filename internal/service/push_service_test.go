package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/internal/dto"
)

func TestPushService_SubscribeIsIdempotent(t *testing.T) {
	repo, _, _, pr := newTestRepo()
	svc := NewPushService(repo, &fakePushSender{}, zap.NewNop())

	req := &dto.SubscribeRequest{
		Endpoint: "https://push.test/abc",
		Keys:     dto.PushKeys{P256dh: "p1", Auth: "a1"},
	}
	require.NoError(t, svc.Subscribe(context.Background(), "u1", req))
	req.Keys = dto.PushKeys{P256dh: "p2", Auth: "a2"}
	require.NoError(t, svc.Subscribe(context.Background(), "u2", req))

	require.Len(t, pr.subs, 1)
	sub := pr.subs["https://push.test/abc"]
	assert.Equal(t, "u2", sub.UserID)
	assert.Equal(t, "p2", sub.P256dh)
}

func TestPushService_Unsubscribe(t *testing.T) {
	repo, _, _, _ := newTestRepo()
	svc := NewPushService(repo, &fakePushSender{}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, "u1", &dto.SubscribeRequest{
		Endpoint: "https://push.test/abc", Keys: dto.PushKeys{P256dh: "p", Auth: "a"},
	}))

	assert.ErrorIs(t, svc.Unsubscribe(ctx, "u2", &dto.UnsubscribeRequest{Endpoint: "https://push.test/abc"}), ErrSubscriptionNotFound)
	assert.NoError(t, svc.Unsubscribe(ctx, "u1", &dto.UnsubscribeRequest{Endpoint: "https://push.test/abc"}))
	assert.ErrorIs(t, svc.Unsubscribe(ctx, "u1", &dto.UnsubscribeRequest{Endpoint: "https://push.test/abc"}), ErrSubscriptionNotFound)
}

func TestPushService_PublicKey(t *testing.T) {
	repo, _, _, _ := newTestRepo()

	key, err := NewPushService(repo, &fakePushSender{}, zap.NewNop()).PublicKey()
	require.NoError(t, err)
	assert.Equal(t, "test-public-key", key.PublicKey)

	_, err = NewPushService(repo, nil, zap.NewNop()).PublicKey()
	assert.ErrorIs(t, err, ErrPushDisabled)
}
