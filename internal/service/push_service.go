package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
)

var (
	ErrPushDisabled         = errors.New("notifikasi push tidak aktif")
	ErrSubscriptionNotFound = errors.New("langganan notifikasi tidak ditemukan")
)

// PushService browser push subscriptions
type PushService interface {
	PublicKey() (*dto.VAPIDKeyResponse, error)
	Subscribe(ctx context.Context, userID string, req *dto.SubscribeRequest) error
	Unsubscribe(ctx context.Context, userID string, req *dto.UnsubscribeRequest) error
}

type pushService struct {
	repo   *repository.Repository
	sender PushSender
	logger *zap.Logger
}

// NewPushService creates a PushService. sender is nil when push is disabled.
func NewPushService(repo *repository.Repository, sender PushSender, logger *zap.Logger) PushService {
	return &pushService{repo: repo, sender: sender, logger: logger}
}

func (s *pushService) PublicKey() (*dto.VAPIDKeyResponse, error) {
	if s.sender == nil {
		return nil, ErrPushDisabled
	}
	return &dto.VAPIDKeyResponse{PublicKey: s.sender.PublicKey()}, nil
}

// Subscribe stores a subscription; the same endpoint is never stored twice
func (s *pushService) Subscribe(ctx context.Context, userID string, req *dto.SubscribeRequest) error {
	sub := &model.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := s.repo.Push.UpsertSubscription(ctx, sub); err != nil {
		s.logger.Error("failed to save push subscription", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

func (s *pushService) Unsubscribe(ctx context.Context, userID string, req *dto.UnsubscribeRequest) error {
	n, err := s.repo.Push.DeleteSubscription(ctx, userID, req.Endpoint)
	if err != nil {
		s.logger.Error("failed to delete push subscription", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
