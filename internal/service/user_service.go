package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/repository"
)

// UserService profile use cases
type UserService interface {
	UpdateDisplayName(ctx context.Context, userID string, req *dto.UpdateDisplayNameRequest) (*dto.UserResponse, error)
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService creates a UserService
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// UpdateDisplayName changes the name schedules are matched against.
// Existing schedules are not rewritten.
func (s *userService) UpdateDisplayName(ctx context.Context, userID string, req *dto.UpdateDisplayNameRequest) (*dto.UserResponse, error) {
	if strings.TrimSpace(req.DisplayName) == "" {
		return nil, ErrDisplayNameRequired
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.SetDisplayName(req.DisplayName)
	err = s.repo.User.Update(ctx, userID, map[string]interface{}{
		"display_name":       user.DisplayName,
		"display_name_lower": user.DisplayNameLower,
		"updated_by":         userID,
	})
	if err != nil {
		s.logger.Error("failed to update display name", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

