package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/pkg/jwt"
	"github.com/msyamrijal/jadwal-website/pkg/mail"
)

var (
	ErrInvalidCredentials  = errors.New("email atau kata sandi salah")
	ErrUserNotFound        = errors.New("pengguna tidak ditemukan")
	ErrEmailTaken          = errors.New("email sudah terdaftar")
	ErrDisplayNameRequired = errors.New("nama tampilan wajib diisi")
	ErrInvalidRefreshToken = errors.New("sesi tidak valid, silakan login kembali")
	ErrInvalidResetToken   = errors.New("tautan reset kata sandi tidak valid atau kedaluwarsa")
)

// AuthService account and session use cases
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, accessJTI string, accessExpiresAt time.Time, refreshToken string) error
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	tokens TokenStore
	mailer mail.Sender
	logger *zap.Logger
}

// NewAuthService creates an AuthService. tokens may be nil, in which case
// logout does not revoke anything.
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	tokens TokenStore,
	mailer mail.Sender,
	logger *zap.Logger,
) AuthService {
	if mailer == nil {
		mailer = mail.NewSender(&cfg.Mail, logger)
	}
	return &authService{
		cfg:    cfg,
		repo:   repo,
		jwtMgr: jwtMgr,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) roleFor(email string) string {
	if s.cfg.Auth.IsAdminEmail(email) {
		return model.RoleAdmin
	}
	return model.RoleMember
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, ErrDisplayNameRequired
	}
	email := normalizeEmail(req.Email)

	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("failed to look up email", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         s.roleFor(email),
	}
	user.SetDisplayName(name)

	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	return s.issueTokens(user, false)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. look up
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user", zap.Error(err))
		return nil, err
	}

	// 2. verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. admin_emails is authoritative for the admin role
	if role := s.roleFor(user.Email); role != user.Role {
		if err := s.repo.User.Update(ctx, user.UserID, map[string]interface{}{"role": role}); err != nil {
			s.logger.Error("failed to sync role", zap.String("user_id", user.UserID), zap.Error(err))
			return nil, err
		}
		user.Role = role
	}

	// 4. token pair
	return s.issueTokens(user, req.RememberMe)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseTokenOfType(refreshToken, jwt.TypeRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("blacklist check failed", zap.Error(err))
		} else if revoked {
			return nil, ErrInvalidRefreshToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	// rotate: the presented refresh token is single use
	s.revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	return s.issueTokens(user, claims.RememberMe)
}

func (s *authService) Logout(ctx context.Context, accessJTI string, accessExpiresAt time.Time, refreshToken string) error {
	s.revoke(ctx, accessJTI, accessExpiresAt)
	if refreshToken != "" {
		if claims, err := s.jwtMgr.ParseTokenOfType(refreshToken, jwt.TypeRefresh); err == nil {
			s.revoke(ctx, claims.ID, claims.ExpiresAt.Time)
		}
	}
	return nil
}

// revoke blacklists jti until expiry. Without Redis this is a no-op.
func (s *authService) revoke(ctx context.Context, jti string, expiresAt time.Time) {
	if s.tokens == nil || jti == "" {
		return
	}
	if err := s.tokens.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Warn("failed to blacklist token", zap.String("jti", jti), zap.Error(err))
	}
}

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// ForgotPassword mails a reset link when the account exists. It reports
// success either way so the endpoint cannot be used to probe addresses.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		s.logger.Error("failed to look up user", zap.Error(err))
		return err
	}

	token, err := s.jwtMgr.GenerateResetToken(user.UserID, passwordFingerprint(user.PasswordHash))
	if err != nil {
		s.logger.Error("failed to sign reset token", zap.Error(err))
		return err
	}

	link := fmt.Sprintf("%s/reset-password.html?token=%s", strings.TrimRight(s.cfg.Server.BaseURL, "/"), token)
	msg := mail.Message{
		ToName:  user.DisplayName,
		ToEmail: user.Email,
		Subject: "Reset kata sandi",
		Text: fmt.Sprintf("Halo %s,\n\nKlik tautan berikut untuk mengatur ulang kata sandi Anda:\n%s\n\nTautan berlaku selama %s. Abaikan email ini jika Anda tidak memintanya.",
			user.DisplayName, link, s.cfg.Auth.ResetTokenTTL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send reset email", zap.String("user_id", user.UserID), zap.Error(err))
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	claims, err := s.jwtMgr.ParseTokenOfType(req.Token, jwt.TypeReset)
	if err != nil {
		return ErrInvalidResetToken
	}
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	// a used token no longer matches once the hash changes
	if claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.User.Update(ctx, user.UserID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		s.logger.Error("failed to update password", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}
	s.logger.Info("password reset", zap.String("user_id", user.UserID))
	return nil
}

// ── helpers ──

func (s *authService) issueTokens(user *model.User, rememberMe bool) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Role, rememberMe)
	if err != nil {
		s.logger.Error("failed to sign refresh token", zap.Error(err))
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.cfg.Auth.AccessTokenTTL.Seconds()),
		User:         toUserResponse(user),
	}, nil
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

func toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.UserID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		CreatedAt:   formatTime(u.CreatedAt),
	}
}
