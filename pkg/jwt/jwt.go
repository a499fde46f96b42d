package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msyamrijal/jadwal-website/config"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenWrongType = errors.New("token type mismatch")
)

// Token types
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeReset   = "reset" // password reset link
	TypeFeed    = "feed"  // calendar feed URL
)

const issuer = "jadwaluna"

// Claims custom JWT claims
type Claims struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role,omitempty"`
	TokenType   string `json:"token_type"`
	RememberMe  bool   `json:"remember_me,omitempty"` // refresh only
	Fingerprint string `json:"fp,omitempty"`          // reset only: ties the token to the current password hash
	jwtv5.RegisteredClaims
}

// Manager issues and verifies tokens
type Manager struct {
	secret                  []byte
	accessTokenTTL          time.Duration
	refreshTokenTTLDefault  time.Duration
	refreshTokenTTLRemember time.Duration
	resetTokenTTL           time.Duration
	feedTokenTTL            time.Duration
}

// NewManager creates a Manager
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:                  []byte(cfg.JWTSecret),
		accessTokenTTL:          cfg.AccessTokenTTL,
		refreshTokenTTLDefault:  cfg.RefreshTokenTTLDefault,
		refreshTokenTTLRemember: cfg.RefreshTokenTTLRemember,
		resetTokenTTL:           cfg.ResetTokenTTL,
		feedTokenTTL:            cfg.FeedTokenTTL,
	}
}

// GenerateAccessToken issues an access token
func (m *Manager) GenerateAccessToken(userID, role string) (string, error) {
	return m.sign(Claims{UserID: userID, Role: role, TokenType: TypeAccess}, m.accessTokenTTL)
}

// GenerateRefreshToken issues a refresh token.
// rememberMe selects the longer lifetime.
func (m *Manager) GenerateRefreshToken(userID, role string, rememberMe bool) (string, error) {
	ttl := m.refreshTokenTTLDefault
	if rememberMe {
		ttl = m.refreshTokenTTLRemember
	}
	return m.sign(Claims{UserID: userID, Role: role, TokenType: TypeRefresh, RememberMe: rememberMe}, ttl)
}

// GenerateResetToken issues a password reset token bound to fingerprint.
func (m *Manager) GenerateResetToken(userID, fingerprint string) (string, error) {
	return m.sign(Claims{UserID: userID, TokenType: TypeReset, Fingerprint: fingerprint}, m.resetTokenTTL)
}

// GenerateFeedToken issues a long-lived token for the calendar feed URL.
func (m *Manager) GenerateFeedToken(userID string) (string, error) {
	return m.sign(Claims{UserID: userID, TokenType: TypeFeed}, m.feedTokenTTL)
}

// AccessTokenTTL access token lifetime
func (m *Manager) AccessTokenTTL() time.Duration {
	return m.accessTokenTTL
}

func (m *Manager) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwtv5.RegisteredClaims{
		ID:        uuid.New().String(),
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken parses and verifies a token of any type
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// ParseTokenOfType parses a token and checks its type.
func (m *Manager) ParseTokenOfType(tokenString, tokenType string) (*Claims, error) {
	claims, err := m.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}
