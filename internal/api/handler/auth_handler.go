package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

const refreshCookie = "refresh_token"

// AuthHandler account and session endpoints
type AuthHandler struct {
	authSvc service.AuthService
	cfg     *config.Config
}

// NewAuthHandler creates an AuthHandler. cfg may be nil in tests.
func NewAuthHandler(authSvc service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cfg: cfg}
}

// Register creates an account and signs it in
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Nama, email valid dan kata sandi minimal 6 karakter wajib diisi")
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, false)
	response.Created(c, result)
}

// Login email + password
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Email dan kata sandi wajib diisi")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, req.RememberMe)
	response.OK(c, result)
}

// RefreshToken rotates the token pair. The refresh token comes from the
// JSON body or, failing that, the refresh_token cookie.
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		if cookie, cerr := c.Cookie(refreshCookie); cerr == nil && cookie != "" {
			req.RefreshToken = cookie
		} else {
			response.BadRequest(c, 10001, "refresh_token wajib diisi")
			return
		}
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, false)
	response.OK(c, result)
}

// Logout revokes the current access token and, when supplied, the refresh token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if _, ok := MustGetUserID(c); !ok {
		return
	}
	jti, exp := tokenClaims(c)

	var req dto.RefreshTokenRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshCookie)
	}

	if err := h.authSvc.Logout(c.Request.Context(), jti, exp, req.RefreshToken); err != nil {
		response.InternalError(c)
		return
	}

	h.clearRefreshCookie(c)
	response.OK(c, dto.MessageResponse{Message: "Berhasil logout"})
}

// GetCurrentUser the signed-in account
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// ForgotPassword mails a reset link. The answer is the same whether or
// not the address has an account.
// POST /api/v1/auth/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Email tidak valid")
		return
	}

	if err := h.authSvc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "Jika email terdaftar, tautan reset kata sandi telah dikirim"})
}

// ResetPassword sets a new password with a reset token
// POST /api/v1/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Token dan kata sandi baru (minimal 6 karakter) wajib diisi")
		return
	}

	if err := h.authSvc.ResetPassword(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "Kata sandi berhasil diubah, silakan login"})
}

// ── cookies ──

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, rememberMe bool) {
	if token == "" {
		return
	}
	maxAge := 0 // session cookie
	if rememberMe && h.cfg != nil {
		maxAge = int(h.cfg.Auth.RefreshTokenTTLRemember.Seconds())
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, token, maxAge, "/api/v1/auth", "", h.secureCookie(), true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, "", -1, "/api/v1/auth", "", h.secureCookie(), true)
}

func (h *AuthHandler) secureCookie() bool {
	return h.cfg != nil && strings.HasPrefix(h.cfg.Server.BaseURL, "https://")
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "Email atau kata sandi salah")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, 11002, err.Error())
	case errors.Is(err, service.ErrInvalidResetToken):
		response.BadRequest(c, 11003, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, 11004, err.Error(), nil)
	case errors.Is(err, service.ErrDisplayNameRequired):
		response.BadRequest(c, 11005, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, err.Error())
	default:
		response.InternalError(c)
	}
}
