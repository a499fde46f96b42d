package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/pkg/jwt"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// Context keys set by JWTAuth
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxTokenJTI = "token_jti"
	CtxTokenExp = "token_exp"
)

// Blacklist revoked access tokens
type Blacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTAuth verifies the access token from Authorization: Bearer <token>.
// Websocket upgrades may pass it as ?token= instead, since browsers cannot
// set headers on them. A nil blacklist skips the revocation check.
func JWTAuth(jwtMgr *jwt.Manager, bl Blacklist, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, 10002, "Header otorisasi tidak ada atau tidak valid")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseTokenOfType(raw, jwt.TypeAccess)
		if err != nil {
			response.Unauthorized(c, 10002, "Token tidak valid atau kedaluwarsa")
			c.Abort()
			return
		}

		if bl != nil && claims.ID != "" {
			revoked, err := bl.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				// Redis down: accept the token rather than lock everyone out
				logger.Warn("token blacklist check failed", zap.Error(err))
			} else if revoked {
				response.Unauthorized(c, 10002, "Sesi telah berakhir, silakan login kembali")
				c.Abort()
				return
			}
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxTokenJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(CtxTokenExp, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if t := c.Query("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

// RoleAuth lets the request through only for the listed roles
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			response.Unauthorized(c, 10002, "Belum login")
			c.Abort()
			return
		}

		userRole, _ := role.(string)
		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "Anda tidak memiliki akses ke halaman ini")
		c.Abort()
	}
}
