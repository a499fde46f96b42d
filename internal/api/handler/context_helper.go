package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/api/middleware"
	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// MustGetUserID reads the user_id set by JWTAuth. On false a 401 has
// already been written and the caller should return.
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		response.Unauthorized(c, 10002, "Belum login")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "Belum login")
		return "", false
	}
	return s, true
}

// MustGetRole reads the role set by JWTAuth.
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.CtxRole)
	if !exists {
		response.Unauthorized(c, 10002, "Belum login")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "Belum login")
		return "", false
	}
	return s, true
}

// MustGetCaller builds the service caller from the auth context.
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Caller{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.Caller{}, false
	}
	return service.Caller{UserID: userID, Role: role}, true
}

// tokenClaims access token id and expiry, zero when absent
func tokenClaims(c *gin.Context) (string, time.Time) {
	jti := c.GetString(middleware.CtxTokenJTI)
	var exp time.Time
	if v, ok := c.Get(middleware.CtxTokenExp); ok {
		exp, _ = v.(time.Time)
	}
	return jti, exp
}
