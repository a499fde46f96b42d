package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// UserHandler profile endpoints
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler creates a UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// UpdateDisplayName changes the name schedules are matched against
// PUT /api/v1/users/me/display-name
func (h *UserHandler) UpdateDisplayName(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateDisplayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Nama tampilan wajib diisi")
		return
	}

	user, err := h.userSvc.UpdateDisplayName(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDisplayNameRequired):
			response.BadRequest(c, 11005, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, 12001, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, user)
}
