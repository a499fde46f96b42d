package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// PushHandler browser push subscriptions
type PushHandler struct {
	pushSvc service.PushService
}

// NewPushHandler creates a PushHandler
func NewPushHandler(pushSvc service.PushService) *PushHandler {
	return &PushHandler{pushSvc: pushSvc}
}

// PublicKey VAPID application server key
// GET /api/v1/push/vapid-public-key
func (h *PushHandler) PublicKey(c *gin.Context) {
	result, err := h.pushSvc.PublicKey()
	if err != nil {
		handlePushError(c, err)
		return
	}

	response.OK(c, result)
}

// Subscribe stores the browser subscription of the caller
// POST /api/v1/push/subscriptions
func (h *PushHandler) Subscribe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Data langganan notifikasi tidak valid")
		return
	}

	if err := h.pushSvc.Subscribe(c.Request.Context(), userID, &req); err != nil {
		handlePushError(c, err)
		return
	}

	response.Created(c, dto.MessageResponse{Message: "Notifikasi diaktifkan"})
}

// Unsubscribe removes one subscription by endpoint
// DELETE /api/v1/push/subscriptions
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "endpoint wajib diisi")
		return
	}

	if err := h.pushSvc.Unsubscribe(c.Request.Context(), userID, &req); err != nil {
		handlePushError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "Notifikasi dinonaktifkan"})
}

func handlePushError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPushDisabled):
		response.Error(c, http.StatusServiceUnavailable, 17001, err.Error())
	case errors.Is(err, service.ErrSubscriptionNotFound):
		response.NotFound(c, 17002, err.Error())
	default:
		response.InternalError(c)
	}
}
