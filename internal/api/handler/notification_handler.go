package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// NotificationHandler manual trigger for the daily reminder
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// Run sends today's reminders now and returns the run summary
// POST /api/v1/notifications/run
func (h *NotificationHandler) Run(c *gin.Context) {
	summary, err := h.notificationSvc.RunDaily(c.Request.Context(), time.Now())
	if err != nil {
		handlePushError(c, err)
		return
	}

	response.OK(c, summary)
}
