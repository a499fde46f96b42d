package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// WSServer upgrades a request to a live-update connection
type WSServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// RealtimeHandler websocket endpoint
type RealtimeHandler struct {
	hub WSServer
}

// NewRealtimeHandler creates a RealtimeHandler
func NewRealtimeHandler(hub WSServer) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Connect GET /ws?token=<access token>
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if h.hub == nil {
		response.Error(c, http.StatusServiceUnavailable, 18001, "Pembaruan langsung tidak aktif")
		return
	}

	h.hub.Serve(c.Writer, c.Request, userID)
}
