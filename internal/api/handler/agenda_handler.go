package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// AgendaHandler participant agendas and calendar feeds
type AgendaHandler struct {
	agendaSvc service.AgendaService
}

// NewAgendaHandler creates an AgendaHandler
func NewAgendaHandler(agendaSvc service.AgendaService) *AgendaHandler {
	return &AgendaHandler{agendaSvc: agendaSvc}
}

// MyAgenda upcoming sessions of the caller
// GET /api/v1/agenda/me
func (h *AgendaHandler) MyAgenda(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.agendaSvc.MyAgenda(c.Request.Context(), userID)
	if err != nil {
		h.handleAgendaError(c, err)
		return
	}

	response.OK(c, result)
}

// Summary every participant's upcoming sessions
// GET /api/v1/agenda
func (h *AgendaHandler) Summary(c *gin.Context) {
	result, err := h.agendaSvc.Summary(c.Request.Context())
	if err != nil {
		h.handleAgendaError(c, err)
		return
	}

	response.OK(c, result)
}

// FeedLink signed calendar URL plus its QR code
// GET /api/v1/agenda/me/feed
func (h *AgendaHandler) FeedLink(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.agendaSvc.FeedLink(c.Request.Context(), userID)
	if err != nil {
		h.handleAgendaError(c, err)
		return
	}

	response.OK(c, result)
}

// CalendarFeed iCalendar body, authenticated by the token in the path
// GET /api/v1/feeds/:token/calendar.ics
func (h *AgendaHandler) CalendarFeed(c *gin.Context) {
	body, err := h.agendaSvc.CalendarFeed(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.handleAgendaError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=900")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

func (h *AgendaHandler) handleAgendaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidFeedToken):
		response.Unauthorized(c, 15001, err.Error())
	case errors.Is(err, service.ErrNoDisplayName):
		response.BadRequest(c, 15002, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, err.Error())
	default:
		response.InternalError(c)
	}
}
