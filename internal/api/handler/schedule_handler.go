package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/internal/service"
	pkgerrors "github.com/msyamrijal/jadwal-website/pkg/errors"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// ScheduleHandler schedule endpoints
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
	timezone    string
}

// NewScheduleHandler creates a ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService, cfg *config.Config) *ScheduleHandler {
	h := &ScheduleHandler{scheduleSvc: scheduleSvc}
	if cfg != nil {
		h.timezone = cfg.Schedule.Timezone
	}
	return h
}

// Create adds a session
// POST /api/v1/schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Mata pelajaran dan tanggal wajib diisi")
		return
	}

	sched, err := h.scheduleSvc.Create(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, sched)
}

// List admin table with per-column filters
// GET /api/v1/schedules?filter[Institusi]=x&sort=desc
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := repository.ScheduleFilter{
		Sort:     c.DefaultQuery("sort", "desc"),
		Timezone: h.timezone,
	}
	switch filter.Sort {
	case "desc", "asc", "none":
	default:
		response.BadRequest(c, 10001, "sort harus desc, asc atau none")
		return
	}

	for name, value := range c.QueryMap("filter") {
		if value == "" {
			continue
		}
		field, err := model.ParseScheduleField(name)
		if err != nil {
			response.BadRequest(c, 14001, "Kolom filter tidak dikenal: "+name)
			return
		}
		if filter.Contains == nil {
			filter.Contains = make(map[model.ScheduleField]string)
		}
		filter.Contains[field] = value
	}

	list, err := h.scheduleSvc.List(c.Request.Context(), filter)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list, "total": len(list)})
}

// Search schedules a participant takes part in
// GET /api/v1/schedules/search?participant=
func (h *ScheduleHandler) Search(c *gin.Context) {
	name := c.Query("participant")
	if name == "" {
		response.BadRequest(c, 10001, "participant wajib diisi")
		return
	}

	list, err := h.scheduleSvc.SearchByParticipant(c.Request.Context(), name)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Get one schedule
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) Get(c *gin.Context) {
	sched, err := h.scheduleSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, sched)
}

// Update edits a schedule, optionally cascading the date change
// PUT /api/v1/schedules/:id
func (h *ScheduleHandler) Update(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "Data jadwal tidak valid")
		return
	}

	result, err := h.scheduleSvc.Update(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// Delete removes a schedule
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.scheduleSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "Jadwal dihapus"})
}

// Action row command from the admin table
// POST /api/v1/schedules/:id/actions
func (h *ScheduleHandler) Action(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.RowActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "action wajib diisi")
		return
	}

	result, err := h.scheduleSvc.Dispatch(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// BulkReplace find/replace one field across all schedules
// POST /api/v1/schedules/bulk-replace
func (h *ScheduleHandler) BulkReplace(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.BulkReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14004, "Kolom dan teks yang dicari tidak boleh kosong")
		return
	}

	result, err := h.scheduleSvc.BulkReplace(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	var confirm *service.ConfirmationRequiredError
	if errors.As(err, &confirm) {
		response.Conflict(c, 14010, confirm.Prompt(), confirmationPrompt(confirm))
		return
	}
	var batchErr *pkgerrors.BatchError
	if errors.As(err, &batchErr) {
		response.ErrorWithDetails(c, http.StatusInternalServerError, 14020,
			"Sebagian data gagal diperbarui, jalankan ulang untuk melanjutkan", batchErr.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 14002, err.Error())
	case errors.Is(err, service.ErrScheduleForbidden):
		response.Forbidden(c, 14003, err.Error())
	case errors.Is(err, service.ErrEmptySearch):
		response.BadRequest(c, 14004, err.Error())
	case errors.Is(err, service.ErrFieldNotReplaceable):
		response.BadRequest(c, 14005, err.Error())
	case errors.Is(err, service.ErrNoMatch):
		response.NotFound(c, 14006, err.Error())
	case errors.Is(err, service.ErrUnknownRowAction):
		response.BadRequest(c, 14007, err.Error())
	case errors.Is(err, service.ErrSubjectRequired),
		errors.Is(err, service.ErrDateRequired),
		errors.Is(err, service.ErrInvalidParticipantSlot),
		errors.Is(err, service.ErrTooManyParticipants),
		errors.Is(err, service.ErrNothingToUpdate):
		response.BadRequest(c, 14001, err.Error())
	default:
		response.InternalError(c)
	}
}

func confirmationPrompt(e *service.ConfirmationRequiredError) dto.ConfirmationPrompt {
	return dto.ConfirmationPrompt{
		Count:       e.Count,
		Subject:     e.Subject,
		Institution: e.Institution,
		Field:       string(e.Field),
		Find:        e.Find,
		Replace:     e.Replace,
	}
}
