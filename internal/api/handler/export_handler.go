package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler spreadsheet download
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler creates an ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedules all schedules as an Excel workbook
// GET /api/v1/export/schedules
func (h *ExportHandler) ExportSchedules(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportSchedules(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExportNoSchedules):
			response.NotFound(c, 16101, err.Error())
		default:
			response.InternalError(c)
		}
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
