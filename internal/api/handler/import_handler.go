package handler

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/pkg/response"
)

// ImportHandler spreadsheet ingestion
type ImportHandler struct {
	importSvc service.ImportService
}

// NewImportHandler creates an ImportHandler
func NewImportHandler(importSvc service.ImportService) *ImportHandler {
	return &ImportHandler{importSvc: importSvc}
}

// Import stores rows from an uploaded CSV/XLSX file, a published sheet
// URL, or the configured sheet when neither is given.
// POST /api/v1/schedules/import
func (h *ImportHandler) Import(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var (
		result *dto.ImportResponse
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			response.BadRequest(c, 16001, "File impor wajib diunggah pada field 'file'")
			return
		}
		f, oerr := fh.Open()
		if oerr != nil {
			response.BadRequest(c, 16001, "File impor tidak dapat dibaca")
			return
		}
		defer f.Close()
		result, err = h.importSvc.ImportFile(c.Request.Context(), fh.Filename, f, caller)
	} else {
		var req dto.ImportRequest
		if c.Request.ContentLength > 0 {
			if berr := c.ShouldBindJSON(&req); berr != nil {
				response.BadRequest(c, 10001, "URL spreadsheet tidak valid")
				return
			}
		}
		result, err = h.importSvc.ImportURL(c.Request.Context(), req.URL, caller)
	}
	if err != nil {
		h.handleImportError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ImportHandler) handleImportError(c *gin.Context, err error) {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		response.ErrorWithDetails(c, http.StatusBadRequest, 16004, "Format CSV tidak valid", parseErr.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrNoImportSource):
		response.BadRequest(c, 16002, err.Error())
	case errors.Is(err, service.ErrImportTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 16003, err.Error())
	case errors.Is(err, service.ErrImportBadHeader),
		errors.Is(err, service.ErrImportNoData),
		errors.Is(err, service.ErrEmptyCSV):
		response.BadRequest(c, 16004, err.Error())
	case errors.Is(err, service.ErrImportFetch):
		response.Error(c, http.StatusBadGateway, 16005, err.Error())
	default:
		response.InternalError(c)
	}
}
