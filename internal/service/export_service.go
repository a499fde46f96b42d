package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
)

var (
	ErrExportNoSchedules  = errors.New("belum ada jadwal untuk diekspor")
	ErrExportGenerateFail = errors.New("gagal membuat file Excel")
)

// ExportService spreadsheet export
//
// The workbook uses the sheet headers of the original spreadsheet, so an
// exported file can be imported again (the ID column is ignored).
type ExportService interface {
	ExportSchedules(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService creates an ExportService
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

// exportDateLayout matches the day-first layout accepted on import
const exportDateLayout = "02/01/2006 15:04"

func (s *exportService) ExportSchedules(ctx context.Context) (*bytes.Buffer, string, error) {
	// 1. newest first, undated rows last
	rows, err := s.repo.Schedule.List(ctx, repository.ScheduleFilter{
		Sort:     repository.SortDateDesc,
		Timezone: s.cfg.Schedule.Timezone,
	})
	if err != nil {
		s.logger.Error("failed to load schedules for export", zap.Error(err))
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrExportNoSchedules
	}

	loc := s.cfg.Schedule.Location()
	fields := model.ScheduleFields()

	// 2. workbook
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Jadwal"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 38)
	f.SetColWidth(sheetName, "B", "B", 18)
	f.SetColWidth(sheetName, "C", "E", 28)
	f.SetColWidth(sheetName, colName(5), colName(len(fields)), 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// header
	f.SetCellValue(sheetName, cell("A", 1), "ID")
	for i, field := range fields {
		f.SetCellValue(sheetName, cell(colName(i+1), 1), field.Label())
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(fields)), 1), headerStyle)
	f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	// data
	for r, sched := range rows {
		row := r + 2
		f.SetCellValue(sheetName, cell("A", row), sched.ScheduleID)
		for i, field := range fields {
			var v string
			if field == model.FieldDate {
				if sched.Date != nil {
					v = sched.Date.In(loc).Format(exportDateLayout)
				}
			} else {
				v = sched.FieldValue(field)
			}
			f.SetCellValue(sheetName, cell(colName(i+1), row), v)
		}
	}

	// 3. write
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("failed to write workbook", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("jadwal_%s.xlsx", s.now().In(loc).Format("20060102"))
	return buf, filename, nil
}

// ── helpers ──

// colName converts a zero-based column index to its letter
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
