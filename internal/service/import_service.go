package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
)

var (
	ErrNoImportSource  = errors.New("tidak ada sumber impor: unggah file atau isi URL spreadsheet")
	ErrImportFetch     = errors.New("gagal mengambil spreadsheet")
	ErrImportTooLarge  = errors.New("file impor terlalu besar")
	ErrImportBadHeader = errors.New("header tidak memuat kolom jadwal yang dikenal")
	ErrImportNoData    = errors.New("file impor tidak berisi data")
)

// ImportService spreadsheet ingestion
type ImportService interface {
	ImportFile(ctx context.Context, filename string, r io.Reader, caller Caller) (*dto.ImportResponse, error)
	ImportURL(ctx context.Context, url string, caller Caller) (*dto.ImportResponse, error)
}

type importService struct {
	cfg     *config.Config
	repo    *repository.Repository
	client  *http.Client
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewImportService creates an ImportService
func NewImportService(
	cfg *config.Config,
	repo *repository.Repository,
	client *http.Client,
	events EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) ImportService {
	if client == nil {
		client = &http.Client{Timeout: cfg.Import.FetchTimeout}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &importService{cfg: cfg, repo: repo, client: client, events: events, metrics: m, logger: logger}
}

// ImportFile reads an uploaded .xlsx workbook or CSV text
func (s *importService) ImportFile(ctx context.Context, filename string, r io.Reader, caller Caller) (*dto.ImportResponse, error) {
	var (
		table *CSVTable
		err   error
	)
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		table, err = parseXLSX(r)
	} else {
		table, err = ParseCSV(r)
	}
	if err != nil {
		return nil, s.wrapParseErr(err)
	}
	return s.store(ctx, table, caller)
}

// ImportURL fetches a published CSV; an empty url falls back to
// import.spreadsheet_url.
func (s *importService) ImportURL(ctx context.Context, url string, caller Caller) (*dto.ImportResponse, error) {
	if url == "" {
		url = s.cfg.Import.SpreadsheetURL
	}
	if url == "" {
		return nil, ErrNoImportSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFetch, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("spreadsheet fetch failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrImportFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("spreadsheet fetch rejected", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrImportFetch, resp.StatusCode)
	}

	limit := s.cfg.Import.MaxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFetch, err)
	}
	if int64(len(body)) > limit {
		return nil, ErrImportTooLarge
	}

	table, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, s.wrapParseErr(err)
	}
	return s.store(ctx, table, caller)
}

func (s *importService) wrapParseErr(err error) error {
	if errors.Is(err, ErrEmptyCSV) {
		return ErrImportNoData
	}
	s.logger.Warn("import parse failed", zap.Error(err))
	return err
}

// store maps rows onto schedules and inserts them in batches
func (s *importService) store(ctx context.Context, table *CSVTable, caller Caller) (*dto.ImportResponse, error) {
	fields := make(map[string]model.ScheduleField, len(table.Header))
	for _, h := range table.Header {
		if f, err := model.ParseScheduleField(h); err == nil {
			fields[h] = f
		}
	}
	if len(fields) == 0 {
		return nil, ErrImportBadHeader
	}

	loc := s.cfg.Schedule.Location()
	resp := &dto.ImportResponse{DroppedRows: table.Dropped}
	schedules := make([]*model.Schedule, 0, len(table.Rows))

	for _, row := range table.Rows {
		sched := &model.Schedule{}
		sched.CreatedBy = &caller.UserID
		sched.UpdatedBy = &caller.UserID
		empty := true
		for h, f := range fields {
			v := row.Values[h]
			if v == "" {
				continue
			}
			empty = false
			if f == model.FieldDate {
				if t, ok := ParseScheduleDate(v, loc); ok {
					sched.Date = &t
				}
				continue
			}
			sched.SetFieldValue(f, v)
		}
		if empty {
			continue
		}
		if sched.Date == nil {
			resp.Undated++
			resp.UndatedRows = append(resp.UndatedRows, row.Line)
			s.logger.Warn("imported row has no valid date", zap.Int("line", row.Line))
		}
		sched.RefreshSearchableParticipants()
		schedules = append(schedules, sched)
	}

	if len(schedules) == 0 {
		return nil, ErrImportNoData
	}

	if err := s.repo.Schedule.BatchCreate(ctx, schedules, s.cfg.Schedule.BatchSize); err != nil {
		s.logger.Error("failed to store imported schedules", zap.Int("rows", len(schedules)), zap.Error(err))
		return nil, err
	}
	resp.Imported = len(schedules)

	if table.Dropped > 0 {
		s.logger.Warn("import dropped rows with wrong field count",
			zap.Int("dropped", table.Dropped),
			zap.Ints("lines", table.DroppedLines),
		)
	}
	s.metrics.ImportedRecords.WithLabelValues("imported").Add(float64(resp.Imported))
	s.metrics.ImportedRecords.WithLabelValues("dropped").Add(float64(resp.DroppedRows))
	s.metrics.ImportedRecords.WithLabelValues("undated").Add(float64(resp.Undated))
	s.events.Publish(EventSchedulesChanged, map[string]interface{}{"action": "import", "count": resp.Imported})

	s.logger.Info("schedules imported",
		zap.Int("imported", resp.Imported),
		zap.Int("dropped", resp.DroppedRows),
		zap.Int("undated", resp.Undated),
	)
	return resp, nil
}

// parseXLSX reads the first sheet of a workbook into the same table shape
// as ParseCSV. Trailing empty cells are not stored by Excel, so short rows
// are padded; only rows wider than the header are dropped.
func parseXLSX(r io.Reader) (*CSVTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("cannot open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("cannot read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyCSV
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = normalizeHeader(h)
	}

	table := &CSVTable{Header: header}
	for i := 1; i < len(rows); i++ {
		line := i + 1
		if len(rows[i]) > len(header) {
			table.Dropped++
			table.DroppedLines = append(table.DroppedLines, line)
			continue
		}
		row := CSVRow{Line: line, Values: make(map[string]string, len(header))}
		blank := true
		for j, h := range header {
			v := ""
			if j < len(rows[i]) {
				v = strings.TrimSpace(rows[i][j])
			}
			if v != "" {
				blank = false
			}
			row.Values[h] = v
		}
		if !blank {
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}
