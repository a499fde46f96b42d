package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrEmptyCSV input has no header row
var ErrEmptyCSV = errors.New("csv has no header row")

// CSVTable parsed spreadsheet export
type CSVTable struct {
	Header []string
	Rows   []CSVRow
	// rows dropped because their field count differed from the header
	Dropped      int
	DroppedLines []int
}

// CSVRow one data row keyed by header name
type CSVRow struct {
	Line   int
	Values map[string]string
}

// ParseCSV reads comma-separated text. The first record is the header;
// spaces in header names become underscores. Quoted fields may contain
// commas. Every value is trimmed. Rows with a different field count than
// the header are dropped and counted.
func ParseCSV(r io.Reader) (*CSVTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}

	table := &CSVTable{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			table.Dropped++
			table.DroppedLines = append(table.DroppedLines, parseErr.StartLine)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(header) {
			table.Dropped++
			table.DroppedLines = append(table.DroppedLines, line)
			continue
		}

		row := CSVRow{Line: line, Values: make(map[string]string, len(header))}
		for i, h := range header {
			row.Values[h] = strings.TrimSpace(rec[i])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// normalizeHeader drops a leading BOM and turns spaces into underscores
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	return strings.ReplaceAll(h, " ", "_")
}

// Accepted sheet date layouts, tried in order. The day-first layout has
// no seconds; the month-first locale layout always does.
var scheduleDateLayouts = []string{
	"2/1/2006 15:04",
	"1/2/2006 15:04:05",
}

// ParseScheduleDate parses a sheet date in loc. ok is false when no
// layout matches.
func ParseScheduleDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range scheduleDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
