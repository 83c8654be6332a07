package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"academy/internal/grading"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type ImportReport struct {
	TotalRows   int              `json:"total_rows"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	Errors      []ImportRowError `json:"errors"`
}

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportCSV reads a header row followed by students. Columns: name (required),
// id, school, note. Rows with an existing id replace that student.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", ErrInvalidInput, err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	report := newReport()
	rowNo := 1
	for {
		rowNo++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		report.TotalRows++
		if err != nil {
			report.fail(rowNo, fmt.Sprintf("csv parse error: %v", err))
			continue
		}
		s.importRow(ctx, report, rowNo, rec, index)
	}
	return report, nil
}

// ImportExcel reads the first sheet of an xlsx workbook with the same columns
// as ImportCSV.
func (s *Service) ImportExcel(ctx context.Context, r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open excel: %v", ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: excel has no sheets", ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: excel sheet is empty", ErrInvalidInput)
	}
	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	report := newReport()
	for i := 1; i < len(rows); i++ {
		report.TotalRows++
		s.importRow(ctx, report, i+1, rows[i], index)
	}
	return report, nil
}

func (s *Service) importRow(ctx context.Context, report *ImportReport, rowNo int, rec []string, index map[string]int) {
	if isRowEmpty(rec) {
		report.TotalRows--
		return
	}

	st := grading.Student{
		ID:     cell(rec, index, "id"),
		Name:   cell(rec, index, "name"),
		School: cell(rec, index, "school"),
		Note:   cell(rec, index, "note"),
	}
	if st.Name == "" {
		report.fail(rowNo, "name is required")
		return
	}
	if len(st.ID) > 64 {
		report.fail(rowNo, "id is too long")
		return
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if err := s.upsert(ctx, st); err != nil {
		report.fail(rowNo, err.Error())
		return
	}
	report.SuccessRows++
}

func newReport() *ImportReport {
	return &ImportReport{Errors: make([]ImportRowError, 0)}
}

func (r *ImportReport) fail(row int, msg string) {
	r.FailedRows++
	r.Errors = append(r.Errors, ImportRowError{Row: row, Error: msg})
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if n != "" {
			if _, dup := index[n]; !dup {
				index[n] = i
			}
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("%w: missing required column: name", ErrInvalidInput)
	}
	return index, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	switch h {
	case "student_id", "studentid":
		return "id"
	case "full_name", "student_name":
		return "name"
	case "school_name":
		return "school"
	case "notes", "contact":
		return "note"
	}
	return h
}

func cell(rec []string, index map[string]int, key string) string {
	i, ok := index[key]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isRowEmpty(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
