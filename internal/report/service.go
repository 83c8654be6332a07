package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"academy/internal/exam"
	"academy/internal/grading"

	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

type examSource interface {
	Get(ctx context.Context, id string) (*exam.Exam, error)
	List(ctx context.Context) ([]exam.Exam, error)
}

type rosterSource interface {
	Roster(ctx context.Context) (grading.Roster, error)
}

// Recorder receives one observation per ranking calculation.
type Recorder interface {
	ObserveCalculation(mode grading.ModeKind, participants int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCalculation(grading.ModeKind, int) {}

type Service struct {
	exams   examSource
	roster  rosterSource
	metrics Recorder
}

type ExamResults struct {
	Exam     exam.ListItem    `json:"exam"`
	BySchool bool             `json:"by_school"`
	Results  []grading.Result `json:"results"`
}

type ExamSummary struct {
	Exam    exam.ListItem   `json:"exam"`
	Summary grading.Summary `json:"summary"`
}

type HistoryEntry struct {
	ExamID       string           `json:"exam_id"`
	Title        string           `json:"title"`
	Date         string           `json:"date,omitempty"`
	Mode         grading.ModeKind `json:"mode"`
	Score        float64          `json:"score"`
	Percentage   *float64         `json:"percentage,omitempty"`
	Rank         int              `json:"rank"`
	Percentile   float64          `json:"percentile"`
	Participants int              `json:"participants"`
	Passed       *bool            `json:"is_passed,omitempty"`
	Grade        string           `json:"grade,omitempty"`
}

func NewService(exams examSource, roster rosterSource, metrics Recorder) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{exams: exams, roster: roster, metrics: metrics}
}

func (s *Service) Results(ctx context.Context, examID string, bySchool bool) (*ExamResults, error) {
	e, results, err := s.calculate(ctx, examID, bySchool)
	if err != nil {
		return nil, err
	}
	return &ExamResults{Exam: e.ListItem(), BySchool: bySchool, Results: results}, nil
}

func (s *Service) Summary(ctx context.Context, examID string) (*ExamSummary, error) {
	e, results, err := s.calculate(ctx, examID, false)
	if err != nil {
		return nil, err
	}
	return &ExamSummary{Exam: e.ListItem(), Summary: grading.Summarize(results, e.ItemCount())}, nil
}

func (s *Service) Breakdown(ctx context.Context, examID string) ([]grading.SchoolSummary, error) {
	_, results, err := s.calculate(ctx, examID, false)
	if err != nil {
		return nil, err
	}
	return grading.Breakdown(results), nil
}

// StudentHistory returns the student's standing in every exam they sat,
// oldest exam first.
func (s *Service) StudentHistory(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	studentID = strings.TrimSpace(studentID)
	exams, err := s.exams.List(ctx)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	out := make([]HistoryEntry, 0)
	for _, e := range exams {
		if !hasEntry(e.Scores, studentID) {
			continue
		}
		results := grading.Calculate(e.Definition(), roster)
		s.metrics.ObserveCalculation(e.Mode, len(results))
		for _, r := range results {
			if r.StudentID != studentID {
				continue
			}
			out = append(out, HistoryEntry{
				ExamID:       e.ID,
				Title:        e.Title,
				Date:         e.Date,
				Mode:         e.Mode,
				Score:        r.Score,
				Percentage:   r.Percentage,
				Rank:         r.Rank,
				Percentile:   r.Percentile,
				Participants: len(results),
				Passed:       r.Passed,
				Grade:        r.Grade,
			})
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// ExportExcel renders the ranked results and the summary as an XLSX workbook.
// Displayed numbers are rounded to two places.
func (s *Service) ExportExcel(ctx context.Context, examID string) ([]byte, error) {
	e, results, err := s.calculate(ctx, examID, false)
	if err != nil {
		return nil, err
	}
	summary := grading.Summarize(results, e.ItemCount())

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"rank", "student_id", "name", "school", "score", "percentage", "percentile", "passed", "grade", "missed_items"}
	writeRow(f, resultsSheet, 1, toAny(headers))
	for i, r := range results {
		writeRow(f, resultsSheet, i+2, []any{
			r.Rank,
			r.StudentID,
			r.Name,
			r.School,
			grading.Round(r.Score, 2),
			optionalRound(r.Percentage),
			grading.Round(r.Percentile, 2),
			passedLabel(r.Passed),
			r.Grade,
			joinItems(r.MissedItems),
		})
	}
	_ = f.SetColWidth(resultsSheet, "A", "J", 18)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"exam", e.Title},
		{"date", e.Date},
		{"mode", string(e.Mode)},
		{"total_students", summary.TotalStudents},
		{"average", grading.Round(summary.Average, 2)},
		{"highest_score", grading.Round(summary.HighestScore, 2)},
		{"lowest_score", grading.Round(summary.LowestScore, 2)},
		{"passed_count", summary.PassedCount},
		{"pass_rate", optionalRound(summary.PassRate)},
	}
	for _, item := range sortedItems(summary.MissedCounts) {
		rows = append(rows, []any{"missed_item_" + strconv.Itoa(item), summary.MissedCounts[item]})
	}
	for i, row := range rows {
		writeRow(f, summarySheet, i+1, row)
	}
	_ = f.SetColWidth(summarySheet, "A", "B", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) calculate(ctx context.Context, examID string, bySchool bool) (*exam.Exam, []grading.Result, error) {
	e, err := s.exams.Get(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load roster: %w", err)
	}

	var results []grading.Result
	if bySchool {
		results = grading.CalculateBySchool(e.Definition(), roster)
	} else {
		results = grading.Calculate(e.Definition(), roster)
	}
	s.metrics.ObserveCalculation(e.Mode, len(results))
	return e, results, nil
}

func hasEntry(scores []grading.ScoreEntry, studentID string) bool {
	for _, it := range scores {
		if it.StudentID == studentID {
			return true
		}
	}
	return false
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func optionalRound(v *float64) any {
	if v == nil {
		return ""
	}
	return grading.Round(*v, 2)
}

func passedLabel(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "yes"
	default:
		return "no"
	}
}

func joinItems(items []int) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = strconv.Itoa(it)
	}
	return strings.Join(parts, ",")
}

func sortedItems(counts map[int]int) []int {
	items := make([]int, 0, len(counts))
	for item := range counts {
		items = append(items, item)
	}
	sort.Ints(items)
	return items
}
