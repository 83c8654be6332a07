package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"academy/internal/exam"
	"academy/internal/grading"

	"github.com/xuri/excelize/v2"
)

type fakeExams struct {
	items []exam.Exam
}

func (f *fakeExams) Get(ctx context.Context, id string) (*exam.Exam, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			e := f.items[i]
			return &e, nil
		}
	}
	return nil, exam.ErrExamNotFound
}

func (f *fakeExams) List(ctx context.Context) ([]exam.Exam, error) {
	return f.items, nil
}

type fakeRoster struct {
	roster grading.Roster
	err    error
}

func (f *fakeRoster) Roster(ctx context.Context) (grading.Roster, error) {
	return f.roster, f.err
}

type countingRecorder struct {
	calls        int
	participants int
}

func (c *countingRecorder) ObserveCalculation(mode grading.ModeKind, participants int) {
	c.calls++
	c.participants += participants
}

func threshold(v float64) *float64 { return &v }

func fixture() (*fakeExams, *fakeRoster) {
	exams := &fakeExams{items: []exam.Exam{
		{
			ID:            "uts",
			Title:         "UTS",
			Date:          "2024-03-10",
			Mode:          grading.KindCount,
			TotalItems:    10,
			PassThreshold: threshold(7),
			Scores: []grading.ScoreEntry{
				{StudentID: "s-1", Score: 8},
				{StudentID: "s-2", Score: 6, MissedItems: []int{1, 2, 3, 4}},
				{StudentID: "s-3", Score: 9, MissedItems: []int{2}},
			},
		},
		{
			ID:         "harian",
			Title:      "Harian",
			Date:       "2024-01-15",
			Mode:       grading.KindSimple,
			TotalItems: 5,
			Scores: []grading.ScoreEntry{
				{StudentID: "s-1", Score: 5},
				{StudentID: "s-3", Score: 4},
			},
		},
		{
			ID:         "lain",
			Title:      "Tanpa s-1",
			Date:       "2024-02-01",
			Mode:       grading.KindCount,
			TotalItems: 5,
			Scores:     []grading.ScoreEntry{{StudentID: "s-2", Score: 3}},
		},
	}}
	roster := &fakeRoster{roster: grading.Roster{
		{ID: "s-1", Name: "Ayu", School: "SMA 1"},
		{ID: "s-2", Name: "Budi", School: "SMA 2"},
		{ID: "s-3", Name: "Citra", School: "SMA 1"},
	}}
	return exams, roster
}

func TestResults(t *testing.T) {
	exams, roster := fixture()
	rec := &countingRecorder{}
	svc := NewService(exams, roster, rec)

	out, err := svc.Results(context.Background(), "uts", true)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if out.Exam.Participants != 3 || !out.BySchool {
		t.Fatalf("unexpected header: %+v", out)
	}
	wantOrder := []string{"s-3", "s-1", "s-2"}
	for i, id := range wantOrder {
		if out.Results[i].StudentID != id || out.Results[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s rank %d, got %+v", i, id, i+1, out.Results[i])
		}
	}
	if out.Results[1].SchoolRank != 2 || out.Results[2].SchoolRank != 1 {
		t.Fatalf("unexpected school ranks: %+v", out.Results)
	}
	if rec.calls != 1 || rec.participants != 3 {
		t.Fatalf("expected one recorded calculation of 3, got %+v", rec)
	}

	if _, err := svc.Results(context.Background(), "missing", false); !errors.Is(err, exam.ErrExamNotFound) {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
}

func TestSummaryAndBreakdown(t *testing.T) {
	exams, roster := fixture()
	svc := NewService(exams, roster, nil)

	sum, err := svc.Summary(context.Background(), "uts")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	s := sum.Summary
	if s.TotalStudents != 3 || s.HighestScore != 9 || s.LowestScore != 6 || s.PassedCount != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.MissedCounts[2] != 2 || s.MissedCounts[4] != 1 {
		t.Fatalf("unexpected missed counts: %v", s.MissedCounts)
	}

	groups, err := svc.Breakdown(context.Background(), "uts")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(groups) != 2 || groups[0].School != "SMA 1" || groups[0].Average != 8.5 || groups[1].School != "SMA 2" {
		t.Fatalf("unexpected breakdown: %+v", groups)
	}
}

func TestRosterFailureIsWrapped(t *testing.T) {
	exams, _ := fixture()
	boom := errors.New("db down")
	svc := NewService(exams, &fakeRoster{err: boom}, nil)

	if _, err := svc.Summary(context.Background(), "uts"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped roster error, got %v", err)
	}
}

func TestStudentHistory(t *testing.T) {
	exams, roster := fixture()
	svc := NewService(exams, roster, nil)

	hist, err := svc.StudentHistory(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 entries, got %+v", hist)
	}
	if hist[0].ExamID != "harian" || hist[0].Rank != 1 || hist[0].Participants != 2 {
		t.Fatalf("unexpected first entry: %+v", hist[0])
	}
	if hist[1].ExamID != "uts" || hist[1].Rank != 2 || hist[1].Passed == nil || !*hist[1].Passed {
		t.Fatalf("unexpected second entry: %+v", hist[1])
	}

	none, err := svc.StudentHistory(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty history, got %v", none)
	}
}

func TestExportExcel(t *testing.T) {
	exams, roster := fixture()
	svc := NewService(exams, roster, nil)

	b, err := svc.ExportExcel(context.Background(), "uts")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	if err != nil {
		t.Fatalf("results rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "rank" || rows[1][1] != "s-3" || rows[1][2] != "Citra" {
		t.Fatalf("unexpected results rows: %v", rows[:2])
	}
	if rows[1][6] != "33.33" {
		t.Fatalf("expected rounded percentile 33.33, got %q", rows[1][6])
	}
	if rows[3][7] != "no" || rows[3][9] != "1,2,3,4" {
		t.Fatalf("unexpected last row: %v", rows[3])
	}

	summary, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("summary rows: %v", err)
	}
	found := map[string]string{}
	for _, row := range summary {
		if len(row) == 2 {
			found[row[0]] = row[1]
		}
	}
	if found["total_students"] != "3" || found["pass_rate"] != "66.67" || found["missed_item_2"] != "2" {
		t.Fatalf("unexpected summary sheet: %v", found)
	}
}
