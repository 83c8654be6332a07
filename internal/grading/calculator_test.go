package grading

import (
	"math"
	"reflect"
	"testing"
)

func threeStudents() Roster {
	return Roster{
		{ID: "a", Name: "Alice", School: "X"},
		{ID: "b", Name: "Bima", School: "Y"},
		{ID: "c", Name: "Citra", School: "X"},
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func byStudent(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.StudentID] = r
	}
	return out
}

func TestCalculate_SimpleRanking(t *testing.T) {
	exam := Exam{
		Mode: PointMode{MaxScore: 100},
		Scores: []ScoreEntry{
			{StudentID: "a", Score: 90},
			{StudentID: "b", Score: 90},
			{StudentID: "c", Score: 70},
		},
	}

	got := byStudent(Calculate(exam, threeStudents()))

	if got["a"].Rank != 1 || got["b"].Rank != 1 {
		t.Fatalf("expected tied rank 1, got a=%d b=%d", got["a"].Rank, got["b"].Rank)
	}
	if got["c"].Rank != 3 {
		t.Fatalf("expected rank 3 after a two-way tie, got %d", got["c"].Rank)
	}
	if !approx(got["a"].Percentile, 100.0/3) || !approx(got["b"].Percentile, 100.0/3) {
		t.Fatalf("expected percentile 33.33, got a=%v b=%v", got["a"].Percentile, got["b"].Percentile)
	}
	if got["c"].Percentile != 100 {
		t.Fatalf("expected percentile 100, got %v", got["c"].Percentile)
	}
	if got["a"].Passed != nil {
		t.Fatalf("pass flag must be unset without a threshold")
	}
	if got["a"].Name != "Alice" || got["a"].School != "X" {
		t.Fatalf("roster fields not copied: %+v", got["a"])
	}
}

func TestCalculate_PassThreshold(t *testing.T) {
	threshold := 80.0
	exam := Exam{
		Mode:          PointMode{MaxScore: 100},
		PassThreshold: &threshold,
		Scores: []ScoreEntry{
			{StudentID: "a", Score: 90},
			{StudentID: "b", Score: 80},
			{StudentID: "c", Score: 70},
		},
	}

	got := byStudent(Calculate(exam, threeStudents()))

	tests := []struct {
		id   string
		want bool
	}{
		{id: "a", want: true},
		{id: "b", want: true},
		{id: "c", want: false},
	}
	for _, tc := range tests {
		r := got[tc.id]
		if r.Passed == nil {
			t.Fatalf("%s: expected pass flag to be set", tc.id)
		}
		if *r.Passed != tc.want {
			t.Fatalf("%s: expected passed=%v, got %v", tc.id, tc.want, *r.Passed)
		}
	}
}

func TestCalculate_EmptyExam(t *testing.T) {
	for _, scores := range [][]ScoreEntry{nil, {}} {
		got := Calculate(Exam{Scores: scores}, threeStudents())
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil results, got %#v", got)
		}
	}
}

func TestCalculate_UnknownStudent(t *testing.T) {
	exam := Exam{Scores: []ScoreEntry{{StudentID: "ghost", Score: 10}}}

	got := Calculate(exam, threeStudents())

	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Name != UnknownName {
		t.Fatalf("expected placeholder name, got %q", got[0].Name)
	}
	if got[0].School != "" {
		t.Fatalf("unknown student should have no school, got %q", got[0].School)
	}
}

func TestCalculate_OrderAndTieStability(t *testing.T) {
	exam := Exam{Scores: []ScoreEntry{
		{StudentID: "c", Score: 50},
		{StudentID: "b", Score: 70},
		{StudentID: "a", Score: 70},
		{StudentID: "d", Score: 90},
		{StudentID: "e", Score: 50},
	}}

	got := Calculate(exam, nil)

	wantIDs := []string{"d", "b", "a", "c", "e"}
	wantRanks := []int{1, 2, 2, 4, 4}
	for i, r := range got {
		if r.StudentID != wantIDs[i] || r.Rank != wantRanks[i] {
			t.Fatalf("position %d: expected %s rank %d, got %s rank %d", i, wantIDs[i], wantRanks[i], r.StudentID, r.Rank)
		}
	}
}

func TestCalculate_RankProperties(t *testing.T) {
	exam := Exam{Scores: []ScoreEntry{
		{StudentID: "1", Score: 12}, {StudentID: "2", Score: 40}, {StudentID: "3", Score: 40},
		{StudentID: "4", Score: 7}, {StudentID: "5", Score: 40}, {StudentID: "6", Score: 12},
		{StudentID: "7", Score: 99}, {StudentID: "8", Score: 0}, {StudentID: "9", Score: 12.5},
	}}

	got := Calculate(exam, nil)

	minPercentile := 101.0
	for _, r := range got {
		if r.Percentile <= 0 || r.Percentile > 100 {
			t.Fatalf("percentile out of bounds: %+v", r)
		}
		if r.Percentile < minPercentile {
			minPercentile = r.Percentile
		}
		greater := 0
		for _, o := range got {
			if o.Score > r.Score {
				greater++
			}
			if o.Score > r.Score && o.Rank > r.Rank {
				t.Fatalf("monotonicity violated: %+v vs %+v", o, r)
			}
			if o.Score == r.Score && o.Rank != r.Rank {
				t.Fatalf("equal scores with different ranks: %+v vs %+v", o, r)
			}
		}
		if r.Rank != greater+1 {
			t.Fatalf("expected competition rank %d, got %d for score %v", greater+1, r.Rank, r.Score)
		}
	}
	for _, r := range got {
		if r.Rank == 1 && r.Percentile != minPercentile {
			t.Fatalf("top result should hold the minimum percentile")
		}
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	threshold := 10.0
	exam := Exam{
		Mode:          CountMode{TotalItems: 20},
		PassThreshold: &threshold,
		GradeBands:    []GradeBand{{Grade: "A", MaxPercentile: 50}, {Grade: "B", MaxPercentile: 100}},
		Scores: []ScoreEntry{
			{StudentID: "a", Score: 15, MissedItems: []int{1, 2}},
			{StudentID: "b", Score: 15},
			{StudentID: "c", Score: 9, MissedItems: []int{3}},
		},
	}

	first := CalculateBySchool(exam, threeStudents())
	second := CalculateBySchool(exam, threeStudents())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output across calls")
	}
}

func TestCalculate_DoesNotAliasInput(t *testing.T) {
	missed := []int{4, 5}
	exam := Exam{Scores: []ScoreEntry{{StudentID: "a", Score: 1, MissedItems: missed}}}

	got := Calculate(exam, threeStudents())
	got[0].MissedItems[0] = 99

	if missed[0] != 4 {
		t.Fatalf("result must not share the input missed list")
	}
}

func TestCalculate_PercentageByMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		score float64
		want  *float64
	}{
		{name: "points declared max", mode: PointMode{MaxScore: 50}, score: 40, want: floatPtr(80)},
		{name: "points from weights", mode: PointMode{Weights: map[int]float64{1: 2, 2: 3}}, score: 4, want: floatPtr(80)},
		{name: "count", mode: CountMode{TotalItems: 20}, score: 15, want: floatPtr(75)},
		{name: "simple", mode: SimpleMode{TotalItems: 10}, score: 7, want: floatPtr(70)},
		{name: "simple without items", mode: SimpleMode{}, score: 7, want: nil},
		{name: "no mode", mode: nil, score: 7, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate(Exam{Mode: tc.mode, Scores: []ScoreEntry{{StudentID: "a", Score: tc.score}}}, nil)
			p := got[0].Percentage
			if tc.want == nil {
				if p != nil {
					t.Fatalf("expected no percentage, got %v", *p)
				}
				return
			}
			if p == nil || !approx(*p, *tc.want) {
				t.Fatalf("expected percentage %v, got %v", *tc.want, p)
			}
		})
	}
}

func TestCalculateBySchool(t *testing.T) {
	roster := Roster{
		{ID: "a", Name: "A", School: "X"},
		{ID: "b", Name: "B", School: "X"},
		{ID: "c", Name: "C", School: "Y"},
		{ID: "d", Name: "D"},
		{ID: "e", Name: "E", School: "X"},
	}
	exam := Exam{Scores: []ScoreEntry{
		{StudentID: "a", Score: 60},
		{StudentID: "b", Score: 80},
		{StudentID: "c", Score: 70},
		{StudentID: "d", Score: 90},
		{StudentID: "e", Score: 80},
		{StudentID: "zz", Score: 10},
	}}

	got := byStudent(CalculateBySchool(exam, roster))

	tests := []struct {
		id               string
		rank             int
		schoolRank       int
		schoolPercentile float64
	}{
		{id: "d", rank: 1, schoolRank: 1, schoolPercentile: 50},
		{id: "b", rank: 2, schoolRank: 1, schoolPercentile: 100.0 / 3},
		{id: "e", rank: 2, schoolRank: 1, schoolPercentile: 100.0 / 3},
		{id: "c", rank: 4, schoolRank: 1, schoolPercentile: 100},
		{id: "a", rank: 5, schoolRank: 3, schoolPercentile: 100},
		{id: "zz", rank: 6, schoolRank: 2, schoolPercentile: 100},
	}
	for _, tc := range tests {
		r := got[tc.id]
		if r.Rank != tc.rank || r.SchoolRank != tc.schoolRank || !approx(r.SchoolPercentile, tc.schoolPercentile) {
			t.Fatalf("%s: expected rank=%d school_rank=%d school_pct=%v, got %d %d %v",
				tc.id, tc.rank, tc.schoolRank, tc.schoolPercentile, r.Rank, r.SchoolRank, r.SchoolPercentile)
		}
	}
}

func TestCalculate_GradeBands(t *testing.T) {
	exam := Exam{
		GradeBands: []GradeBand{
			{Grade: "C", MaxPercentile: 100},
			{Grade: "A", MaxPercentile: 25},
			{Grade: "B", MaxPercentile: 50},
		},
		Scores: []ScoreEntry{
			{StudentID: "1", Score: 4}, {StudentID: "2", Score: 3},
			{StudentID: "3", Score: 2}, {StudentID: "4", Score: 1},
		},
	}

	got := byStudent(Calculate(exam, nil))

	want := map[string]string{"1": "A", "2": "B", "3": "C", "4": "C"}
	for id, grade := range want {
		if got[id].Grade != grade {
			t.Fatalf("%s: expected grade %s, got %s", id, grade, got[id].Grade)
		}
	}
}
