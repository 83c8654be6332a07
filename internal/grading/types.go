// Package grading turns raw exam entries into ranked results and aggregates them.
//
// Every function in this package is pure: inputs are never mutated and each call
// returns freshly allocated values, so concurrent use needs no synchronisation.
package grading

import "time"

// UnknownName is the display name used when a score entry references a student
// that is missing from the roster.
const UnknownName = "Unknown"

type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	School string `json:"school,omitempty"`
	Note   string `json:"note,omitempty"`
}

type Roster []Student

func (r Roster) index() map[string]Student {
	out := make(map[string]Student, len(r))
	for _, s := range r {
		if _, exists := out[s.ID]; exists {
			continue
		}
		out[s.ID] = s
	}
	return out
}

// ScoreEntry is one student's raw performance on one exam. Score is a point
// total or a correct-item count depending on the exam mode.
type ScoreEntry struct {
	StudentID   string         `json:"student_id"`
	Score       float64        `json:"score"`
	MissedItems []int          `json:"missed_items,omitempty"`
	Answers     map[int]string `json:"answers,omitempty"`
}

type Exam struct {
	ID           string
	Title        string
	Date         time.Time
	Mode         Mode
	TargetSchool string
	// PassThreshold is in raw score units. Nil means the exam has no pass mark.
	PassThreshold *float64
	GradeBands    []GradeBand
	Scores        []ScoreEntry
}

// Result is one ranked participant row.
//
// Percentile is positional: Rank / participants * 100, so the top scorer has the
// smallest value. It is not a cumulative-distribution percentile.
type Result struct {
	StudentID        string   `json:"student_id"`
	Name             string   `json:"name"`
	School           string   `json:"school,omitempty"`
	Note             string   `json:"note,omitempty"`
	Score            float64  `json:"score"`
	Percentage       *float64 `json:"percentage,omitempty"`
	Rank             int      `json:"rank"`
	Percentile       float64  `json:"percentile"`
	Passed           *bool    `json:"is_passed,omitempty"`
	MissedItems      []int    `json:"missed_items,omitempty"`
	Grade            string   `json:"grade,omitempty"`
	SchoolRank       int      `json:"school_rank,omitempty"`
	SchoolPercentile float64  `json:"school_percentile,omitempty"`
}

type Summary struct {
	Average       float64     `json:"average"`
	TotalStudents int         `json:"total_students"`
	HighestScore  float64     `json:"highest_score"`
	LowestScore   float64     `json:"lowest_score"`
	MissedCounts  map[int]int `json:"missed_counts"`
	PassedCount   int         `json:"passed_count"`
	PassRate      *float64    `json:"pass_rate,omitempty"`
}

type SchoolSummary struct {
	School        string  `json:"school"`
	Average       float64 `json:"average"`
	HighestScore  float64 `json:"highest_score"`
	TotalStudents int     `json:"total_students"`
}
