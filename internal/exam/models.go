package exam

import (
	"time"

	"academy/internal/grading"
)

const dateLayout = "2006-01-02"

// Exam is the persisted exam definition including its raw score entries.
type Exam struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Date          string               `json:"date,omitempty"`
	Mode          grading.ModeKind     `json:"mode"`
	TotalItems    int                  `json:"total_items"`
	MaxScore      float64              `json:"max_score,omitempty"`
	ItemWeights   map[int]float64      `json:"item_weights,omitempty"`
	AnswerKey     map[int]string       `json:"answer_key,omitempty"`
	TargetSchool  string               `json:"target_school,omitempty"`
	PassThreshold *float64             `json:"pass_threshold,omitempty"`
	GradeBands    []grading.GradeBand  `json:"grade_bands,omitempty"`
	Scores        []grading.ScoreEntry `json:"scores"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type ListItem struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Date         string           `json:"date,omitempty"`
	Mode         grading.ModeKind `json:"mode"`
	TotalItems   int              `json:"total_items"`
	TargetSchool string           `json:"target_school,omitempty"`
	Participants int              `json:"participants"`
}

func (e Exam) ListItem() ListItem {
	return ListItem{
		ID:           e.ID,
		Title:        e.Title,
		Date:         e.Date,
		Mode:         e.Mode,
		TotalItems:   e.TotalItems,
		TargetSchool: e.TargetSchool,
		Participants: len(e.Scores),
	}
}

// Definition converts the stored exam into the grading engine's input.
func (e Exam) Definition() grading.Exam {
	def := grading.Exam{
		ID:            e.ID,
		Title:         e.Title,
		Mode:          e.mode(),
		TargetSchool:  e.TargetSchool,
		PassThreshold: e.PassThreshold,
		GradeBands:    e.GradeBands,
		Scores:        e.Scores,
	}
	if d, err := time.Parse(dateLayout, e.Date); err == nil {
		def.Date = d
	}
	return def
}

func (e Exam) mode() grading.Mode {
	switch e.Mode {
	case grading.KindPoints:
		return grading.PointMode{MaxScore: e.MaxScore, Weights: e.ItemWeights}
	case grading.KindCount:
		return grading.CountMode{TotalItems: e.TotalItems}
	case grading.KindSimple:
		return grading.SimpleMode{TotalItems: e.TotalItems}
	default:
		return nil
	}
}

// ItemCount is the number of items the exam declares, falling back to the
// highest weighted item for point exams without an explicit count.
func (e Exam) ItemCount() int {
	if e.TotalItems > 0 {
		return e.TotalItems
	}
	return grading.TotalItems(e.mode())
}
