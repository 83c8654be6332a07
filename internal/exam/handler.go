package exam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"academy/internal/app/apiresp"
	"academy/internal/grading"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc examService
}

type examService interface {
	List(ctx context.Context) ([]Exam, error)
	Get(ctx context.Context, id string) (*Exam, error)
	Create(ctx context.Context, in ExamInput) (*Exam, error)
	Update(ctx context.Context, id string, in ExamInput) (*Exam, error)
	Delete(ctx context.Context, id string) error
	ReplaceScores(ctx context.Context, examID string, entries []grading.ScoreEntry) (*Exam, error)
	PutScore(ctx context.Context, examID string, entry grading.ScoreEntry) (*Exam, error)
	DeleteScore(ctx context.Context, examID, studentID string) (*Exam, error)
	GradeAnswers(ctx context.Context, examID, studentID string, answers map[int]string) (*SheetResult, error)
}

type examRequest struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Date          string              `json:"date"`
	Mode          string              `json:"mode"`
	TotalItems    int                 `json:"total_items"`
	MaxScore      float64             `json:"max_score"`
	ItemWeights   map[int]float64     `json:"item_weights"`
	AnswerKey     map[int]string      `json:"answer_key"`
	TargetSchool  string              `json:"target_school"`
	PassThreshold *float64            `json:"pass_threshold"`
	GradeBands    []grading.GradeBand `json:"grade_bands"`
}

func (r examRequest) input() ExamInput {
	return ExamInput{
		ID:            r.ID,
		Title:         r.Title,
		Date:          r.Date,
		Mode:          r.Mode,
		TotalItems:    r.TotalItems,
		MaxScore:      r.MaxScore,
		ItemWeights:   r.ItemWeights,
		AnswerKey:     r.AnswerKey,
		TargetSchool:  r.TargetSchool,
		PassThreshold: r.PassThreshold,
		GradeBands:    r.GradeBands,
	}
}

type scoreRequest struct {
	StudentID   string  `json:"student_id"`
	Score       float64 `json:"score"`
	MissedItems []int   `json:"missed_items"`
}

type answersRequest struct {
	Answers map[string]string `json:"answers"`
}

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	exams, err := h.svc.List(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]ListItem, 0, len(exams))
	for _, e := range exams {
		items = append(items, e.ListItem())
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, e)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) ReplaceScores(w http.ResponseWriter, r *http.Request) {
	var req []scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	entries := make([]grading.ScoreEntry, 0, len(req))
	for _, it := range req {
		entries = append(entries, grading.ScoreEntry{
			StudentID:   it.StudentID,
			Score:       it.Score,
			MissedItems: it.MissedItems,
		})
	}
	e, err := h.svc.ReplaceScores(r.Context(), chi.URLParam(r, "id"), entries)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, e)
}

func (h *Handler) PutScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.svc.PutScore(r.Context(), chi.URLParam(r, "id"), grading.ScoreEntry{
		StudentID:   chi.URLParam(r, "studentID"),
		Score:       req.Score,
		MissedItems: req.MissedItems,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, e)
}

func (h *Handler) DeleteScore(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.DeleteScore(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "studentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, e)
}

// GradeAnswers accepts {"answers": {"1": "A", "2": "B,C"}}.
func (h *Handler) GradeAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	answers := make(map[int]string, len(req.Answers))
	for k, v := range req.Answers {
		item, err := strconv.Atoi(k)
		if err != nil || item < 1 {
			apiresp.WriteError(w, r, http.StatusBadRequest, "answer keys must be item numbers")
			return
		}
		answers[item] = v
	}
	res, err := h.svc.GradeAnswers(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "studentID"), answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrExamNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExamExists):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoAnswerKey):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidWeights):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
