package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"academy/internal/app/apiresp"
	"academy/internal/exam"
	"academy/internal/grading"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc reportService
}

type reportService interface {
	Results(ctx context.Context, examID string, bySchool bool) (*ExamResults, error)
	Summary(ctx context.Context, examID string) (*ExamSummary, error)
	Breakdown(ctx context.Context, examID string) ([]grading.SchoolSummary, error)
	StudentHistory(ctx context.Context, studentID string) ([]HistoryEntry, error)
	ExportExcel(ctx context.Context, examID string) ([]byte, error)
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Results(r.Context(), chi.URLParam(r, "id"), parseBool(r.URL.Query().Get("by_school")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Breakdown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) StudentHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.StudentHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "id")
	b, err := h.svc.ExportExcel(r.Context(), examID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results-%s.xlsx"`, sanitizeFilename(examID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, exam.ErrExamNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func sanitizeFilename(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, v)
}
