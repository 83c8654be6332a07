package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	internaldb "academy/internal/db"
	"academy/internal/grading"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrExamNotFound   = errors.New("exam not found")
	ErrExamExists     = errors.New("exam already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidWeights = errors.New("item weights do not sum to max score")
	ErrNoAnswerKey    = errors.New("exam has no answer key")
)

const weightTolerance = 1e-6

type Service struct {
	db       *sql.DB
	driver   internaldb.Driver
	validate *validator.Validate
	now      func() time.Time
}

type ExamInput struct {
	ID            string  `validate:"omitempty,max=64"`
	Title         string  `validate:"required,max=200"`
	Date          string  `validate:"omitempty,datetime=2006-01-02"`
	Mode          string  `validate:"required,oneof=points count simple"`
	TotalItems    int     `validate:"gte=0,lte=1000"`
	MaxScore      float64 `validate:"gte=0"`
	ItemWeights   map[int]float64
	AnswerKey     map[int]string
	TargetSchool  string   `validate:"max=200"`
	PassThreshold *float64 `validate:"omitempty,gte=0"`
	GradeBands    []grading.GradeBand
}

func NewService(db *sql.DB, driver internaldb.Driver) *Service {
	return &Service{db: db, driver: driver, validate: validator.New(), now: time.Now}
}

const examColumns = `id, title, exam_date, mode, total_items, max_score, item_weights_json,
	answer_key_json, target_school, pass_threshold, grade_bands_json, scores_json,
	created_at, updated_at`

func (s *Service) List(ctx context.Context) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+examColumns+`
		FROM exams
		ORDER BY exam_date DESC, title ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	out := make([]Exam, 0)
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Exam, error) {
	return s.get(ctx, s.db, strings.TrimSpace(id), false)
}

func (s *Service) Create(ctx context.Context, in ExamInput) (*Exam, error) {
	e, err := s.buildExam(in)
	if err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM exams WHERE id = $1)
	`, e.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check exam id: %w", err)
	}
	if exists {
		return nil, ErrExamExists
	}

	weights, key, bands, err := encodeDefinition(e)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exams (
			id, title, exam_date, mode, total_items, max_score, item_weights_json,
			answer_key_json, target_school, pass_threshold, grade_bands_json, scores_json,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '[]', $12, $13)
	`, e.ID, e.Title, e.Date, string(e.Mode), e.TotalItems, e.MaxScore, weights,
		key, e.TargetSchool, nullFloat(e.PassThreshold), bands, now, now)
	if err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return s.Get(ctx, e.ID)
}

// Update replaces the exam definition and keeps its score entries.
func (s *Service) Update(ctx context.Context, id string, in ExamInput) (*Exam, error) {
	in.ID = strings.TrimSpace(id)
	if in.ID == "" {
		return nil, ErrInvalidInput
	}
	e, err := s.buildExam(in)
	if err != nil {
		return nil, err
	}
	weights, key, bands, err := encodeDefinition(e)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE exams
		SET title = $1,
			exam_date = $2,
			mode = $3,
			total_items = $4,
			max_score = $5,
			item_weights_json = $6,
			answer_key_json = $7,
			target_school = $8,
			pass_threshold = $9,
			grade_bands_json = $10,
			updated_at = $11
		WHERE id = $12
	`, e.Title, e.Date, string(e.Mode), e.TotalItems, e.MaxScore, weights, key,
		e.TargetSchool, nullFloat(e.PassThreshold), bands, s.now().UnixMilli(), e.ID)
	if err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrExamNotFound
	}
	return s.Get(ctx, e.ID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExamNotFound
	}
	return nil
}

// ReplaceScores swaps the full set of score entries. Each student may appear once.
func (s *Service) ReplaceScores(ctx context.Context, examID string, entries []grading.ScoreEntry) (*Exam, error) {
	return s.mutateScores(ctx, examID, func(e *Exam) error {
		seen := make(map[string]struct{}, len(entries))
		clean := make([]grading.ScoreEntry, 0, len(entries))
		for i, entry := range entries {
			entry, err := checkEntry(*e, entry)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			if _, dup := seen[entry.StudentID]; dup {
				return fmt.Errorf("%w: duplicate student %s", ErrInvalidInput, entry.StudentID)
			}
			seen[entry.StudentID] = struct{}{}
			clean = append(clean, entry)
		}
		e.Scores = clean
		return nil
	})
}

// PutScore replaces the student's entry or appends it when absent.
func (s *Service) PutScore(ctx context.Context, examID string, entry grading.ScoreEntry) (*Exam, error) {
	return s.mutateScores(ctx, examID, func(e *Exam) error {
		entry, err := checkEntry(*e, entry)
		if err != nil {
			return err
		}
		e.Scores = upsertEntry(e.Scores, entry)
		return nil
	})
}

func (s *Service) DeleteScore(ctx context.Context, examID, studentID string) (*Exam, error) {
	studentID = strings.TrimSpace(studentID)
	return s.mutateScores(ctx, examID, func(e *Exam) error {
		kept := e.Scores[:0:0]
		for _, it := range e.Scores {
			if it.StudentID != studentID {
				kept = append(kept, it)
			}
		}
		e.Scores = kept
		return nil
	})
}

// GradeAnswers scores a student's answer sheet against the exam's answer key
// and stores the resulting entry.
func (s *Service) GradeAnswers(ctx context.Context, examID, studentID string, answers map[int]string) (*SheetResult, error) {
	var sheet SheetResult
	_, err := s.mutateScores(ctx, examID, func(e *Exam) error {
		if len(e.AnswerKey) == 0 {
			return ErrNoAnswerKey
		}
		sheet = ScoreSheet(e.Mode, e.AnswerKey, e.ItemWeights, answers)
		entry, err := checkEntry(*e, grading.ScoreEntry{
			StudentID:   studentID,
			Score:       sheet.Score,
			MissedItems: sheet.Missed,
			Answers:     answers,
		})
		if err != nil {
			return err
		}
		e.Scores = upsertEntry(e.Scores, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (s *Service) mutateScores(ctx context.Context, examID string, fn func(e *Exam) error) (*Exam, error) {
	examID = strings.TrimSpace(examID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	e, err := s.get(ctx, tx, examID, s.driver == internaldb.DriverPostgres)
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}

	scores, err := json.Marshal(e.Scores)
	if err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	now := s.now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE exams SET scores_json = $1, updated_at = $2 WHERE id = $3
	`, string(scores), now.UnixMilli(), examID); err != nil {
		return nil, fmt.Errorf("save scores: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit scores: %w", err)
	}
	e.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return e, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Service) get(ctx context.Context, q queryer, id string, forUpdate bool) (*Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	e, err := scanExam(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Service) buildExam(in ExamInput) (Exam, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Mode = strings.ToLower(strings.TrimSpace(in.Mode))
	in.TargetSchool = strings.TrimSpace(in.TargetSchool)
	if err := s.validate.Struct(in); err != nil {
		return Exam{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	mode, _ := grading.ParseModeKind(in.Mode)

	e := Exam{
		ID:            in.ID,
		Title:         in.Title,
		Date:          in.Date,
		Mode:          mode,
		TotalItems:    in.TotalItems,
		MaxScore:      in.MaxScore,
		TargetSchool:  in.TargetSchool,
		PassThreshold: in.PassThreshold,
		GradeBands:    in.GradeBands,
	}

	if len(in.ItemWeights) > 0 {
		if mode != grading.KindPoints {
			return Exam{}, fmt.Errorf("%w: item weights only apply to points mode", ErrInvalidInput)
		}
		for item, w := range in.ItemWeights {
			if item < 1 || (in.TotalItems > 0 && item > in.TotalItems) {
				return Exam{}, fmt.Errorf("%w: weight for unknown item %d", ErrInvalidInput, item)
			}
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return Exam{}, fmt.Errorf("%w: invalid weight for item %d", ErrInvalidInput, item)
			}
		}
		sum := grading.WeightSum(in.ItemWeights)
		if e.MaxScore == 0 {
			e.MaxScore = sum
		} else if math.Abs(sum-e.MaxScore) > weightTolerance {
			return Exam{}, ErrInvalidWeights
		}
		e.ItemWeights = in.ItemWeights
	}

	limit := e.ItemCount()
	if len(in.AnswerKey) > 0 {
		key := make(map[int]string, len(in.AnswerKey))
		for item, v := range in.AnswerKey {
			if item < 1 || (limit > 0 && item > limit) {
				return Exam{}, fmt.Errorf("%w: answer key for unknown item %d", ErrInvalidInput, item)
			}
			if v = strings.TrimSpace(v); v != "" {
				key[item] = v
			}
		}
		e.AnswerKey = key
	}

	if !grading.ValidateBands(in.GradeBands) {
		return Exam{}, fmt.Errorf("%w: grade bands need a grade and a limit in (0, 100]", ErrInvalidInput)
	}
	if in.PassThreshold != nil {
		if maxScore := grading.MaxScore(e.mode()); maxScore > 0 && *in.PassThreshold > maxScore {
			return Exam{}, fmt.Errorf("%w: pass threshold above max score", ErrInvalidInput)
		}
	}
	return e, nil
}

func checkEntry(e Exam, entry grading.ScoreEntry) (grading.ScoreEntry, error) {
	entry.StudentID = strings.TrimSpace(entry.StudentID)
	if entry.StudentID == "" {
		return entry, fmt.Errorf("%w: student_id is required", ErrInvalidInput)
	}
	if entry.Score < 0 || math.IsNaN(entry.Score) || math.IsInf(entry.Score, 0) {
		return entry, fmt.Errorf("%w: invalid score for %s", ErrInvalidInput, entry.StudentID)
	}
	if maxScore := grading.MaxScore(e.mode()); maxScore > 0 && entry.Score > maxScore+weightTolerance {
		return entry, fmt.Errorf("%w: score %v above max %v", ErrInvalidInput, entry.Score, maxScore)
	}
	limit := e.ItemCount()
	if len(entry.MissedItems) > 0 {
		items := make([]int, 0, len(entry.MissedItems))
		seen := make(map[int]struct{}, len(entry.MissedItems))
		for _, item := range entry.MissedItems {
			if item < 1 || (limit > 0 && item > limit) {
				return entry, fmt.Errorf("%w: missed item %d out of range", ErrInvalidInput, item)
			}
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			items = append(items, item)
		}
		sort.Ints(items)
		entry.MissedItems = items
	}
	return entry, nil
}

func upsertEntry(scores []grading.ScoreEntry, entry grading.ScoreEntry) []grading.ScoreEntry {
	out := append([]grading.ScoreEntry(nil), scores...)
	for i := range out {
		if out[i].StudentID == entry.StudentID {
			out[i] = entry
			return out
		}
	}
	return append(out, entry)
}

func encodeDefinition(e Exam) (weights, key, bands string, err error) {
	w, err := json.Marshal(nonNilWeights(e.ItemWeights))
	if err != nil {
		return "", "", "", fmt.Errorf("encode weights: %w", err)
	}
	k, err := json.Marshal(nonNilKey(e.AnswerKey))
	if err != nil {
		return "", "", "", fmt.Errorf("encode answer key: %w", err)
	}
	b := []byte("[]")
	if len(e.GradeBands) > 0 {
		if b, err = json.Marshal(e.GradeBands); err != nil {
			return "", "", "", fmt.Errorf("encode grade bands: %w", err)
		}
	}
	return string(w), string(k), string(b), nil
}

func nonNilWeights(m map[int]float64) map[int]float64 {
	if m == nil {
		return map[int]float64{}
	}
	return m
}

func nonNilKey(m map[int]string) map[int]string {
	if m == nil {
		return map[int]string{}
	}
	return m
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (Exam, error) {
	var (
		e                           Exam
		mode                        string
		weights, key, bands, scores string
		threshold                   sql.NullFloat64
		createdAt, updatedAt        int64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Date, &mode, &e.TotalItems, &e.MaxScore, &weights,
		&key, &e.TargetSchool, &threshold, &bands, &scores, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, err
		}
		return Exam{}, fmt.Errorf("scan exam: %w", err)
	}
	e.Mode = grading.ModeKind(mode)
	if threshold.Valid {
		v := threshold.Float64
		e.PassThreshold = &v
	}
	if err := json.Unmarshal([]byte(weights), &e.ItemWeights); err != nil {
		return Exam{}, fmt.Errorf("decode weights: %w", err)
	}
	if err := json.Unmarshal([]byte(key), &e.AnswerKey); err != nil {
		return Exam{}, fmt.Errorf("decode answer key: %w", err)
	}
	if err := json.Unmarshal([]byte(bands), &e.GradeBands); err != nil {
		return Exam{}, fmt.Errorf("decode grade bands: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &e.Scores); err != nil {
		return Exam{}, fmt.Errorf("decode scores: %w", err)
	}
	if len(e.ItemWeights) == 0 {
		e.ItemWeights = nil
	}
	if len(e.AnswerKey) == 0 {
		e.AnswerKey = nil
	}
	if len(e.GradeBands) == 0 {
		e.GradeBands = nil
	}
	if e.Scores == nil {
		e.Scores = []grading.ScoreEntry{}
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return e, nil
}
