package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"academy/internal/grading"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrStudentNotFound   = errors.New("student not found")
	ErrStudentExists     = errors.New("student already exists")
	ErrUnsupportedFormat = errors.New("unsupported import format")
)

type Service struct {
	db       *sql.DB
	validate *validator.Validate
	now      func() time.Time
}

type Student struct {
	grading.Student
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateStudentInput struct {
	ID     string `validate:"omitempty,max=64"`
	Name   string `validate:"required,max=200"`
	School string `validate:"max=200"`
	Note   string `validate:"max=1000"`
}

type UpdateStudentInput struct {
	Name   string `validate:"required,max=200"`
	School string `validate:"max=200"`
	Note   string `validate:"max=1000"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, validate: validator.New(), now: time.Now}
}

func (s *Service) List(ctx context.Context, school string) ([]Student, error) {
	query := `
		SELECT id, name, school, note, created_at, updated_at
		FROM students
	`
	args := []any{}
	school = strings.TrimSpace(school)
	if school != "" {
		query += " WHERE school = $1"
		args = append(args, school)
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	out := make([]Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}

// Roster returns every student in the shape the grading engine consumes.
func (s *Service) Roster(ctx context.Context) (grading.Roster, error) {
	items, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(grading.Roster, 0, len(items))
	for _, it := range items {
		out = append(out, it.Student)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, school, note, created_at, updated_at
		FROM students
		WHERE id = $1
	`, strings.TrimSpace(id))
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

func (s *Service) Create(ctx context.Context, in CreateStudentInput) (*Student, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.School = strings.TrimSpace(in.School)
	in.Note = strings.TrimSpace(in.Note)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)
	`, in.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check student id: %w", err)
	}
	if exists {
		return nil, ErrStudentExists
	}

	now := s.now().UnixMilli()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, school, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, in.ID, in.Name, in.School, in.Note, now, now); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return s.Get(ctx, in.ID)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateStudentInput) (*Student, error) {
	id = strings.TrimSpace(id)
	in.Name = strings.TrimSpace(in.Name)
	in.School = strings.TrimSpace(in.School)
	in.Note = strings.TrimSpace(in.Note)
	if id == "" {
		return nil, ErrInvalidInput
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET name = $1,
			school = $2,
			note = $3,
			updated_at = $4
		WHERE id = $5
	`, in.Name, in.School, in.Note, s.now().UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrStudentNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// upsert inserts or replaces a student keyed by id. Used by bulk import.
func (s *Service) upsert(ctx context.Context, st grading.Student) error {
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, school, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			school = EXCLUDED.school,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at
	`, st.ID, st.Name, st.School, st.Note, now, now)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (Student, error) {
	var st Student
	var createdAt, updatedAt int64
	if err := row.Scan(&st.ID, &st.Name, &st.School, &st.Note, &createdAt, &updatedAt); err != nil {
		return Student{}, err
	}
	st.CreatedAt = time.UnixMilli(createdAt).UTC()
	st.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return st, nil
}
