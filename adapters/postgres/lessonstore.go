package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// LessonStore implements ports.LessonStore using PostgreSQL.
type LessonStore struct {
	db *DB
}

// NewLessonStore creates a new PostgreSQL lesson store.
func NewLessonStore(db *DB) *LessonStore {
	return &LessonStore{db: db}
}

const lessonSelect = `
	SELECT id, student_id, to_char(lesson_date, 'YYYY-MM-DD'), start_time, end_time,
		duration_minutes, fee, transport_fee, status, is_makeup, cancellation_state,
		cancel_requested_at, cancel_processed_at, cancel_caused_by, cancel_reason,
		created_at, updated_at
	FROM lessons`

// Create stores a new lesson.
func (s *LessonStore) Create(ctx context.Context, l lesson.Lesson) error {
	const op = "postgres.LessonStore.Create"

	l = lesson.Normalize(l)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}

	c := l.Cancellation
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lessons (id, student_id, lesson_date, start_time, end_time, duration_minutes,
			fee, transport_fee, status, is_makeup, cancellation_state, cancel_requested_at,
			cancel_processed_at, cancel_caused_by, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, l.ID, l.StudentID, l.Date.Format(dateLayout), l.StartTime, l.EndTime, l.DurationMinutes,
		l.Fee, l.TransportFee, string(l.Status), l.IsMakeup, string(c.State),
		nullTime(c.RequestedAt), nullTime(c.ProcessedAt), string(c.CausedBy), c.Reason,
		l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get retrieves a lesson by ID.
func (s *LessonStore) Get(ctx context.Context, id string) (lesson.Lesson, error) {
	const op = "postgres.LessonStore.Get"

	l, err := scanLesson(s.db.QueryRowContext(ctx, lessonSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return lesson.Lesson{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return lesson.Lesson{}, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// Update writes the mutable fields of a lesson.
func (s *LessonStore) Update(ctx context.Context, l lesson.Lesson) error {
	const op = "postgres.LessonStore.Update"

	l = lesson.Normalize(l)
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}

	c := l.Cancellation
	res, err := s.db.ExecContext(ctx, `
		UPDATE lessons
		SET lesson_date = $1, start_time = $2, end_time = $3, duration_minutes = $4,
			fee = $5, transport_fee = $6, status = $7, is_makeup = $8,
			cancellation_state = $9, cancel_requested_at = $10, cancel_processed_at = $11,
			cancel_caused_by = $12, cancel_reason = $13, updated_at = $14
		WHERE id = $15
	`, l.Date.Format(dateLayout), l.StartTime, l.EndTime, l.DurationMinutes,
		l.Fee, l.TransportFee, string(l.Status), l.IsMakeup,
		string(c.State), nullTime(c.RequestedAt), nullTime(c.ProcessedAt),
		string(c.CausedBy), c.Reason, l.UpdatedAt.UTC(), l.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ListByStudent returns lessons dated within [from, to], ordered by date then ID.
func (s *LessonStore) ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]lesson.Lesson, error) {
	const op = "postgres.LessonStore.ListByStudent"

	rows, err := s.db.QueryContext(ctx, lessonSelect+`
		WHERE student_id = $1 AND lesson_date BETWEEN $2 AND $3
		ORDER BY lesson_date, id
	`, studentID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var lessons []lesson.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return lessons, nil
}

func scanLesson(row rowScanner) (lesson.Lesson, error) {
	var (
		l                      lesson.Lesson
		date, status, state    string
		causedBy               string
		requestedAt, processed sql.NullTime
	)
	err := row.Scan(&l.ID, &l.StudentID, &date, &l.StartTime, &l.EndTime,
		&l.DurationMinutes, &l.Fee, &l.TransportFee, &status, &l.IsMakeup, &state,
		&requestedAt, &processed, &causedBy, &l.Cancellation.Reason,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return lesson.Lesson{}, err
	}

	if l.Date, err = time.Parse(dateLayout, date); err != nil {
		return lesson.Lesson{}, fmt.Errorf("lesson %s: date: %w", l.ID, err)
	}
	l.Status = lesson.Status(status)
	l.Cancellation.State = lesson.CancellationState(state)
	l.Cancellation.CausedBy = lesson.Cause(causedBy)
	l.Cancellation.RequestedAt = timeOrZero(requestedAt)
	l.Cancellation.ProcessedAt = timeOrZero(processed)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}

// Ensure interface compliance.
var _ ports.LessonStore = (*LessonStore)(nil)
