package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// LessonStore implements ports.LessonStore using SQLite.
type LessonStore struct {
	db *DB
}

// NewLessonStore creates a new SQLite lesson store.
func NewLessonStore(db *DB) *LessonStore {
	return &LessonStore{db: db}
}

const lessonColumns = `id, student_id, lesson_date, start_time, end_time, duration_minutes,
	fee, transport_fee, status, is_makeup, cancellation_state, cancel_requested_at,
	cancel_processed_at, cancel_caused_by, cancel_reason, created_at, updated_at`

// Create stores a new lesson.
func (s *LessonStore) Create(ctx context.Context, l lesson.Lesson) error {
	l = lesson.Normalize(l)
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}

	c := l.Cancellation
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.StudentID, formatDate(l.Date), l.StartTime, l.EndTime, l.DurationMinutes,
		l.Fee, l.TransportFee, string(l.Status), boolToInt(l.IsMakeup), string(c.State),
		nullTime(c.RequestedAt), nullTime(c.ProcessedAt), string(c.CausedBy), c.Reason,
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt))

	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Get retrieves a lesson by ID.
func (s *LessonStore) Get(ctx context.Context, id string) (lesson.Lesson, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id)
	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return lesson.Lesson{}, ErrNotFound
	}
	return l, err
}

// Update writes the mutable fields of a lesson.
func (s *LessonStore) Update(ctx context.Context, l lesson.Lesson) error {
	l = lesson.Normalize(l)
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}

	c := l.Cancellation
	result, err := s.db.ExecContext(ctx, `
		UPDATE lessons
		SET lesson_date = ?, start_time = ?, end_time = ?, duration_minutes = ?,
			fee = ?, transport_fee = ?, status = ?, is_makeup = ?,
			cancellation_state = ?, cancel_requested_at = ?, cancel_processed_at = ?,
			cancel_caused_by = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ?
	`, formatDate(l.Date), l.StartTime, l.EndTime, l.DurationMinutes,
		l.Fee, l.TransportFee, string(l.Status), boolToInt(l.IsMakeup),
		string(c.State), nullTime(c.RequestedAt), nullTime(c.ProcessedAt),
		string(c.CausedBy), c.Reason, formatTime(l.UpdatedAt), l.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStudent returns lessons dated within [from, to], ordered by date then ID.
func (s *LessonStore) ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]lesson.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE student_id = ? AND lesson_date >= ? AND lesson_date <= ?
		ORDER BY lesson_date, id
	`, studentID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []lesson.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLesson(row rowScanner) (lesson.Lesson, error) {
	var (
		l                      lesson.Lesson
		date, status, state    string
		causedBy               string
		isMakeup               int
		requestedAt, processed sql.NullString
		createdAt, updatedAt   string
	)
	err := row.Scan(&l.ID, &l.StudentID, &date, &l.StartTime, &l.EndTime, &l.DurationMinutes,
		&l.Fee, &l.TransportFee, &status, &isMakeup, &state, &requestedAt,
		&processed, &causedBy, &l.Cancellation.Reason, &createdAt, &updatedAt)
	if err != nil {
		return lesson.Lesson{}, err
	}

	if l.Date, err = parseDate(date); err != nil {
		return lesson.Lesson{}, fmt.Errorf("lesson %s: date: %w", l.ID, err)
	}
	l.Status = lesson.Status(status)
	l.IsMakeup = isMakeup != 0
	l.Cancellation.State = lesson.CancellationState(state)
	l.Cancellation.CausedBy = lesson.Cause(causedBy)
	if l.Cancellation.RequestedAt, err = parseNullTime(requestedAt); err != nil {
		return lesson.Lesson{}, fmt.Errorf("lesson %s: requested_at: %w", l.ID, err)
	}
	if l.Cancellation.ProcessedAt, err = parseNullTime(processed); err != nil {
		return lesson.Lesson{}, fmt.Errorf("lesson %s: processed_at: %w", l.ID, err)
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return lesson.Lesson{}, fmt.Errorf("lesson %s: created_at: %w", l.ID, err)
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return lesson.Lesson{}, fmt.Errorf("lesson %s: updated_at: %w", l.ID, err)
	}
	return l, nil
}

// Ensure interface compliance.
var _ ports.LessonStore = (*LessonStore)(nil)
