package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// CreditStore implements ports.CreditStore using SQLite.
type CreditStore struct {
	db *DB
}

// NewCreditStore creates a new SQLite credit store.
func NewCreditStore(db *DB) *CreditStore {
	return &CreditStore{db: db}
}

const creditColumns = `id, student_id, total_minutes, granted_minutes, expires_at, origin_lesson_id, created_at`

// Create stores a new credit.
func (s *CreditStore) Create(ctx context.Context, c makeup.Credit) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.GrantedMinutes == 0 {
		c.GrantedMinutes = c.TotalMinutes
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO makeup_credits (`+creditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.StudentID, c.TotalMinutes, c.GrantedMinutes, formatTime(c.ExpiresAt),
		nullString(c.OriginLessonID), formatTime(c.CreatedAt))

	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// ListByStudent returns every credit of the student, soonest expiry first.
func (s *CreditStore) ListByStudent(ctx context.Context, studentID string) ([]makeup.Credit, error) {
	return listCredits(ctx, s.db.DB, studentID)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCredits(ctx context.Context, q querier, studentID string) ([]makeup.Credit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+creditColumns+`
		FROM makeup_credits
		WHERE student_id = ?
		ORDER BY expires_at, id
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []makeup.Credit
	for rows.Next() {
		var (
			c                    makeup.Credit
			origin               sql.NullString
			expiresAt, createdAt string
		)
		if err := rows.Scan(&c.ID, &c.StudentID, &c.TotalMinutes, &c.GrantedMinutes, &expiresAt, &origin, &createdAt); err != nil {
			return nil, err
		}
		if c.ExpiresAt, err = parseTime(expiresAt); err != nil {
			return nil, fmt.Errorf("credit %s: expires_at: %w", c.ID, err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("credit %s: created_at: %w", c.ID, err)
		}
		c.OriginLessonID = origin.String
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// Consume debits the student's credits in one IMMEDIATE transaction.
// The plan is computed from rows read under the write lock; each update is
// additionally guarded so a row never goes negative.
func (s *CreditStore) Consume(ctx context.Context, studentID string, minutes int, now time.Time) ([]makeup.Debit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	credits, err := listCredits(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}

	debits, err := makeup.Plan(credits, minutes, now)
	if err != nil {
		return nil, err
	}

	for _, d := range debits {
		result, err := tx.ExecContext(ctx, `
			UPDATE makeup_credits
			SET total_minutes = total_minutes - ?
			WHERE id = ? AND total_minutes >= ?
		`, d.Minutes, d.CreditID, d.Minutes)
		if err != nil {
			return nil, err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, fmt.Errorf("debit credit %s: %w", d.CreditID, ErrConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume: %w", err)
	}
	return debits, nil
}

// Release returns debited minutes to their credits, capped at the granted amount.
func (s *CreditStore) Release(ctx context.Context, debits []makeup.Debit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range debits {
		result, err := tx.ExecContext(ctx, `
			UPDATE makeup_credits
			SET total_minutes = MIN(granted_minutes, total_minutes + ?)
			WHERE id = ?
		`, d.Minutes, d.CreditID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("release credit %s: %w", d.CreditID, ErrNotFound)
		}
	}
	return tx.Commit()
}

// Ensure interface compliance.
var _ ports.CreditStore = (*CreditStore)(nil)
