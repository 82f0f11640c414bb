package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// CreditStore implements ports.CreditStore using PostgreSQL.
type CreditStore struct {
	db *DB
}

// NewCreditStore creates a new PostgreSQL credit store.
func NewCreditStore(db *DB) *CreditStore {
	return &CreditStore{db: db}
}

const creditSelect = `
	SELECT id, student_id, total_minutes, granted_minutes, expires_at, origin_lesson_id, created_at
	FROM makeup_credits`

// Create stores a new credit.
func (s *CreditStore) Create(ctx context.Context, c makeup.Credit) error {
	const op = "postgres.CreditStore.Create"

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.GrantedMinutes == 0 {
		c.GrantedMinutes = c.TotalMinutes
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO makeup_credits (id, student_id, total_minutes, granted_minutes, expires_at, origin_lesson_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.StudentID, c.TotalMinutes, c.GrantedMinutes, c.ExpiresAt.UTC(),
		nullString(c.OriginLessonID), c.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListByStudent returns every credit of the student, soonest expiry first.
func (s *CreditStore) ListByStudent(ctx context.Context, studentID string) ([]makeup.Credit, error) {
	const op = "postgres.CreditStore.ListByStudent"

	rows, err := s.db.QueryContext(ctx, creditSelect+`
		WHERE student_id = $1
		ORDER BY expires_at, id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	credits, err := scanCredits(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return credits, nil
}

// Consume locks the student's available credit rows, plans the FIFO debit
// on what it read and applies it before committing. Concurrent consumes for
// the same student queue on the row locks; other students are unaffected.
func (s *CreditStore) Consume(ctx context.Context, studentID string, minutes int, now time.Time) ([]makeup.Debit, error) {
	const op = "postgres.CreditStore.Consume"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, creditSelect+`
		WHERE student_id = $1 AND total_minutes > 0 AND expires_at > $2
		ORDER BY expires_at, id
		FOR UPDATE
	`, studentID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}
	credits, err := scanCredits(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	debits, err := makeup.Plan(credits, minutes, now)
	if err != nil {
		return nil, err
	}

	for _, d := range debits {
		res, err := tx.ExecContext(ctx, `
			UPDATE makeup_credits
			SET total_minutes = total_minutes - $1
			WHERE id = $2 AND total_minutes >= $1
		`, d.Minutes, d.CreditID)
		if err != nil {
			return nil, fmt.Errorf("%s: update: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n != 1 {
			return nil, fmt.Errorf("%s: credit %s: %w", op, d.CreditID, ErrConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}
	return debits, nil
}

// Release returns debited minutes to their credits, capped at the granted amount.
func (s *CreditStore) Release(ctx context.Context, debits []makeup.Debit) error {
	const op = "postgres.CreditStore.Release"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	for _, d := range debits {
		res, err := tx.ExecContext(ctx, `
			UPDATE makeup_credits
			SET total_minutes = LEAST(granted_minutes, total_minutes + $1)
			WHERE id = $2
		`, d.Minutes, d.CreditID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n == 0 {
			return fmt.Errorf("%s: credit %s: %w", op, d.CreditID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func scanCredits(rows *sql.Rows) ([]makeup.Credit, error) {
	defer rows.Close()

	var credits []makeup.Credit
	for rows.Next() {
		var (
			c      makeup.Credit
			origin sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.StudentID, &c.TotalMinutes, &c.GrantedMinutes, &c.ExpiresAt, &origin, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ExpiresAt = c.ExpiresAt.UTC()
		c.CreatedAt = c.CreatedAt.UTC()
		c.OriginLessonID = origin.String
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// Ensure interface compliance.
var _ ports.CreditStore = (*CreditStore)(nil)
