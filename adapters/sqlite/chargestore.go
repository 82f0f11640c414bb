package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// ChargeStore implements ports.ChargeStore using SQLite.
type ChargeStore struct {
	db *DB
}

// NewChargeStore creates a new SQLite charge store.
func NewChargeStore(db *DB) *ChargeStore {
	return &ChargeStore{db: db}
}

// Create stores a new charge.
func (s *ChargeStore) Create(ctx context.Context, c billing.OtherCharge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var chargeDate sql.NullString
	if c.ChargeDate != nil {
		chargeDate = sql.NullString{String: formatDate(*c.ChargeDate), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO other_charges (id, student_id, year_month, charge_date, description, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.StudentID, c.Month.String(), chargeDate, c.Description, c.Amount, formatTime(c.CreatedAt))

	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Get retrieves a charge by ID.
func (s *ChargeStore) Get(ctx context.Context, id string) (billing.OtherCharge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, year_month, charge_date, description, amount, created_at
		FROM other_charges
		WHERE id = ?
	`, id)
	c, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.OtherCharge{}, ErrNotFound
	}
	return c, err
}

// Delete removes a charge.
func (s *ChargeStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM other_charges WHERE id = ?`, id)
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

// ListByStudentMonth returns one invoice's charges ordered by creation time then ID.
func (s *ChargeStore) ListByStudentMonth(ctx context.Context, studentID string, month period.Month) ([]billing.OtherCharge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, year_month, charge_date, description, amount, created_at
		FROM other_charges
		WHERE student_id = ? AND year_month = ?
		ORDER BY created_at, id
	`, studentID, month.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []billing.OtherCharge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

func scanCharge(row rowScanner) (billing.OtherCharge, error) {
	var (
		c          billing.OtherCharge
		yearMonth  string
		chargeDate sql.NullString
		createdAt  string
	)
	if err := row.Scan(&c.ID, &c.StudentID, &yearMonth, &chargeDate, &c.Description, &c.Amount, &createdAt); err != nil {
		return billing.OtherCharge{}, err
	}

	var err error
	if c.Month, err = period.ParseMonth(yearMonth); err != nil {
		return billing.OtherCharge{}, fmt.Errorf("charge %s: %w", c.ID, err)
	}
	if chargeDate.Valid {
		d, err := parseDate(chargeDate.String)
		if err != nil {
			return billing.OtherCharge{}, fmt.Errorf("charge %s: charge_date: %w", c.ID, err)
		}
		c.ChargeDate = &d
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return billing.OtherCharge{}, fmt.Errorf("charge %s: created_at: %w", c.ID, err)
	}
	return c, nil
}

// Ensure interface compliance.
var _ ports.ChargeStore = (*ChargeStore)(nil)
