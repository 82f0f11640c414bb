package postgres

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

// ChargeStore implements ports.ChargeStore using PostgreSQL.
type ChargeStore struct {
	db *DB
}

// NewChargeStore creates a new PostgreSQL charge store.
func NewChargeStore(db *DB) *ChargeStore {
	return &ChargeStore{db: db}
}

const chargeSelect = `
	SELECT id, student_id, year_month, to_char(charge_date, 'YYYY-MM-DD'), description, amount, created_at
	FROM other_charges`

// Create stores a new charge.
func (s *ChargeStore) Create(ctx context.Context, c billing.OtherCharge) error {
	const op = "postgres.ChargeStore.Create"

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var chargeDate sql.NullString
	if c.ChargeDate != nil {
		chargeDate = sql.NullString{String: c.ChargeDate.Format(dateLayout), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO other_charges (id, student_id, year_month, charge_date, description, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.StudentID, c.Month.String(), chargeDate, c.Description, c.Amount, c.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get retrieves a charge by ID.
func (s *ChargeStore) Get(ctx context.Context, id string) (billing.OtherCharge, error) {
	const op = "postgres.ChargeStore.Get"

	c, err := scanCharge(s.db.QueryRowContext(ctx, chargeSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return billing.OtherCharge{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return billing.OtherCharge{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Delete removes a charge.
func (s *ChargeStore) Delete(ctx context.Context, id string) error {
	const op = "postgres.ChargeStore.Delete"

	res, err := s.db.ExecContext(ctx, `DELETE FROM other_charges WHERE id = $1`, id)
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

// ListByStudentMonth returns one invoice's charges ordered by creation time then ID.
func (s *ChargeStore) ListByStudentMonth(ctx context.Context, studentID string, month period.Month) ([]billing.OtherCharge, error) {
	const op = "postgres.ChargeStore.ListByStudentMonth"

	rows, err := s.db.QueryContext(ctx, chargeSelect+`
		WHERE student_id = $1 AND year_month = $2
		ORDER BY created_at, id
	`, studentID, month.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var charges []billing.OtherCharge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return charges, nil
}

func scanCharge(row rowScanner) (billing.OtherCharge, error) {
	var (
		c          billing.OtherCharge
		yearMonth  string
		chargeDate sql.NullString
	)
	if err := row.Scan(&c.ID, &c.StudentID, &yearMonth, &chargeDate, &c.Description, &c.Amount, &c.CreatedAt); err != nil {
		return billing.OtherCharge{}, err
	}

	month, err := period.ParseMonth(yearMonth)
	if err != nil {
		return billing.OtherCharge{}, fmt.Errorf("charge %s: %w", c.ID, err)
	}
	c.Month = month
	if chargeDate.Valid {
		d, err := time.Parse(dateLayout, chargeDate.String)
		if err != nil {
			return billing.OtherCharge{}, fmt.Errorf("charge %s: charge_date: %w", c.ID, err)
		}
		c.ChargeDate = &d
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// Ensure interface compliance.
var _ ports.ChargeStore = (*ChargeStore)(nil)
