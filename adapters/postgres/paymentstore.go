package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// PaymentStore implements ports.PaymentStore using PostgreSQL.
type PaymentStore struct {
	db *DB
}

// NewPaymentStore creates a new PostgreSQL payment store.
func NewPaymentStore(db *DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentSelect = `
	SELECT id, student_id, year_month, total_amount, reported_at, confirmed_at, created_at, updated_at
	FROM monthly_payments`

// Get returns the record for a student and month.
func (s *PaymentStore) Get(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error) {
	const op = "postgres.PaymentStore.Get"

	p, err := scanPayment(s.db.QueryRowContext(ctx, paymentSelect+`
		WHERE student_id = $1 AND year_month = $2
	`, studentID, month.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return payment.MonthlyPayment{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Save upserts by (student, month). The existing row keeps its ID.
func (s *PaymentStore) Save(ctx context.Context, p payment.MonthlyPayment) error {
	const op = "postgres.PaymentStore.Save"

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_payments (id, student_id, year_month, total_amount, reported_at, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, year_month) DO UPDATE SET
			total_amount = EXCLUDED.total_amount,
			reported_at = EXCLUDED.reported_at,
			confirmed_at = EXCLUDED.confirmed_at,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.StudentID, p.Month.String(), p.TotalAmount,
		nullTimePtr(p.ReportedAt), nullTimePtr(p.ConfirmedAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListByStudent returns a student's records, newest month first.
func (s *PaymentStore) ListByStudent(ctx context.Context, studentID string) ([]payment.MonthlyPayment, error) {
	const op = "postgres.PaymentStore.ListByStudent"

	rows, err := s.db.QueryContext(ctx, paymentSelect+`
		WHERE student_id = $1
		ORDER BY year_month DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var payments []payment.MonthlyPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

func scanPayment(row rowScanner) (payment.MonthlyPayment, error) {
	var (
		p                   payment.MonthlyPayment
		yearMonth           string
		reported, confirmed sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.StudentID, &yearMonth, &p.TotalAmount, &reported, &confirmed, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return payment.MonthlyPayment{}, err
	}

	month, err := period.ParseMonth(yearMonth)
	if err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("payment %s: %w", p.ID, err)
	}
	p.Month = month
	p.ReportedAt = timePtr(reported)
	p.ConfirmedAt = timePtr(confirmed)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// Ensure interface compliance.
var _ ports.PaymentStore = (*PaymentStore)(nil)
