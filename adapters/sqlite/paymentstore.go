package sqlite

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

// PaymentStore implements ports.PaymentStore using SQLite.
type PaymentStore struct {
	db *DB
}

// NewPaymentStore creates a new SQLite payment store.
func NewPaymentStore(db *DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `id, student_id, year_month, total_amount, reported_at, confirmed_at, created_at, updated_at`

// Get returns the record for a student and month.
func (s *PaymentStore) Get(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM monthly_payments
		WHERE student_id = ? AND year_month = ?
	`, studentID, month.String())
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payment.MonthlyPayment{}, ErrNotFound
	}
	return p, err
}

// Save upserts by (student, month). The existing row keeps its ID.
func (s *PaymentStore) Save(ctx context.Context, p payment.MonthlyPayment) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, year_month) DO UPDATE SET
			total_amount = excluded.total_amount,
			reported_at = excluded.reported_at,
			confirmed_at = excluded.confirmed_at,
			updated_at = excluded.updated_at
	`, p.ID, p.StudentID, p.Month.String(), p.TotalAmount,
		nullTimePtr(p.ReportedAt), nullTimePtr(p.ConfirmedAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))

	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// ListByStudent returns a student's records, newest month first.
func (s *PaymentStore) ListByStudent(ctx context.Context, studentID string) ([]payment.MonthlyPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM monthly_payments
		WHERE student_id = ?
		ORDER BY year_month DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []payment.MonthlyPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (payment.MonthlyPayment, error) {
	var (
		p                    payment.MonthlyPayment
		yearMonth            string
		reported, confirmed  sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.StudentID, &yearMonth, &p.TotalAmount, &reported, &confirmed, &createdAt, &updatedAt); err != nil {
		return payment.MonthlyPayment{}, err
	}

	var err error
	if p.Month, err = period.ParseMonth(yearMonth); err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("payment %s: %w", p.ID, err)
	}
	if p.ReportedAt, err = parseNullTimePtr(reported); err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("payment %s: reported_at: %w", p.ID, err)
	}
	if p.ConfirmedAt, err = parseNullTimePtr(confirmed); err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("payment %s: confirmed_at: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("payment %s: created_at: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("payment %s: updated_at: %w", p.ID, err)
	}
	return p, nil
}

// Ensure interface compliance.
var _ ports.PaymentStore = (*PaymentStore)(nil)
