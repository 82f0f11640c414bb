package http

import (
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/app"
	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
)

type adjustmentResponse struct {
	LessonID string `json:"lesson_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason"`
	Amount   int64  `json:"amount"`
	Type     string `json:"type"`
}

type warningResponse struct {
	LessonID string `json:"lesson_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason"`
}

type chargeResponse struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"student_id"`
	Month       string  `json:"month"`
	ChargeDate  *string `json:"charge_date,omitempty"`
	Description string  `json:"description"`
	Amount      int64   `json:"amount"`
}

type invoiceResponse struct {
	StudentID         string `json:"student_id"`
	TargetMonth       string `json:"target_month"`
	At                string `json:"at"`
	LessonCount       int    `json:"lesson_count"`
	LessonFeeTotal    int64  `json:"lesson_fee_total"`
	TransportFeeTotal int64  `json:"transport_fee_total"`
	Adjustments       struct {
		Total   int64                `json:"total"`
		Details []adjustmentResponse `json:"details"`
	} `json:"adjustments"`
	OtherCharges struct {
		Total int64            `json:"total"`
		Items []chargeResponse `json:"items"`
	} `json:"other_charges"`
	GrandTotal       int64             `json:"grand_total"`
	Display          string            `json:"grand_total_display"`
	IsConfirmed      bool              `json:"is_confirmed"`
	ConfirmationDate string            `json:"confirmation_date"`
	PaymentDueDate   string            `json:"payment_due_date"`
	PaymentStatus    string            `json:"payment_status"`
	Payment          *paymentResponse  `json:"payment,omitempty"`
	Warnings         []warningResponse `json:"warnings,omitempty"`
}

type paymentResponse struct {
	ID          string     `json:"id,omitempty"`
	StudentID   string     `json:"student_id"`
	Month       string     `json:"month"`
	Status      string     `json:"status"`
	TotalAmount int64      `json:"total_amount"`
	ReportedAt  *time.Time `json:"reported_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type creditResponse struct {
	ID             string    `json:"id"`
	TotalMinutes   int       `json:"total_minutes"`
	GrantedMinutes int       `json:"granted_minutes"`
	ExpiresAt      time.Time `json:"expires_at"`
	OriginLessonID string    `json:"origin_lesson_id,omitempty"`
}

type creditReportResponse struct {
	StudentID string `json:"student_id"`
	At        string `json:"at"`
	Balance   int    `json:"available_minutes"`
	Summary   struct {
		Granted   int `json:"granted"`
		Consumed  int `json:"consumed"`
		Expired   int `json:"expired"`
		Available int `json:"available"`
	} `json:"summary"`
	Credits []creditResponse `json:"credits"`
}

type debitResponse struct {
	CreditID string `json:"credit_id"`
	Minutes  int    `json:"minutes"`
}

type cancellationResponse struct {
	State       string     `json:"state"`
	CausedBy    string     `json:"caused_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

type lessonResponse struct {
	ID              string               `json:"id"`
	StudentID       string               `json:"student_id"`
	Date            string               `json:"date"`
	StartTime       string               `json:"start_time,omitempty"`
	EndTime         string               `json:"end_time,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	Fee             int64                `json:"fee"`
	TransportFee    int64                `json:"transport_fee"`
	Status          string               `json:"status"`
	IsMakeup        bool                 `json:"is_makeup"`
	Cancellation    cancellationResponse `json:"cancellation"`
	CreatedAt       time.Time            `json:"created_at"`
}

func toInvoiceResponse(inv app.Invoice) invoiceResponse {
	out := invoiceResponse{
		StudentID:         inv.StudentID,
		TargetMonth:       inv.TargetMonth.String(),
		At:                inv.At.Format(time.RFC3339),
		LessonCount:       inv.LessonCount,
		LessonFeeTotal:    inv.LessonFeeTotal,
		TransportFeeTotal: inv.TransportFeeTotal,
		GrandTotal:        inv.GrandTotal,
		Display:           billing.FormatYen(inv.GrandTotal),
		IsConfirmed:       inv.IsConfirmed,
		ConfirmationDate:  inv.ConfirmationDate.Format(dateLayout),
		PaymentDueDate:    inv.PaymentDueDate.Format(dateLayout),
		PaymentStatus:     string(inv.PaymentStatus),
	}

	out.Adjustments.Total = inv.Adjustments.Total
	out.Adjustments.Details = make([]adjustmentResponse, 0, len(inv.Adjustments.Details))
	for _, d := range inv.Adjustments.Details {
		out.Adjustments.Details = append(out.Adjustments.Details, adjustmentResponse{
			LessonID: d.LessonID,
			Date:     d.Date.Format(dateLayout),
			Reason:   d.Reason,
			Amount:   d.Amount,
			Type:     string(d.Type),
		})
	}

	out.OtherCharges.Total = inv.OtherCharges.Total
	out.OtherCharges.Items = make([]chargeResponse, 0, len(inv.OtherCharges.Items))
	for _, c := range inv.OtherCharges.Items {
		out.OtherCharges.Items = append(out.OtherCharges.Items, toChargeResponse(c))
	}

	if inv.Payment != nil {
		p := toPaymentResponse(*inv.Payment)
		out.Payment = &p
	}
	for _, w := range inv.Warnings {
		out.Warnings = append(out.Warnings, warningResponse{
			LessonID: w.LessonID,
			Date:     w.Date.Format(dateLayout),
			Reason:   w.Reason,
		})
	}
	return out
}

func toPaymentResponse(p payment.MonthlyPayment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		StudentID:   p.StudentID,
		Month:       p.Month.String(),
		Status:      string(p.Status()),
		TotalAmount: p.TotalAmount,
		ReportedAt:  p.ReportedAt,
		ConfirmedAt: p.ConfirmedAt,
	}
}

func toCreditResponse(c makeup.Credit) creditResponse {
	return creditResponse{
		ID:             c.ID,
		TotalMinutes:   c.TotalMinutes,
		GrantedMinutes: c.GrantedMinutes,
		ExpiresAt:      c.ExpiresAt,
		OriginLessonID: c.OriginLessonID,
	}
}

func toCreditReportResponse(r app.CreditReport) creditReportResponse {
	out := creditReportResponse{
		StudentID: r.StudentID,
		At:        r.At.Format(time.RFC3339),
		Balance:   r.Balance,
		Credits:   make([]creditResponse, 0, len(r.Credits)),
	}
	out.Summary.Granted = r.Summary.Granted
	out.Summary.Consumed = r.Summary.Consumed
	out.Summary.Expired = r.Summary.Expired
	out.Summary.Available = r.Summary.Available
	for _, c := range r.Credits {
		out.Credits = append(out.Credits, toCreditResponse(c))
	}
	return out
}

func toChargeResponse(c billing.OtherCharge) chargeResponse {
	out := chargeResponse{
		ID:          c.ID,
		StudentID:   c.StudentID,
		Month:       c.Month.String(),
		Description: c.Description,
		Amount:      c.Amount,
	}
	if c.ChargeDate != nil {
		d := c.ChargeDate.Format(dateLayout)
		out.ChargeDate = &d
	}
	return out
}

func toLessonResponse(l lesson.Lesson) lessonResponse {
	c := cancellationResponse{
		State:    string(l.Cancellation.State),
		CausedBy: string(l.Cancellation.CausedBy),
		Reason:   l.Cancellation.Reason,
	}
	if !l.Cancellation.RequestedAt.IsZero() {
		t := l.Cancellation.RequestedAt
		c.RequestedAt = &t
	}
	if !l.Cancellation.ProcessedAt.IsZero() {
		t := l.Cancellation.ProcessedAt
		c.ProcessedAt = &t
	}
	return lessonResponse{
		ID:              l.ID,
		StudentID:       l.StudentID,
		Date:            l.Date.Format(dateLayout),
		StartTime:       l.StartTime,
		EndTime:         l.EndTime,
		DurationMinutes: l.DurationMinutes,
		Fee:             l.Fee,
		TransportFee:    l.TransportFee,
		Status:          string(l.Status),
		IsMakeup:        l.IsMakeup,
		Cancellation:    c,
		CreatedAt:       l.CreatedAt,
	}
}

func toCancellationResponse(res app.CancellationResult) map[string]any {
	out := map[string]any{"lesson": toLessonResponse(res.Lesson)}
	if res.Credit != nil {
		out["credit"] = toCreditResponse(*res.Credit)
	}
	return out
}
