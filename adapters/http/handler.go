// Package http provides the JSON HTTP API for tutorbill.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/app"
	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

const (
	dateLayout  = "2006-01-02"
	maxBodySize = 1 << 20
)

// Deps contains dependencies for the API handler.
type Deps struct {
	Billing  *app.BillingService
	Ledger   *app.LedgerService
	Lessons  *app.LessonService
	Payments *app.PaymentService
	Charges  *app.ChargeService
	Logger   zerolog.Logger
}

// Handler serves the billing, credit, lesson and payment endpoints.
type Handler struct {
	billing  *app.BillingService
	ledger   *app.LedgerService
	lessons  *app.LessonService
	payments *app.PaymentService
	charges  *app.ChargeService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		billing:  deps.Billing,
		ledger:   deps.Ledger,
		lessons:  deps.Lessons,
		payments: deps.Payments,
		charges:  deps.Charges,
		validate: newValidator(),
		logger:   deps.Logger,
	}
}

// Router returns the API router, to be mounted at /api.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/students/{studentID}", func(r chi.Router) {
		r.Get("/invoices/{month}", h.GetInvoice)

		r.Get("/payments", h.ListPayments)
		r.Get("/payments/{month}", h.GetPayment)
		r.Post("/payments/{month}/report", h.ReportPayment)
		r.Post("/payments/{month}/confirm", h.ConfirmPayment)

		r.Get("/credits", h.GetCredits)
		r.Post("/makeup-lessons", h.BookMakeup)

		r.Get("/lessons", h.ListLessons)

		r.Get("/charges", h.ListCharges)
		r.Post("/charges", h.CreateCharge)
	})

	r.Delete("/charges/{id}", h.DeleteCharge)

	r.Post("/lessons", h.CreateLesson)
	r.Get("/lessons/{id}", h.GetLesson)
	r.Post("/lessons/{id}/cancellation", h.RequestCancellation)
	r.Post("/lessons/{id}/cancellation/approve", h.ApproveCancellation)
	r.Post("/lessons/{id}/cancellation/reject", h.RejectCancellation)
	r.Post("/lessons/{id}/complete", h.CompleteLesson)

	return r
}

// -----------------------------------------------------------------------------
// Invoices
// -----------------------------------------------------------------------------

// GetInvoice computes the invoice. ?at=RFC3339 evaluates it at another instant.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthParam(w, r, "month")
	if !ok {
		return
	}
	at, ok := h.atQuery(w, r)
	if !ok {
		return
	}

	inv, err := h.billing.Invoice(r.Context(), chi.URLParam(r, "studentID"), month, at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// -----------------------------------------------------------------------------
// Payments
// -----------------------------------------------------------------------------

// ListPayments returns the student's payment records, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.payments.List(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

// GetPayment returns the payment state for a month.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthParam(w, r, "month")
	if !ok {
		return
	}
	p, err := h.payments.Get(r.Context(), chi.URLParam(r, "studentID"), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// ReportPayment records the guardian's payment report.
func (h *Handler) ReportPayment(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthParam(w, r, "month")
	if !ok {
		return
	}
	p, err := h.payments.Report(r.Context(), chi.URLParam(r, "studentID"), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// ConfirmPayment records the teacher's confirmation of receipt.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthParam(w, r, "month")
	if !ok {
		return
	}
	p, err := h.payments.Confirm(r.Context(), chi.URLParam(r, "studentID"), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// -----------------------------------------------------------------------------
// Credits
// -----------------------------------------------------------------------------

// GetCredits returns the balance, audit summary and every credit.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	at, ok := h.atQuery(w, r)
	if !ok {
		return
	}
	report, err := h.ledger.Credits(r.Context(), chi.URLParam(r, "studentID"), at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditReportResponse(report))
}

type makeupRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime         string `json:"end_time" validate:"omitempty,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	TransportFee    int64  `json:"transport_fee" validate:"gte=0"`
}

// BookMakeup consumes credit and schedules a makeup lesson.
func (h *Handler) BookMakeup(w http.ResponseWriter, r *http.Request) {
	var req makeupRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := time.Parse(dateLayout, req.Date)

	booking, err := h.lessons.BookMakeup(r.Context(), app.NewLesson{
		StudentID:       chi.URLParam(r, "studentID"),
		Date:            date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		TransportFee:    req.TransportFee,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	debits := make([]debitResponse, 0, len(booking.Debits))
	for _, d := range booking.Debits {
		debits = append(debits, debitResponse{CreditID: d.CreditID, Minutes: d.Minutes})
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"lesson": toLessonResponse(booking.Lesson),
		"debits": debits,
	})
}

// -----------------------------------------------------------------------------
// Lessons
// -----------------------------------------------------------------------------

type createLessonRequest struct {
	StudentID       string `json:"student_id" validate:"required,max=64"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime         string `json:"end_time" validate:"omitempty,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	Fee             int64  `json:"fee" validate:"gte=0"`
	TransportFee    int64  `json:"transport_fee" validate:"gte=0"`
	IsMakeup        bool   `json:"is_makeup"`
}

// CreateLesson schedules a lesson.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := time.Parse(dateLayout, req.Date)

	l, err := h.lessons.Create(r.Context(), app.NewLesson{
		StudentID:       req.StudentID,
		Date:            date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		Fee:             req.Fee,
		TransportFee:    req.TransportFee,
		IsMakeup:        req.IsMakeup,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLessonResponse(l))
}

// GetLesson returns one lesson.
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	l, err := h.lessons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonResponse(l))
}

// ListLessons returns a student's lessons for ?month=YYYY-MM.
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthQuery(w, r)
	if !ok {
		return
	}
	list, err := h.lessons.ListMonth(r.Context(), chi.URLParam(r, "studentID"), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]lessonResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toLessonResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"lessons": out})
}

type cancellationRequest struct {
	CausedBy string `json:"caused_by" validate:"required,oneof=student teacher"`
	Reason   string `json:"reason" validate:"max=500"`
	Approve  bool   `json:"approve"`
}

// RequestCancellation files a cancellation. With "approve": true it is
// processed immediately.
func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	var req cancellationRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	cause := lesson.Cause(req.CausedBy)

	if req.Approve {
		res, err := h.lessons.Cancel(r.Context(), id, cause, req.Reason)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCancellationResponse(res))
		return
	}

	l, err := h.lessons.RequestCancellation(r.Context(), id, cause, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonResponse(l))
}

// ApproveCancellation processes a pending cancellation.
func (h *Handler) ApproveCancellation(w http.ResponseWriter, r *http.Request) {
	res, err := h.lessons.ApproveCancellation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancellationResponse(res))
}

// RejectCancellation refuses a pending cancellation.
func (h *Handler) RejectCancellation(w http.ResponseWriter, r *http.Request) {
	l, err := h.lessons.RejectCancellation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonResponse(l))
}

// CompleteLesson marks a lesson as held.
func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	l, err := h.lessons.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLessonResponse(l))
}

// -----------------------------------------------------------------------------
// Other charges
// -----------------------------------------------------------------------------

type chargeRequest struct {
	Month       string `json:"month" validate:"required,datetime=2006-01"`
	ChargeDate  string `json:"charge_date" validate:"omitempty,datetime=2006-01-02"`
	Description string `json:"description" validate:"required,max=200"`
	Amount      int64  `json:"amount" validate:"ne=0"`
}

// CreateCharge adds a miscellaneous charge to an invoice.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	month, err := period.ParseMonth(req.Month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := app.NewCharge{
		StudentID:   chi.URLParam(r, "studentID"),
		Month:       month,
		Description: req.Description,
		Amount:      req.Amount,
	}
	if req.ChargeDate != "" {
		d, _ := time.Parse(dateLayout, req.ChargeDate)
		in.ChargeDate = &d
	}

	c, err := h.charges.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChargeResponse(c))
}

// ListCharges returns the charges for ?month=YYYY-MM.
func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	month, ok := h.monthQuery(w, r)
	if !ok {
		return
	}
	list, err := h.charges.List(r.Context(), chi.URLParam(r, "studentID"), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]chargeResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toChargeResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"charges": out})
}

// DeleteCharge removes a charge.
func (h *Handler) DeleteCharge(w http.ResponseWriter, r *http.Request) {
	if err := h.charges.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// decode reads a JSON body and validates it. It writes the error response
// itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func (h *Handler) monthParam(w http.ResponseWriter, r *http.Request, name string) (period.Month, bool) {
	m, err := period.ParseMonth(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error())
		return period.Month{}, false
	}
	return m, true
}

func (h *Handler) monthQuery(w http.ResponseWriter, r *http.Request) (period.Month, bool) {
	m, err := period.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", "month query parameter must be YYYY-MM")
		return period.Month{}, false
	}
	return m, true
}

// atQuery parses ?at=. Missing means now (zero time).
func (h *Handler) atQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("at")
	if s == "" {
		return time.Time{}, true
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "at must be an RFC3339 timestamp")
		return time.Time{}, false
	}
	return at, true
}

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, status, code, "Internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, makeup.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_credit"
	case errors.Is(err, payment.ErrAlreadyReported),
		errors.Is(err, payment.ErrAlreadyConfirmed),
		errors.Is(err, payment.ErrNotReported):
		return http.StatusConflict, "invalid_payment_state"
	case errors.Is(err, lesson.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ports.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, ports.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, makeup.ErrInvalidMinutes):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, period.ErrInvalidPeriod):
		return http.StatusBadRequest, "invalid_period"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "invalid_input",
			"message": "Validation failed",
			"fields":  fields,
		},
	})
}
