package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"feeledger_app_echo/internal/models"
	"feeledger_app_echo/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Outstanding lists enrollments with money still due
func (h *ReportHandler) Outstanding(c echo.Context) error {
	var (
		f   services.OutstandingFilter
		err error
	)
	if f.AcademicYearID, err = uuidQuery(c, "academic_year_id"); err != nil {
		return err
	}
	if f.ClassID, err = uuidQuery(c, "class_id"); err != nil {
		return err
	}
	f.Section = c.QueryParam("section")
	if s := c.QueryParam("status"); s != "" {
		switch st := models.FeeStatusCode(s); st {
		case models.FeeStatusPartial, models.FeeStatusOverdue, models.FeeStatusPaid, models.FeeStatusWaived:
			f.Status = st
		default:
			return fmt.Errorf("status %q: %w", s, services.ErrValidation)
		}
	}
	if raw := c.QueryParam("min_due"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("min_due %q: %w", raw, services.ErrValidation)
		}
		f.MinDue = &d
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return err
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		return err
	}

	rows, total, err := h.reports.Outstanding(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{Data: rows, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// Receipts lists payments in receipt order; from/to are YYYY-MM-DD, to is exclusive
func (h *ReportHandler) Receipts(c echo.Context) error {
	var (
		f   services.ReceiptFilter
		err error
	)
	if f.AcademicYearID, err = uuidQuery(c, "academic_year_id"); err != nil {
		return err
	}
	if f.EnrollmentID, err = uuidQuery(c, "enrollment_id"); err != nil {
		return err
	}
	if f.StudentID, err = uuidQuery(c, "student_id"); err != nil {
		return err
	}
	if s := c.QueryParam("status"); s != "" {
		f.Status = models.PaymentStatus(s)
	}
	if m := c.QueryParam("payment_method"); m != "" {
		if !models.ValidPaymentMethod(models.PaymentMethod(m)) {
			return fmt.Errorf("payment_method %q: %w", m, services.ErrValidation)
		}
		f.Method = models.PaymentMethod(m)
	}
	if f.From, err = dateQuery(c, "from"); err != nil {
		return err
	}
	if f.To, err = dateQuery(c, "to"); err != nil {
		return err
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return err
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		return err
	}

	payments, total, err := h.reports.Receipts(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{Data: payments, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func (h *ReportHandler) Dashboard(c echo.Context) error {
	yearID, err := uuidQuery(c, "academic_year_id")
	if err != nil {
		return err
	}
	if yearID == nil {
		return fmt.Errorf("academic_year_id is required: %w", services.ErrValidation)
	}
	stats, err := h.reports.Dashboard(c.Request().Context(), *yearID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func dateQuery(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%s %q must be YYYY-MM-DD: %w", name, raw, services.ErrValidation)
	}
	return &t, nil
}
