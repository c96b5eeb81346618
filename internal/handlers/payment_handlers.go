package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feeledger_app_echo/internal/models"
	"feeledger_app_echo/internal/services"
)

// IdempotencyKeyHeader lets clients retry a collect request without charging twice
const IdempotencyKeyHeader = "Idempotency-Key"

type PaymentHandler struct {
	payments  *services.PaymentService
	reversals *services.ReversalService
}

func NewPaymentHandler(payments *services.PaymentService, reversals *services.ReversalService) *PaymentHandler {
	return &PaymentHandler{payments: payments, reversals: reversals}
}

// Collect records a payment against /enrollments/:id
func (h *PaymentHandler) Collect(c echo.Context) error {
	enrollmentID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req CollectPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	key := req.IdempotencyKey
	if header := c.Request().Header.Get(IdempotencyKeyHeader); header != "" {
		key = header
	}

	payment, err := h.payments.Collect(c.Request().Context(), services.CollectRequest{
		EnrollmentID:   enrollmentID,
		Amount:         req.Amount,
		Method:         models.PaymentMethod(req.Method),
		Remarks:        req.Remarks,
		CreatedBy:      actingUser(c),
		Allocation:     req.Allocation,
		IdempotencyKey: key,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) Get(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	payment, err := h.payments.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Cancel(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req CancelPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	payment, err := h.reversals.Cancel(c.Request().Context(), services.CancelRequest{
		PaymentID:   id,
		CancelledBy: actingUser(c),
		Reason:      req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payment)
}
