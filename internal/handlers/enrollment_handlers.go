package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feeledger_app_echo/internal/services"
)

type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
}

func NewEnrollmentHandler(enrollments *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

func (h *EnrollmentHandler) Create(c echo.Context) error {
	var req services.CreateEnrollmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	enr, err := h.enrollments.CreateEnrollment(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, enr)
}

func (h *EnrollmentHandler) Get(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	enr, err := h.enrollments.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enr)
}

func (h *EnrollmentHandler) Deactivate(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	enr, err := h.enrollments.Deactivate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enr)
}

func (h *EnrollmentHandler) WaiveFee(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	feeID, err := uuidParam(c, "feeId")
	if err != nil {
		return err
	}
	var req WaiveFeeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	enr, err := h.enrollments.WaiveFee(c.Request().Context(), services.WaiveFeeRequest{
		EnrollmentID: id,
		FeeID:        feeID,
		Reason:       req.Reason,
		WaivedBy:     actingUser(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enr)
}
