package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"feeledger_app_echo/internal/models"
	"feeledger_app_echo/internal/services"
)

// CatalogHandler exposes templates and the school reference records
type CatalogHandler struct {
	catalog *services.CatalogService
	school  *services.SchoolService
}

func NewCatalogHandler(catalog *services.CatalogService, school *services.SchoolService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, school: school}
}

func (h *CatalogHandler) CreateFeeTemplate(c echo.Context) error {
	var req TemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tpl, err := h.catalog.CreateFeeTemplate(c.Request().Context(), req.Name, models.FeeCategory(req.Category), req.Order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *CatalogHandler) DeactivateFeeTemplate(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeactivateFeeTemplate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) CreateScholarshipTemplate(c echo.Context) error {
	var req TemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tpl, err := h.catalog.CreateScholarshipTemplate(c.Request().Context(), req.Name, models.ScholarshipType(req.Category), req.Order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *CatalogHandler) DeactivateScholarshipTemplate(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeactivateScholarshipTemplate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) CreateAcademicYear(c echo.Context) error {
	var req AcademicYearRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return fmt.Errorf("start_date: %w", services.ErrValidation)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return fmt.Errorf("end_date: %w", services.ErrValidation)
	}
	year, err := h.school.CreateAcademicYear(c.Request().Context(), req.Name, start, end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, year)
}

func (h *CatalogHandler) CreateClass(c echo.Context) error {
	var req ClassRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	class, err := h.school.CreateClass(c.Request().Context(), req.Name, req.Grade)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, class)
}

func (h *CatalogHandler) CreateStudent(c echo.Context) error {
	var req StudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	student, err := h.school.CreateStudent(c.Request().Context(), models.Student{
		AdmissionNo:         req.AdmissionNo,
		Name:                req.Name,
		GuardianName:        req.GuardianName,
		GuardianEmail:       req.GuardianEmail,
		GuardianPhone:       req.GuardianPhone,
		NotificationChannel: models.NotificationChannel(req.NotificationChannel),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, student)
}
