package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"feeledger_app_echo/internal/services"
)

type FeeStructureHandler struct {
	structures *services.FeeStructureService
}

func NewFeeStructureHandler(structures *services.FeeStructureService) *FeeStructureHandler {
	return &FeeStructureHandler{structures: structures}
}

func (h *FeeStructureHandler) Create(c echo.Context) error {
	var req services.CreateFeeStructureRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	fs, err := h.structures.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, fs)
}

func (h *FeeStructureHandler) Get(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	fs, err := h.structures.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fs)
}

// Resolve looks up the active structure for ?academic_year_id=&class_id=
func (h *FeeStructureHandler) Resolve(c echo.Context) error {
	yearID, err := uuidQuery(c, "academic_year_id")
	if err != nil {
		return err
	}
	classID, err := uuidQuery(c, "class_id")
	if err != nil {
		return err
	}
	if yearID == nil || classID == nil {
		return fmt.Errorf("academic_year_id and class_id are required: %w", services.ErrValidation)
	}
	fs, err := h.structures.Resolve(c.Request().Context(), *yearID, *classID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fs)
}

func (h *FeeStructureHandler) Copy(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req CopyFeeStructureRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	fs, err := h.structures.Copy(c.Request().Context(), id, req.AcademicYearID, req.ClassID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, fs)
}

func (h *FeeStructureHandler) Deactivate(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.structures.Deactivate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
