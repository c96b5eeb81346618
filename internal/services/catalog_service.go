package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// CatalogService manages fee and scholarship templates. Templates are only ever
// deactivated because historical fee lines reference them.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) CreateFeeTemplate(ctx context.Context, name string, category models.FeeCategory, order int) (*models.FeeTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("fee template name is required: %w", ErrValidation)
	}
	if !models.ValidFeeCategory(category) {
		return nil, fmt.Errorf("fee category %q: %w", category, ErrValidation)
	}
	tpl := models.FeeTemplate{Name: name, Category: category, Order: order, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("fee template %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("create fee template: %w", err)
	}
	return &tpl, nil
}

func (s *CatalogService) CreateScholarshipTemplate(ctx context.Context, name string, typ models.ScholarshipType, order int) (*models.ScholarshipTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("scholarship template name is required: %w", ErrValidation)
	}
	if !models.ValidScholarshipType(typ) {
		return nil, fmt.Errorf("scholarship type %q: %w", typ, ErrValidation)
	}
	tpl := models.ScholarshipTemplate{Name: name, Type: typ, Order: order, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("scholarship template %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("create scholarship template: %w", err)
	}
	return &tpl, nil
}

// DeactivateFeeTemplate soft-deactivates a template; existing fee items keep referencing it
func (s *CatalogService) DeactivateFeeTemplate(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.FeeTemplate{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate fee template %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("fee template %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *CatalogService) DeactivateScholarshipTemplate(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.ScholarshipTemplate{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate scholarship template %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("scholarship template %s: %w", id, ErrNotFound)
	}
	return nil
}
