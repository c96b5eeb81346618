package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// FeeItemInput describes one fee line of a new structure
type FeeItemInput struct {
	TemplateID                 uuid.UUID       `json:"template_id" validate:"required"`
	Amount                     decimal.Decimal `json:"amount"`
	IsCompulsory               bool            `json:"is_compulsory"`
	IsEditableDuringEnrollment bool            `json:"is_editable_during_enrollment"`
	Order                      int             `json:"order"`
}

// ScholarshipItemInput describes one scholarship line of a new structure
type ScholarshipItemInput struct {
	TemplateID    uuid.UUID       `json:"template_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	IsAutoApplied bool            `json:"is_auto_applied"`
	Order         int             `json:"order"`
}

type CreateFeeStructureRequest struct {
	AcademicYearID   uuid.UUID              `json:"academic_year_id" validate:"required"`
	ClassID          uuid.UUID              `json:"class_id" validate:"required"`
	Name             string                 `json:"name"`
	FeeItems         []FeeItemInput         `json:"fee_items" validate:"dive"`
	ScholarshipItems []ScholarshipItemInput `json:"scholarship_items" validate:"dive"`
}

// FeeStructureService resolves, creates and copies fee structures
type FeeStructureService struct {
	db *gorm.DB
}

func NewFeeStructureService(db *gorm.DB) *FeeStructureService {
	return &FeeStructureService{db: db}
}

// Create builds the single fee structure of an (academic year, class) pair
func (s *FeeStructureService) Create(ctx context.Context, req CreateFeeStructureRequest) (*models.FeeStructure, error) {
	var created *models.FeeStructure
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		year, class, err := loadYearAndClass(tx, req.AcademicYearID, req.ClassID)
		if err != nil {
			return err
		}
		if err := ensureNoStructure(tx, req.AcademicYearID, req.ClassID); err != nil {
			return err
		}

		fs := models.FeeStructure{
			AcademicYearID:   year.ID,
			ClassID:          class.ID,
			Name:             req.Name,
			IsActive:         true,
			AcademicYearInfo: datatypes.NewJSONType(year.Snapshot()),
			ClassInfo:        datatypes.NewJSONType(class.Snapshot()),
		}
		if fs.Name == "" {
			fs.Name = fmt.Sprintf("%s %s", class.Name, year.Name)
		}

		feeOrders, err := assignOrders(len(req.FeeItems), func(i int) int { return req.FeeItems[i].Order })
		if err != nil {
			return fmt.Errorf("fee items: %w", err)
		}
		scholarshipOrders, err := assignOrders(len(req.ScholarshipItems), func(i int) int { return req.ScholarshipItems[i].Order })
		if err != nil {
			return fmt.Errorf("scholarship items: %w", err)
		}

		for i, in := range req.FeeItems {
			var tpl models.FeeTemplate
			if err := tx.First(&tpl, "id = ?", in.TemplateID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("fee template %s: %w", in.TemplateID, ErrInvalidReference)
				}
				return err
			}
			if !tpl.IsActive {
				return fmt.Errorf("fee template %s is inactive: %w", tpl.ID, ErrInvalidReference)
			}
			if in.Amount.IsNegative() {
				return fmt.Errorf("fee item %s amount %s: %w", tpl.Name, in.Amount, ErrInvalidAmount)
			}
			if err := checkMoneyScale("fee item "+tpl.Name+" amount", in.Amount); err != nil {
				return err
			}
			fs.FeeItems = append(fs.FeeItems, models.FeeItem{
				ID:                         uuid.New(),
				TemplateID:                 tpl.ID,
				Name:                       tpl.Name,
				Category:                   tpl.Category,
				Amount:                     in.Amount,
				IsCompulsory:               in.IsCompulsory,
				IsEditableDuringEnrollment: in.IsEditableDuringEnrollment,
				Order:                      feeOrders[i],
			})
		}

		for i, in := range req.ScholarshipItems {
			var tpl models.ScholarshipTemplate
			if err := tx.First(&tpl, "id = ?", in.TemplateID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("scholarship template %s: %w", in.TemplateID, ErrInvalidReference)
				}
				return err
			}
			if !tpl.IsActive {
				return fmt.Errorf("scholarship template %s is inactive: %w", tpl.ID, ErrInvalidReference)
			}
			if in.Amount.IsNegative() {
				return fmt.Errorf("scholarship item %s amount %s: %w", tpl.Name, in.Amount, ErrInvalidAmount)
			}
			if err := checkMoneyScale("scholarship item "+tpl.Name+" amount", in.Amount); err != nil {
				return err
			}
			fs.ScholarshipItems = append(fs.ScholarshipItems, models.ScholarshipItem{
				ID:            uuid.New(),
				TemplateID:    tpl.ID,
				Name:          tpl.Name,
				Type:          tpl.Type,
				Amount:        in.Amount,
				IsAutoApplied: in.IsAutoApplied,
				Order:         scholarshipOrders[i],
			})
		}
		sortItems(&fs)
		fs.ComputeTotals()

		if err := createStructure(tx, &fs); err != nil {
			return err
		}
		created = &fs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Resolve returns the active fee structure of an (academic year, class) pair
func (s *FeeStructureService) Resolve(ctx context.Context, academicYearID, classID uuid.UUID) (*models.FeeStructure, error) {
	return resolveStructure(s.db.WithContext(ctx), academicYearID, classID)
}

// Get loads a structure by id regardless of its active flag
func (s *FeeStructureService) Get(ctx context.Context, id uuid.UUID) (*models.FeeStructure, error) {
	var fs models.FeeStructure
	if err := s.db.WithContext(ctx).First(&fs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fee structure %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &fs, nil
}

// Deactivate retires a structure. Existing enrollments keep their materialized fees;
// new enrollments for the pair fail with ErrInactiveStructure.
func (s *FeeStructureService) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.FeeStructure{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate fee structure %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("fee structure %s: %w", id, ErrNotFound)
	}
	return nil
}

// Copy duplicates a structure into another (academic year, class) pair. Items get new
// identities; amounts, flags and order are kept.
func (s *FeeStructureService) Copy(ctx context.Context, sourceID, targetYearID, targetClassID uuid.UUID, name *string) (*models.FeeStructure, error) {
	var copied *models.FeeStructure
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src models.FeeStructure
		if err := tx.First(&src, "id = ?", sourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("fee structure %s: %w", sourceID, ErrNotFound)
			}
			return err
		}
		year, class, err := loadYearAndClass(tx, targetYearID, targetClassID)
		if err != nil {
			return err
		}
		if err := ensureNoStructure(tx, targetYearID, targetClassID); err != nil {
			return err
		}

		dst := models.FeeStructure{
			AcademicYearID:   year.ID,
			ClassID:          class.ID,
			Name:             src.Name,
			IsActive:         true,
			AcademicYearInfo: datatypes.NewJSONType(year.Snapshot()),
			ClassInfo:        datatypes.NewJSONType(class.Snapshot()),
			FeeItems:         make([]models.FeeItem, 0, len(src.FeeItems)),
			ScholarshipItems: make([]models.ScholarshipItem, 0, len(src.ScholarshipItems)),
		}
		if name != nil && *name != "" {
			dst.Name = *name
		}
		for _, item := range src.FeeItems {
			item.ID = uuid.New()
			dst.FeeItems = append(dst.FeeItems, item)
		}
		for _, item := range src.ScholarshipItems {
			item.ID = uuid.New()
			dst.ScholarshipItems = append(dst.ScholarshipItems, item)
		}
		dst.ComputeTotals()

		if err := createStructure(tx, &dst); err != nil {
			return err
		}
		copied = &dst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

func resolveStructure(db *gorm.DB, academicYearID, classID uuid.UUID) (*models.FeeStructure, error) {
	var fs models.FeeStructure
	err := db.Where("academic_year_id = ? AND class_id = ?", academicYearID, classID).First(&fs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fee structure for year %s class %s: %w", academicYearID, classID, ErrNotFound)
		}
		return nil, err
	}
	if !fs.IsActive {
		return nil, fmt.Errorf("fee structure %s: %w", fs.ID, ErrInactiveStructure)
	}
	return &fs, nil
}

func loadYearAndClass(tx *gorm.DB, yearID, classID uuid.UUID) (*models.AcademicYear, *models.Class, error) {
	var year models.AcademicYear
	if err := tx.First(&year, "id = ?", yearID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("academic year %s: %w", yearID, ErrInvalidReference)
		}
		return nil, nil, err
	}
	var class models.Class
	if err := tx.First(&class, "id = ?", classID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("class %s: %w", classID, ErrInvalidReference)
		}
		return nil, nil, err
	}
	return &year, &class, nil
}

func ensureNoStructure(tx *gorm.DB, yearID, classID uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.FeeStructure{}).
		Where("academic_year_id = ? AND class_id = ?", yearID, classID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("fee structure for year %s class %s already exists: %w", yearID, classID, ErrConflict)
	}
	return nil
}

func createStructure(tx *gorm.DB, fs *models.FeeStructure) error {
	if err := tx.Create(fs).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("fee structure for year %s class %s already exists: %w", fs.AcademicYearID, fs.ClassID, ErrConflict)
		}
		return fmt.Errorf("create fee structure: %w", err)
	}
	return nil
}

func sortItems(fs *models.FeeStructure) {
	sort.SliceStable(fs.FeeItems, func(i, j int) bool { return fs.FeeItems[i].Order < fs.FeeItems[j].Order })
	sort.SliceStable(fs.ScholarshipItems, func(i, j int) bool {
		return fs.ScholarshipItems[i].Order < fs.ScholarshipItems[j].Order
	})
}

// assignOrders keeps explicit positive orders, which must be distinct, and numbers the
// rest after the largest explicit one in input order.
func assignOrders(n int, orderOf func(i int) int) ([]int, error) {
	orders := make([]int, n)
	seen := make(map[int]bool, n)
	last := 0
	for i := 0; i < n; i++ {
		o := orderOf(i)
		if o <= 0 {
			continue
		}
		if seen[o] {
			return nil, fmt.Errorf("order %d used twice: %w", o, ErrValidation)
		}
		seen[o] = true
		orders[i] = o
		if o > last {
			last = o
		}
	}
	for i := range orders {
		if orders[i] == 0 {
			last++
			orders[i] = last
		}
	}
	return orders, nil
}
