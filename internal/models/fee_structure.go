package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeeItem is one charge line of a fee structure
type FeeItem struct {
	ID                         uuid.UUID       `json:"id"`
	TemplateID                 uuid.UUID       `json:"template_id"`
	Name                       string          `json:"name"`
	Category                   FeeCategory     `json:"category"`
	Amount                     decimal.Decimal `json:"amount"`
	IsCompulsory               bool            `json:"is_compulsory"`
	IsEditableDuringEnrollment bool            `json:"is_editable_during_enrollment"`
	Order                      int             `json:"order"`
}

// ScholarshipItem is one discount line of a fee structure
type ScholarshipItem struct {
	ID            uuid.UUID       `json:"id"`
	TemplateID    uuid.UUID       `json:"template_id"`
	Name          string          `json:"name"`
	Type          ScholarshipType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	IsAutoApplied bool            `json:"is_auto_applied"`
	Order         int             `json:"order"`
}

// FeeStructure is the catalog of fee and scholarship items for one (academic year, class)
type FeeStructure struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AcademicYearID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_fee_structures_year_class,priority:1" json:"academic_year_id"`
	ClassID        uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_fee_structures_year_class,priority:2" json:"class_id"`
	Name           string    `gorm:"type:varchar(255)" json:"name"`
	IsActive       bool      `json:"is_active"`

	AcademicYearInfo datatypes.JSONType[AcademicYearSnapshot] `json:"academic_year"`
	ClassInfo        datatypes.JSONType[ClassSnapshot]        `json:"class"`

	FeeItems         []FeeItem         `gorm:"type:jsonb;serializer:json" json:"fee_items"`
	ScholarshipItems []ScholarshipItem `gorm:"type:jsonb;serializer:json" json:"scholarship_items"`

	TotalFees         decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_fees"`
	TotalScholarships decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_scholarships"`
}

func (s *FeeStructure) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// ComputeTotals refreshes TotalFees and TotalScholarships from the item lists
func (s *FeeStructure) ComputeTotals() {
	fees := decimal.Zero
	for _, item := range s.FeeItems {
		fees = fees.Add(item.Amount)
	}
	scholarships := decimal.Zero
	for _, item := range s.ScholarshipItems {
		scholarships = scholarships.Add(item.Amount)
	}
	s.TotalFees = fees
	s.TotalScholarships = scholarships
}

// FeeItem looks up a fee item by id
func (s *FeeStructure) FeeItem(id uuid.UUID) (FeeItem, bool) {
	for _, item := range s.FeeItems {
		if item.ID == id {
			return item, true
		}
	}
	return FeeItem{}, false
}

func (s *FeeStructure) ScholarshipItem(id uuid.UUID) (ScholarshipItem, bool) {
	for _, item := range s.ScholarshipItems {
		if item.ID == id {
			return item, true
		}
	}
	return ScholarshipItem{}, false
}
