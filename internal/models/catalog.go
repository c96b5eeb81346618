package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeeCategory groups fee templates for display and reporting
type FeeCategory string

const (
	FeeCategoryRegular     FeeCategory = "REGULAR"
	FeeCategoryOptional    FeeCategory = "OPTIONAL"
	FeeCategoryActivity    FeeCategory = "ACTIVITY"
	FeeCategoryExamination FeeCategory = "EXAMINATION"
	FeeCategoryLateFee     FeeCategory = "LATE_FEE"
)

// ScholarshipType classifies scholarship templates
type ScholarshipType string

const (
	ScholarshipTypeMerit      ScholarshipType = "MERIT"
	ScholarshipTypeNeedBased  ScholarshipType = "NEED_BASED"
	ScholarshipTypeGovernment ScholarshipType = "GOVERNMENT"
	ScholarshipTypeSports     ScholarshipType = "SPORTS"
	ScholarshipTypeMinority   ScholarshipType = "MINORITY"
	ScholarshipTypeGeneral    ScholarshipType = "GENERAL"
)

// FeeTemplate is a catalog entry referenced by fee items. It is deactivated, never deleted.
type FeeTemplate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string      `gorm:"type:varchar(255);uniqueIndex" json:"name"`
	Category FeeCategory `gorm:"type:varchar(20)" json:"category"`
	Order    int         `gorm:"column:display_order" json:"order"`
	IsActive bool        `json:"is_active"`
}

func (t *FeeTemplate) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// ScholarshipTemplate is a catalog entry referenced by scholarship items
type ScholarshipTemplate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string          `gorm:"type:varchar(255);uniqueIndex" json:"name"`
	Type     ScholarshipType `gorm:"type:varchar(20)" json:"type"`
	Order    int             `gorm:"column:display_order" json:"order"`
	IsActive bool            `json:"is_active"`
}

func (t *ScholarshipTemplate) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// ValidFeeCategory reports whether c is one of the known categories
func ValidFeeCategory(c FeeCategory) bool {
	switch c {
	case FeeCategoryRegular, FeeCategoryOptional, FeeCategoryActivity, FeeCategoryExamination, FeeCategoryLateFee:
		return true
	}
	return false
}

func ValidScholarshipType(t ScholarshipType) bool {
	switch t {
	case ScholarshipTypeMerit, ScholarshipTypeNeedBased, ScholarshipTypeGovernment,
		ScholarshipTypeSports, ScholarshipTypeMinority, ScholarshipTypeGeneral:
		return true
	}
	return false
}
