package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FeeStatusCode summarizes how much of an enrollment has been settled
type FeeStatusCode string

const (
	FeeStatusPaid    FeeStatusCode = "PAID"
	FeeStatusPartial FeeStatusCode = "PARTIAL"
	FeeStatusOverdue FeeStatusCode = "OVERDUE"
	FeeStatusWaived  FeeStatusCode = "WAIVED"
)

// RecentPayment is an audit entry kept on a fee line for display
type RecentPayment struct {
	PaymentID uuid.UUID       `json:"payment_id"`
	ReceiptNo string          `json:"receipt_no"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
}

// StudentFee is one charge line of an enrollment. Its ID is the fee item ID it came from.
type StudentFee struct {
	ID           uuid.UUID       `json:"id"`
	TemplateID   uuid.UUID       `json:"template_id"`
	Name         string          `json:"name"`
	Category     FeeCategory     `json:"category"`
	Order        int             `json:"order"`
	Amount       decimal.Decimal `json:"amount"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	AmountDue    decimal.Decimal `json:"amount_due"`
	IsCompulsory bool            `json:"is_compulsory"`

	IsWaived     bool       `json:"is_waived"`
	WaivedReason string     `json:"waived_reason,omitempty"`
	WaivedBy     string     `json:"waived_by,omitempty"`
	WaivedAt     *time.Time `json:"waived_at,omitempty"`

	RecentPayments []RecentPayment `json:"recent_payments"`
}

// StudentScholarship is one discount line of an enrollment
type StudentScholarship struct {
	ID            uuid.UUID       `json:"id"`
	TemplateID    uuid.UUID       `json:"template_id"`
	Name          string          `json:"name"`
	Type          ScholarshipType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	IsAutoApplied bool            `json:"is_auto_applied"`
	IsActive      bool            `json:"is_active"`
	AppliedDate   time.Time       `json:"applied_date"`
}

type FeeTotals struct {
	Compulsory decimal.Decimal `json:"compulsory"`
	Optional   decimal.Decimal `json:"optional"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
}

type ScholarshipTotals struct {
	Applied     decimal.Decimal `json:"applied"`
	AutoApplied decimal.Decimal `json:"auto_applied"`
	Manual      decimal.Decimal `json:"manual"`
}

type NetAmount struct {
	Total decimal.Decimal `json:"total"`
	Paid  decimal.Decimal `json:"paid"`
	Due   decimal.Decimal `json:"due"`
}

// Totals is the cached aggregate view of an enrollment's fees and scholarships
type Totals struct {
	Fees         FeeTotals         `json:"fees"`
	Scholarships ScholarshipTotals `json:"scholarships"`
	NetAmount    NetAmount         `json:"net_amount"`
}

type FeeStatus struct {
	Status          FeeStatusCode   `json:"status"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
}

// StudentEnrollment is the ledger root for one student in one academic year
type StudentEnrollment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StudentID      uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_enrollments_active_student_year,priority:1,where:is_active = true" json:"student_id"`
	AcademicYearID uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_enrollments_active_student_year,priority:2,where:is_active = true" json:"academic_year_id"`
	ClassID        uuid.UUID `gorm:"type:uuid;index" json:"class_id"`
	FeeStructureID uuid.UUID `gorm:"type:uuid" json:"fee_structure_id"`
	Section        string    `gorm:"type:varchar(20)" json:"section"`
	IsActive       bool      `gorm:"index" json:"is_active"`

	StudentInfo      datatypes.JSONType[StudentSnapshot]      `json:"student"`
	AcademicYearInfo datatypes.JSONType[AcademicYearSnapshot] `json:"academic_year"`
	ClassInfo        datatypes.JSONType[ClassSnapshot]        `json:"class"`

	Fees         []StudentFee         `gorm:"type:jsonb;serializer:json" json:"fees"`
	Scholarships []StudentScholarship `gorm:"type:jsonb;serializer:json" json:"scholarships"`
	Totals       Totals               `gorm:"type:jsonb;serializer:json" json:"totals"`
	FeeStatus    FeeStatus            `gorm:"type:jsonb;serializer:json" json:"fee_status"`

	// Flattened from Totals/FeeStatus on every write so reports can filter and sort.
	NetDue        decimal.Decimal `gorm:"type:decimal(15,2);index" json:"-"`
	FeeStatusCode FeeStatusCode   `gorm:"type:varchar(20);index" json:"-"`

	Version int `gorm:"not null" json:"version"`
}

func (e *StudentEnrollment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// SetTotals stores a freshly computed aggregate together with its flattened columns
func (e *StudentEnrollment) SetTotals(totals Totals, status FeeStatus) {
	e.Totals = totals
	e.FeeStatus = status
	e.NetDue = totals.NetAmount.Due
	e.FeeStatusCode = status.Status
}

// Fee returns the index of the fee line with the given id, or -1
func (e *StudentEnrollment) Fee(id uuid.UUID) int {
	for i := range e.Fees {
		if e.Fees[i].ID == id {
			return i
		}
	}
	return -1
}
