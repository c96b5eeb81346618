package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodCheque PaymentMethod = "CHEQUE"
)

// ValidPaymentMethod reports whether m is an accepted payment method
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodOnline, PaymentMethodCheque:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentItem is the part of a payment allocated to one fee line
type PaymentItem struct {
	FeeID      uuid.UUID       `json:"fee_id"`
	FeeName    string          `json:"fee_name"`
	Amount     decimal.Decimal `json:"amount"`
	FeeBalance decimal.Decimal `json:"fee_balance"`
}

// Payment is an issued receipt. Only Status and the cancellation fields change after creation.
type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AcademicYearID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_payments_year_receipt,priority:1" json:"academic_year_id"`
	ReceiptNo           string    `gorm:"type:varchar(50);uniqueIndex:idx_payments_year_receipt,priority:2" json:"receipt_no"`
	ReceiptSequence     int64     `json:"receipt_sequence"`
	StudentEnrollmentID uuid.UUID `gorm:"type:uuid;index" json:"student_enrollment_id"`
	StudentID           uuid.UUID `gorm:"type:uuid;index" json:"student_id"`

	TotalAmount   decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_amount"`
	PaymentDate   time.Time       `gorm:"index" json:"payment_date"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20)" json:"payment_method"`
	Status        PaymentStatus   `gorm:"type:varchar(20);index" json:"status"`
	Remarks       string          `gorm:"type:text" json:"remarks"`
	CreatedBy     string          `gorm:"type:varchar(255)" json:"created_by"`

	IdempotencyKey *string `gorm:"type:varchar(100);uniqueIndex" json:"idempotency_key,omitempty"`

	StudentInfo      datatypes.JSONType[StudentSnapshot]      `json:"student"`
	AcademicYearInfo datatypes.JSONType[AcademicYearSnapshot] `json:"academic_year"`

	PaymentItems []PaymentItem `gorm:"type:jsonb;serializer:json" json:"payment_items"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `gorm:"type:varchar(255)" json:"cancelled_by,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ReceiptSequence is the per academic year receipt counter
type ReceiptSequence struct {
	AcademicYearID uuid.UUID `gorm:"type:uuid;primaryKey" json:"academic_year_id"`
	LastSequence   int64     `gorm:"not null" json:"last_sequence"`
	UpdatedAt      time.Time `json:"updated_at"`
}
