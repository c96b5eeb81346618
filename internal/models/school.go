package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationChannel is how a guardian wants to receive receipts
type NotificationChannel string

const (
	NotificationChannelEmail    NotificationChannel = "email"
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
	NotificationChannelNone     NotificationChannel = "none"
)

// AcademicYear represents a school year, e.g. "2025-2026"
type AcademicYear struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name      string    `gorm:"type:varchar(50);uniqueIndex" json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (a *AcademicYear) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Snapshot returns the value copy embedded into structures, enrollments and payments
func (a AcademicYear) Snapshot() AcademicYearSnapshot {
	return AcademicYearSnapshot{ID: a.ID, Name: a.Name, StartDate: a.StartDate, EndDate: a.EndDate}
}

// Class represents a grade level offered by the school
type Class struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name  string `gorm:"type:varchar(100)" json:"name"`
	Grade int    `json:"grade"`
}

func (c *Class) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (c Class) Snapshot() ClassSnapshot {
	return ClassSnapshot{ID: c.ID, Name: c.Name, Grade: c.Grade}
}

// Student is the live student record. Ledger rows never join against it.
type Student struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	AdmissionNo string `gorm:"type:varchar(50);uniqueIndex" json:"admission_no"`
	Name        string `gorm:"type:varchar(255)" json:"name"`
	IsActive    bool   `json:"is_active"`

	GuardianName        string              `gorm:"type:varchar(255)" json:"guardian_name"`
	GuardianEmail       string              `gorm:"type:varchar(255)" json:"guardian_email"`
	GuardianPhone       string              `gorm:"type:varchar(50)" json:"guardian_phone"`
	NotificationChannel NotificationChannel `gorm:"type:varchar(20)" json:"notification_channel"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	if s.NotificationChannel == "" {
		s.NotificationChannel = NotificationChannelNone
	}
	return nil
}

func (s Student) Snapshot() StudentSnapshot {
	return StudentSnapshot{ID: s.ID, AdmissionNo: s.AdmissionNo, Name: s.Name}
}

// StudentSnapshot is the student as it looked when the record was written
type StudentSnapshot struct {
	ID          uuid.UUID `json:"id"`
	AdmissionNo string    `json:"admission_no"`
	Name        string    `json:"name"`
}

type AcademicYearSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type ClassSnapshot struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Grade   int       `json:"grade"`
	Section string    `json:"section,omitempty"`
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
