package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// SchoolService registers the reference records enrollments snapshot from
type SchoolService struct {
	db *gorm.DB
}

func NewSchoolService(db *gorm.DB) *SchoolService {
	return &SchoolService{db: db}
}

func (s *SchoolService) CreateAcademicYear(ctx context.Context, name string, start, end time.Time) (*models.AcademicYear, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("academic year name is required: %w", ErrValidation)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("academic year %s ends before it starts: %w", name, ErrValidation)
	}
	year := models.AcademicYear{Name: name, StartDate: start, EndDate: end}
	if err := create(ctx, s.db, &year, "academic year "+name); err != nil {
		return nil, err
	}
	return &year, nil
}

func (s *SchoolService) CreateClass(ctx context.Context, name string, grade int) (*models.Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("class name is required: %w", ErrValidation)
	}
	class := models.Class{Name: name, Grade: grade}
	if err := create(ctx, s.db, &class, "class "+name); err != nil {
		return nil, err
	}
	return &class, nil
}

func (s *SchoolService) CreateStudent(ctx context.Context, student models.Student) (*models.Student, error) {
	student.AdmissionNo = strings.TrimSpace(student.AdmissionNo)
	student.Name = strings.TrimSpace(student.Name)
	if student.AdmissionNo == "" || student.Name == "" {
		return nil, fmt.Errorf("admission number and name are required: %w", ErrValidation)
	}
	switch student.NotificationChannel {
	case "", models.NotificationChannelEmail, models.NotificationChannelWhatsapp, models.NotificationChannelNone:
	default:
		return nil, fmt.Errorf("notification channel %q: %w", student.NotificationChannel, ErrValidation)
	}
	student.IsActive = true
	if err := create(ctx, s.db, &student, "student "+student.AdmissionNo); err != nil {
		return nil, err
	}
	return &student, nil
}

func create(ctx context.Context, db *gorm.DB, value interface{}, what string) error {
	if err := db.WithContext(ctx).Create(value).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s: %w", what, ErrConflict)
		}
		return fmt.Errorf("create %s: %w", what, err)
	}
	return nil
}
