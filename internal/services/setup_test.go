package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"feeledger_app_echo/internal/models"
)

// newTestDB opens a migrated sqlite database in a temp dir. One open connection makes
// concurrent transactions queue instead of failing with SQLITE_BUSY.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), GormConfig(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// school is the reference data most ledger tests start from: Tuition 1000 (compulsory),
// Transport 200 (optional, editable) and an auto-applied Merit scholarship of 100.
type school struct {
	Year      *models.AcademicYear
	Class     *models.Class
	Student   *models.Student
	Tuition   *models.FeeTemplate
	Transport *models.FeeTemplate
	Merit     *models.ScholarshipTemplate
	Sports    *models.ScholarshipTemplate
	Structure *models.FeeStructure
}

func seedSchool(t *testing.T, db *gorm.DB) *school {
	t.Helper()
	ctx := context.Background()
	schools := NewSchoolService(db)
	catalog := NewCatalogService(db)

	var s school
	var err error
	s.Year, err = schools.CreateAcademicYear(ctx, "2025-2026",
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	s.Class, err = schools.CreateClass(ctx, "Grade 5", 5)
	require.NoError(t, err)
	s.Student, err = schools.CreateStudent(ctx, models.Student{
		AdmissionNo:         "A-001",
		Name:                "Rani",
		GuardianName:        "Sari",
		GuardianEmail:       "sari@example.com",
		NotificationChannel: models.NotificationChannelEmail,
	})
	require.NoError(t, err)

	s.Tuition, err = catalog.CreateFeeTemplate(ctx, "Tuition", models.FeeCategoryRegular, 1)
	require.NoError(t, err)
	s.Transport, err = catalog.CreateFeeTemplate(ctx, "Transport", models.FeeCategoryOptional, 2)
	require.NoError(t, err)
	s.Merit, err = catalog.CreateScholarshipTemplate(ctx, "Merit", models.ScholarshipTypeMerit, 1)
	require.NoError(t, err)
	s.Sports, err = catalog.CreateScholarshipTemplate(ctx, "Sports", models.ScholarshipTypeSports, 2)
	require.NoError(t, err)

	s.Structure, err = NewFeeStructureService(db).Create(ctx, CreateFeeStructureRequest{
		AcademicYearID: s.Year.ID,
		ClassID:        s.Class.ID,
		FeeItems: []FeeItemInput{
			{TemplateID: s.Tuition.ID, Amount: dec("1000"), IsCompulsory: true, Order: 1},
			{TemplateID: s.Transport.ID, Amount: dec("200"), IsEditableDuringEnrollment: true, Order: 2},
		},
		ScholarshipItems: []ScholarshipItemInput{
			{TemplateID: s.Merit.ID, Amount: dec("100"), IsAutoApplied: true},
			{TemplateID: s.Sports.ID, Amount: dec("50")},
		},
	})
	require.NoError(t, err)
	return &s
}

func (s *school) enroll(t *testing.T, db *gorm.DB) *models.StudentEnrollment {
	t.Helper()
	enr, err := NewEnrollmentService(db, nil, 0).CreateEnrollment(context.Background(), CreateEnrollmentRequest{
		StudentID:      s.Student.ID,
		AcademicYearID: s.Year.ID,
		ClassID:        s.Class.ID,
	})
	require.NoError(t, err)
	return enr
}

// addStudent registers another active student in the same school
func (s *school) addStudent(t *testing.T, db *gorm.DB, admissionNo string) *models.Student {
	t.Helper()
	st, err := NewSchoolService(db).CreateStudent(context.Background(), models.Student{AdmissionNo: admissionNo, Name: "Student " + admissionNo})
	require.NoError(t, err)
	return st
}

func (s *school) enrollStudent(t *testing.T, db *gorm.DB, studentID uuid.UUID) *models.StudentEnrollment {
	t.Helper()
	enr, err := NewEnrollmentService(db, nil, 0).CreateEnrollment(context.Background(), CreateEnrollmentRequest{
		StudentID:      studentID,
		AcademicYearID: s.Year.ID,
		ClassID:        s.Class.ID,
	})
	require.NoError(t, err)
	return enr
}

func newPayments(db *gorm.DB, cache *RedisCache) *PaymentService {
	return NewPaymentService(db, cache, NewReceiptSequencer(), PaymentConfig{})
}

func collect(t *testing.T, svc *PaymentService, enrollmentID uuid.UUID, amount string) *models.Payment {
	t.Helper()
	p, err := svc.Collect(context.Background(), CollectRequest{
		EnrollmentID: enrollmentID,
		Amount:       dec(amount),
		Method:       models.PaymentMethodCash,
		CreatedBy:    "bursar@example.com",
	})
	require.NoError(t, err)
	return p
}

// feeByName finds a fee line on an enrollment
func feeByName(t *testing.T, enr *models.StudentEnrollment, name string) models.StudentFee {
	t.Helper()
	for _, f := range enr.Fees {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("fee %q not on enrollment", name)
	return models.StudentFee{}
}
