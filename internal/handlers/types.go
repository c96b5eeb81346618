package handlers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"feeledger_app_echo/internal/services"
)

// ListResponse wraps paginated results
type ListResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// RequestValidator plugs go-playground/validator into echo's c.Validate
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns a services.ErrValidation naming each failing field
func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%v: %w", err, services.ErrValidation)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Namespace()+" "+fe.Tag())
	}
	sort.Strings(fields)
	return fmt.Errorf("%s: %w", strings.Join(fields, ", "), services.ErrValidation)
}

type TemplateRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Category string `json:"category" validate:"required"`
	Order    int    `json:"order" validate:"gte=0"`
}

type CopyFeeStructureRequest struct {
	AcademicYearID uuid.UUID `json:"academic_year_id" validate:"required"`
	ClassID        uuid.UUID `json:"class_id" validate:"required"`
	Name           *string   `json:"name"`
}

type WaiveFeeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type CollectPaymentRequest struct {
	Amount         decimal.Decimal       `json:"amount"`
	Method         string                `json:"payment_method" validate:"required,oneof=CASH ONLINE CHEQUE"`
	Remarks        string                `json:"remarks" validate:"max=1000"`
	Allocation     []services.Allocation `json:"allocation"`
	IdempotencyKey string                `json:"idempotency_key" validate:"max=100"`
}

type CancelPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type AcademicYearRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type ClassRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Grade int    `json:"grade" validate:"gte=0"`
}

type StudentRequest struct {
	AdmissionNo         string `json:"admission_no" validate:"required,max=50"`
	Name                string `json:"name" validate:"required,max=255"`
	GuardianName        string `json:"guardian_name" validate:"max=255"`
	GuardianEmail       string `json:"guardian_email" validate:"omitempty,email"`
	GuardianPhone       string `json:"guardian_phone" validate:"max=50"`
	NotificationChannel string `json:"notification_channel" validate:"omitempty,oneof=email whatsapp none"`
}

// bind decodes the request body into dst and validates it
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", services.ErrValidation)
	}
	return c.Validate(dst)
}

// actingUser is who performs a ledger mutation: the verified email, else the firebase UID
func actingUser(c echo.Context) string {
	if email := getStringFromContext(c, "userEmail"); email != "" {
		return email
	}
	return getStringFromContext(c, "userUID")
}

func getStringFromContext(c echo.Context, key string) string {
	if v, ok := c.Get(key).(string); ok {
		return v
	}
	return ""
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q is not a uuid: %w", name, c.Param(name), services.ErrValidation)
	}
	return id, nil
}

func uuidQuery(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %q is not a uuid: %w", name, raw, services.ErrValidation)
	}
	return &id, nil
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s %q must be a non-negative integer: %w", name, raw, services.ErrValidation)
	}
	return n, nil
}
