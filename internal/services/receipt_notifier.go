package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"feeledger_app_echo/internal/models"
)

// MessageSender delivers one text message to a recipient address
type MessageSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotifyResult describes what happened to one receipt notification
type NotifyResult struct {
	Channel   models.NotificationChannel `json:"channel"`
	Recipient string                     `json:"recipient,omitempty"`
	Skipped   string                     `json:"skipped,omitempty"`
}

// ReceiptNotifier sends payment receipts to a student's guardian over the student's
// preferred channel
type ReceiptNotifier struct {
	db      *gorm.DB
	senders map[models.NotificationChannel]MessageSender
}

func NewReceiptNotifier(db *gorm.DB, email, whatsapp MessageSender) *ReceiptNotifier {
	senders := map[models.NotificationChannel]MessageSender{}
	if email != nil {
		senders[models.NotificationChannelEmail] = email
	}
	if whatsapp != nil {
		senders[models.NotificationChannelWhatsapp] = whatsapp
	}
	return &ReceiptNotifier{db: db, senders: senders}
}

// Notify delivers the receipt of paymentID. Students who opted out, or whose channel has
// no address or sender, are skipped without error.
func (n *ReceiptNotifier) Notify(ctx context.Context, paymentID uuid.UUID) (NotifyResult, error) {
	payment, err := loadPayment(n.db.WithContext(ctx), paymentID)
	if err != nil {
		return NotifyResult{}, err
	}

	var student models.Student
	if err := n.db.WithContext(ctx).First(&student, "id = ?", payment.StudentID).Error; err != nil {
		return NotifyResult{}, fmt.Errorf("student %s for payment %s: %w", payment.StudentID, payment.ID, err)
	}

	res := NotifyResult{Channel: student.NotificationChannel}
	switch student.NotificationChannel {
	case models.NotificationChannelEmail:
		res.Recipient = student.GuardianEmail
	case models.NotificationChannelWhatsapp:
		res.Recipient = student.GuardianPhone
	default:
		res.Skipped = "notifications disabled"
		return res, nil
	}
	if res.Recipient == "" {
		res.Skipped = "no guardian address"
		return res, nil
	}
	sender, ok := n.senders[student.NotificationChannel]
	if !ok {
		res.Skipped = "channel not configured"
		return res, nil
	}

	subject, body := RenderReceipt(payment, student.GuardianName)
	if err := sender.Send(ctx, res.Recipient, subject, body); err != nil {
		return res, fmt.Errorf("send receipt %s via %s: %w", payment.ReceiptNo, res.Channel, err)
	}
	return res, nil
}

// RenderReceipt formats the plain text receipt sent to guardians
func RenderReceipt(p *models.Payment, guardian string) (subject, body string) {
	student := p.StudentInfo.Data()
	year := p.AcademicYearInfo.Data()

	subject = fmt.Sprintf("Receipt %s - %s", p.ReceiptNo, student.Name)
	if p.Status == models.PaymentStatusCancelled {
		subject = "Cancelled: " + subject
	}

	var b strings.Builder
	if guardian != "" {
		fmt.Fprintf(&b, "Dear %s,\n\n", guardian)
	}
	fmt.Fprintf(&b, "Receipt no: %s\n", p.ReceiptNo)
	fmt.Fprintf(&b, "Academic year: %s\n", year.Name)
	fmt.Fprintf(&b, "Student: %s (%s)\n", student.Name, student.AdmissionNo)
	fmt.Fprintf(&b, "Date: %s\n", p.PaymentDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Method: %s\n\n", p.PaymentMethod)
	for _, item := range p.PaymentItems {
		fmt.Fprintf(&b, "- %s: %s (balance %s)\n", item.FeeName, item.Amount.StringFixed(2), item.FeeBalance.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal paid: %s\n", p.TotalAmount.StringFixed(2))
	if p.Status == models.PaymentStatusCancelled {
		fmt.Fprintf(&b, "This payment was cancelled: %s\n", p.CancelReason)
	}
	return subject, b.String()
}
