package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger_app_echo/internal/models"
)

type sentMessage struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{to, subject, body})
	return nil
}

func TestReceiptNotifierSendsEmail(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	enr := s.enroll(t, db)
	p := collect(t, newPayments(db, nil), enr.ID, "1100")

	email, whatsapp := &fakeSender{}, &fakeSender{}
	res, err := NewReceiptNotifier(db, email, whatsapp).Notify(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, models.NotificationChannelEmail, res.Channel)
	assert.Equal(t, "sari@example.com", res.Recipient)
	assert.Empty(t, res.Skipped)
	assert.Empty(t, whatsapp.sent)
	require.Len(t, email.sent, 1)
	msg := email.sent[0]
	assert.Equal(t, "sari@example.com", msg.to)
	assert.Equal(t, "Receipt 1 - Rani", msg.subject)
	assert.Contains(t, msg.body, "Dear Sari,")
	assert.Contains(t, msg.body, "- Tuition: 1000.00 (balance 0.00)")
	assert.Contains(t, msg.body, "Total paid: 1100.00")
}

func TestReceiptNotifierSkips(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	ctx := context.Background()
	schools := NewSchoolService(db)
	payments := newPayments(db, nil)

	quiet := s.addStudent(t, db, "A-002")
	pQuiet := collect(t, payments, s.enrollStudent(t, db, quiet.ID).ID, "10")

	noPhone, err := schools.CreateStudent(ctx, models.Student{
		AdmissionNo: "A-003", Name: "Budi", NotificationChannel: models.NotificationChannelWhatsapp,
	})
	require.NoError(t, err)
	pNoPhone := collect(t, payments, s.enrollStudent(t, db, noPhone.ID).ID, "10")

	pEmail := collect(t, payments, s.enroll(t, db).ID, "10")

	tests := []struct {
		name    string
		payment *models.Payment
		skipped string
	}{
		{"opted out", pQuiet, "notifications disabled"},
		{"no address", pNoPhone, "no guardian address"},
		{"no sender for channel", pEmail, "channel not configured"},
	}
	notifier := NewReceiptNotifier(db, nil, &fakeSender{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := notifier.Notify(ctx, tt.payment.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.skipped, res.Skipped)
		})
	}
}

func TestReceiptNotifierSendFailure(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	p := collect(t, newPayments(db, nil), s.enroll(t, db).ID, "10")

	_, err := NewReceiptNotifier(db, &fakeSender{err: errors.New("smtp down")}, nil).Notify(context.Background(), p.ID)
	assert.ErrorContains(t, err, "smtp down")
}

func TestRenderCancelledReceipt(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	p := collect(t, newPayments(db, nil), s.enroll(t, db).ID, "10")
	cancelled, err := NewReversalService(db, nil, 0).Cancel(context.Background(), CancelRequest{PaymentID: p.ID, Reason: "duplicate"})
	require.NoError(t, err)

	subject, body := RenderReceipt(cancelled, "")
	assert.Equal(t, "Cancelled: Receipt 1 - Rani", subject)
	assert.NotContains(t, body, "Dear")
	assert.Contains(t, body, "This payment was cancelled: duplicate")
}
