package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"gopkg.in/gomail.v2"
)

const receiptSubject = "Your Payment Receipt"

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg      SMTPConfig
	business string
	dialer   *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig, business string) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPMailer{
		cfg:      cfg,
		business: business,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (m *SMTPMailer) buildMessage(r *models.Receipt, attachment []byte) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, m.business)
	msg.SetHeader("To", r.Email)
	msg.SetHeader("Subject", receiptSubject)
	msg.SetBody("text/plain", FormatReceiptText(m.business, r))
	if len(attachment) > 0 {
		msg.Attach(ReceiptFileName(r.OrderID),
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(attachment)
				return err
			}),
		)
	}
	return msg
}

// SendReceipt dials the SMTP server per message. gomail has no context
// support, so ctx only bounds how long the caller waits.
func (m *SMTPMailer) SendReceipt(ctx context.Context, r *models.Receipt, attachment []byte) error {
	if r.Email == "" {
		return fmt.Errorf("receipt has no recipient")
	}
	msg := m.buildMessage(r, attachment)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send receipt email: %w", err)
		}
		slog.Info("receipt email sent", "order_id", r.OrderID, "attachment", len(attachment) > 0)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("receipt email: %w", ctx.Err())
	}
}
