package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/notify"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/storage"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"go.opentelemetry.io/otel"
)

// NotificationDispatcher sends the receipt, the email and the SMS for a
// settled transaction. Channels fail independently; nothing is retried.
// A nil sink skips its channel.
type NotificationDispatcher struct {
	Renderer       notify.ReceiptRenderer
	Store          storage.ReceiptStore
	Mailer         notify.Mailer
	SMS            notify.SMSSender
	Business       string
	Currency       string
	ChannelTimeout time.Duration
}

func (d *NotificationDispatcher) Dispatch(ctx context.Context, tx *models.Transaction) *models.DispatchReport {
	ctx, span := otel.Tracer("notification-dispatcher").Start(ctx, "Dispatch")
	defer span.End()

	receipt := models.NewReceipt(tx, d.Currency)
	report := &models.DispatchReport{OrderID: tx.OrderID}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report.SMS = d.sendSMS(ctx, receipt)
	}()

	var pdf []byte
	pdf, report.ReceiptURL, report.Receipt = d.storeReceipt(ctx, receipt)
	report.Email = d.sendEmail(ctx, receipt, pdf)
	wg.Wait()

	for _, c := range report.Channels() {
		observability.NotificationAttempts.WithLabelValues(c.Channel, c.Status()).Inc()
		if c.Err != nil {
			span.RecordError(c.Err)
			slog.Error("notification channel failed",
				"order_id", tx.OrderID,
				"channel", c.Channel,
				"error", c.Err)
		}
	}
	slog.Info("notifications dispatched",
		"order_id", tx.OrderID,
		"receipt", report.Receipt.Status(),
		"email", report.Email.Status(),
		"sms", report.SMS.Status())
	return report
}

func (d *NotificationDispatcher) channelContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.ChannelTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.ChannelTimeout)
}

// recoverChannel turns a panicking sink into a failed channel.
func recoverChannel(res *models.ChannelResult) {
	if p := recover(); p != nil {
		res.Err = fmt.Errorf("%s channel panicked: %v", res.Channel, p)
	}
}

// storeReceipt returns the rendered PDF even when storing it failed, so the
// email can still carry it.
func (d *NotificationDispatcher) storeReceipt(ctx context.Context, r *models.Receipt) (pdf []byte, url string, res models.ChannelResult) {
	res = models.ChannelResult{Channel: models.ChannelReceipt}
	defer recoverChannel(&res)
	if d.Renderer == nil {
		res.Skipped = true
		return nil, "", res
	}

	pdf, err := d.Renderer.Render(r)
	if err != nil {
		res.Err = err
		return nil, "", res
	}
	if d.Store == nil {
		return pdf, "", res
	}

	ctx, cancel := d.channelContext(ctx)
	defer cancel()
	url, err = d.Store.Save(ctx, notify.ReceiptFileName(r.OrderID), pdf)
	if err != nil {
		res.Err = err
		return pdf, "", res
	}
	return pdf, url, res
}

func (d *NotificationDispatcher) sendEmail(ctx context.Context, r *models.Receipt, pdf []byte) (res models.ChannelResult) {
	res = models.ChannelResult{Channel: models.ChannelEmail}
	defer recoverChannel(&res)
	if d.Mailer == nil || r.Email == "" {
		res.Skipped = true
		return res
	}
	ctx, cancel := d.channelContext(ctx)
	defer cancel()
	res.Err = d.Mailer.SendReceipt(ctx, r, pdf)
	return res
}

func (d *NotificationDispatcher) sendSMS(ctx context.Context, r *models.Receipt) (res models.ChannelResult) {
	res = models.ChannelResult{Channel: models.ChannelSMS}
	defer recoverChannel(&res)
	if d.SMS == nil || r.Phone == "" {
		res.Skipped = true
		return res
	}
	ctx, cancel := d.channelContext(ctx)
	defer cancel()
	res.Err = d.SMS.Send(ctx, r.Phone, notify.FormatSMS(d.Business, r))
	return res
}
