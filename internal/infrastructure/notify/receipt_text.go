package notify

import (
	"fmt"
	"strings"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
)

const receiptDateLayout = "02 Jan 2006 15:04 MST"

// FormatAmount renders an amount with its currency code, e.g. "INR 500.00".
func FormatAmount(r *models.Receipt) string {
	return r.Currency + " " + r.Amount.StringFixed(2)
}

// receiptLines is the labelled body shared by the PDF and the email text.
func receiptLines(r *models.Receipt) [][2]string {
	return [][2]string{
		{"Name", r.CustomerName},
		{"Phone", r.Phone},
		{"Email", r.Email},
		{"Order ID", r.OrderID},
		{"Payment ID", r.PaymentID},
		{"Amount", FormatAmount(r)},
		{"Date", r.PaidAt.UTC().Format(receiptDateLayout)},
	}
}

func FormatReceiptText(business string, r *models.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nPayment Receipt\n\n", business)
	for _, l := range receiptLines(r) {
		fmt.Fprintf(&b, "%-11s %s\n", l[0]+":", l[1])
	}
	b.WriteString("\nThank you for your payment. Your receipt is attached.\n")
	return b.String()
}

func FormatSMS(business string, r *models.Receipt) string {
	return fmt.Sprintf("%s: Payment Successful. Amount %s", business, FormatAmount(r))
}
