package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var TaxRate = decimal.RequireFromString("0.18")

var (
	ErrReceiptNotFound     = errors.New("receipt not found")
	ErrReceiptExists       = errors.New("receipt already exists")
	ErrPaymentNotCompleted = errors.New("receipts are only issued for completed payments")
	ErrPersistence         = errors.New("failed to save receipt")
)

// Receipt is issued at most once per payment. PaymentID references
// payments.id, not the gateway order id.
type Receipt struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	PaymentID     string          `json:"payment_id"`
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Totals returns the tax and total for amount, tax rounded to 2 dp.
func Totals(amount decimal.Decimal) (tax, total decimal.Decimal) {
	tax = amount.Mul(TaxRate).Round(2)
	return tax, amount.Add(tax)
}

// Text renders r as the plain-text receipt offered for download.
func (r *Receipt) Text() string {
	var b strings.Builder
	b.WriteString("PAYMENT RECEIPT\n")
	b.WriteString("===============\n\n")
	fmt.Fprintf(&b, "Receipt Number: %s\n", r.ReceiptNumber)
	fmt.Fprintf(&b, "Date: %s\n\n", r.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Amount: ₹%s\n", r.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Tax (18%%): ₹%s\n", r.TaxAmount.StringFixed(2))
	fmt.Fprintf(&b, "Total: ₹%s\n\n", r.TotalAmount.StringFixed(2))
	b.WriteString("Thank you for your payment!\n")
	return b.String()
}
