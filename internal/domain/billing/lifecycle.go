package billing

import (
	"strconv"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// MarkPaid settles the invoice in full
func MarkPaid(inv *entity.Invoice, method entity.PaymentMethod, paymentDate time.Time) error {
	if inv.Status == entity.InvoiceStatusCancelled {
		return ErrInvoiceCancelled
	}
	if err := validatePayment(method, paymentDate); err != nil {
		return err
	}

	inv.Status = entity.InvoiceStatusPaid
	inv.PaidAmount = inv.Total
	inv.PaymentMethod = method
	inv.PaymentDate = &paymentDate
	return nil
}

// MarkPartial records a payment that covers part of the outstanding amount.
// A payment that settles the remainder marks the invoice paid.
func MarkPartial(inv *entity.Invoice, amount float64, method entity.PaymentMethod, paymentDate time.Time) error {
	switch inv.Status {
	case entity.InvoiceStatusCancelled:
		return ErrInvoiceCancelled
	case entity.InvoiceStatusPaid:
		return ErrInvalidTransition
	}
	if err := validatePayment(method, paymentDate); err != nil {
		return err
	}
	if err := nonNegative("amount", amount); err != nil {
		return err
	}
	if amount == 0 {
		return invalid("amount", "must be greater than zero")
	}

	outstanding := inv.OutstandingAmount()
	if amount > outstanding+AmountTolerance {
		return invalid("amount", "%.2f exceeds outstanding %.2f", amount, outstanding)
	}

	paid := inv.AmountPaid() + amount
	if amountsEqual(paid, inv.Total) || paid > inv.Total {
		return MarkPaid(inv, method, paymentDate)
	}

	inv.Status = entity.InvoiceStatusPartial
	inv.PaidAmount = paid
	inv.PaymentMethod = method
	inv.PaymentDate = &paymentDate
	return nil
}

// Cancel voids an unpaid invoice. Cancelling twice is a no-op.
func Cancel(inv *entity.Invoice) error {
	switch inv.Status {
	case entity.InvoiceStatusCancelled:
		return nil
	case entity.InvoiceStatusPaid, entity.InvoiceStatusPartial:
		return ErrInvalidTransition
	}
	inv.Status = entity.InvoiceStatusCancelled
	return nil
}

// ApplyDiscount replaces the discount and recomputes the total.
// On error the invoice is left untouched.
func ApplyDiscount(inv *entity.Invoice, discount float64) error {
	if err := ensureEditable(inv); err != nil {
		return err
	}
	return recompute(inv, inv.Items, inv.Tax, discount)
}

// SetTax replaces the tax amount and recomputes the total
func SetTax(inv *entity.Invoice, tax float64) error {
	if err := ensureEditable(inv); err != nil {
		return err
	}
	return recompute(inv, inv.Items, tax, inv.Discount)
}

// AddItem appends a line item and recomputes totals
func AddItem(inv *entity.Invoice, item entity.LineItem) error {
	if err := ensureEditable(inv); err != nil {
		return err
	}
	items := make([]entity.LineItem, 0, len(inv.Items)+1)
	items = append(items, inv.Items...)
	items = append(items, item)
	return recompute(inv, items, inv.Tax, inv.Discount)
}

// UpdateItem replaces the line item at index and recomputes totals
func UpdateItem(inv *entity.Invoice, index int, item entity.LineItem) error {
	if err := ensureEditable(inv); err != nil {
		return err
	}
	if err := checkIndex(inv, index); err != nil {
		return err
	}
	items := append([]entity.LineItem(nil), inv.Items...)
	items[index] = item
	return recompute(inv, items, inv.Tax, inv.Discount)
}

// RemoveItem deletes the line item at index and recomputes totals
func RemoveItem(inv *entity.Invoice, index int) error {
	if err := ensureEditable(inv); err != nil {
		return err
	}
	if err := checkIndex(inv, index); err != nil {
		return err
	}
	if len(inv.Items) == 1 {
		return invalid("items", "an invoice needs at least one line item")
	}
	items := make([]entity.LineItem, 0, len(inv.Items)-1)
	items = append(items, inv.Items[:index]...)
	items = append(items, inv.Items[index+1:]...)
	return recompute(inv, items, inv.Tax, inv.Discount)
}

func recompute(inv *entity.Invoice, items []entity.LineItem, tax, discount float64) error {
	totals, err := ComputeTotals(items, tax, discount)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Total = ItemTotal(items[i])
	}
	inv.Items = items
	inv.Tax = tax
	inv.Discount = discount
	inv.Subtotal = totals.Subtotal
	inv.Total = totals.Total
	return nil
}

// ensureEditable allows amount changes only before any money has been received
func ensureEditable(inv *entity.Invoice) error {
	switch inv.Status {
	case entity.InvoiceStatusCancelled:
		return ErrInvoiceCancelled
	case entity.InvoiceStatusPaid, entity.InvoiceStatusPartial:
		return ErrInvalidTransition
	}
	return nil
}

func checkIndex(inv *entity.Invoice, index int) error {
	if index < 0 || index >= len(inv.Items) {
		return &NotFoundError{
			Resource: "line item",
			Key:      inv.InvoiceNumber + "#" + strconv.Itoa(index),
		}
	}
	return nil
}

func validatePayment(method entity.PaymentMethod, paymentDate time.Time) error {
	if !method.IsValid() {
		return invalid("payment_method", "unsupported method %q", method)
	}
	if paymentDate.IsZero() {
		return invalid("payment_date", "is required")
	}
	return nil
}
