package entity

import "time"

// InvoiceStatus is the payment lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var validInvoiceStatuses = map[InvoiceStatus]bool{
	InvoiceStatusPending:   true,
	InvoiceStatusPaid:      true,
	InvoiceStatusPartial:   true,
	InvoiceStatusOverdue:   true,
	InvoiceStatusCancelled: true,
}

// AllInvoiceStatuses lists statuses in display order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusPartial,
	InvoiceStatusOverdue,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

// IsValid returns true if the status is a known invoice status
func (s InvoiceStatus) IsValid() bool {
	return validInvoiceStatuses[s]
}

// String returns the string representation of the status
func (s InvoiceStatus) String() string {
	return string(s)
}

// PaymentMethod is how the patient settled (part of) an invoice
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodInsurance    PaymentMethod = "insurance"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOnline       PaymentMethod = "online"
)

// IsValid returns true if the payment method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodInsurance,
		PaymentMethodBankTransfer, PaymentMethodOnline:
		return true
	}
	return false
}

// LineItem is a single billable service or product on an invoice.
// Line items have no identity outside their invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Invoice is a billable record for a patient encounter
type Invoice struct {
	ID            int64  `json:"id"`
	PublicID      string `json:"public_id"`
	InvoiceNumber string `json:"invoice_number"`

	// References to entities owned by other parts of the clinic system
	PatientRef     string `json:"patient_ref"`
	AppointmentRef string `json:"appointment_ref,omitempty"`

	Items    []LineItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Tax      float64    `json:"tax"`
	Discount float64    `json:"discount"`
	Total    float64    `json:"total"`

	Status        InvoiceStatus `json:"status"`
	PaidAmount    float64       `json:"paid_amount"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
	DueDate       time.Time     `json:"due_date"`
	Notes         string        `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AmountPaid returns how much of the total has been settled
func (i *Invoice) AmountPaid() float64 {
	switch i.Status {
	case InvoiceStatusPaid:
		return i.Total
	case InvoiceStatusPartial:
		return i.PaidAmount
	default:
		return 0
	}
}

// OutstandingAmount returns total minus the amount paid
func (i *Invoice) OutstandingAmount() float64 {
	if i.Status == InvoiceStatusCancelled {
		return 0
	}
	return i.Total - i.AmountPaid()
}

// IsOverdue reports whether a pending invoice is past its due date.
// Once the status has been flipped to overdue, use DaysOverdue instead.
func (i *Invoice) IsOverdue(today time.Time) bool {
	return i.Status == InvoiceStatusPending && today.After(i.DueDate)
}

// DaysOverdue returns whole days elapsed since the due date for unpaid invoices
func (i *Invoice) DaysOverdue(today time.Time) int {
	switch i.Status {
	case InvoiceStatusPending, InvoiceStatusOverdue, InvoiceStatusPartial:
	default:
		return 0
	}
	if !today.After(i.DueDate) {
		return 0
	}
	return int(today.Sub(i.DueDate).Hours() / 24)
}

// Clone returns a deep copy of the invoice
func (i *Invoice) Clone() *Invoice {
	c := *i
	c.Items = append([]LineItem(nil), i.Items...)
	if i.PaymentDate != nil {
		pd := *i.PaymentDate
		c.PaymentDate = &pd
	}
	return &c
}
