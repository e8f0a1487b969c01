package http

import (
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// LineItemRequest is one line item in a request body
type LineItemRequest struct {
	Description string   `json:"description"`
	Quantity    int      `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`
	Total       *float64 `json:"total,omitempty"`
}

// CreateInvoiceRequest is the body of POST /api/invoices
type CreateInvoiceRequest struct {
	PatientRef     string            `json:"patient_ref" binding:"required"`
	AppointmentRef string            `json:"appointment_ref"`
	Items          []LineItemRequest `json:"items" binding:"required"`
	Tax            float64           `json:"tax"`
	Discount       float64           `json:"discount"`
	DueDate        string            `json:"due_date"` // YYYY-MM-DD or RFC3339
	Notes          string            `json:"notes"`
}

// PaymentRequest is the body of the pay and partial-payment endpoints
type PaymentRequest struct {
	PaymentMethod string  `json:"payment_method" binding:"required"`
	PaymentDate   string  `json:"payment_date"`
	Amount        float64 `json:"amount"`
}

// AmountRequest is the body of the discount and tax endpoints
type AmountRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                int64              `json:"id"`
	PublicID          string             `json:"public_id"`
	InvoiceNumber     string             `json:"invoice_number"`
	PatientRef        string             `json:"patient_ref"`
	AppointmentRef    string             `json:"appointment_ref,omitempty"`
	Items             []LineItemResponse `json:"items"`
	Subtotal          float64            `json:"subtotal"`
	Tax               float64            `json:"tax"`
	Discount          float64            `json:"discount"`
	Total             float64            `json:"total"`
	Status            string             `json:"status"`
	AmountPaid        float64            `json:"amount_paid"`
	OutstandingAmount float64            `json:"outstanding_amount"`
	IsOverdue         bool               `json:"is_overdue"`
	DaysOverdue       int                `json:"days_overdue"`
	PaymentMethod     string             `json:"payment_method,omitempty"`
	PaymentDate       *string            `json:"payment_date,omitempty"`
	DueDate           string             `json:"due_date"`
	Notes             string             `json:"notes,omitempty"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
}

// toInvoiceResponse converts domain entity to API response
func toInvoiceResponse(inv *entity.Invoice, today time.Time) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, LineItemResponse(item))
	}

	resp := InvoiceResponse{
		ID:                inv.ID,
		PublicID:          inv.PublicID,
		InvoiceNumber:     inv.InvoiceNumber,
		PatientRef:        inv.PatientRef,
		AppointmentRef:    inv.AppointmentRef,
		Items:             items,
		Subtotal:          inv.Subtotal,
		Tax:               inv.Tax,
		Discount:          inv.Discount,
		Total:             inv.Total,
		Status:            string(inv.Status),
		AmountPaid:        inv.AmountPaid(),
		OutstandingAmount: inv.OutstandingAmount(),
		IsOverdue:         inv.IsOverdue(today) || inv.Status == entity.InvoiceStatusOverdue,
		DaysOverdue:       inv.DaysOverdue(today),
		PaymentMethod:     string(inv.PaymentMethod),
		DueDate:           inv.DueDate.Format(time.RFC3339),
		Notes:             inv.Notes,
		CreatedAt:         inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         inv.UpdatedAt.Format(time.RFC3339),
	}

	if inv.PaymentDate != nil {
		paid := inv.PaymentDate.Format(time.RFC3339)
		resp.PaymentDate = &paid
	}

	return resp
}

func toInvoiceResponses(invoices []*entity.Invoice, today time.Time) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv, today))
	}
	return out
}

// StatisticsResponse represents aggregated statistics in API responses
type StatisticsResponse struct {
	Start    string                             `json:"start"`
	End      string                             `json:"end"`
	ByStatus map[string]entity.StatusStatistics `json:"by_status"`
	Overall  entity.StatusStatistics            `json:"overall"`
}
