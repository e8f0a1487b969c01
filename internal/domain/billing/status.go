package billing

import (
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// DeriveStatus flips a pending invoice to overdue once today is past its due date.
// Every other status is returned unchanged.
func DeriveStatus(current entity.InvoiceStatus, dueDate, today time.Time) entity.InvoiceStatus {
	if current == entity.InvoiceStatusPending && today.After(dueDate) {
		return entity.InvoiceStatusOverdue
	}
	return current
}

// ParseStatus validates a status name supplied by a caller
func ParseStatus(s string) (entity.InvoiceStatus, error) {
	status := entity.InvoiceStatus(s)
	if !status.IsValid() {
		return "", invalid("status", "unknown status %q", s)
	}
	return status, nil
}
