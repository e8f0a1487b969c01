package billing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// InvoiceNumberPrefix starts every invoice number
const InvoiceNumberPrefix = "INV"

var invoiceNumberPattern = regexp.MustCompile(`^INV-(\d{4})(\d{2})-(\d{4,})$`)

// AssignInvoiceNumber formats INV-YYYYMM-NNNN for the month containing creationMonth.
// The sequence is existingCountForMonth + 1. Callers must take the count and
// insert the invoice in one transaction and retry on ErrDuplicateNumber.
func AssignInvoiceNumber(creationMonth time.Time, existingCountForMonth int) string {
	if existingCountForMonth < 0 {
		existingCountForMonth = 0
	}
	return fmt.Sprintf("%s-%04d%02d-%04d",
		InvoiceNumberPrefix,
		creationMonth.Year(),
		int(creationMonth.Month()),
		existingCountForMonth+1)
}

// ParseInvoiceNumber splits an invoice number into its month and sequence
func ParseInvoiceNumber(number string) (year int, month time.Month, sequence int, err error) {
	m := invoiceNumberPattern.FindStringSubmatch(number)
	if m == nil {
		return 0, 0, 0, invalid("invoice_number", "%q does not match %s-YYYYMM-NNNN", number, InvoiceNumberPrefix)
	}
	year, _ = strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	if mon < 1 || mon > 12 {
		return 0, 0, 0, invalid("invoice_number", "%q has month %02d", number, mon)
	}
	sequence, _ = strconv.Atoi(m[3])
	if sequence < 1 {
		return 0, 0, 0, invalid("invoice_number", "%q has sequence 0", number)
	}
	return year, time.Month(mon), sequence, nil
}

// MonthBounds returns the half-open window [start, end) of the calendar month containing t
func MonthBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
