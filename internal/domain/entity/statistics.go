package entity

// StatusStatistics aggregates invoices sharing one status
type StatusStatistics struct {
	Count         int     `json:"count"`
	TotalAmount   float64 `json:"total_amount"`
	AverageAmount float64 `json:"average_amount"`
}

// InvoiceStatistics maps each status present in a range to its aggregate
type InvoiceStatistics map[InvoiceStatus]StatusStatistics

// Overall folds all statuses into a single aggregate
func (s InvoiceStatistics) Overall() StatusStatistics {
	var out StatusStatistics
	for _, st := range s {
		out.Count += st.Count
		out.TotalAmount += st.TotalAmount
	}
	if out.Count > 0 {
		out.AverageAmount = out.TotalAmount / float64(out.Count)
	}
	return out
}
