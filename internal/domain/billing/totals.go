package billing

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// AmountTolerance absorbs rounding when comparing payments against a total
const AmountTolerance = 0.01

// itemTotalEpsilon is the relative float noise allowed between a supplied
// item total and quantity x unit price
const itemTotalEpsilon = 1e-9

// Totals holds the derived invoice amounts
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Total    float64 `json:"total"`
}

// NewLineItem builds a line item with its total computed from quantity and unit price
func NewLineItem(description string, quantity int, unitPrice float64) (entity.LineItem, error) {
	item := entity.LineItem{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       float64(quantity) * unitPrice,
	}
	if err := ValidateItem(item); err != nil {
		return entity.LineItem{}, err
	}
	return item, nil
}

// ValidateItem checks quantity, prices and that total equals quantity x unit price
func ValidateItem(item entity.LineItem) error {
	if strings.TrimSpace(item.Description) == "" {
		return invalid("description", "must not be empty")
	}
	if item.Quantity < 1 {
		return invalid("quantity", "must be at least 1, got %d", item.Quantity)
	}
	if err := nonNegative("unit_price", item.UnitPrice); err != nil {
		return err
	}
	if err := nonNegative("total", item.Total); err != nil {
		return err
	}
	expected := ItemTotal(item)
	if !itemTotalMatches(item.Total, expected) {
		return invalid("total", "%v does not match quantity x unit price %v", item.Total, expected)
	}
	return nil
}

// ItemTotal is the authoritative total of a line item
func ItemTotal(item entity.LineItem) float64 {
	return float64(item.Quantity) * item.UnitPrice
}

// NormalizeItem validates item and replaces its total with quantity x unit price
func NormalizeItem(item entity.LineItem) (entity.LineItem, error) {
	if err := ValidateItem(item); err != nil {
		return entity.LineItem{}, err
	}
	item.Total = ItemTotal(item)
	return item, nil
}

// ComputeTotals sums quantity x unit price over the items and applies tax and discount.
// Supplied item totals are only checked, never summed.
func ComputeTotals(items []entity.LineItem, tax, discount float64) (Totals, error) {
	if err := nonNegative("tax", tax); err != nil {
		return Totals{}, err
	}
	if err := nonNegative("discount", discount); err != nil {
		return Totals{}, err
	}

	var subtotal float64
	for i, item := range items {
		if err := ValidateItem(item); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return Totals{}, &ValidationError{Field: itemField(i, ve.Field), Reason: ve.Reason}
			}
			return Totals{}, err
		}
		subtotal += ItemTotal(item)
	}

	if discount > subtotal {
		return Totals{}, invalid("discount", "%.2f exceeds subtotal %.2f", discount, subtotal)
	}

	return Totals{
		Subtotal: subtotal,
		Total:    subtotal + tax - discount,
	}, nil
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a finite number")
	}
	if v < 0 {
		return invalid(field, "must not be negative, got %.2f", v)
	}
	return nil
}

func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < AmountTolerance
}

func itemTotalMatches(got, want float64) bool {
	return math.Abs(got-want) <= itemTotalEpsilon*math.Max(1, math.Abs(want))
}

func itemField(index int, field string) string {
	return "items[" + strconv.Itoa(index) + "]." + field
}
