package utils

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const maxReferenceLength = 64

var (
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)
	controlChars     = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateReference checks an opaque external reference such as a patient or appointment ID
func ValidateReference(field, ref string) error {
	if ref == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(ref) > maxReferenceLength {
		return fmt.Errorf("%s exceeds %d characters", field, maxReferenceLength)
	}
	if !referencePattern.MatchString(ref) {
		return fmt.Errorf("%s contains unsupported characters: %q", field, ref)
	}
	return nil
}

// ValidateAmount rejects NaN, infinities, negatives and sub-cent precision
func ValidateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%s must be a finite number", field)
	}
	if amount < 0 {
		return fmt.Errorf("%s must not be negative: %.2f", field, amount)
	}
	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return fmt.Errorf("%s has more than two decimal places: %v", field, amount)
	}
	return nil
}

// SanitizeString removes control characters, keeping tabs and newlines, and trims surrounding space
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
