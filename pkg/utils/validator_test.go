package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReference(t *testing.T) {
	tests := []struct {
		ref     string
		wantErr bool
	}{
		{"patient-42", false},
		{"PAT:2026.10_7", false},
		{"", true},
		{"-leading-dash", true},
		{"has space", true},
		{"semi;colon", true},
		{string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		err := ValidateReference("patient_ref", tt.ref)
		if tt.wantErr {
			assert.Error(t, err, "ref %q", tt.ref)
		} else {
			assert.NoError(t, err, "ref %q", tt.ref)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount  float64
		wantErr bool
	}{
		{0, false},
		{12.5, false},
		{99.99, false},
		{0.1 + 0.2, false},
		{-0.01, true},
		{1.005, true},
		{math.NaN(), true},
		{math.Inf(1), true},
	}

	for _, tt := range tests {
		err := ValidateAmount("amount", tt.amount)
		if tt.wantErr {
			assert.Error(t, err, "amount %v", tt.amount)
		} else {
			assert.NoError(t, err, "amount %v", tt.amount)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Follow-up\nin two weeks", SanitizeString("  Follow-up\x00\nin two\x07 weeks "))
	assert.Equal(t, "", SanitizeString("\x01\x02"))
}
