package notify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatVND(t *testing.T) {
	tests := []struct {
		amount   int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{20000, "20.000"},
		{500000, "500.000"},
		{1500000, "1.500.000"},
		{-50000, "-50.000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatVND(decimal.NewFromInt(tt.amount)), "amount %d", tt.amount)
	}
}

func TestFormatVND_TruncatesFractions(t *testing.T) {
	assert.Equal(t, "1.500", FormatVND(decimal.NewFromFloat(1500.75)))
}

func TestReceiptContents(t *testing.T) {
	when := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	receipt := Receipt(decimal.NewFromInt(50000), decimal.NewFromInt(120000),
		"FT123456", "MBBank", "NGUYEN VAN A", when)

	assert.Contains(t, receipt, "+50.000đ")
	assert.Contains(t, receipt, "FT123456")
	assert.Contains(t, receipt, "MBBank")
	assert.Contains(t, receipt, "NGUYEN VAN A")
	assert.Contains(t, receipt, "01/03/2025 14:30:00")
	assert.Contains(t, receipt, "120.000đ")
}

func TestCommissionEarnedContents(t *testing.T) {
	text := CommissionEarned(decimal.NewFromInt(1500), "someuser", decimal.NewFromFloat(0.03), "Bronze")

	assert.Contains(t, text, "1.500đ")
	assert.Contains(t, text, "@someuser")
	assert.Contains(t, text, "Bronze")
	assert.Contains(t, text, "3.0%")
}
