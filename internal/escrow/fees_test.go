package escrow

import "testing"

func TestPlatformFee(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		feePercent int64
		wantFee    int64
	}{
		{"standard three percent", 10000, 3, 300},
		{"zero fee", 10000, 0, 0},
		{"max fee", 10000, 10, 1000},
		{"minimum amount", 100, 3, 3},
		{"half rounds up", 150, 1, 2},
		{"below half rounds down", 149, 1, 1},
		{"odd amount", 12345, 3, 370},
		{"exact half cent", 50, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := PlatformFee(tt.amount, tt.feePercent)
			if fee != tt.wantFee {
				t.Errorf("PlatformFee(%d, %d) = %d, want %d", tt.amount, tt.feePercent, fee, tt.wantFee)
			}
		})
	}
}

func TestFeePlusNetEqualsAmount(t *testing.T) {
	for amount := int64(100); amount <= 5000; amount += 37 {
		for fee := int64(0); fee <= MaxFeePercent; fee++ {
			f := PlatformFee(amount, fee)
			n := NetAmount(amount, fee)
			if f+n != amount {
				t.Fatalf("fee %d + net %d != amount %d (percent %d)", f, n, amount, fee)
			}
			if f < 0 || n < 0 {
				t.Fatalf("negative split for amount %d percent %d: fee %d net %d", amount, fee, f, n)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{10000, "usd", "$100.00"},
		{9700, "USD", "$97.00"},
		{5, "eur", "€0.05"},
		{123456, "gbp", "£1234.56"},
		{10000, "chf", "100.00 CHF"},
		{-250, "usd", "-$2.50"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.amount, tt.currency); got != tt.want {
			t.Errorf("FormatAmount(%d, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}
