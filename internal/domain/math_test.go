package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSafeParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid integer", "100", "100"},
		{"valid decimal", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"negative", "-5.5", "-5.5"},
		{"empty string", "", "0"},
		{"invalid string", "abc", "0"},
		{"whitespace", "  ", "0"},
		{"padded", " 12.5 ", "12.5"},
		{"large number", "999999999999.1234567", "999999999999.1234567"},
		{"small fraction", "0.0000001", "0.0000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeParse(tt.input)
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeParse(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestFormatPrecision(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		places int32
		want   string
	}{
		{"integer", "50", 8, "50"},
		{"rounds up", "1.23456789", 7, "1.2345679"},
		{"trailing zeros stripped", "1.1000000", 7, "1.1"},
		{"exact places", "0.0000001", 7, "0.0000001"},
		{"half to even down", "0.00000005", 7, "0"},
		{"half to even up", "0.00000015", 7, "0.0000002"},
		{"negative", "-7.50", 2, "-7.5"},
		{"zero places", "2.5", 0, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPrecision(decimal.RequireFromString(tt.input), tt.places)
			if got != tt.want {
				t.Errorf("FormatPrecision(%s, %d) = %q, want %q", tt.input, tt.places, got, tt.want)
			}
		})
	}
}
