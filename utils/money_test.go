package utils

import (
	"encoding/json"
	"testing"
)

func TestParseMoney_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"350000", "350000"},
		{"350,000", "350000"},
		{"$350,000.00", "350000"},
		{"USD 1,234.50", "1234.5"},
		{"  -$20  ", "-20"},
		{"$-20", "-20"},
		{"350K", "350000"},
		{"$1.5M", "1500000"},
		{"2.25 m", "2250000"},
	}
	for _, tc := range cases {
		d, err := ParseMoney(tc.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseMoney(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseMoney_RejectsGarbage(t *testing.T) {
	for _, in := range []interface{}{"", "n/a", "$", true, "12abc", "1e6", "about 300000", "1.2.3", "K", "300 000"} {
		if _, err := ParseMoney(in); err == nil {
			t.Fatalf("ParseMoney(%v) expected error", in)
		}
	}
}

func TestParseMoney_JSONNumber(t *testing.T) {
	d, err := ParseMoney(json.Number("12.75"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "12.75" {
		t.Fatalf("expected 12.75, got %s", d.String())
	}
}
