package utils

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errInvalidMoney = errors.New("invalid amount")

// ParseMoney accepts user or spreadsheet formatted amounts such as "350,000",
// "$350,000.00", "USD 1,234.50", "350K", "1.5M" or "-$20". Anything else is rejected. Plain numbers and json.Number pass through.
func ParseMoney(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return parseMoneyString(v)
	default:
		return decimal.Zero, errInvalidMoney
	}
}

func parseMoneyString(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	s = strings.ReplaceAll(s, ",", "")
	upper := strings.ToUpper(s)
	for _, prefix := range []string{"USD", "US$"} {
		if strings.Contains(upper, prefix) {
			idx := strings.Index(upper, prefix)
			s = s[:idx] + s[idx+len(prefix):]
			upper = strings.ToUpper(s)
		}
	}
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	// "-$20" and "$-20" are both negative
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimSpace(s)

	// "350K" and "1.5M" are common in lead sheets
	multiplier := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		multiplier = decimal.NewFromInt(1000)
		s = strings.TrimSpace(s[:len(s)-1])
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		multiplier = decimal.NewFromInt(1000000)
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if s == "" || s == "." || strings.Trim(s, "0123456789.") != "" || strings.Count(s, ".") > 1 {
		return decimal.Zero, errInvalidMoney
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errInvalidMoney
	}
	d = d.Mul(multiplier)
	if neg {
		d = d.Neg()
	}
	return d, nil
}
