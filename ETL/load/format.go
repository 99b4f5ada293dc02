package load

import (
	"strconv"

	"github.com/shopspring/decimal"
)

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optInt(n *int64) string {
	if n == nil {
		return ""
	}
	return formatInt(*n)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func optDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// formatFloat выводит не более 4 знаков после запятой
func formatFloat(f float64) string {
	return decimal.NewFromFloat(f).Round(4).String()
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}
