package models

import "github.com/shopspring/decimal"

// FormatPence renders a minor-unit amount as pounds, e.g. 250000 -> "£2,500.00".
func FormatPence(pence int64) string {
	s := decimal.New(pence, -2).StringFixed(2)

	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}

	whole, frac := s[:len(s)-3], s[len(s)-3:]
	var grouped []byte
	for i := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, whole[i])
	}
	return sign + "£" + string(grouped) + frac
}

// PenceToPounds converts to a decimal amount in pounds for wire formats.
func PenceToPounds(pence int64) decimal.Decimal {
	return decimal.New(pence, -2)
}
