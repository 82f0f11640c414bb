package billing

import "strconv"

// FormatYen formats an integer yen amount with comma separators ("¥12,800").
// This is a PURE function.
func FormatYen(amount int64) string {
	if amount < 0 {
		return "-¥" + formatNumber(-amount)
	}
	return "¥" + formatNumber(amount)
}

// formatNumber adds comma separators.
func formatNumber(n int64) string {
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	return formatNumber(n/1000) + "," + padThree(n%1000)
}

func padThree(n int64) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
