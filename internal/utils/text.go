package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseAmount accepts "1,000.50", "$50", " 12.345 " and rounds to cents.
// Bounds are checked by the caller.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse amount %q: not a number", s)
	}
	return RoundCents(v), nil
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatUSD — "$1,234.50".
func FormatUSD(v float64) string {
	s := strconv.FormatFloat(RoundCents(math.Abs(v)), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	sign := ""
	if v < 0 {
		sign = "-"
	}
	return sign + "$" + b.String() + "." + frac
}

// FormatTimeLeft renders the remaining time as "Nд Nч Nм"; "Истекло" when past.
func FormatTimeLeft(expiresAt, now time.Time) string {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return "⏰ Истекло"
	}
	days := int(left / (24 * time.Hour))
	hours := int(left % (24 * time.Hour) / time.Hour)
	minutes := int(left % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("⏰ %dд %dч %dм", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("⏰ %dч %dм", hours, minutes)
	default:
		return fmt.Sprintf("⏰ %dм", minutes)
	}
}

// DealLink is the deep link that opens the join flow for code.
func DealLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=deal_%s", botUsername, code)
}

// RatingStars — "⭐⭐⭐☆☆" for 3.x.
func RatingStars(rating float64) string {
	n := int(rating)
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("⭐", n) + strings.Repeat("☆", 5-n)
}
