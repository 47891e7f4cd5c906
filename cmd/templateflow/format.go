package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// formatAmount renders integer minor units as a decimal amount.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(minor/100), minor%100)
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
