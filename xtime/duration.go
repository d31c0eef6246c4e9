package xtime

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var durRe = regexp.MustCompile(`(\d*\.\d+|\d+)[^\d]*`)

var unitHours = map[string]time.Duration{
	"d": 24,
	"D": 24,
	"w": 7 * 24,
	"W": 7 * 24,
	"M": 30 * 24,
	"y": 365 * 24,
	"Y": 365 * 24,
}

// ParseDuration parses a duration string. In addition to the units supported
// by time.ParseDuration, it supports "d"="D" (days), "w"="W" (weeks),
// "M" (months) and "y"="Y" (years).
// Examples: "10d", "-1.5w" or "3Y4M5d".
func ParseDuration(s string) (time.Duration, error) {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	strs := durRe.FindAllString(s, -1)
	var sumDur time.Duration
	for _, str := range strs {
		var hours time.Duration = 1
		for unit, h := range unitHours {
			if strings.Contains(str, unit) {
				str = strings.ReplaceAll(str, unit, "h")
				hours = h
				break
			}
		}

		dur, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("failed parsing duration '%s': %w", s, err)
		}

		sumDur += dur * hours
	}

	if neg {
		sumDur = -sumDur
	}

	return sumDur, nil
}

// FormatDuration renders a duration as the largest whole multiple of unit if
// it divides evenly, falling back to the standard formatting otherwise.
func FormatDuration(d time.Duration, unit time.Duration) string {
	if unit > 0 && d%unit == 0 {
		n := d / unit
		switch unit {
		case 24 * time.Hour:
			return fmt.Sprintf("%dd", n)
		case time.Hour:
			return fmt.Sprintf("%dh", n)
		case time.Minute:
			return fmt.Sprintf("%dm", n)
		case time.Second:
			return fmt.Sprintf("%ds", n)
		}
	}
	return d.String()
}
