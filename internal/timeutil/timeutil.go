package timeutil

import (
	"strconv"
	"strings"
	"time"
)

// ParseMonths parses a comma separated month list. "*" anywhere in the
// string means every month. Non-numeric tokens and zeros are dropped,
// duplicates keep their first position.
func ParseMonths(s string) []int {
	if s == "" {
		return nil
	}
	if strings.Contains(s, "*") {
		months := make([]int, 12)
		for i := range months {
			months[i] = i + 1
		}
		return months
	}
	return parseNumberList(s)
}

// ParseYears parses a comma separated year list. "*" means the current
// year and the next one, relative to now.
func ParseYears(s string, now time.Time) []int {
	if s == "" {
		return nil
	}
	if strings.Contains(s, "*") {
		return []int{now.Year(), now.Year() + 1}
	}
	return parseNumberList(s)
}

func parseNumberList(s string) []int {
	var results []int
	seen := map[int]bool{}
	for _, token := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || n == 0 {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		results = append(results, n)
	}
	return results
}

// SetTimeOfDay returns t with its time of day replaced by timeStr
// ("HH:mm:ss", "HH:mm" or "HH"). Components missing from timeStr and the
// sub-second part are zeroed, so the result is fully determined by the
// date of t and timeStr. An empty timeStr returns t unchanged.
func SetTimeOfDay(t time.Time, timeStr string) time.Time {
	if timeStr == "" {
		return t
	}
	parts := strings.Split(timeStr, ":")
	hour := SafeTimeComponent(parts, 0)
	minute := SafeTimeComponent(parts, 1)
	second := SafeTimeComponent(parts, 2)
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, second, 0, t.Location())
}

// SafeNumber parses s as an integer, substituting def when it does not
// parse, and clamps the result into [min, max].
func SafeNumber(s string, min, max, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		n = def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// SafeTimeComponent reads parts[index] as an hour (index 0) or
// minute/second (index 1, 2) value. Missing or malformed parts are 0.
func SafeTimeComponent(parts []string, index int) int {
	if index >= len(parts) {
		return 0
	}
	max := 59
	if index == 0 {
		max = 23
	}
	return SafeNumber(parts[index], 0, max, 0)
}

// NormalizeTime completes a partial time string to "HH:mm:ss" form.
// "9:5" becomes "09:05:00". An empty string stays empty.
func NormalizeTime(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ":")
	h := SafeTimeComponent(parts, 0)
	m := SafeTimeComponent(parts, 1)
	sec := SafeTimeComponent(parts, 2)
	return pad2(h) + ":" + pad2(m) + ":" + pad2(sec)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
