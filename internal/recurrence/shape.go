package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mode is the editing shape of a recurrence rule.
type Mode string

const (
	ModeNone          Mode = "none"
	ModeWeekly        Mode = "weekly"
	ModeDailyInterval Mode = "daily_interval"
	ModeCustom        Mode = "custom"
)

// weekdayOrder is the canonical BYDAY ordering.
var weekdayOrder = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

var (
	bydayPattern    = regexp.MustCompile(`BYDAY=([^;]+)`)
	intervalPattern = regexp.MustCompile(`INTERVAL=(\d+)`)
)

// Shape is the structured form of the convenience rules a client can edit.
type Shape struct {
	Mode     Mode     `json:"mode"`
	Weekdays []string `json:"weekdays,omitempty"`
	Interval int      `json:"interval,omitempty"`
	Custom   string   `json:"custom,omitempty"`
}

// Weekly builds FREQ=WEEKLY;BYDAY=... from a set of weekday codes.
func Weekly(days ...string) (string, error) {
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		code := strings.ToUpper(strings.TrimSpace(d))
		if !isWeekday(code) {
			return "", fmt.Errorf("unknown weekday %q", d)
		}
		seen[code] = true
	}
	if len(seen) == 0 {
		return "", fmt.Errorf("weekly recurrence needs at least one weekday")
	}
	ordered := make([]string, 0, len(seen))
	for _, code := range weekdayOrder {
		if seen[code] {
			ordered = append(ordered, code)
		}
	}
	return "FREQ=WEEKLY;BYDAY=" + strings.Join(ordered, ","), nil
}

// DailyInterval builds FREQ=DAILY, with INTERVAL when n > 1. Values below 1
// are treated as 1.
func DailyInterval(n int) string {
	if n <= 1 {
		return "FREQ=DAILY"
	}
	return fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", n)
}

// Custom passes a rule through after checking it can be evaluated.
func Custom(rule string) (string, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return "", fmt.Errorf("custom recurrence rule is empty")
	}
	if err := Validate(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// Rule renders the shape as a rule string. ModeNone yields "".
func (s Shape) Rule() (string, error) {
	switch s.Mode {
	case ModeNone, "":
		return "", nil
	case ModeWeekly:
		return Weekly(s.Weekdays...)
	case ModeDailyInterval:
		return DailyInterval(s.Interval), nil
	case ModeCustom:
		return Custom(s.Custom)
	default:
		return "", fmt.Errorf("unknown recurrence mode %q", s.Mode)
	}
}

// Describe recovers the editing shape of a stored rule string.
func Describe(rule string) Shape {
	normalized := strings.TrimSpace(rule)
	if normalized == "" {
		return Shape{Mode: ModeNone}
	}
	upper := Normalize(normalized)
	switch {
	case strings.HasPrefix(upper, "FREQ=WEEKLY"):
		var days []string
		if m := bydayPattern.FindStringSubmatch(upper); m != nil {
			for _, d := range strings.Split(m[1], ",") {
				if d = strings.TrimSpace(d); d != "" {
					days = append(days, d)
				}
			}
		}
		return Shape{Mode: ModeWeekly, Weekdays: days}
	case strings.HasPrefix(upper, "FREQ=DAILY"):
		interval := 1
		if m := intervalPattern.FindStringSubmatch(upper); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
				interval = n
			}
		}
		return Shape{Mode: ModeDailyInterval, Interval: interval}
	default:
		return Shape{Mode: ModeCustom, Custom: normalized}
	}
}

func isWeekday(code string) bool {
	for _, d := range weekdayOrder {
		if d == code {
			return true
		}
	}
	return false
}
