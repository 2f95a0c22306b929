// Package recurrence expands plans into the calendar dates on which they are
// active. Rule strings are RFC 5545 RRULE expressions kept opaque by the rest
// of the system; only this package knows how to evaluate them.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Rule is a parsed recurrence anchored at a start date.
type Rule interface {
	// Between returns the occurrences within [from, to], inclusive, ascending.
	Between(from, to time.Time) []time.Time
}

// Parser turns a stored rule string into a Rule anchored at start.
type Parser interface {
	Parse(rule string, start time.Time) (Rule, error)
}

// RRuleParser evaluates rules with rrule-go.
type RRuleParser struct{}

type rruleRule struct {
	r *rrule.RRule
}

func (r rruleRule) Between(from, to time.Time) []time.Time {
	return r.r.Between(from, to, true)
}

// Parse implements Parser. The rule's own DTSTART, if any, is replaced by
// start so every plan is evaluated from its start date.
func (RRuleParser) Parse(rule string, start time.Time) (Rule, error) {
	normalized := Normalize(rule)
	if normalized == "" {
		return nil, fmt.Errorf("empty recurrence rule")
	}
	opt, err := rrule.StrToROption(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence rule %q: %w", rule, err)
	}
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule %q: %w", rule, err)
	}
	return rruleRule{r: r}, nil
}

// Normalize trims, upper-cases and strips a leading "RRULE:" from a
// single-line rule string.
func Normalize(rule string) string {
	s := strings.ToUpper(strings.TrimSpace(rule))
	if !strings.Contains(s, "\n") {
		s = strings.TrimPrefix(s, "RRULE:")
	}
	return s
}

// Validate reports whether rule can be evaluated.
func Validate(rule string) error {
	_, err := RRuleParser{}.Parse(rule, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	return err
}
