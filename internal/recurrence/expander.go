package recurrence

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

// Expander turns plans into the dates on which they are active.
type Expander struct {
	parser Parser
	logger *logrus.Logger
}

// NewExpander creates an expander. A nil parser selects RRuleParser.
func NewExpander(parser Parser, logger *logrus.Logger) *Expander {
	if parser == nil {
		parser = RRuleParser{}
	}
	return &Expander{parser: parser, logger: logger}
}

// Expand returns the ascending, deduplicated dates within [from, to] on which
// plan is active. A plan is never active before its start date or after its
// end date. A rule that fails to parse yields no dates.
func (e *Expander) Expand(plan *models.Plan, from, to dates.Date) []dates.Date {
	if plan == nil || from.After(to) {
		return nil
	}

	lower := from
	if plan.StartDate.After(lower) {
		lower = plan.StartDate
	}
	upper := to
	if plan.EndDate != nil && plan.EndDate.Before(upper) {
		upper = *plan.EndDate
	}
	if lower.After(upper) {
		return nil
	}

	if !plan.HasRule() {
		if plan.EndDate == nil {
			if !plan.StartDate.Between(lower, upper) {
				return nil
			}
			return []dates.Date{plan.StartDate}
		}
		out := make([]dates.Date, 0, lower.DaysUntil(upper)+1)
		for d := lower; !d.After(upper); d = d.AddDays(1) {
			out = append(out, d)
		}
		return out
	}

	rule, err := e.parser.Parse(*plan.RecurrenceRule, plan.StartDate.Time())
	if err != nil {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"plan_id": plan.ID,
				"rule":    *plan.RecurrenceRule,
			}).WithError(err).Warn("Failed to parse recurrence rule")
		}
		return nil
	}

	// end of day so occurrences carrying a time component are still included
	instants := rule.Between(lower.Time(), upper.Time().AddDate(0, 0, 1).Add(-1))
	seen := make(map[dates.Date]bool, len(instants))
	out := make([]dates.Date, 0, len(instants))
	for _, t := range instants {
		d := dates.Of(t)
		if seen[d] || !d.Between(lower, upper) {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
