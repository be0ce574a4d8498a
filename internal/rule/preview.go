package rule

import (
	"fmt"
	"strings"
)

// Preview renders a validated rule as an "IF ... THEN ..." sentence for
// the admin surface. Purely cosmetic.
func Preview(r *TriggerRule) string {
	var b strings.Builder
	b.WriteString("IF ")

	for i, c := range r.Conditions {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(c.Logic))
			b.WriteString(" ")
		}
		b.WriteString(fmt.Sprintf("%s %s %s", c.Field, c.Operator, trimFloat(c.Value)))
		if c.Dimension != "" {
			b.WriteString(fmt.Sprintf(" in %s", c.Dimension))
		}
	}

	b.WriteString(" THEN ")
	for i, a := range r.Actions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(describeAction(a))
	}

	return b.String()
}

func describeAction(a Action) string {
	switch cfg := a.Config.(type) {
	case CampaignConfig:
		return fmt.Sprintf("launch campaign %s", cfg.CampaignID)
	case NotificationConfig:
		return fmt.Sprintf("notify users %q", cfg.Message)
	case FlagConfig:
		return fmt.Sprintf("flag users (%s)", cfg.Reason)
	case AdminAlertConfig:
		return fmt.Sprintf("alert admins %q", cfg.Message)
	default:
		return string(a.Kind)
	}
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
