// Package billing holds the static subscription plan table. Billing state
// itself (who pays what) lives with the external billing collaborator; this
// package only answers "what is this plan allowed to do".
package billing

import "strings"

type Plan struct {
	Name        string `json:"name"`
	PagesPerPDF int    `json:"pages_per_pdf"`
}

var plans = []Plan{
	{Name: "Free", PagesPerPDF: 5},
	{Name: "Pro", PagesPerPDF: 25},
}

// PlanByName looks a plan up case-insensitively, falling back to Free for
// unknown or empty names so an unset subscription never blocks ingestion
// outright.
func PlanByName(name string) Plan {
	for _, p := range plans {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p
		}
	}
	return plans[0]
}

// Plans returns a copy of the plan table.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}
