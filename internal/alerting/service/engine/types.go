package engine

import (
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

// RuleResult records one rule's outcome within a tick.
type RuleResult struct {
	Group      string `json:"group"`
	Rule       string `json:"rule"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	Samples    int    `json:"samples"`
	DurationMS int64  `json:"duration_ms"`
}

// TickReport summarizes the most recently completed tick: which groups were
// due, which were skipped because their previous tick was still running, and
// the per-rule results. Failures are isolated per rule and never escalate.
type TickReport struct {
	At            time.Time    `json:"at"`
	Groups        []string     `json:"groups"`
	SkippedGroups []string     `json:"skippedGroups,omitempty"`
	Results       []RuleResult `json:"results"`
}

// Failures counts the failed rule evaluations in the report.
func (r *TickReport) Failures() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK {
			n++
		}
	}
	return n
}

// Notification is the payload handed to the notification collaborator when an
// instance starts firing or resolves after having fired.
type Notification struct {
	At       time.Time           `json:"at"`
	Instance model.AlertInstance `json:"instance"`
}
