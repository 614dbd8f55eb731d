package model

import (
	"fmt"
	"strings"
	"time"
)

// AlertState is the lifecycle state of an alert instance.
type AlertState int

const (
	// StateInactive means no instance exists; it is never stored, only
	// reported as the implicit state of an absent instance.
	StateInactive AlertState = iota
	// StatePending means the condition is true but has not yet held for the
	// rule's for-duration.
	StatePending
	// StateFiring means the condition is true and has been sustained for at
	// least the for-duration.
	StateFiring
	// StateResolved means the condition became false after having been
	// pending or firing; the instance is retained briefly for visibility.
	StateResolved
)

func (s AlertState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its string form.
func (s AlertState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (s *AlertState) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	parsed, ok := ParseAlertState(str)
	if !ok {
		return fmt.Errorf("unknown alert state %q", str)
	}
	*s = parsed
	return nil
}

// ParseAlertState parses the string form produced by String.
func ParseAlertState(s string) (AlertState, bool) {
	switch s {
	case "inactive":
		return StateInactive, true
	case "pending":
		return StatePending, true
	case "firing":
		return StateFiring, true
	case "resolved":
		return StateResolved, true
	default:
		return StateInactive, false
	}
}

// AlertInstance is one alert produced by a rule for one label-set. It is
// identified by (group, alert name, label-set); the registry owns all records
// and the tracker mutates them through the registry only.
type AlertInstance struct {
	ID          string            `json:"id"`    // stable unique id assigned at creation
	Group       string            `json:"group"` // owning rule group name
	Name        string            `json:"name"`  // alert name
	State       AlertState        `json:"state"`
	Labels      LabelMap          `json:"labels"`               // rule labels merged with sample labels, sample wins
	Annotations map[string]string `json:"annotations"`          // rendered annotations
	Value       float64           `json:"value"`                // value from the most recent sample
	ActiveAt    time.Time         `json:"activeAt"`             // first evaluation the label-set appeared
	FiredAt     time.Time         `json:"firedAt,omitempty"`    // transition to firing; zero if never fired
	ResolvedAt  time.Time         `json:"resolvedAt,omitempty"` // transition to resolved; zero while active
	LastSeenAt  time.Time         `json:"lastSeenAt"`           // last evaluation the label-set was present
}

// Key returns the registry key for this instance.
func (a *AlertInstance) Key() string {
	return RuleKey(a.Group, a.Name) + "|" + CanonicalLabelKey(a.Labels)
}
