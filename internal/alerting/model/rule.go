package model

import (
	"time"
)

// Rule defines a single alerting rule. The expression is opaque to the engine
// and handed to the evaluator as-is; rules that compare against a threshold
// embed the comparison inside the expression. Name together with the owning
// group's name identifies a rule definition; Expr and For are immutable after
// load.
type Rule struct {
	Name        string            // alert name, unique within its group
	Expr        string            // evaluator expression, opaque to the engine
	For         time.Duration     // minimum sustained-true time before firing; zero fires immediately
	Labels      LabelMap          // static labels attached to every instance of this rule
	Annotations map[string]string // annotation templates, rendered per instance
}

// RuleGroup is a named, independently scheduled collection of rules sharing an
// evaluation interval. The interval must be explicit; there is no implicit
// default.
type RuleGroup struct {
	Name     string
	Interval time.Duration
	Rules    []Rule
}

// RuleKey identifies a rule definition across groups.
func RuleKey(group, alert string) string {
	return group + "/" + alert
}

// Sample is one element of an instant-vector result: a label-set plus the
// value the expression evaluated to at the query timestamp.
type Sample struct {
	Labels LabelMap
	Value  float64
}
