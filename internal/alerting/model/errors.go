package model

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable indicates the metrics backend could not be reached at
// all. The scheduler treats it as an evaluation failure for every rule in the
// tick and retries on the next tick, never within the same tick.
var ErrBackendUnavailable = errors.New("metrics backend unavailable")

// ConfigError rejects a whole Load batch: a malformed expression or a
// duplicate (group, alert) pair. The previously active configuration stays in
// effect.
type ConfigError struct {
	Group string
	Rule  string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("invalid rule %q in group %q: %v", e.Rule, e.Group, e.Err)
	}
	if e.Group != "" {
		return fmt.Sprintf("invalid rule group %q: %v", e.Group, e.Err)
	}
	return fmt.Sprintf("invalid rule configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// EvaluationError records a single rule's expression failure during one tick.
// It never escalates past the rule: other rules in the same tick still
// evaluate, and existing instances of the failed rule keep their last state.
type EvaluationError struct {
	Group string
	Rule  string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating rule %q in group %q: %v", e.Rule, e.Group, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
