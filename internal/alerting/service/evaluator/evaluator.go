// Package evaluator resolves alerting expressions into instant-vector samples.
// The engine treats expressions as opaque strings; this package owns the
// dialect and the backend protocol.
package evaluator

import (
	"context"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

// Evaluator is the capability injected into the scheduler: evaluate an
// expression at a timestamp, and check expression syntax at load time.
type Evaluator interface {
	// Eval returns the instant-vector result of expr at ts. A backend that
	// cannot be reached is reported via model.ErrBackendUnavailable in the
	// error chain; any other failure is specific to this expression.
	Eval(ctx context.Context, expr string, ts time.Time) ([]model.Sample, error)

	// Validate reports a definitive syntax error in expr. An unreachable
	// backend is not a validation failure; syntax can only be rejected, not
	// proven, without one.
	Validate(ctx context.Context, expr string) error
}
