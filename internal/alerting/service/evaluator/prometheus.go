package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
	"github.com/queuewatch/queuewatch/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

// Config holds connection settings for the Prometheus evaluator.
type Config struct {
	BaseURL      string
	QueryTimeout time.Duration
}

// PromEvaluator evaluates expressions against a Prometheus-compatible
// backend using instant queries.
type PromEvaluator struct {
	api     v1.API
	timeout time.Duration
}

// NewPromEvaluator creates an evaluator for the given backend.
func NewPromEvaluator(cfg *Config) (*PromEvaluator, error) {
	client, err := api.NewClient(api.Config{Address: cfg.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PromEvaluator{api: v1.NewAPI(client), timeout: timeout}, nil
}

// Eval runs an instant query and converts the result to samples. Vector and
// scalar results are accepted; anything else is an evaluation error for this
// expression only.
func (e *PromEvaluator) Eval(ctx context.Context, expr string, ts time.Time) ([]model.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, warnings, err := e.api.Query(ctx, expr, ts)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	if len(warnings) > 0 {
		log.Warn().Strs("warnings", warnings).Str("expr", expr).Msg("prometheus query returned warnings")
	}

	switch v := result.(type) {
	case prommodel.Vector:
		samples := make([]model.Sample, 0, len(v))
		for _, s := range v {
			samples = append(samples, model.Sample{
				Labels: metricToLabelMap(s.Metric),
				Value:  float64(s.Value),
			})
		}
		return samples, nil
	case *prommodel.Scalar:
		return []model.Sample{{Labels: model.LabelMap{}, Value: float64(v.Value)}}, nil
	default:
		return nil, fmt.Errorf("unexpected result type %T for expression %q", result, expr)
	}
}

// Validate probes the backend with an instant query and rejects only a
// definitive parse error. If the backend is unreachable the expression is
// accepted with a warning; availability is a tick-time concern, not a load
// concern.
func (e *PromEvaluator) Validate(ctx context.Context, expr string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	_, _, err := e.api.Query(ctx, expr, time.Now())
	if err == nil {
		return nil
	}
	var apiErr *v1.Error
	if errors.As(err, &apiErr) && apiErr.Type == v1.ErrBadData {
		return fmt.Errorf("expression rejected by backend: %s", apiErr.Msg)
	}
	log.Warn().Err(err).Str("expr", expr).Msg("expression validation skipped, backend not reachable")
	return nil
}

func classifyQueryError(err error) error {
	var apiErr *v1.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case v1.ErrBadData, v1.ErrExec:
			return fmt.Errorf("query failed: %w", err)
		default:
			return fmt.Errorf("%w: %v", model.ErrBackendUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", model.ErrBackendUnavailable, err)
}

func metricToLabelMap(metric prommodel.Metric) model.LabelMap {
	labels := make(model.LabelMap, len(metric))
	for name, value := range metric {
		labels[string(name)] = string(value)
	}
	return labels
}
