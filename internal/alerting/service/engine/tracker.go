package engine

import (
	"bytes"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/queuewatch/queuewatch/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

// Tracker drives the per-(rule, label-set) lifecycle state machine. It is the
// only writer of the registry; each call to Apply commits one rule's
// transitions for one tick.
type Tracker struct {
	registry *Registry
	newID    func() string
}

// NewTracker creates a tracker bound to a registry.
func NewTracker(registry *Registry) *Tracker {
	return &Tracker{registry: registry, newID: uuid.NewString}
}

// Apply processes one rule's evaluation result at tick time now.
//
// The condition-true predicate is the presence of a label-set in the result;
// threshold comparisons live inside the expression. A tick's observation
// covers the interval that produced it, so an instance fires once
// now-activeAt+interval reaches the rule's for-duration: ceil(for/interval)
// consecutive true ticks, and a zero for-duration fires on the creation tick.
//
// Returned notifications cover newly firing instances and newly resolved
// instances that had fired.
func (t *Tracker) Apply(group string, rule model.Rule, samples []model.Sample, now time.Time, interval time.Duration) []Notification {
	ruleKey := model.RuleKey(group, rule.Name)
	current := t.registry.ruleInstances(ruleKey)

	upserts := make(map[string]model.AlertInstance)
	var removes []string
	var notifs []Notification
	seen := make(map[string]bool, len(samples))

	sustained := func(inst *model.AlertInstance) bool {
		return now.Sub(inst.ActiveAt)+interval >= rule.For
	}

	for _, s := range samples {
		merged := rule.Labels.Merge(s.Labels)
		key := ruleKey + "|" + model.CanonicalLabelKey(merged)
		if seen[key] {
			// duplicate label-set in one result; first sample wins
			continue
		}
		seen[key] = true

		inst, ok := current[key]
		if !ok {
			inst = model.AlertInstance{
				ID:       t.newID(),
				Group:    group,
				Name:     rule.Name,
				State:    model.StatePending,
				Labels:   merged,
				Value:    s.Value,
				ActiveAt: now,
			}
		}

		switch inst.State {
		case model.StatePending:
			if sustained(&inst) {
				inst.State = model.StateFiring
				inst.FiredAt = now
			}
		case model.StateFiring:
			// stays firing; ActiveAt and FiredAt never change while firing
		case model.StateResolved:
			// re-triggered within the retention window: a new incident
			inst.State = model.StatePending
			inst.ActiveAt = now
			inst.FiredAt = time.Time{}
			inst.ResolvedAt = time.Time{}
			if sustained(&inst) {
				inst.State = model.StateFiring
				inst.FiredAt = now
			}
		}
		inst.Value = s.Value
		inst.LastSeenAt = now
		inst.Annotations = renderAnnotations(rule.Annotations, merged, s.Value)

		if inst.State == model.StateFiring && inst.FiredAt.Equal(now) {
			notifs = append(notifs, Notification{At: now, Instance: inst})
		}
		upserts[key] = inst
	}

	retention := interval
	for key, inst := range current {
		if seen[key] {
			continue
		}
		switch inst.State {
		case model.StatePending, model.StateFiring:
			hadFired := inst.State == model.StateFiring
			inst.State = model.StateResolved
			inst.ResolvedAt = now
			upserts[key] = inst
			if hadFired {
				notifs = append(notifs, Notification{At: now, Instance: inst})
			}
		case model.StateResolved:
			if now.Sub(inst.ResolvedAt) >= retention {
				removes = append(removes, key)
			}
		}
	}

	t.registry.apply(upserts, removes)
	return notifs
}

// annotationData is the payload available to annotation templates.
type annotationData struct {
	Labels model.LabelMap
	Value  float64
}

// renderAnnotations executes each annotation as a text/template over the
// instance's merged labels and sample value. Strings without template actions
// round-trip unchanged; template errors fall back to the raw string.
func renderAnnotations(annotations map[string]string, labels model.LabelMap, value float64) map[string]string {
	out := make(map[string]string, len(annotations))
	data := annotationData{Labels: labels, Value: value}
	for k, v := range annotations {
		tmpl, err := template.New(k).Parse(v)
		if err != nil {
			log.Debug().Err(err).Str("annotation", k).Msg("annotation template parse failed, using raw value")
			out[k] = v
			continue
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			log.Debug().Err(err).Str("annotation", k).Msg("annotation template execute failed, using raw value")
			out[k] = v
			continue
		}
		out[k] = buf.String()
	}
	return out
}
