package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
	"github.com/queuewatch/queuewatch/internal/alerting/service/evaluator"
	"github.com/rs/zerolog/log"
)

const (
	defaultWorkers    = 4
	defaultResolution = time.Second
	notifyBuffer      = 256
	// retention for instances whose owning group's interval is unknown
	fallbackRetention = time.Minute
)

// Options tunes the scheduler.
type Options struct {
	// Workers bounds how many rule groups evaluate concurrently.
	Workers int
	// Resolution is how often the run loop checks for due groups. It must be
	// no larger than the smallest group interval.
	Resolution time.Duration
}

// Deps wires the scheduler's collaborators.
type Deps struct {
	Evaluator evaluator.Evaluator
	Registry  *Registry
	Metrics   *Metrics
}

type groupState struct {
	group   model.RuleGroup
	nextDue time.Time
}

// Scheduler owns the rule configuration and drives evaluation ticks. Each
// group ticks at its own interval; a group whose previous tick is still
// running skips the due tick rather than queueing it. In-flight bookkeeping
// is by group name so exclusivity survives configuration reloads.
type Scheduler struct {
	deps    Deps
	opts    Options
	tracker *Tracker

	mu           sync.Mutex
	groups       []*groupState
	inFlight     map[string]bool          // group name -> tick currently running
	ruleKeys     map[string]bool          // rule keys of the installed configuration
	intervals    map[string]time.Duration // last known interval per group, survives removal
	orphanExpiry map[string]time.Time     // registry key -> when a dropped rule's instance leaves

	reportMu sync.RWMutex
	report   *TickReport

	notifyCh chan Notification
}

// NewScheduler creates a scheduler with no rules loaded.
func NewScheduler(deps Deps, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Resolution <= 0 {
		opts.Resolution = defaultResolution
	}
	return &Scheduler{
		deps:         deps,
		opts:         opts,
		tracker:      NewTracker(deps.Registry),
		inFlight:     make(map[string]bool),
		ruleKeys:     make(map[string]bool),
		intervals:    make(map[string]time.Duration),
		orphanExpiry: make(map[string]time.Time),
		notifyCh:     make(chan Notification, notifyBuffer),
	}
}

// Notifications returns the channel carrying firing and resolved events.
// When no consumer keeps up, events are dropped rather than blocking ticks.
func (s *Scheduler) Notifications() <-chan Notification { return s.notifyCh }

// Load validates and atomically installs a rule configuration. On any error
// the previously installed configuration stays in effect and instance state
// is untouched. Groups that survive the reload keep their cadence and their
// in-flight exclusivity; instances of rules the new configuration drops are
// resolved and retired.
func (s *Scheduler) Load(ctx context.Context, groups []model.RuleGroup) error {
	seenGroups := make(map[string]bool, len(groups))
	seenRules := make(map[string]bool)
	for _, g := range groups {
		if seenGroups[g.Name] {
			return &model.ConfigError{Group: g.Name, Err: errors.New("duplicate group name")}
		}
		seenGroups[g.Name] = true
		if g.Interval <= 0 {
			return &model.ConfigError{Group: g.Name, Err: errors.New("interval must be positive")}
		}
		for _, r := range g.Rules {
			key := model.RuleKey(g.Name, r.Name)
			if seenRules[key] {
				return &model.ConfigError{Group: g.Name, Rule: r.Name, Err: errors.New("duplicate alert name in group")}
			}
			seenRules[key] = true
			if r.For < 0 {
				return &model.ConfigError{Group: g.Name, Rule: r.Name, Err: errors.New("negative for duration")}
			}
			if err := s.deps.Evaluator.Validate(ctx, r.Expr); err != nil {
				return &model.ConfigError{Group: g.Name, Rule: r.Name, Err: fmt.Errorf("invalid expression: %w", err)}
			}
		}
	}

	now := time.Now()

	s.mu.Lock()
	prevDue := make(map[string]time.Time, len(s.groups))
	for _, gs := range s.groups {
		prevDue[gs.group.Name] = gs.nextDue
	}
	states := make([]*groupState, 0, len(groups))
	for _, g := range groups {
		gs := &groupState{group: g, nextDue: now}
		if due, ok := prevDue[g.Name]; ok {
			gs.nextDue = due
		}
		states = append(states, gs)
		s.intervals[g.Name] = g.Interval
	}
	s.groups = states
	s.ruleKeys = seenRules
	s.mu.Unlock()

	s.pruneRemoved(now)

	log.Info().Int("groups", len(groups)).Int("rules", len(seenRules)).Msg("rule configuration loaded")
	return nil
}

// Groups returns a copy of the installed rule groups.
func (s *Scheduler) Groups() []model.RuleGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RuleGroup, 0, len(s.groups))
	for _, gs := range s.groups {
		out = append(out, gs.group)
	}
	return out
}

// LastReport returns the report of the most recently completed tick, or nil
// before the first tick.
func (s *Scheduler) LastReport() *TickReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.report
}

// Run drives ticks until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Resolution)
	defer ticker.Stop()
	log.Info().Dur("resolution", s.opts.Resolution).Int("workers", s.opts.Workers).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick evaluates every group whose interval has elapsed. Groups run
// concurrently on a bounded worker pool; Tick returns once all groups started
// by this call have finished.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) *TickReport {
	report := &TickReport{At: now}

	s.mu.Lock()
	var due []*groupState
	for _, gs := range s.groups {
		if now.Before(gs.nextDue) {
			continue
		}
		if s.inFlight[gs.group.Name] {
			report.SkippedGroups = append(report.SkippedGroups, gs.group.Name)
			gs.nextDue = now.Add(gs.group.Interval)
			continue
		}
		s.inFlight[gs.group.Name] = true
		gs.nextDue = now.Add(gs.group.Interval)
		due = append(due, gs)
		report.Groups = append(report.Groups, gs.group.Name)
	}
	s.mu.Unlock()

	for _, name := range report.SkippedGroups {
		log.Warn().Str("group", name).Msg("previous tick still running, skipping")
		if s.deps.Metrics != nil {
			s.deps.Metrics.SkippedTicks.WithLabelValues(name).Inc()
		}
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, s.opts.Workers)
		resultMu sync.Mutex
	)
	for _, gs := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(gs *groupState) {
			defer wg.Done()
			defer func() { <-sem }()

			results := s.evalGroup(ctx, gs.group, now)

			resultMu.Lock()
			report.Results = append(report.Results, results...)
			resultMu.Unlock()

			s.mu.Lock()
			delete(s.inFlight, gs.group.Name)
			s.mu.Unlock()
		}(gs)
	}
	wg.Wait()

	s.pruneRemoved(now)

	if len(report.Groups) > 0 || len(report.SkippedGroups) > 0 {
		s.reportMu.Lock()
		s.report = report
		s.reportMu.Unlock()
		s.updateStateGauges()
	}
	return report
}

// evalGroup evaluates one group's rules in declaration order under a deadline
// of one interval. An unavailable backend fails the remaining rules of the
// group without issuing further queries this tick.
func (s *Scheduler) evalGroup(ctx context.Context, group model.RuleGroup, now time.Time) []RuleResult {
	gctx, cancel := context.WithDeadline(ctx, now.Add(group.Interval))
	defer cancel()

	results := make([]RuleResult, 0, len(group.Rules))
	backendDown := false
	for _, rule := range group.Rules {
		res := RuleResult{Group: group.Name, Rule: rule.Name}
		if backendDown {
			res.Error = (&model.EvaluationError{Group: group.Name, Rule: rule.Name, Err: model.ErrBackendUnavailable}).Error()
			results = append(results, res)
			s.observeRule(group.Name, rule.Name, false, 0)
			continue
		}

		start := time.Now()
		samples, err := s.deps.Evaluator.Eval(gctx, rule.Expr, now)
		elapsed := time.Since(start)
		res.DurationMS = elapsed.Milliseconds()
		if err != nil {
			evalErr := &model.EvaluationError{Group: group.Name, Rule: rule.Name, Err: err}
			res.Error = evalErr.Error()
			results = append(results, res)
			s.observeRule(group.Name, rule.Name, false, elapsed)
			if errors.Is(err, model.ErrBackendUnavailable) {
				backendDown = true
				log.Error().Err(err).Str("group", group.Name).Msg("metrics backend unavailable, failing remaining rules this tick")
			} else {
				log.Error().Err(err).Str("group", group.Name).Str("rule", rule.Name).Msg("rule evaluation failed")
			}
			continue
		}

		res.OK = true
		res.Samples = len(samples)
		results = append(results, res)
		s.observeRule(group.Name, rule.Name, true, elapsed)

		for _, n := range s.tracker.Apply(group.Name, rule, samples, now, group.Interval) {
			s.publish(n)
		}
	}
	return results
}

// pruneRemoved retires instances whose rule is no longer configured. A firing
// instance resolves with a notification, resolved instances leave after one
// interval of their former group, pending ones leave at once. Runs after
// every Load and at the end of every Tick.
func (s *Scheduler) pruneRemoved(now time.Time) {
	if s.deps.Registry == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	upserts := make(map[string]model.AlertInstance)
	var removes []string
	for key, inst := range s.deps.Registry.snapshot() {
		if s.ruleKeys[model.RuleKey(inst.Group, inst.Name)] {
			delete(s.orphanExpiry, key)
			continue
		}
		retention := s.intervals[inst.Group]
		if retention <= 0 {
			retention = fallbackRetention
		}
		switch inst.State {
		case model.StatePending:
			removes = append(removes, key)
		case model.StateFiring:
			inst.State = model.StateResolved
			inst.ResolvedAt = now
			upserts[key] = inst
			s.orphanExpiry[key] = now.Add(retention)
			s.publish(Notification{At: now, Instance: inst})
			log.Info().Str("group", inst.Group).Str("rule", inst.Name).Msg("resolving instance of removed rule")
		case model.StateResolved:
			expiry, ok := s.orphanExpiry[key]
			if !ok {
				expiry = inst.ResolvedAt.Add(retention)
				s.orphanExpiry[key] = expiry
			}
			if !now.Before(expiry) {
				removes = append(removes, key)
				delete(s.orphanExpiry, key)
			}
		}
	}
	if len(upserts) == 0 && len(removes) == 0 {
		return
	}
	s.deps.Registry.apply(upserts, removes)
}

func (s *Scheduler) publish(n Notification) {
	select {
	case s.notifyCh <- n:
	default:
		log.Warn().Str("alert", n.Instance.Name).Str("state", n.Instance.State.String()).Msg("notification channel full, dropping event")
		if s.deps.Metrics != nil {
			s.deps.Metrics.DroppedNotifications.Inc()
		}
	}
}

func (s *Scheduler) observeRule(group, rule string, ok bool, elapsed time.Duration) {
	if s.deps.Metrics == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	s.deps.Metrics.Evaluations.WithLabelValues(group, rule, result).Inc()
	if elapsed > 0 {
		s.deps.Metrics.EvalDuration.WithLabelValues(group).Observe(elapsed.Seconds())
	}
}

func (s *Scheduler) updateStateGauges() {
	if s.deps.Metrics == nil || s.deps.Registry == nil {
		return
	}
	counts := s.deps.Registry.CountByState()
	for _, state := range []model.AlertState{model.StatePending, model.StateFiring, model.StateResolved} {
		s.deps.Metrics.ActiveInstances.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
}
