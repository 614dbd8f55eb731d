package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

// Mirror receives registry changes after they are committed, e.g. to keep an
// external cache in sync. Implementations must be best-effort and must not
// block the registry.
type Mirror interface {
	Apply(upserts []model.AlertInstance, removes []model.AlertInstance)
}

// Registry is the authoritative store of all alert instances and the only
// external read surface. Writes arrive exclusively from the tracker, one
// rule's transitions at a time, committed atomically under a single lock so
// concurrent readers never observe a partially applied update.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*model.AlertInstance
	mirror    Mirror
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*model.AlertInstance)}
}

// SetMirror attaches a change mirror. Must be called before the scheduler
// starts ticking.
func (r *Registry) SetMirror(m Mirror) { r.mirror = m }

// severityRank orders states for ActiveAlerts filtering: resolved is the
// lowest visible severity, firing the highest.
func severityRank(s model.AlertState) int {
	switch s {
	case model.StateResolved:
		return 1
	case model.StatePending:
		return 2
	case model.StateFiring:
		return 3
	default:
		return 0
	}
}

// ActiveAlerts returns copies of all instances at or above the given state
// severity, as of the most recently committed rule update. Results are sorted
// by ActiveAt, then by key for stability.
func (r *Registry) ActiveAlerts(min model.AlertState) []model.AlertInstance {
	r.mu.RLock()
	out := make([]model.AlertInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		if severityRank(inst.State) >= severityRank(min) {
			out = append(out, copyInstance(inst))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ActiveAt.Equal(out[j].ActiveAt) {
			return out[i].ActiveAt.Before(out[j].ActiveAt)
		}
		return strings.Compare(out[i].Key(), out[j].Key()) < 0
	})
	return out
}

// Get returns a copy of the instance with the given id.
func (r *Registry) Get(id string) (model.AlertInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.instances {
		if inst.ID == id {
			return copyInstance(inst), true
		}
	}
	return model.AlertInstance{}, false
}

// Len returns the number of stored instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// CountByState returns instance counts per lifecycle state.
func (r *Registry) CountByState() map[model.AlertState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[model.AlertState]int, 3)
	for _, inst := range r.instances {
		counts[inst.State]++
	}
	return counts
}

// snapshot returns copies of every stored instance keyed by registry key.
// Used by the scheduler to retire instances of rules a reload dropped.
func (r *Registry) snapshot() map[string]model.AlertInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.AlertInstance, len(r.instances))
	for key, inst := range r.instances {
		out[key] = copyInstance(inst)
	}
	return out
}

// ruleInstances returns copies of all instances belonging to one rule, keyed
// by registry key. Used by the tracker to compute transitions.
func (r *Registry) ruleInstances(ruleKey string) map[string]model.AlertInstance {
	prefix := ruleKey + "|"
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.AlertInstance)
	for key, inst := range r.instances {
		if strings.HasPrefix(key, prefix) {
			out[key] = copyInstance(inst)
		}
	}
	return out
}

// apply commits one rule's transitions atomically and forwards the change set
// to the mirror, if any.
func (r *Registry) apply(upserts map[string]model.AlertInstance, removeKeys []string) {
	if len(upserts) == 0 && len(removeKeys) == 0 {
		return
	}
	var removed []model.AlertInstance
	r.mu.Lock()
	for key, inst := range upserts {
		stored := copyInstance(&inst)
		r.instances[key] = &stored
	}
	for _, key := range removeKeys {
		if inst, ok := r.instances[key]; ok {
			removed = append(removed, copyInstance(inst))
			delete(r.instances, key)
		}
	}
	r.mu.Unlock()

	if r.mirror != nil {
		changed := make([]model.AlertInstance, 0, len(upserts))
		for _, inst := range upserts {
			changed = append(changed, inst)
		}
		r.mirror.Apply(changed, removed)
	}
}

func copyInstance(in *model.AlertInstance) model.AlertInstance {
	out := *in
	out.Labels = in.Labels.Clone()
	annotations := make(map[string]string, len(in.Annotations))
	for k, v := range in.Annotations {
		annotations[k] = v
	}
	out.Annotations = annotations
	return out
}
