package ruleset

import (
	"context"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

// ChangeLog captures one rule configuration change for auditing.
type ChangeLog struct {
	ID         string    // uuid assigned at insert time
	GroupName  string    // affected group
	ChangeType string    // Create | Update | Delete
	Rules      int       // number of rules in the group after the change
	ChangeTime time.Time // when the change was applied
}

// Store abstracts persistence for rule groups. Implementations must replace
// the stored configuration wholesale so readers never see a mix of two
// configurations.
type Store interface {
	SaveGroups(ctx context.Context, groups []model.RuleGroup) error
	LoadGroups(ctx context.Context) ([]model.RuleGroup, error)
	InsertChangeLog(ctx context.Context, entry *ChangeLog) error
}

// RuleSink receives validated rule configurations. The evaluation scheduler
// is the production implementation.
type RuleSink interface {
	Load(ctx context.Context, groups []model.RuleGroup) error
	Groups() []model.RuleGroup
}
