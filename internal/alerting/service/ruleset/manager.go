package ruleset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/queuewatch/queuewatch/internal/alerting/model"
	"github.com/rs/zerolog/log"
)

// ErrNoRules indicates that neither the rule file nor the store produced a
// configuration.
var ErrNoRules = errors.New("no rule configuration available")

// Manager owns the rule configuration lifecycle: bootstrap from the rule
// file, replacement through the API, and persistence with change logging.
// The store is optional; without one the manager works file-only.
type Manager struct {
	store    Store
	sink     RuleSink
	rulePath string
}

func NewManager(store Store, sink RuleSink, rulePath string) *Manager {
	return &Manager{store: store, sink: sink, rulePath: rulePath}
}

// Bootstrap installs the initial configuration. The rule file is the source
// of truth; when it is absent or empty the stored configuration is used
// instead. A successful file load is persisted back to the store.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.rulePath != "" {
		groups, err := model.LoadRuleFile(m.rulePath)
		if err != nil {
			return fmt.Errorf("load rule file: %w", err)
		}
		if err := m.sink.Load(ctx, groups); err != nil {
			return err
		}
		m.persist(ctx, groups)
		log.Info().Str("path", m.rulePath).Int("groups", len(groups)).Msg("rules bootstrapped from file")
		return nil
	}

	if m.store == nil {
		return ErrNoRules
	}
	groups, err := m.store.LoadGroups(ctx)
	if err != nil {
		return fmt.Errorf("load stored rules: %w", err)
	}
	if len(groups) == 0 {
		return ErrNoRules
	}
	if err := m.sink.Load(ctx, groups); err != nil {
		return err
	}
	log.Info().Int("groups", len(groups)).Msg("rules bootstrapped from store")
	return nil
}

// Replace validates and installs a new configuration, then persists it. A
// validation failure leaves the running configuration in place.
func (m *Manager) Replace(ctx context.Context, groups []model.RuleGroup) error {
	if err := m.sink.Load(ctx, groups); err != nil {
		return err
	}
	m.persist(ctx, groups)
	return nil
}

// Reload re-reads the rule file and installs its configuration.
func (m *Manager) Reload(ctx context.Context) error {
	if m.rulePath == "" {
		return fmt.Errorf("no rule file configured")
	}
	groups, err := model.LoadRuleFile(m.rulePath)
	if err != nil {
		return fmt.Errorf("load rule file: %w", err)
	}
	return m.Replace(ctx, groups)
}

// Groups returns the currently installed configuration.
func (m *Manager) Groups() []model.RuleGroup { return m.sink.Groups() }

// persist saves the configuration and writes one change log entry per group.
// Persistence is best-effort; the running configuration is already installed.
func (m *Manager) persist(ctx context.Context, groups []model.RuleGroup) {
	if m.store == nil {
		return
	}
	previous := make(map[string]bool)
	if stored, err := m.store.LoadGroups(ctx); err == nil {
		for _, g := range stored {
			previous[g.Name] = true
		}
	}
	if err := m.store.SaveGroups(ctx, groups); err != nil {
		log.Error().Err(err).Msg("persist rule configuration")
		return
	}
	now := time.Now().UTC()
	for _, g := range groups {
		changeType := "Create"
		if previous[g.Name] {
			changeType = "Update"
		}
		entry := &ChangeLog{
			ID:         uuid.NewString(),
			GroupName:  g.Name,
			ChangeType: changeType,
			Rules:      len(g.Rules),
			ChangeTime: now,
		}
		if err := m.store.InsertChangeLog(ctx, entry); err != nil {
			log.Error().Err(err).Str("group", g.Name).Msg("record rule change")
		}
	}
}
