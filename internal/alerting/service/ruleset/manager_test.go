package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

type memStore struct {
	groups  []model.RuleGroup
	changes []ChangeLog
	saveErr error
}

func (m *memStore) SaveGroups(ctx context.Context, groups []model.RuleGroup) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.groups = groups
	return nil
}

func (m *memStore) LoadGroups(ctx context.Context) ([]model.RuleGroup, error) {
	return m.groups, nil
}

func (m *memStore) InsertChangeLog(ctx context.Context, entry *ChangeLog) error {
	m.changes = append(m.changes, *entry)
	return nil
}

type memSink struct {
	groups  []model.RuleGroup
	loadErr error
}

func (m *memSink) Load(ctx context.Context, groups []model.RuleGroup) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	m.groups = groups
	return nil
}

func (m *memSink) Groups() []model.RuleGroup { return m.groups }

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rule file: %v", err)
	}
	return path
}

const bootstrapRules = `
groups:
  - name: taskiq
    interval: 1m
    rules:
      - alert: BrokerDown
        expr: up{job="taskiq-broker"} == 0
        for: 1m
        labels:
          severity: critical
`

func TestManagerBootstrapFromFile(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	mgr := NewManager(store, sink, writeRuleFile(t, bootstrapRules))

	if err := mgr.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(sink.groups) != 1 || sink.groups[0].Name != "taskiq" {
		t.Fatalf("sink not loaded: %+v", sink.groups)
	}
	if len(store.groups) != 1 {
		t.Fatalf("configuration not persisted")
	}
	if len(store.changes) != 1 || store.changes[0].ChangeType != "Create" {
		t.Fatalf("expected one Create change log entry, got %+v", store.changes)
	}
	if store.changes[0].ID == "" {
		t.Fatalf("change log entry missing id")
	}
}

func TestManagerBootstrapFromStoreWithoutFile(t *testing.T) {
	store := &memStore{groups: []model.RuleGroup{{Name: "stored", Interval: time.Minute}}}
	sink := &memSink{}
	mgr := NewManager(store, sink, "")

	if err := mgr.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(sink.groups) != 1 || sink.groups[0].Name != "stored" {
		t.Fatalf("stored configuration not installed: %+v", sink.groups)
	}
}

func TestManagerBootstrapNothingAvailable(t *testing.T) {
	mgr := NewManager(nil, &memSink{}, "")
	if err := mgr.Bootstrap(context.Background()); err != ErrNoRules {
		t.Fatalf("expected ErrNoRules, got %v", err)
	}
}

func TestManagerReplaceRejectedConfigNotPersisted(t *testing.T) {
	store := &memStore{}
	sink := &memSink{loadErr: &model.ConfigError{Group: "g", Err: context.Canceled}}
	mgr := NewManager(store, sink, "")

	err := mgr.Replace(context.Background(), []model.RuleGroup{{Name: "g", Interval: time.Minute}})
	if err == nil {
		t.Fatalf("expected load error")
	}
	if len(store.groups) != 0 || len(store.changes) != 0 {
		t.Fatalf("rejected configuration must not be persisted")
	}
}

func TestManagerReplaceMarksUpdates(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	mgr := NewManager(store, sink, "")

	groups := []model.RuleGroup{{Name: "taskiq", Interval: time.Minute}}
	if err := mgr.Replace(context.Background(), groups); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := mgr.Replace(context.Background(), groups); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	if len(store.changes) != 2 {
		t.Fatalf("expected 2 change log entries, got %d", len(store.changes))
	}
	if store.changes[0].ChangeType != "Create" || store.changes[1].ChangeType != "Update" {
		t.Fatalf("change types wrong: %+v", store.changes)
	}
}

func TestManagerReload(t *testing.T) {
	sink := &memSink{}
	mgr := NewManager(nil, sink, writeRuleFile(t, bootstrapRules))

	if err := mgr.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(sink.groups) != 1 {
		t.Fatalf("reload did not install configuration")
	}
}
