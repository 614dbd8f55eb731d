package ruleset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	abd "github.com/queuewatch/queuewatch/internal/alerting/database"
	"github.com/queuewatch/queuewatch/internal/alerting/model"
)

// PgStore persists rule groups in PostgreSQL using the alerting database
// wrapper. Durations are stored as native interval columns, label and
// annotation maps as jsonb.
type PgStore struct {
	DB *abd.Database
}

func NewPgStore(db *abd.Database) *PgStore { return &PgStore{DB: db} }

// SaveGroups replaces the stored configuration with the given groups.
func (s *PgStore) SaveGroups(ctx context.Context, groups []model.RuleGroup) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM alert_rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM alert_rule_groups`); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}

	const groupQ = `INSERT INTO alert_rule_groups(name, eval_interval) VALUES ($1, $2)`
	const ruleQ = `
	INSERT INTO alert_rules(group_name, name, expr, for_duration, labels, annotations, position)
	VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7)
	`
	for _, g := range groups {
		if _, err := s.DB.ExecContext(ctx, groupQ, g.Name, durationToPgInterval(g.Interval)); err != nil {
			return fmt.Errorf("save group %s: %w", g.Name, err)
		}
		for i, r := range g.Rules {
			labelsJSON, _ := json.Marshal(r.Labels)
			annotationsJSON, _ := json.Marshal(r.Annotations)
			if _, err := s.DB.ExecContext(ctx, ruleQ,
				g.Name, r.Name, r.Expr, durationToPgInterval(r.For),
				string(labelsJSON), string(annotationsJSON), i); err != nil {
				return fmt.Errorf("save rule %s/%s: %w", g.Name, r.Name, err)
			}
		}
	}
	return nil
}

// LoadGroups reads the stored configuration, rules in declaration order.
func (s *PgStore) LoadGroups(ctx context.Context) ([]model.RuleGroup, error) {
	const groupQ = `SELECT name, eval_interval FROM alert_rule_groups ORDER BY name`
	rows, err := s.DB.QueryContext(ctx, groupQ)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	defer rows.Close()

	var groups []model.RuleGroup
	for rows.Next() {
		var g model.RuleGroup
		var interval pgtype.Interval
		if err := rows.Scan(&g.Name, &interval); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if g.Interval, err = pgIntervalToDuration(interval); err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Name, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	for i := range groups {
		rules, err := s.loadRules(ctx, groups[i].Name)
		if err != nil {
			return nil, err
		}
		groups[i].Rules = rules
	}
	return groups, nil
}

func (s *PgStore) loadRules(ctx context.Context, group string) ([]model.Rule, error) {
	const q = `
	SELECT name, expr, for_duration, labels, annotations
	FROM alert_rules WHERE group_name = $1 ORDER BY position
	`
	rows, err := s.DB.QueryContext(ctx, q, group)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", group, err)
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		var forInterval pgtype.Interval
		var labelsRaw, annotationsRaw string
		if err := rows.Scan(&r.Name, &r.Expr, &forInterval, &labelsRaw, &annotationsRaw); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if r.For, err = pgIntervalToDuration(forInterval); err != nil {
			return nil, fmt.Errorf("rule %s/%s: %w", group, r.Name, err)
		}
		r.Labels = model.LabelMap{}
		_ = json.Unmarshal([]byte(labelsRaw), &r.Labels)
		r.Annotations = map[string]string{}
		_ = json.Unmarshal([]byte(annotationsRaw), &r.Annotations)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *PgStore) InsertChangeLog(ctx context.Context, entry *ChangeLog) error {
	const q = `
	INSERT INTO alert_rule_change_logs(id, group_name, change_type, rules, change_time)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.DB.ExecContext(ctx, q, entry.ID, entry.GroupName, entry.ChangeType, entry.Rules, entry.ChangeTime)
	if err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

func durationToPgInterval(d time.Duration) pgtype.Interval {
	days := d / (24 * time.Hour)
	rest := d % (24 * time.Hour)
	return pgtype.Interval{
		Microseconds: rest.Microseconds(),
		Days:         int32(days),
		Valid:        true,
	}
}

func pgIntervalToDuration(iv pgtype.Interval) (time.Duration, error) {
	if !iv.Valid {
		return 0, fmt.Errorf("interval is null")
	}
	if iv.Months != 0 {
		return 0, fmt.Errorf("month-based intervals are not supported")
	}
	return time.Duration(iv.Days)*24*time.Hour + time.Duration(iv.Microseconds)*time.Microsecond, nil
}
