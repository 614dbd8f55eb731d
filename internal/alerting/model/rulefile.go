package model

import (
	"fmt"
	"os"
	"time"

	prommodel "github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk rule configuration: a sequence of named groups, each
// with an explicit evaluation interval and an ordered sequence of rules.
type RuleFile struct {
	Groups []RuleGroupConfig `yaml:"groups"`
}

// RuleGroupConfig is one group entry in a rule file.
type RuleGroupConfig struct {
	Name     string             `yaml:"name"`
	Interval prommodel.Duration `yaml:"interval"`
	Rules    []RuleConfig       `yaml:"rules"`
}

// RuleConfig is one alerting rule entry in a rule file.
type RuleConfig struct {
	Alert       string             `yaml:"alert"`
	Expr        string             `yaml:"expr"`
	For         prommodel.Duration `yaml:"for,omitempty"`
	Labels      map[string]string  `yaml:"labels,omitempty"`
	Annotations map[string]string  `yaml:"annotations,omitempty"`
}

// ParseRuleFile decodes YAML rule groups and converts them to the runtime
// model. Structural problems (missing names, missing interval, empty
// expressions) are reported as ConfigError; expression syntax is not checked
// here, that is the evaluator's job at load time.
func ParseRuleFile(data []byte) ([]RuleGroup, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parse rule file: %w", err)}
	}
	groups := make([]RuleGroup, 0, len(file.Groups))
	for _, gc := range file.Groups {
		if gc.Name == "" {
			return nil, &ConfigError{Err: fmt.Errorf("rule group without a name")}
		}
		if time.Duration(gc.Interval) <= 0 {
			return nil, &ConfigError{Group: gc.Name, Err: fmt.Errorf("evaluation interval must be explicit and positive")}
		}
		group := RuleGroup{
			Name:     gc.Name,
			Interval: time.Duration(gc.Interval),
			Rules:    make([]Rule, 0, len(gc.Rules)),
		}
		for _, rc := range gc.Rules {
			if rc.Alert == "" {
				return nil, &ConfigError{Group: gc.Name, Err: fmt.Errorf("rule without an alert name")}
			}
			if rc.Expr == "" {
				return nil, &ConfigError{Group: gc.Name, Rule: rc.Alert, Err: fmt.Errorf("rule without an expression")}
			}
			if time.Duration(rc.For) < 0 {
				return nil, &ConfigError{Group: gc.Name, Rule: rc.Alert, Err: fmt.Errorf("negative for duration")}
			}
			annotations := make(map[string]string, len(rc.Annotations))
			for k, v := range rc.Annotations {
				annotations[k] = v
			}
			group.Rules = append(group.Rules, Rule{
				Name:        rc.Alert,
				Expr:        rc.Expr,
				For:         time.Duration(rc.For),
				Labels:      NormalizeLabels(rc.Labels),
				Annotations: annotations,
			})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// LoadRuleFile reads and parses a rule file from disk.
func LoadRuleFile(path string) ([]RuleGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	return ParseRuleFile(data)
}

// MarshalRuleGroups converts runtime rule groups back to the file
// representation, round-tripping labels and annotations unchanged.
func MarshalRuleGroups(groups []RuleGroup) ([]byte, error) {
	file := RuleFile{Groups: make([]RuleGroupConfig, 0, len(groups))}
	for _, g := range groups {
		gc := RuleGroupConfig{
			Name:     g.Name,
			Interval: prommodel.Duration(g.Interval),
			Rules:    make([]RuleConfig, 0, len(g.Rules)),
		}
		for _, r := range g.Rules {
			gc.Rules = append(gc.Rules, RuleConfig{
				Alert:       r.Name,
				Expr:        r.Expr,
				For:         prommodel.Duration(r.For),
				Labels:      r.Labels,
				Annotations: r.Annotations,
			})
		}
		file.Groups = append(file.Groups, gc)
	}
	return yaml.Marshal(&file)
}
