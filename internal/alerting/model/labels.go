package model

import (
	"sort"
	"strings"
)

// LabelMap represents a set of label key-value pairs identifying a time series
// or an alert instance. Keys are unique; maps are treated as values (compared
// via CanonicalLabelKey), never by reference.
type LabelMap map[string]string

// NormalizeLabels returns a new LabelMap with keys and values trimmed and
// entries with empty keys or values removed. It does not mutate the input map.
func NormalizeLabels(in LabelMap) LabelMap {
	if len(in) == 0 {
		return LabelMap{}
	}
	result := make(LabelMap, len(in))
	for rawKey, rawVal := range in {
		key := strings.TrimSpace(rawKey)
		if key == "" {
			continue
		}
		val := strings.TrimSpace(rawVal)
		if val == "" {
			continue
		}
		result[key] = val
	}
	return result
}

// Merge overlays other on top of base and returns a new map. Keys present in
// both take the value from other, so sample labels keep precedence over a
// rule's static labels and identity-discriminating labels survive the merge.
func (base LabelMap) Merge(other LabelMap) LabelMap {
	result := make(LabelMap, len(base)+len(other))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range other {
		result[k] = v
	}
	return result
}

// Clone returns a shallow copy of the map.
func (base LabelMap) Clone() LabelMap {
	result := make(LabelMap, len(base))
	for k, v := range base {
		result[k] = v
	}
	return result
}

// CanonicalLabelKey returns a stable string representation of labels for use as
// a map key. It sorts keys and concatenates as key=value pairs separated by '|'.
// This ensures {a=1,b=2} and {b=2,a=1} produce identical keys.
func CanonicalLabelKey(labels LabelMap) string {
	if len(labels) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.Grow(len(keys) * 8)
	for i := 0; i < len(keys); i++ {
		if i > 0 {
			b.WriteByte('|')
		}
		k := keys[i]
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}
