package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Label Canonicalization
// =============================================================================

// CanonicalLabels serializes a label map into its canonical form: keys
// sorted, compact JSON. Two maps with the same pairs in any insertion order
// produce byte-identical output, so the derived hash never splits one
// logical series into two.
func CanonicalLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		vj, _ := json.Marshal(labels[k])
		b.Write(kj)
		b.WriteByte(':')
		b.Write(vj)
	}
	b.WriteByte('}')
	return b.String()
}

// LabelHash derives the fixed-length uniqueness key for a label set.
// It hashes the sorted key/value pairs, so it is independent of insertion
// order and consistent with CanonicalLabels.
func LabelHash(labels map[string]string) uint64 {
	return NewHashBuilder().StringMap(labels).Build()
}

// ParseLabels decodes a canonical label JSON string back into a map.
func ParseLabels(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	return m, nil
}

// =============================================================================
// Label Filters
// =============================================================================

// LabelFilter is a list of single-key/value match maps. A series matches
// when its label set contains ANY of the listed pairs (OR across entries).
// An empty filter matches every series.
type LabelFilter []map[string]string

// Matches reports whether the given label set satisfies the filter.
func (f LabelFilter) Matches(labels map[string]string) bool {
	if len(f) == 0 {
		return true
	}
	for _, entry := range f {
		for k, v := range entry {
			if labels[k] == v {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the filter matches everything.
func (f LabelFilter) Empty() bool { return len(f) == 0 }
