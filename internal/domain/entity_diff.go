package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FieldChange is the before/after pair recorded for one changed field.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Changes is the field-level delta stored on a history record. For creations and
// deletions it holds the full snapshot; for updates every value is a FieldChange.
type Changes map[string]any

// Keys returns the changed field names in sorted order.
func (c Changes) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CalculateChanges computes the field-level delta between two snapshots.
//
// Values are compared by their canonical JSON encoding: map keys are sorted at
// every nesting level and numbers are compared by their decimal text, so two
// semantically equal documents never differ because of key order or numeric Go type.
// A key missing on one side differs from a key holding null.
func CalculateChanges(previous, next Snapshot) Changes {
	switch {
	case previous == nil && next == nil:
		return Changes{}
	case previous == nil:
		return Changes(CloneSnapshot(next))
	case next == nil:
		return Changes(CloneSnapshot(previous))
	}

	keys := make(map[string]struct{}, len(previous)+len(next))
	for key := range previous {
		keys[key] = struct{}{}
	}
	for key := range next {
		keys[key] = struct{}{}
	}

	changes := Changes{}
	for key := range keys {
		before, hadBefore := previous[key]
		after, hasAfter := next[key]
		if hadBefore == hasAfter && canonicalJSON(before) == canonicalJSON(after) {
			continue
		}
		changes[key] = FieldChange{From: before, To: after}
	}
	return changes
}

// ChangedPaths lists the dotted leaf paths whose values differ between two snapshots.
func ChangedPaths(previous, next Snapshot) ([]string, error) {
	before := map[string]string{}
	after := map[string]string{}
	if len(previous) > 0 {
		if err := flattenProperties("", normalizeValue(map[string]any(previous)), before); err != nil {
			return nil, err
		}
	}
	if len(next) > 0 {
		if err := flattenProperties("", normalizeValue(map[string]any(next)), after); err != nil {
			return nil, err
		}
	}

	seen := map[string]struct{}{}
	for key, value := range before {
		if other, ok := after[key]; !ok || other != value {
			seen[key] = struct{}{}
		}
	}
	for key := range after {
		if _, ok := before[key]; !ok {
			seen[key] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for key := range seen {
		paths = append(paths, key)
	}
	sort.Strings(paths)
	return paths, nil
}

// SnapshotOf converts any JSON-serializable document into a Snapshot.
func SnapshotOf(document any) (Snapshot, error) {
	if document == nil {
		return nil, nil
	}
	if snapshot, ok := document.(Snapshot); ok {
		return CloneSnapshot(snapshot), nil
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(encoded, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// CloneSnapshot returns a shallow copy of the snapshot. A nil input yields nil.
func CloneSnapshot(input Snapshot) Snapshot {
	if input == nil {
		return nil
	}
	out := make(Snapshot, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func canonicalJSON(value any) string {
	encoded, err := json.Marshal(normalizeValue(value))
	if err != nil {
		return fmt.Sprintf("%#v", value)
	}
	return string(encoded)
}

// normalizeValue round-trips a value through JSON so structs, typed maps and
// numeric kinds collapse onto map[string]any / []any / json.Number.
func normalizeValue(value any) any {
	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return value
	}
	return out
}

func flattenProperties(prefix string, value any, acc map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "{}"
			}
			return nil
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			nextPrefix := key
			if prefix != "" {
				nextPrefix = prefix + "." + key
			}
			if err := flattenProperties(nextPrefix, typed[key], acc); err != nil {
				return err
			}
		}
	case []any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "[]"
			}
			return nil
		}
		for idx, item := range typed {
			nextPrefix := fmt.Sprintf("%s[%d]", prefix, idx)
			if prefix == "" {
				nextPrefix = fmt.Sprintf("[%d]", idx)
			}
			if err := flattenProperties(nextPrefix, item, acc); err != nil {
				return err
			}
		}
	case nil:
		if prefix != "" {
			acc[prefix] = "null"
		}
	default:
		if prefix == "" {
			return fmt.Errorf("property key missing for value %v", typed)
		}
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[prefix] = fmt.Sprintf("%v", typed)
		} else {
			acc[prefix] = string(encoded)
		}
	}

	return nil
}
