package paymentlog

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Image flattens v into the generic JSON object stored in old_values and
// new_values. v must marshal to a JSON object.
func Image(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit image: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode audit image: %w", err)
	}
	return m, nil
}

// Diff returns the old and new values of the keys whose values differ.
// A key present on one side only counts as changed.
func Diff(oldValues, newValues map[string]any) (map[string]any, map[string]any) {
	before := map[string]any{}
	after := map[string]any{}

	for k, ov := range oldValues {
		nv, ok := newValues[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			before[k] = ov
			if ok {
				after[k] = nv
			}
		}
	}
	for k, nv := range newValues {
		if _, ok := oldValues[k]; !ok {
			after[k] = nv
		}
	}
	return before, after
}
