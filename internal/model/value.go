package model

import (
	"encoding/json"
	"fmt"
)

// Value is one recorded answer: either a single string (single-select,
// free text, level rating) or a list of strings (multi-select). It
// marshals to a bare JSON string or array so session snapshots survive
// a round trip through the Redis store without losing the shape.
type Value struct {
	One  string
	Many []string
}

// StringValue wraps a scalar answer.
func StringValue(s string) Value { return Value{One: s} }

// ListValue wraps a multi-select answer.
func ListValue(items []string) Value { return Value{Many: items} }

// IsList reports whether the value fans out to one row per element
// when persisted.
func (v Value) IsList() bool { return v.Many != nil }

// Texts returns the literal texts the value contributes, one element
// for scalars.
func (v Value) Texts() []string {
	if v.Many != nil {
		return v.Many
	}
	return []string{v.One}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Many != nil {
		return json.Marshal(v.Many)
	}
	return json.Marshal(v.One)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		v.One = ""
		return json.Unmarshal(data, &v.Many)
	}
	v.Many = nil
	if err := json.Unmarshal(data, &v.One); err != nil {
		return fmt.Errorf("answer value must be a string or string array: %w", err)
	}
	return nil
}
