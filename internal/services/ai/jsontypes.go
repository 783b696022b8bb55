package ai

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexInt decodes integers that models emit as numbers, floats or numeric strings.
// Anything else leaves Valid false instead of failing the whole payload.
type FlexInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	f.Value = int(math.Round(n))
	f.Valid = true
	return nil
}

// Ptr returns the value as a pointer, or nil when invalid
func (f FlexInt) Ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// FlexBool decodes booleans emitted as true/false, "true"/"false", or 0/1
type FlexBool struct {
	Value bool
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexBool) UnmarshalJSON(data []byte) error {
	*f = FlexBool{}
	s := strings.Trim(strings.ToLower(string(bytes.TrimSpace(data))), `"`)
	switch s {
	case "true", "1", "yes":
		f.Value, f.Valid = true, true
	case "false", "0", "no":
		f.Valid = true
	}
	return nil
}

// NullableString distinguishes an absent key, an explicit null and a value.
// Present is only set when the key appears in the object.
type NullableString struct {
	Present bool
	Null    bool
	Value   string
}

// UnmarshalJSON implements json.Unmarshaler
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Present = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.Null = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string scalars are kept as their literal text
		n.Value = string(data)
		return nil
	}
	n.Value = s
	return nil
}
