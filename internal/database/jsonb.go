package database

import (
	"encoding/json"
	"fmt"
)

// toJSONB marshals v for a JSONB column, storing nil slices and maps as
// their empty form.
func toJSONB(v any, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}

// fromJSONB unmarshals a JSONB column; NULL leaves dst untouched.
func fromJSONB(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", dst, err)
	}
	return nil
}
