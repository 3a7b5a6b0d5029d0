package profile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/backseat/internal/errors"
)

// MarshalList renders profiles as a pretty-printed JSON array (2-space indent).
func MarshalList(profiles []Profile) (string, error) {
	if profiles == nil {
		profiles = []Profile{}
	}
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		out[i] = Normalize(p)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// ParseList parses an exported profile array.
// A payload that is not a JSON array is a FORMAT error; elements are normalized and
// validated, and duplicate names are rejected.
func ParseList(data string) ([]Profile, error) {
	trimmed := bytes.TrimSpace([]byte(data))
	if len(trimmed) == 0 {
		return nil, errors.NewFormat("Invalid profile format: empty payload")
	}

	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, errors.NewFormat(fmt.Sprintf("Invalid profile format: %v", err))
	}
	if _, ok := raw.([]any); !ok {
		return nil, errors.NewFormat("Invalid profile format: expected a JSON array")
	}

	var records []Profile
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, errors.NewFormat(fmt.Sprintf("Invalid profile format: %v", err))
	}

	seen := make(map[string]bool, len(records))
	profiles := make([]Profile, 0, len(records))
	for i, r := range records {
		p := Normalize(r)
		if err := Validate(p); err != nil {
			if bErr, ok := err.(*errors.BackseatError); ok {
				bErr.Details["index"] = i
			}
			return nil, err
		}
		if seen[p.Name] {
			return nil, errors.NewFormat(fmt.Sprintf("Invalid profile format: duplicate profile name %q", p.Name))
		}
		seen[p.Name] = true
		profiles = append(profiles, p)
	}
	return profiles, nil
}
