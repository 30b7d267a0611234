package instance

import (
	"encoding/json"
	"fmt"
)

// Request is the invocation payload. Both fields are optional.
type Request struct {
	InstanceID  string     `json:"instance_id,omitempty"`
	InstanceIDs StringList `json:"instance_ids,omitempty"`
}

// IDs returns the explicit identifiers in precedence order: the single field
// first, then the list. Empty strings are dropped.
func (r Request) IDs() []ID {
	ids := make([]ID, 0, len(r.InstanceIDs)+1)
	if r.InstanceID != "" {
		ids = append(ids, r.InstanceID)
	}
	for _, id := range r.InstanceIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// StringList decodes from either a JSON array of strings or a single string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
			return nil
		}
		*l = StringList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("instance_ids must be a string or a list of strings: %w", err)
	}
	*l = many
	return nil
}
