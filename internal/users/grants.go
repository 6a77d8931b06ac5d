package users

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

// Stored permission objects were written under two naming conventions.
// Each pair is read as one logical field.
var (
	projectKeys  = [2]string{"projectIds", "project_ids"}
	taskKeys     = [2]string{"taskIds", "task_ids"}
	calendarKeys = [2]string{"calendarAccess", "calendar_access"}
	trackingKeys = [2]string{"trackingAccess", "tracking_access"}
)

// DecodeGrants translates a stored permissions object into Grants. Lists
// found under either spelling are merged in first-seen order without
// duplicates; flags are true when either spelling is true. Empty or null
// input yields zero Grants.
func DecodeGrants(raw []byte) (access.Grants, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return access.Grants{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return access.Grants{}, fmt.Errorf("%w: %v", ErrInvalidGrants, err)
	}

	var g access.Grants
	var err error
	if g.ProjectIDs, err = mergeLists(fields, projectKeys); err != nil {
		return access.Grants{}, err
	}
	if g.TaskIDs, err = mergeLists(fields, taskKeys); err != nil {
		return access.Grants{}, err
	}
	if g.CalendarAccess, err = mergeFlags(fields, calendarKeys); err != nil {
		return access.Grants{}, err
	}
	if g.TrackingAccess, err = mergeFlags(fields, trackingKeys); err != nil {
		return access.Grants{}, err
	}
	return g, nil
}

// EncodeGrants writes the camelCase form.
func EncodeGrants(g access.Grants) ([]byte, error) {
	if g.ProjectIDs == nil {
		g.ProjectIDs = []string{}
	}
	if g.TaskIDs == nil {
		g.TaskIDs = []string{}
	}
	return json.Marshal(g)
}

func mergeLists(fields map[string]json.RawMessage, keys [2]string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidGrants, key, err)
		}
		for _, v := range values {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

func mergeFlags(fields map[string]json.RawMessage, keys [2]string) (bool, error) {
	var out bool
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrInvalidGrants, key, err)
		}
		out = out || v
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
