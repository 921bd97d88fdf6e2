package spectrus

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errNoID = errors.New("payload has no id")

// idOf extracts the top-level "id" of a raw entity.
func idOf(raw json.RawMessage) (string, error) {
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if v.ID == "" {
		return "", errNoID
	}
	return v.ID, nil
}

// memberKeyOf extracts the user id a member is cached under: data.user.id,
// falling back to data.user_id.
func memberKeyOf(raw json.RawMessage) (string, error) {
	var v struct {
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if v.User != nil && v.User.ID != "" {
		return v.User.ID, nil
	}
	if v.UserID != "" {
		return v.UserID, nil
	}
	return "", fmt.Errorf("member: %w", errNoID)
}

// roleKeyOf accepts both the {"role": {...}} event shape and a bare role.
func roleKeyOf(raw json.RawMessage) (string, error) {
	var v struct {
		Role *struct {
			ID string `json:"id"`
		} `json:"role"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if v.Role != nil && v.Role.ID != "" {
		return v.Role.ID, nil
	}
	return idOf(raw)
}

// unwrapRole returns the inner role object of a role event, or raw itself.
func unwrapRole(raw json.RawMessage) json.RawMessage {
	var v struct {
		Role json.RawMessage `json:"role"`
	}
	if err := json.Unmarshal(raw, &v); err == nil && len(v.Role) > 0 && string(v.Role) != "null" {
		return v.Role
	}
	return raw
}
