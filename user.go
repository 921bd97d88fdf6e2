package spectrus

import "encoding/json"

// User is an account on the server. Bots are users too.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
	System     bool   `json:"system,omitempty"`
}

func newUser(raw json.RawMessage) (*User, error) {
	u := &User{}
	if err := u.Refresh(raw); err != nil {
		return nil, err
	}
	return u, nil
}

// Refresh overwrites the fields present in raw.
func (u *User) Refresh(raw json.RawMessage) error {
	return json.Unmarshal(raw, u)
}

// DisplayName prefers the global name over the username.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (u *User) Mention() string { return "<@" + u.ID + ">" }
