package spectrus

import "encoding/json"

// VoiceState is a user's voice connection. ChannelID is empty once the user
// has left voice.
type VoiceState struct {
	GuildID    string  `json:"guild_id,omitempty"`
	ChannelID  string  `json:"channel_id"`
	UserID     string  `json:"user_id"`
	Member     *Member `json:"member,omitempty"`
	SessionID  string  `json:"session_id"`
	Deaf       bool    `json:"deaf"`
	Mute       bool    `json:"mute"`
	SelfDeaf   bool    `json:"self_deaf"`
	SelfMute   bool    `json:"self_mute"`
	SelfStream bool    `json:"self_stream,omitempty"`
	SelfVideo  bool    `json:"self_video"`
	Suppress   bool    `json:"suppress"`

	client *Client
}

func (c *Client) newVoiceState(raw json.RawMessage) (*VoiceState, error) {
	v := &VoiceState{client: c}
	if err := v.Refresh(raw); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VoiceState) Refresh(raw json.RawMessage) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	if v.Member != nil {
		v.Member.client = v.client
	}
	return nil
}

func (v *VoiceState) Connected() bool { return v.ChannelID != "" }

// Channel returns the cached voice channel, if connected.
func (v *VoiceState) Channel() (*Channel, bool) {
	if v.ChannelID == "" {
		return nil, false
	}
	return v.client.Channels.Get(v.ChannelID)
}
