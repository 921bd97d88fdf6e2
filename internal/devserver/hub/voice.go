package hub

// In-memory voice state, keyed by user. Safe for concurrent use.

// JoinVoice records st as userID's voice state. It returns the channel the
// user was in before, or "".
func (h *Hub) JoinVoice(st VoiceState) (prev string) {
	h.voiceMu.Lock()
	defer h.voiceMu.Unlock()

	if old, ok := h.voice[st.UserID]; ok && old.ChannelID != nil {
		prev = *old.ChannelID
	}
	h.voice[st.UserID] = st
	return prev
}

// LeaveVoice forgets userID's voice state and returns the channel left.
func (h *Hub) LeaveVoice(userID string) (channelID string, was bool) {
	h.voiceMu.Lock()
	defer h.voiceMu.Unlock()

	st, ok := h.voice[userID]
	if !ok {
		return "", false
	}
	delete(h.voice, userID)
	if st.ChannelID == nil {
		return "", false
	}
	return *st.ChannelID, true
}

// VoiceChannelOf returns the channel the user is currently in, if any.
func (h *Hub) VoiceChannelOf(userID string) (string, bool) {
	h.voiceMu.RLock()
	defer h.voiceMu.RUnlock()
	st, ok := h.voice[userID]
	if !ok || st.ChannelID == nil {
		return "", false
	}
	return *st.ChannelID, true
}

// VoiceMembers returns the users currently in channelID.
func (h *Hub) VoiceMembers(channelID string) []string {
	h.voiceMu.RLock()
	defer h.voiceMu.RUnlock()

	var users []string
	for uid, st := range h.voice {
		if st.ChannelID != nil && *st.ChannelID == channelID {
			users = append(users, uid)
		}
	}
	return users
}
