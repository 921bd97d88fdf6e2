package rest

import "net/url"

// Route builders. Every path is relative to the API root and escapes its
// dynamic segments.

func Channels() string { return "/channels" }

func Channel(id string) string { return "/channels/" + url.PathEscape(id) }

func ChannelMessages(channelID string) string { return Channel(channelID) + "/messages" }

func ChannelMessage(channelID, messageID string) string {
	return ChannelMessages(channelID) + "/" + url.PathEscape(messageID)
}

func MessageReactions(channelID, messageID string) string {
	return ChannelMessage(channelID, messageID) + "/reactions"
}

func MessageReaction(channelID, messageID, emoji string) string {
	return MessageReactions(channelID, messageID) + "/" + url.PathEscape(emoji)
}

// MessageUserReaction addresses one user's reaction; pass "@me" for the
// current user.
func MessageUserReaction(channelID, messageID, emoji, userID string) string {
	if userID != "@me" {
		userID = url.PathEscape(userID)
	}
	return MessageReaction(channelID, messageID, emoji) + "/" + userID
}

func Members() string { return "/members" }

func Member(userID string) string { return "/members/" + url.PathEscape(userID) }

func MemberRole(userID, roleID string) string {
	return Member(userID) + "/roles/" + url.PathEscape(roleID)
}

func Bans() string { return "/bans" }

func Ban(userID string) string { return "/bans/" + url.PathEscape(userID) }

func Roles() string { return "/roles" }

func Role(id string) string { return "/roles/" + url.PathEscape(id) }

func Commands() string { return "/commands" }

func Command(id string) string { return "/commands/" + url.PathEscape(id) }

func CurrentUser() string { return "/users/@me" }

func Guild() string { return "/guild" }

func InteractionCallback(id, token string) string {
	return "/interactions/" + url.PathEscape(id) + "/" + url.PathEscape(token) + "/callback"
}

func Login() string { return "/auth/login" }
