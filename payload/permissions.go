package payload

import "strconv"

// Permission bits as carried in role and command permission strings.
const (
	PermCreateInvite    uint64 = 1 << 0
	PermKickMembers     uint64 = 1 << 1
	PermBanMembers      uint64 = 1 << 2
	PermAdministrator   uint64 = 1 << 3
	PermManageChannels  uint64 = 1 << 4
	PermManageGuild     uint64 = 1 << 5
	PermAddReactions    uint64 = 1 << 6
	PermViewChannel     uint64 = 1 << 10
	PermSendMessages    uint64 = 1 << 11
	PermManageMessages  uint64 = 1 << 13
	PermMuteMembers     uint64 = 1 << 22
	PermDeafenMembers   uint64 = 1 << 23
	PermManageNicknames uint64 = 1 << 27
	PermManageRoles     uint64 = 1 << 28
)

// Permissions renders a bitset in the decimal string form SetPermissions
// expects.
func Permissions(bits ...uint64) string {
	var v uint64
	for _, b := range bits {
		v |= b
	}
	return strconv.FormatUint(v, 10)
}
