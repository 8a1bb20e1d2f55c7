package discord

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/leeforge/bot/extension"
)

// maxMessageLength is the platform cap on message content, in characters.
const maxMessageLength = 2000

// invitePermissions is what the bot asks for when invited.
const invitePermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionEmbedLinks |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionAddReactions |
	discordgo.PermissionChangeNickname

// roleNames maps permission bits to the role names the permission
// enforcer matches against.
var roleNames = []struct {
	bit  int64
	name string
}{
	{discordgo.PermissionAdministrator, "ADMINISTRATOR"},
	{discordgo.PermissionManageGuild, "MANAGE_GUILD"},
	{discordgo.PermissionManageChannels, "MANAGE_CHANNELS"},
	{discordgo.PermissionManageRoles, "MANAGE_ROLES"},
	{discordgo.PermissionManageMessages, "MANAGE_MESSAGES"},
	{discordgo.PermissionKickMembers, "KICK_MEMBERS"},
	{discordgo.PermissionBanMembers, "BAN_MEMBERS"},
}

// permissionRoles lists the role names granted by perms.
// Administrators implicitly hold every named permission.
func permissionRoles(perms int64) []string {
	var out []string
	admin := perms&discordgo.PermissionAdministrator != 0
	for _, r := range roleNames {
		if admin || perms&r.bit == r.bit {
			out = append(out, r.name)
		}
	}
	return out
}

func toMessage(m *discordgo.Message, perms int64) *extension.Message {
	msg := &extension.Message{
		ID:        m.ID,
		TenantID:  m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorTag = m.Author.String()
	}
	if m.GuildID != "" {
		msg.Roles = permissionRoles(perms)
	}
	return msg
}

// splitMessage breaks text into chunks of at most limit characters,
// preferring line breaks, then spaces, as cut points.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		if i := strings.LastIndexByte(text[:cut], '\n'); i > 0 {
			cut = i
		} else if i := strings.LastIndexByte(text[:cut], ' '); i > 0 {
			cut = i
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n ")
	}
	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// byteOffset returns the byte index of the n-th rune in s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}

func inviteURL(clientID string) string {
	return fmt.Sprintf("https://discord.com/oauth2/authorize?client_id=%s&scope=bot&permissions=%d", clientID, invitePermissions)
}

// announceChannel picks where unsolicited messages go: the system channel
// when writable, otherwise the top-most writable text channel.
func announceChannel(g *discordgo.Guild, writable func(channelID string) bool) (string, bool) {
	if g.SystemChannelID != "" && writable(g.SystemChannelID) {
		return g.SystemChannelID, true
	}
	channels := slices.Clone(g.Channels)
	slices.SortStableFunc(channels, func(a, b *discordgo.Channel) int {
		return a.Position - b.Position
	})
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText && ch.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		if writable(ch.ID) {
			return ch.ID, true
		}
	}
	return "", false
}

// logEvent maps a discordgo log level to the diagnostic event it becomes.
func logEvent(level int) string {
	switch level {
	case discordgo.LogError:
		return extension.EventError
	case discordgo.LogWarning:
		return extension.EventWarn
	default:
		return extension.EventDebug
	}
}
