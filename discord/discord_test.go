package discord

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []extension.Event
}

func (b *recordingBus) Subscribe(string, extension.EventHandler) extension.Subscription { return nil }
func (b *recordingBus) Close() error                                                     { return nil }

func (b *recordingBus) Publish(_ context.Context, e extension.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) named(name string) []extension.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []extension.Event
	for _, e := range b.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type sent struct {
	channel, content string
}

func testAdapter(t *testing.T, nickname string) (*Adapter, *recordingBus, *[]sent) {
	t.Helper()
	bus := &recordingBus{}
	a := newAdapter(Options{Bus: bus, DefaultNickname: nickname})
	var out []sent
	a.send = func(_ context.Context, channelID, content string) error {
		out = append(out, sent{channelID, content})
		return nil
	}
	a.perms = func(userID, channelID string) (int64, error) {
		if channelID == "locked" {
			return discordgo.PermissionViewChannel, nil
		}
		if userID == "admin" {
			return discordgo.PermissionAdministrator, nil
		}
		return discordgo.PermissionViewChannel | discordgo.PermissionSendMessages, nil
	}
	return a, bus, &out
}

func TestNewRequiresTokenAndBus(t *testing.T) {
	_, err := New(Options{Bus: &recordingBus{}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalid))

	_, err = New(Options{Token: "abc"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalid))
}

func TestPermissionRoles(t *testing.T) {
	assert.Empty(t, permissionRoles(discordgo.PermissionSendMessages))
	assert.Equal(t, []string{"MANAGE_GUILD"}, permissionRoles(discordgo.PermissionManageGuild|discordgo.PermissionSendMessages))

	admin := permissionRoles(discordgo.PermissionAdministrator)
	assert.Contains(t, admin, "ADMINISTRATOR")
	assert.Contains(t, admin, "MANAGE_GUILD")
	assert.Len(t, admin, len(roleNames))
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"short", "hello", 10, []string{"hello"}},
		{"empty", "", 10, []string{""}},
		{"line break", "first line\nsecond", 12, []string{"first line", "second"}},
		{"space", "aaaa bbbb cccc", 10, []string{"aaaa bbbb", "cccc"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"runes", "ééééé", 2, []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitMessage(tt.text, tt.limit))
		})
	}
}

func TestReplySplitsLongText(t *testing.T) {
	a, _, out := testAdapter(t, "")
	text := strings.Repeat("x", maxMessageLength) + "\n" + "tail"

	require.NoError(t, a.Reply(context.Background(), &extension.Message{ChannelID: "c1"}, text))
	require.Len(t, *out, 2)
	assert.Len(t, (*out)[0].content, maxMessageLength)
	assert.Equal(t, sent{"c1", "tail"}, (*out)[1])

	err := a.Reply(context.Background(), &extension.Message{}, "hi")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalid))
}

func TestAnnounceChannelChoice(t *testing.T) {
	a, _, out := testAdapter(t, "")
	guilds := map[string]*discordgo.Guild{
		"g1": {ID: "g1", SystemChannelID: "locked", Channels: []*discordgo.Channel{
			{ID: "voice", Type: discordgo.ChannelTypeGuildVoice, Position: 0},
			{ID: "general", Type: discordgo.ChannelTypeGuildText, Position: 2},
			{ID: "rules", Type: discordgo.ChannelTypeGuildText, Position: 1},
		}},
		"g2": {ID: "g2", SystemChannelID: "welcome"},
		"g3": {ID: "g3", Channels: []*discordgo.Channel{{ID: "locked", Type: discordgo.ChannelTypeGuildText}}},
	}
	a.guild = func(id string) (*discordgo.Guild, error) {
		if g, ok := guilds[id]; ok {
			return g, nil
		}
		return nil, discordgo.ErrStateNotFound
	}
	ctx := context.Background()

	require.NoError(t, a.Announce(ctx, "g1", "hello"))
	require.NoError(t, a.Announce(ctx, "g2", "hello"))
	assert.Equal(t, []sent{{"rules", "hello"}, {"welcome", "hello"}}, *out)

	assert.True(t, errors.IsType(a.Announce(ctx, "g3", "hello"), errors.ErrorTypeForbidden))
	assert.True(t, errors.IsType(a.Announce(ctx, "g4", "hello"), errors.ErrorTypeNotFound))
}

func TestReadyAndGuildJoin(t *testing.T) {
	a, bus, _ := testAdapter(t, "Helper")
	var nicknamed []string
	a.nick = func(_ context.Context, guildID, nickname string) error {
		nicknamed = append(nicknamed, guildID+"="+nickname)
		return nil
	}

	_, ok := a.InviteURL()
	assert.False(t, ok)

	// Guilds streamed before ready are not joins.
	a.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "early"}})
	a.onReady(nil, &discordgo.Ready{
		User:        &discordgo.User{ID: "42", Username: "robo", Discriminator: "0"},
		Application: &discordgo.Application{ID: "app-1"},
		Guilds:      []*discordgo.Guild{{ID: "g1", Unavailable: true}, {ID: "g2", Unavailable: true}},
	})
	a.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})
	a.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g9"}})

	ready := bus.named(extension.EventReady)
	require.Len(t, ready, 1)
	payload, ok := ready[0].Data.(*extension.Ready)
	require.True(t, ok)
	assert.Equal(t, "robo", payload.User)
	assert.Equal(t, []string{"g1", "g2"}, payload.Tenants)
	assert.Equal(t, Source, ready[0].Source)

	joins := bus.named(extension.EventTenantJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, "g9", joins[0].TenantID)
	assert.Equal(t, []string{"g9=Helper"}, nicknamed)

	link, ok := a.InviteURL()
	require.True(t, ok)
	assert.Contains(t, link, "client_id=app-1")
	assert.Contains(t, link, "scope=bot")

	a.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g9"}})
	a.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g9"}})
	assert.Len(t, bus.named(extension.EventTenantJoin), 2)
}

func TestMessageCreate(t *testing.T) {
	a, bus, _ := testAdapter(t, "")
	a.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "42", Username: "robo", Discriminator: "0"}})

	a.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", GuildID: "g1", ChannelID: "c1", Content: "!help",
		Author: &discordgo.User{ID: "admin", Username: "ana", Discriminator: "0001"},
	}})
	a.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m2", ChannelID: "dm", Content: "!help",
		Author: &discordgo.User{ID: "7", Username: "bo", Discriminator: "0"},
	}})
	a.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m3", ChannelID: "c1", Content: "beep", Author: &discordgo.User{ID: "8", Bot: true},
	}})
	a.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m4", ChannelID: "c1", Content: "echo", Author: &discordgo.User{ID: "42"},
	}})

	msgs := bus.named(extension.EventMessage)
	require.Len(t, msgs, 2)

	first := msgs[0].Data.(*extension.Message)
	assert.Equal(t, "g1", msgs[0].TenantID)
	assert.Equal(t, "ana#0001", first.AuthorTag)
	assert.Contains(t, first.Roles, "ADMINISTRATOR")

	dm := msgs[1].Data.(*extension.Message)
	assert.True(t, dm.Direct())
	assert.Empty(t, dm.Roles)
	assert.Equal(t, "bo", dm.AuthorTag)
}

func TestForwardLog(t *testing.T) {
	a, bus, _ := testAdapter(t, "")
	a.forwardLog(discordgo.LogError, 1, "gateway %s", "closed")
	a.forwardLog(discordgo.LogWarning, 1, "rate limited")
	a.forwardLog(discordgo.LogInformational, 1, "connected")

	errs := bus.named(extension.EventError)
	require.Len(t, errs, 1)
	err, ok := errs[0].Data.(error)
	require.True(t, ok)
	assert.Equal(t, "gateway closed", err.Error())
	assert.Len(t, bus.named(extension.EventWarn), 1)
	assert.Len(t, bus.named(extension.EventDebug), 1)
}

func TestReactionAdd(t *testing.T) {
	a, bus, _ := testAdapter(t, "")
	a.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "42", Username: "robo", Discriminator: "0"}})
	lookups := 0
	a.message = func(_ context.Context, channelID, messageID string) (*discordgo.Message, error) {
		lookups++
		switch messageID {
		case "mine":
			return &discordgo.Message{ID: messageID, ChannelID: channelID, Author: &discordgo.User{ID: "42"}}, nil
		case "theirs":
			return &discordgo.Message{ID: messageID, ChannelID: channelID, Author: &discordgo.User{ID: "7"}}, nil
		}
		return nil, discordgo.ErrStateNotFound
	}
	react := func(userID, messageID string) {
		a.onReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: userID, MessageID: messageID, ChannelID: "c1", GuildID: "g1",
			Emoji: discordgo.Emoji{Name: "🗑️"},
		}})
	}

	react("7", "mine")
	react("7", "theirs")
	react("42", "mine")
	react("7", "gone")

	got := bus.named(extension.EventReactionAdd)
	require.Len(t, got, 4)
	first := got[0].Data.(*extension.Reaction)
	assert.Equal(t, "g1", got[0].TenantID)
	assert.Equal(t, "🗑️", first.Emoji)
	assert.True(t, first.OnOwn)
	assert.False(t, first.BySelf)
	assert.False(t, got[1].Data.(*extension.Reaction).OnOwn)
	assert.True(t, got[2].Data.(*extension.Reaction).BySelf)
	assert.False(t, got[3].Data.(*extension.Reaction).OnOwn)
	assert.Equal(t, 3, lookups, "own reactions need no lookup")
}

func TestDeleteMessage(t *testing.T) {
	a, _, _ := testAdapter(t, "")
	var deleted []string
	a.remove = func(_ context.Context, channelID, messageID string) error {
		if messageID == "locked" {
			return errors.NewForbidden("missing permissions")
		}
		deleted = append(deleted, channelID+"/"+messageID)
		return nil
	}

	require.NoError(t, a.DeleteMessage(context.Background(), "c1", "m1"))
	err := a.DeleteMessage(context.Background(), "c1", "locked")
	assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))
	assert.Equal(t, []string{"c1/m1"}, deleted)
}
