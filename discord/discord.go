// Package discord connects a discordgo session to the bot host: gateway
// events go onto the event bus, and replies go back through the REST API.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

// Source is the event source name stamped on published events.
const Source = "discord"

const (
	publishTimeout = 5 * time.Second
	selfMember     = "@me"

	// cachedMessages per channel, so reactions rarely need a REST lookup.
	cachedMessages = 50
)

// Options configures an Adapter.
type Options struct {
	Token           string
	DefaultNickname string
	Debug           bool // forward discordgo debug logging as debug events
	Bus             extension.EventBus
	Logger          *zap.Logger
}

// Adapter is a runtime.Platform backed by a Discord bot account. It also
// implements extension.Replier and core.Announcer.
type Adapter struct {
	session  *discordgo.Session
	bus      extension.EventBus
	logger   *zap.Logger
	nickname string

	// REST and state hooks, swapped in tests.
	send     func(ctx context.Context, channelID, content string) error
	perms    func(userID, channelID string) (int64, error)
	guild    func(guildID string) (*discordgo.Guild, error)
	nick     func(ctx context.Context, guildID, nickname string) error
	message  func(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
	remove   func(ctx context.Context, channelID, messageID string) error
	handlers []func()

	mu       sync.RWMutex
	selfID   string
	clientID string
	ready    bool
	known    map[string]struct{}
}

// New creates an adapter. The gateway connection opens in Open.
func New(opts Options) (*Adapter, error) {
	if opts.Token == "" {
		return nil, errors.NewInvalid("token", "", "a bot token is required")
	}
	if opts.Bus == nil {
		return nil, errors.NewInvalid("bus", nil, "an event bus is required")
	}
	session, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeExternal, "failed to create discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentMessageContent
	session.State.MaxMessageCount = cachedMessages
	session.LogLevel = discordgo.LogWarning
	if opts.Debug {
		session.LogLevel = discordgo.LogDebug
	}

	a := newAdapter(opts)
	a.session = session
	a.send = func(ctx context.Context, channelID, content string) error {
		_, err := session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
		return err
	}
	a.perms = func(userID, channelID string) (int64, error) {
		if p, err := session.State.UserChannelPermissions(userID, channelID); err == nil {
			return p, nil
		}
		return session.UserChannelPermissions(userID, channelID)
	}
	a.guild = session.State.Guild
	a.nick = func(ctx context.Context, guildID, nickname string) error {
		return session.GuildMemberNickname(guildID, selfMember, nickname, discordgo.WithContext(ctx))
	}
	a.message = func(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
		if m, err := session.State.Message(channelID, messageID); err == nil {
			return m, nil
		}
		return session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	}
	a.remove = func(ctx context.Context, channelID, messageID string) error {
		return session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	}
	return a, nil
}

func newAdapter(opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		bus:      opts.Bus,
		logger:   logger.Named(Source),
		nickname: opts.DefaultNickname,
		known:    make(map[string]struct{}),
	}
}

// Open installs the gateway handlers and connects.
func (a *Adapter) Open(ctx context.Context) error {
	discordgo.Logger = a.forwardLog
	a.handlers = append(a.handlers,
		a.session.AddHandler(a.onReady),
		a.session.AddHandler(a.onGuildCreate),
		a.session.AddHandler(a.onGuildDelete),
		a.session.AddHandler(a.onMessageCreate),
		a.session.AddHandler(a.onReactionAdd),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.session.Open(); err != nil {
		return errors.WrapWithType(err, errors.ErrorTypeExternal, "failed to open discord gateway")
	}
	a.logger.Info("connected to discord gateway")
	return nil
}

// Close disconnects and removes the handlers installed by Open.
func (a *Adapter) Close() error {
	for _, remove := range a.handlers {
		remove()
	}
	a.handlers = nil
	return a.session.Close()
}

// Reply sends text to the channel the message came from, split to fit
// the platform limit.
func (a *Adapter) Reply(ctx context.Context, to *extension.Message, text string) error {
	if to == nil || to.ChannelID == "" {
		return errors.NewInvalid("channel", "", "reply target has no channel")
	}
	return a.sendChunks(ctx, to.ChannelID, text)
}

// Announce posts text into the tenant's system channel or first writable
// text channel.
func (a *Adapter) Announce(ctx context.Context, tenantID, text string) error {
	g, err := a.guild(tenantID)
	if err != nil {
		return errors.WrapWithType(err, errors.ErrorTypeNotFound, "unknown guild").WithDetail("tenant", tenantID)
	}
	selfID := a.self()
	channelID, ok := announceChannel(g, func(channelID string) bool {
		p, err := a.perms(selfID, channelID)
		const need = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
		return err == nil && p&need == need
	})
	if !ok {
		return errors.NewForbidden("no writable text channel").WithDetail("tenant", tenantID)
	}
	return a.sendChunks(ctx, channelID, text)
}

// DeleteMessage removes a message from a channel.
func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := a.remove(ctx, channelID, messageID); err != nil {
		return errors.WrapWithType(err, errors.ErrorTypeExternal, "failed to delete message").
			WithDetail("channel", channelID).
			WithDetail("message", messageID)
	}
	return nil
}

// InviteURL returns the link that adds the bot to a server, known once
// the gateway reported ready.
func (a *Adapter) InviteURL() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.clientID == "" {
		return "", false
	}
	return inviteURL(a.clientID), true
}

func (a *Adapter) sendChunks(ctx context.Context, channelID, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if err := a.send(ctx, channelID, chunk); err != nil {
			return errors.WrapWithType(err, errors.ErrorTypeExternal, "failed to send message").
				WithDetail("channel", channelID)
		}
	}
	return nil
}

func (a *Adapter) self() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selfID
}

func (a *Adapter) publish(name, tenantID string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := a.bus.Publish(ctx, extension.Event{
		Name:      name,
		TenantID:  tenantID,
		Data:      data,
		Source:    Source,
		Timestamp: time.Now(),
	})
	if err != nil {
		a.logger.Warn("dropped gateway event", zap.String("event", name), zap.Error(err))
	}
}

func (a *Adapter) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	tenants := make([]string, 0, len(r.Guilds))

	a.mu.Lock()
	a.ready = true
	a.selfID = r.User.ID
	a.clientID = r.User.ID
	if r.Application != nil && r.Application.ID != "" {
		a.clientID = r.Application.ID
	}
	for _, g := range r.Guilds {
		a.known[g.ID] = struct{}{}
		tenants = append(tenants, g.ID)
	}
	a.mu.Unlock()

	a.publish(extension.EventReady, "", &extension.Ready{
		User:      r.User.String(),
		AvatarURL: r.User.AvatarURL(""),
		Tenants:   tenants,
	})
}

// onGuildCreate fires for every guild after login and for guilds joined
// later; only the latter are announced.
func (a *Adapter) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	a.mu.Lock()
	_, seen := a.known[g.ID]
	a.known[g.ID] = struct{}{}
	ready := a.ready
	a.mu.Unlock()
	if seen || !ready {
		return
	}

	if a.nickname != "" && a.nick != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.nick(ctx, g.ID, a.nickname); err != nil {
			a.logger.Warn("failed to set nickname", zap.String("tenant", g.ID), zap.Error(err))
		}
		cancel()
	}
	a.publish(extension.EventTenantJoin, g.ID, nil)
}

func (a *Adapter) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	a.mu.Lock()
	delete(a.known, g.ID)
	a.mu.Unlock()
	a.logger.Info("removed from tenant", zap.String("tenant", g.ID))
}

func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == a.self() {
		return
	}
	var perms int64
	if m.GuildID != "" {
		p, err := a.perms(m.Author.ID, m.ChannelID)
		if err != nil {
			a.logger.Debug("could not resolve author permissions",
				zap.String("tenant", m.GuildID),
				zap.String("author", m.Author.ID),
				zap.Error(err))
		}
		perms = p
	}
	a.publish(extension.EventMessage, m.GuildID, toMessage(m.Message, perms))
}

// onReactionAdd resolves the reacted message's author, which the gateway
// payload does not carry, and publishes the reaction.
func (a *Adapter) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	selfID := a.self()
	reaction := &extension.Reaction{
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
		BySelf:    r.UserID == selfID,
	}
	if !reaction.BySelf && a.message != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		m, err := a.message(ctx, r.ChannelID, r.MessageID)
		cancel()
		if err != nil {
			a.logger.Debug("could not resolve reacted message",
				zap.String("channel", r.ChannelID),
				zap.String("message", r.MessageID),
				zap.Error(err))
		} else if m.Author != nil {
			reaction.OnOwn = m.Author.ID == selfID
		}
	}
	a.publish(extension.EventReactionAdd, r.GuildID, reaction)
}

// forwardLog replaces discordgo's own logger.
func (a *Adapter) forwardLog(level, _ int, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	event := logEvent(level)
	if event == extension.EventError {
		a.publish(event, "", errors.New(errors.ErrorTypeExternal, text))
		return
	}
	a.publish(event, "", text)
}
